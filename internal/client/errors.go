package client

import "fmt"

// ValidationError wraps a §4.1 validation failure surfaced by the Client
// Facade before a borrow is even attempted (spec.md §4.4).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("client: invalid %s: %s", e.Field, e.Reason)
}

// NotSubscribedError is returned by Receive when the calling context id is
// not bound to a subscriber connection (spec.md §4.4).
type NotSubscribedError struct {
	ContextID string
}

func (e *NotSubscribedError) Error() string {
	return fmt.Sprintf("client: context %q has no active subscription to receive on", e.ContextID)
}
