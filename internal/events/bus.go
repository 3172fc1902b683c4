package events

import "sync"

// Handler processes one Event. Per spec.md §4.5's listener contract, a
// Handler must process exactly one event and never let a panic escape —
// listeners package wraps every registered Handler in a recover trap before
// it reaches the Bus.
type Handler func(Event)

// Bus is the in-process event dispatch contract spec.md §4.5 describes. The
// library defines this contract and ships Reference as a default
// implementation; a host application may supply any Bus that satisfies this
// interface instead (spec.md §6's "Event bus" external collaborator).
type Bus interface {
	Dispatch(e Event)
	Listen(tag Tag, h Handler)
}

// Reference is a minimal synchronous, in-process Bus: dispatch calls every
// registered handler for the event's tag, in registration order, on the
// caller's goroutine (spec.md §5: "Events fired by listeners are delivered
// in the order the producing listener emitted them; when multiple listeners
// observe the same event their relative order is unspecified" — Reference
// picks registration order as that unspecified order).
type Reference struct {
	mu       sync.RWMutex
	handlers map[Tag][]Handler
}

// NewReference creates an empty Reference bus.
func NewReference() *Reference {
	return &Reference{handlers: make(map[Tag][]Handler)}
}

// Listen registers h to be invoked for every event tagged tag.
func (b *Reference) Listen(tag Tag, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[tag] = append(b.handlers[tag], h)
}

// Dispatch invokes every handler registered for e.Tag(), synchronously, on
// the calling goroutine.
func (b *Reference) Dispatch(e Event) {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[e.Tag()]...)
	b.mu.RUnlock()
	for _, h := range hs {
		h(e)
	}
}

var _ Bus = (*Reference)(nil)
