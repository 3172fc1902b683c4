package pool

import "fmt"

// ExhaustedError is returned by Borrow when live_count == max and no
// Connection is returned before wait_timeout_s elapses (spec.md §4.3).
type ExhaustedError struct {
	PoolName string
	Waited   string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("pool %q exhausted after waiting %s", e.PoolName, e.Waited)
}

// DoubleReleaseError is surfaced when a lease id is returned more than once
// (spec.md §4.3's "double-release is a programmer error and must be
// surfaced").
type DoubleReleaseError struct {
	LeaseID uint64
}

func (e *DoubleReleaseError) Error() string {
	return fmt.Sprintf("lease %d released more than once", e.LeaseID)
}

// UnknownLeaseError is surfaced when Return is called with a lease id this
// Pool never issued.
type UnknownLeaseError struct {
	LeaseID uint64
}

func (e *UnknownLeaseError) Error() string {
	return fmt.Sprintf("lease %d is not known to this pool", e.LeaseID)
}
