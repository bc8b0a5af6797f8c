package editor

import (
	"errors"
	"fmt"
)

var (
	ErrNotEditing            = errors.New("no field is being edited")
	ErrNotEditable           = errors.New("field is not editable")
	ErrEditInProgress        = errors.New("row is being edited")
	ErrCommitPending         = errors.New("a commit is still in flight for this row")
	ErrAllocationPending     = errors.New("warehouse allocation is awaiting resolution")
	ErrNoAllocation          = errors.New("no such allocation request")
	ErrAllocationSumMismatch = errors.New("allocated total does not match required quantity")
	ErrInvalidAllocation     = errors.New("invalid allocation entry")
)

// ValidationError wraps a sentinel with operator-facing details.
type ValidationError struct {
	Err     error
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CommitOutcome reports what a commit did to the cart.
type CommitOutcome int

const (
	// CommitNoop means nothing was being edited or the value did not change.
	CommitNoop CommitOutcome = iota
	CommitApplied
	// CommitRejected means the buffer failed validation; the line keeps its
	// last committed values.
	CommitRejected
	// CommitDiscarded means focus moved on before the oracle answered.
	CommitDiscarded
	// CommitAwaitingAllocation means the commit is parked behind an
	// AllocationRequest.
	CommitAwaitingAllocation
)

var outcomeNames = [...]string{"noop", "applied", "rejected", "discarded", "awaiting_allocation"}

func (o CommitOutcome) String() string {
	if o < CommitNoop || o > CommitAwaitingAllocation {
		return "unknown"
	}
	return outcomeNames[o]
}
