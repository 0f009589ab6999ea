package reconciliation

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput aborts an operation before anything is written.
	ErrMissingInput = errors.New("missing campaign snapshot or plan catalog")
	// ErrNoPlanMatch is reported alongside a persisted, unmatched reconciliation.
	ErrNoPlanMatch = errors.New("no plan within matching thresholds")
	// ErrInconsistentBudget is reported alongside a persisted reconciliation flagged for review.
	ErrInconsistentBudget = errors.New("campaign budgets are not positive after normalization")

	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrPurgeNotConfirmed      = errors.New("purge requires explicit confirmation")
	ErrReconciliationNotFound = errors.New("campaign reconciliation not found")
	ErrPlanRequired           = errors.New("reconciliation has no advertising plan")
	ErrInvalidFilter          = errors.New("invalid reconciliation filter")
)

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
