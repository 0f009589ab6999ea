package plan

import "errors"

var (
	ErrPlanNotFound = errors.New("advertising plan not found")
	ErrPlanLocked   = errors.New("advertising plan is referenced by a completed reconciliation")
)
