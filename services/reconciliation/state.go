package reconciliation

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
)

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// rejected is never stored: rejecting purges the record.
var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusCompleted, StatusPaused},
	StatusApproved:  {StatusCompleted, StatusPaused, StatusRejected},
	StatusPaused:    {StatusPending, StatusApproved, StatusRejected},
	StatusCompleted: {StatusCompleted},
	StatusRejected:  nil,
}

// CanTransition reports whether a record in from may move to to. Purge is allowed from every state and is not
// modelled here.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
