package models

// Status of an order. New -> InProcess -> Done -> Completed; Cancelled from New or InProcess.
type Status string

const (
	StatusNew       Status = "new"
	StatusInProcess Status = "in_process"
	StatusDone      Status = "done"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusNew:       {StatusInProcess, StatusCancelled},
	StatusInProcess: {StatusDone, StatusCompleted, StatusCancelled},
	StatusDone:      {StatusCompleted},
}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusNew, StatusInProcess, StatusDone, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsItems reports whether line items may be added in this status.
func (s Status) AcceptsItems() bool {
	return s == StatusNew || s == StatusInProcess
}

type OrderType string

const (
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDineIn   OrderType = "dine_in"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeTakeaway || t == OrderTypeDineIn
}
