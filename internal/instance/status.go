package instance

import "fmt"

// Status is the lifecycle state of a task instance.
type Status string

const (
	StatusPending     Status = "pending"
	StatusInitialized Status = "initialized"
	StatusStarted     Status = "started"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown instance status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInitialized, StatusStarted, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled:
		return true
	case StatusPending, StatusInitialized, StatusStarted:
		return false
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine allows s -> next.
// Staying in the same state is not a transition.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		switch next {
		case StatusInitialized, StatusStarted, StatusCompleted, StatusCancelled:
			return true
		case StatusPending:
			return false
		}
	case StatusInitialized:
		switch next {
		case StatusStarted, StatusCompleted, StatusCancelled:
			return true
		case StatusPending, StatusInitialized:
			return false
		}
	case StatusStarted:
		switch next {
		case StatusCompleted, StatusCancelled:
			return true
		case StatusPending, StatusInitialized, StatusStarted:
			return false
		}
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}
