package database

import "fmt"

// Status is the lifecycle state of a post.
type Status string

const (
	StatusPending    Status = "pending"
	StatusModeration Status = "moderation"
	StatusPublished  Status = "published"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
)

// transitions is the only place new edges of the post state machine may be added.
var transitions = map[Status][]Status{
	StatusPending:    {StatusModeration, StatusPublished, StatusFailed},
	StatusModeration: {StatusPublished, StatusRejected},
	StatusFailed:     {StatusPublished, StatusFailed},
}

// CanTransition reports whether a post may move from one status to another.
// published and rejected are terminal; failed allows manual retry.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusModeration, StatusPublished, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// ErrInvalidTransition is returned when a status change violates the state machine.
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}
