package domain

import "fmt"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Task lifecycle states
const (
	StatusPending TaskStatus = "pending"
	StatusRunning TaskStatus = "running"
	StatusDone    TaskStatus = "done"
	StatusFailed  TaskStatus = "failed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []TaskStatus{StatusPending, StatusRunning, StatusDone, StatusFailed}

// NewTaskStatus creates a new TaskStatus value object with validation.
// An empty value is treated as pending so that planners may omit it.
func NewTaskStatus(value string) (TaskStatus, error) {
	if value == "" {
		return StatusPending, nil
	}
	s := TaskStatus(value)
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// Validate checks if the status is valid
func (s TaskStatus) Validate() error {
	switch s {
	case StatusPending, StatusRunning, StatusDone, StatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid task status %q: must be pending, running, done, or failed", string(s))
	}
}

// String returns the string representation
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is legal.
// Transitions only move forward: pending -> running -> {done, failed}.
// pending -> failed is allowed for tasks that fail before dispatch or are
// blocked by a failed dependency.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusDone || next == StatusFailed
	default:
		return false
	}
}
