package domain

import "fmt"

// MaxTaskIDLength bounds task ids.
const MaxTaskIDLength = 128

// TaskID identifies a task within one graph. Any non-empty string is
// accepted; planners are free to use spaces, slashes or non-ASCII text.
type TaskID string

// NewTaskID validates value as a task id.
func NewTaskID(value string) (TaskID, error) {
	switch {
	case value == "":
		return "", fmt.Errorf("task id is empty")
	case len(value) > MaxTaskIDLength:
		return "", fmt.Errorf("task id %.16q... is longer than %d characters", value, MaxTaskIDLength)
	}
	return TaskID(value), nil
}

func (t TaskID) String() string { return string(t) }
