package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"short id", "t1", false},
		{"hyphenated", "implement-auth", false},
		{"uuid", "5f0c6d3e-8a1b-4c1e-9d8f-0a1b2c3d4e5f", false},
		{"whitespace", "task 1", false},
		{"slash", "step/1", false},
		{"leading underscore", "_a", false},
		{"non-ascii", "résumé", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewTaskID(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, id.String())
		})
	}
}

func TestValidateGraphID(t *testing.T) {
	valid := []string{"g1", "01J9ZQ3V8K4M2N6P7R8S9T0V1W", "daily-pipeline", "run_2.v1"}
	for _, id := range valid {
		assert.NoError(t, ValidateGraphID(id), id)
	}

	invalid := []string{"", "../x", "a/b", `a\b`, ".hidden", "..", "g 1", strings.Repeat("g", 129)}
	for _, id := range invalid {
		assert.Error(t, ValidateGraphID(id), id)
	}
}

func TestNewTaskStatus(t *testing.T) {
	s, err := NewTaskStatus("")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s)

	for _, valid := range AllStatuses {
		s, err := NewTaskStatus(string(valid))
		require.NoError(t, err)
		assert.Equal(t, valid, s)
	}

	_, err = NewTaskStatus("skipped")
	assert.Error(t, err)
}

func TestTaskStatusTransitions(t *testing.T) {
	tests := []struct {
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusDone, false},
		{StatusPending, StatusPending, false},
		{StatusRunning, StatusDone, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusPending, false},
		{StatusDone, StatusRunning, false},
		{StatusDone, StatusFailed, false},
		{StatusFailed, StatusPending, false},
		{StatusFailed, StatusDone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusDone.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}
