package engine

import (
	"time"

	"github.com/Kingmaker16/codex-os/internal/graph"
)

// Outcome is how an execution ended.
type Outcome string

const (
	// OutcomeCompleted means every task is done or failed.
	OutcomeCompleted Outcome = "completed"
	// OutcomeStuck means tasks remain pending but none can run.
	OutcomeStuck Outcome = "stuck"
	// OutcomeCapped means MaxIterations rounds ran without completing.
	OutcomeCapped Outcome = "capped"
	// OutcomeCancelled means the caller's context ended the run.
	OutcomeCancelled Outcome = "cancelled"
)

// Report summarizes one execution. Rounds counts rounds that dispatched
// at least one task.
type Report struct {
	RunID       string        `json:"runId"`
	GraphID     string        `json:"graphId"`
	Fingerprint string        `json:"fingerprint"`
	Outcome     Outcome       `json:"outcome"`
	Rounds      int           `json:"rounds"`
	Counts      graph.Counts  `json:"counts"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"durationNs"`
}
