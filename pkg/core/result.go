// Package core provides the execution model types for the print workflow.
package core

import (
	"time"
)

// StepResult captures the outcome of executing a single workflow step
type StepResult struct {
	// Identity
	Index   int    `json:"index"`             // 0-based position in the plan
	Name    string `json:"name"`              // push, broadcast, tap:quick-print, ...
	State   State  `json:"state"`             // State the run was in while executing
	Tap     int    `json:"tap,omitempty"`     // 1-based tap position, 0 for non-tap steps
	Command string `json:"command,omitempty"` // Bridge command as issued, empty for pure waits

	// Status
	Status StepStatus `json:"status"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`         // Command execution time
	Wait      string        `json:"wait,omitempty"`   // Wait policy description
	Waited    time.Duration `json:"waited,omitempty"` // Time spent in the wait policy

	// Error details
	Error string `json:"error,omitempty"`
}

// RunResult captures the complete outcome of one print workflow run
type RunResult struct {
	// Identity
	RunID  string `json:"runId"`
	Image  string `json:"image"`
	Serial string `json:"serial,omitempty"`

	// Status
	Status      StepStatus `json:"status"`
	FailedState State      `json:"failedState,omitempty"` // Only meaningful when Status is failed
	Policy      string     `json:"policy"`                // Failure policy in effect

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Steps   []StepResult `json:"steps"`
	Cleanup *StepResult  `json:"cleanup,omitempty"` // Compensating step run by the cleanup policy

	// Error info (if run failed)
	Error string `json:"error,omitempty"`
}

// Succeeded returns true if every step passed
func (r *RunResult) Succeeded() bool {
	return r.Status == StatusPassed
}

// FailedStep returns the step that aborted the run, or nil
func (r *RunResult) FailedStep() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Status == StatusFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// TotalWaited sums the time spent in wait policies across all steps
func (r *RunResult) TotalWaited() time.Duration {
	var total time.Duration
	for _, step := range r.Steps {
		total += step.Waited
	}
	return total
}

// CountByStatus returns how many steps ended in the given status
func (r *RunResult) CountByStatus(status StepStatus) int {
	n := 0
	for _, step := range r.Steps {
		if step.Status == status {
			n++
		}
	}
	return n
}
