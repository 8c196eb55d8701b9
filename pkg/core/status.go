package core

import "fmt"

// StepStatus represents the execution status of a workflow step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Command (and its wait) completed
	StatusFailed                    // Device command failed; run aborted here
	StatusSkipped                   // Never reached because an earlier step failed
)

var statusNames = map[StepStatus]string{
	StatusPending: "pending",
	StatusRunning: "running",
	StatusPassed:  "passed",
	StatusFailed:  "failed",
	StatusSkipped: "skipped",
}

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the status by name so run records stay readable.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name written by MarshalText.
func (s *StepStatus) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown step status %q", text)
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// State is a position in the print workflow state machine:
//
//	Idle → Pushing → RescanBroadcast → KillingApps → GoingHome → LaunchingApp
//	     → Tapping(1..N) → WaitingForPrint → StoppingApp → Idle
//
// Every transition is unconditional once the previous step's command has
// succeeded. A failure leaves the run in the state that failed.
type State int

const (
	StateIdle State = iota
	StatePushing
	StateRescanBroadcast
	StateKillingApps
	StateGoingHome
	StateLaunchingApp
	StateTapping
	StateWaitingForPrint
	StateStoppingApp
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StatePushing:         "pushing",
	StateRescanBroadcast: "rescan_broadcast",
	StateKillingApps:     "killing_apps",
	StateGoingHome:       "going_home",
	StateLaunchingApp:    "launching_app",
	StateTapping:         "tapping",
	StateWaitingForPrint: "waiting_for_print",
	StateStoppingApp:     "stopping_app",
}

// String returns the snake_case name of the state
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown workflow state %q", text)
}

// AppMayBeRunning reports whether the target app could be in the foreground
// once a run has reached this state.
func (s State) AppMayBeRunning() bool {
	return s >= StateLaunchingApp && s <= StateStoppingApp
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone   ErrorCategory = iota // No error
	ErrCategoryDevice                      // adb command reported failure
	ErrCategoryBusy                        // Device session already held by another run
	ErrCategoryConfig                      // Invalid configuration
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryBusy:
		return "busy"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
