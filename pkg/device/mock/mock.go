// Package mock provides a fake adb for testing without a real device.
package mock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// DefaultSerial is the serial reported by the fake `adb devices -l`.
const DefaultSerial = "mock-serial"

// ErrExit is the error returned by failing commands.
var ErrExit = errors.New("exit status 1")

// Config configures fake adb behaviour.
type Config struct {
	// FailOn makes the first command whose joined arguments contain this
	// substring fail. Empty = never fail.
	FailOn string
	// FailAll makes every command after the first failure fail as well.
	FailAll bool
	// Stderr is the diagnostic printed by failing commands.
	Stderr string
	// Devices overrides the `adb devices -l` output.
	Devices string
	// Delay adds artificial latency per command.
	Delay time.Duration
	// Offline makes `adb get-state` fail as it does for a serial that is
	// not attached.
	Offline bool
	// Props answers `adb shell getprop <key>`. Missing keys print nothing.
	Props map[string]string
}

// Runner records every adb invocation and answers from Config.
type Runner struct {
	Config Config

	mu     sync.Mutex
	calls  [][]string
	failed bool
}

// New creates a fake adb runner.
func New(cfg Config) *Runner {
	if cfg.Stderr == "" {
		cfg.Stderr = "error: mock failure"
	}
	return &Runner{Config: cfg}
}

// Run implements device.CommandRunner.
func (r *Runner) Run(ctx context.Context, _ string, args ...string) (string, string, error) {
	args = stripSelector(args)

	if r.Config.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(r.Config.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case len(args) > 0 && args[0] == "get-state":
		if r.Config.Offline {
			return "", "error: device not found", ErrExit
		}
		return "device\n", "", nil
	case len(args) == 3 && args[0] == "shell" && args[1] == "getprop":
		if v, ok := r.Config.Props[args[2]]; ok {
			return v + "\n", "", nil
		}
		return "\n", "", nil
	case len(args) > 0 && args[0] == "devices":
		if r.Config.Devices != "" {
			return r.Config.Devices, "", nil
		}
		return "List of devices attached\n" + DefaultSerial + "\tdevice product:mock model:Mock_Phone device:mock transport_id:1\n", "", nil
	}

	r.calls = append(r.calls, args)

	joined := strings.Join(args, " ")
	if r.failed && r.Config.FailAll {
		return "", r.Config.Stderr, ErrExit
	}
	if r.Config.FailOn != "" && !r.failed && strings.Contains(joined, r.Config.FailOn) {
		r.failed = true
		return "", r.Config.Stderr, ErrExit
	}

	return "", "", nil
}

// Commands returns every recorded command (without read-only probes such as get-state,
// devices and getprop)
// as space-joined strings, in issue order.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}

// Reset clears recorded commands and the failure latch.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.failed = false
}

func stripSelector(args []string) []string {
	if len(args) >= 2 && args[0] == "-s" {
		return args[2:]
	}
	return args
}
