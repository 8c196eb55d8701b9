package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// WaitPolicy decides when a step's effects on the device count as settled.
// The device UI is never observed, so today every policy is time based; a
// state-confirming policy would implement the same interface.
type WaitPolicy interface {
	// Wait blocks until the step is considered settled or ctx is done.
	Wait(ctx context.Context, clock clockwork.Clock) error
	// Budget is the time the policy expects to spend.
	Budget() time.Duration
	String() string
}

// FixedDelay waits a constant duration regardless of device state.
type FixedDelay struct {
	Delay time.Duration
}

// Wait blocks for the full delay.
func (f FixedDelay) Wait(ctx context.Context, clock clockwork.Clock) error {
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-clock.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Budget returns the delay.
func (f FixedDelay) Budget() time.Duration {
	if f.Delay < 0 {
		return 0
	}
	return f.Delay
}

func (f FixedDelay) String() string {
	return fmt.Sprintf("fixed %s", f.Delay)
}

// NoWait moves on as soon as the command returns.
type NoWait struct{}

// Wait returns immediately.
func (NoWait) Wait(context.Context, clockwork.Clock) error { return nil }

// Budget is zero.
func (NoWait) Budget() time.Duration { return 0 }

func (NoWait) String() string { return "none" }
