package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ethangrabau/mythra-web/pkg/core"
)

// Step names.
const (
	StepPush      = "push"
	StepRescan    = "rescan"
	StepKillAll   = "kill-all"
	StepHome      = "home"
	StepLaunch    = "launch"
	StepWaitPrint = "wait-print"
	StepStop      = "force-stop"

	tapStepPrefix = "tap:"
)

// Step is one entry of a print run: an optional device command followed by
// a wait policy.
type Step struct {
	Name    string
	State   core.State
	Tap     int    // 1-based position for tap steps
	Command string // adb command line as it will be issued; empty for pure waits
	Wait    WaitPolicy

	Intent  string // Console line printed before the step
	Success string // Console line printed after the step

	action func(ctx context.Context, dev Device) error
}

// HasCommand reports whether the step talks to the device.
func (s Step) HasCommand() bool {
	return s.action != nil
}

// TapStepName returns the step name used for a named tap.
func TapStepName(name string) string {
	return tapStepPrefix + name
}

// Plan returns the fixed, ordered steps of a print run for image. The order
// never depends on the image.
func (o *Orchestrator) Plan(image string) []Step {
	cfg := o.cfg
	src := cfg.ImagePath(image)
	dst := cfg.DevicePath(image)

	steps := []Step{
		{
			Name:    StepPush,
			State:   core.StatePushing,
			Command: fmt.Sprintf("adb push %s %s", src, dst),
			Wait:    NoWait{},
			Intent:  fmt.Sprintf("Pushing image %s to the phone...", image),
			Success: fmt.Sprintf("Image %s pushed successfully to %s", image, dst),
			action: func(ctx context.Context, dev Device) error {
				return o.pushImage(ctx, dev, src, dst)
			},
		},
		{
			Name:    StepRescan,
			State:   core.StateRescanBroadcast,
			Command: fmt.Sprintf("adb shell am broadcast -a %s -d %s", mediaScanAction, fileURI(dst)),
			Wait:    NoWait{},
			Intent:  "Refreshing media database...",
			Success: "Media database refreshed successfully",
			action: func(ctx context.Context, dev Device) error {
				return o.rescanMedia(ctx, dev, dst)
			},
		},
		{
			Name:    StepKillAll,
			State:   core.StateKillingApps,
			Command: "adb shell am kill-all",
			Wait:    FixedDelay{Delay: cfg.Delays.KillAll},
			Intent:  "Killing all background apps...",
			Success: "All background apps killed successfully",
			action:  o.ResetForegroundState,
		},
		{
			Name:    StepHome,
			State:   core.StateGoingHome,
			Command: "adb shell input keyevent " + homeKey,
			Wait:    FixedDelay{Delay: cfg.Delays.Home},
			Intent:  "Returning to home screen...",
			Success: "Returned to home screen successfully",
			action:  o.ReturnHome,
		},
		{
			Name:    StepLaunch,
			State:   core.StateLaunchingApp,
			Command: "adb shell am start -n " + cfg.App.Component,
			Wait:    FixedDelay{Delay: cfg.Delays.Launch},
			Intent:  fmt.Sprintf("Opening %s...", cfg.App.Package),
			Success: fmt.Sprintf("Opened %s", cfg.App.Package),
			action:  o.LaunchApp,
		},
	}

	for i, tap := range cfg.Taps {
		tap := tap
		steps = append(steps, Step{
			Name:    TapStepName(tap.Name),
			State:   core.StateTapping,
			Tap:     i + 1,
			Command: fmt.Sprintf("adb shell input tap %d %d", tap.X, tap.Y),
			Wait:    FixedDelay{Delay: tap.Wait},
			Intent:  fmt.Sprintf("Simulating tap on (%d, %d) [%s]", tap.X, tap.Y, tap.Name),
			Success: fmt.Sprintf("Tapped on (%d, %d) successfully", tap.X, tap.Y),
			action: func(ctx context.Context, dev Device) error {
				return o.SimulateTap(ctx, dev, tap.X, tap.Y)
			},
		})
	}

	steps = append(steps,
		Step{
			Name:    StepWaitPrint,
			State:   core.StateWaitingForPrint,
			Wait:    FixedDelay{Delay: cfg.Delays.Print},
			Intent:  fmt.Sprintf("Waiting %s for the print job...", cfg.Delays.Print),
			Success: "Print wait finished",
		},
		Step{
			Name:    StepStop,
			State:   core.StateStoppingApp,
			Command: "adb shell am force-stop " + cfg.App.Package,
			Wait:    NoWait{},
			Intent:  fmt.Sprintf("Stopping %s...", cfg.App.Package),
			Success: fmt.Sprintf("%s stopped. Ready for the next session.", cfg.App.Package),
			action:  o.StopApp,
		},
	)

	for i := range steps {
		if policy, ok := o.waitOverrides[steps[i].Name]; ok {
			steps[i].Wait = policy
		}
	}

	return steps
}

// TotalBudget sums the wait budgets of steps.
func TotalBudget(steps []Step) time.Duration {
	var total time.Duration
	for _, s := range steps {
		total += s.Wait.Budget()
	}
	return total
}

func fileURI(devicePath string) string {
	return "file://" + devicePath
}
