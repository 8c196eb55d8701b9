// Package workflow drives the print workflow: push an image, reset the
// phone, open the printing app and blind-tap through it, wait for the print,
// then stop the app.
//
// Progress on the device is never observed. Each step is a synchronous adb
// command followed by a WaitPolicy, and the first failing command aborts the
// run. Steps are never retried.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ethangrabau/mythra-web/pkg/config"
	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/device"
	"github.com/ethangrabau/mythra-web/pkg/logger"
	"github.com/ethangrabau/mythra-web/pkg/metrics"
)

const (
	mediaScanAction = device.ActionMediaScannerScanFile
	homeKey         = device.KeycodeHome
)

// Device is the bridge surface the workflow drives. *device.Session
// satisfies it; holding the session is what makes a run exclusive.
type Device interface {
	Serial() string
	Push(ctx context.Context, src, dst string) error
	Broadcast(ctx context.Context, action, dataURI string) error
	KillAll(ctx context.Context) error
	KeyEvent(ctx context.Context, keycode string) error
	Tap(ctx context.Context, x, y int) error
	StartActivity(ctx context.Context, component string) error
	ForceStop(ctx context.Context, pkg string) error
}

// FailurePolicy decides what happens after a step fails.
type FailurePolicy string

const (
	// PolicyAbort stops at the failed step. Nothing else is sent to the device.
	PolicyAbort FailurePolicy = config.PolicyAbort
	// PolicyCleanup stops at the failed step, then force-stops the app if the
	// run got far enough to have launched it.
	PolicyCleanup FailurePolicy = config.PolicyCleanup
)

// Hooks receive live progress.
type Hooks struct {
	OnStepStart    func(step Step, total int)
	OnStepComplete func(step Step, result core.StepResult, total int)
	OnCleanup      func(result core.StepResult)
}

// Orchestrator runs print workflows. It keeps no state between runs.
type Orchestrator struct {
	cfg           *config.Config
	clock         clockwork.Clock
	policy        FailurePolicy
	hooks         Hooks
	newRunID      func() string
	waitOverrides map[string]WaitPolicy
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for waits and timing.
func WithClock(clock clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithFailurePolicy overrides cfg.OnFailure.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithHooks installs progress callbacks.
func WithHooks(h Hooks) Option {
	return func(o *Orchestrator) { o.hooks = h }
}

// WithRunIDs replaces the run ID generator.
func WithRunIDs(gen func() string) Option {
	return func(o *Orchestrator) { o.newRunID = gen }
}

// WithWaitPolicy replaces the wait policy of the named step, e.g.
// StepWaitPrint or TapStepName("next").
func WithWaitPolicy(step string, policy WaitPolicy) Option {
	return func(o *Orchestrator) { o.waitOverrides[step] = policy }
}

// New creates an Orchestrator for cfg.
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:           cfg,
		clock:         clockwork.NewRealClock(),
		policy:        FailurePolicy(cfg.OnFailure),
		newRunID:      uuid.NewString,
		waitOverrides: map[string]WaitPolicy{},
	}
	if o.policy == "" {
		o.policy = PolicyAbort
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Policy returns the failure policy in effect.
func (o *Orchestrator) Policy() FailurePolicy {
	return o.policy
}

// TransferImage pushes image from the source folder to the device picture
// folder, then asks the media scanner to index it. Both commands must succeed.
func (o *Orchestrator) TransferImage(ctx context.Context, dev Device, image string) error {
	dst := o.cfg.DevicePath(image)
	if err := o.pushImage(ctx, dev, o.cfg.ImagePath(image), dst); err != nil {
		return err
	}
	return o.rescanMedia(ctx, dev, dst)
}

func (o *Orchestrator) pushImage(ctx context.Context, dev Device, src, dst string) error {
	return commandFailure(dev, core.StatePushing, StepPush, dev.Push(ctx, src, dst))
}

func (o *Orchestrator) rescanMedia(ctx context.Context, dev Device, dst string) error {
	return commandFailure(dev, core.StateRescanBroadcast, StepRescan, dev.Broadcast(ctx, mediaScanAction, fileURI(dst)))
}

// ResetForegroundState kills all background apps. Idempotent.
func (o *Orchestrator) ResetForegroundState(ctx context.Context, dev Device) error {
	return commandFailure(dev, core.StateKillingApps, StepKillAll, dev.KillAll(ctx))
}

// ReturnHome presses the home key. Idempotent.
func (o *Orchestrator) ReturnHome(ctx context.Context, dev Device) error {
	return commandFailure(dev, core.StateGoingHome, StepHome, dev.KeyEvent(ctx, homeKey))
}

// LaunchApp starts the printing app by component name.
func (o *Orchestrator) LaunchApp(ctx context.Context, dev Device) error {
	return commandFailure(dev, core.StateLaunchingApp, StepLaunch, dev.StartActivity(ctx, o.cfg.App.Component))
}

// SimulateTap taps at absolute screen coordinates. Nothing checks that a
// control is there.
func (o *Orchestrator) SimulateTap(ctx context.Context, dev Device, x, y int) error {
	return commandFailure(dev, core.StateTapping, fmt.Sprintf("tap(%d,%d)", x, y), dev.Tap(ctx, x, y))
}

// StopApp force-stops the printing app, releasing it for the next run.
func (o *Orchestrator) StopApp(ctx context.Context, dev Device) error {
	return commandFailure(dev, core.StateStoppingApp, StepStop, dev.ForceStop(ctx, o.cfg.App.Package))
}

// RunPrintWorkflow executes every step of Plan(image) in order. The first
// failing step aborts the run; later steps are reported as skipped. The
// returned result is never nil.
func (o *Orchestrator) RunPrintWorkflow(ctx context.Context, dev Device, image string) (*core.RunResult, error) {
	steps := o.Plan(image)
	total := len(steps)

	result := &core.RunResult{
		RunID:     o.newRunID(),
		Image:     image,
		Serial:    dev.Serial(),
		Status:    core.StatusRunning,
		Policy:    string(o.policy),
		StartTime: o.clock.Now(),
		Steps:     make([]core.StepResult, total),
	}
	for i, step := range steps {
		result.Steps[i] = core.StepResult{
			Index:   i,
			Name:    step.Name,
			State:   step.State,
			Tap:     step.Tap,
			Command: step.Command,
			Status:  core.StatusPending,
			Wait:    step.Wait.String(),
		}
	}

	log := logger.With("run", result.RunID, "image", image, "serial", dev.Serial())
	log.Infof("Print workflow started (%d steps, policy %s)", total, o.policy)
	metrics.WorkflowActive.Inc()
	defer metrics.WorkflowActive.Dec()

	var runErr error
	for i, step := range steps {
		sr := &result.Steps[i]
		if runErr != nil {
			sr.Status = core.StatusSkipped
			continue
		}

		if o.hooks.OnStepStart != nil {
			o.hooks.OnStepStart(step, total)
		}

		if err := o.executeStep(ctx, dev, step, sr); err != nil {
			runErr = err
			result.FailedState = step.State
			log.Errorf("Step %s failed in state %s: %v", step.Name, step.State, err)
		} else {
			log.Debugf("Step %s passed (command %s, waited %s)", step.Name, sr.Duration, sr.Waited)
		}
		metrics.StepDuration.WithLabelValues(step.State.String()).Observe((sr.Duration + sr.Waited).Seconds())

		if o.hooks.OnStepComplete != nil {
			o.hooks.OnStepComplete(step, *sr, total)
		}
	}

	if runErr != nil && o.policy == PolicyCleanup && needsCleanup(result.FailedState) {
		result.Cleanup = o.cleanup(ctx, dev)
		if result.Cleanup.Status == core.StatusFailed {
			log.Warnf("Cleanup force-stop failed: %s", result.Cleanup.Error)
		}
		if o.hooks.OnCleanup != nil {
			o.hooks.OnCleanup(*result.Cleanup)
		}
	}

	result.Duration = o.clock.Since(result.StartTime)
	if runErr != nil {
		result.Status = core.StatusFailed
		result.Error = runErr.Error()
	} else {
		result.Status = core.StatusPassed
	}
	metrics.WorkflowRunsTotal.WithLabelValues(result.Status.String()).Inc()
	log.Infof("Print workflow %s in %s", result.Status, result.Duration)

	return result, runErr
}

// executeStep runs one step's command and wait, filling in sr.
func (o *Orchestrator) executeStep(ctx context.Context, dev Device, step Step, sr *core.StepResult) error {
	sr.Status = core.StatusRunning
	sr.StartTime = o.clock.Now()

	if step.action != nil {
		err := step.action(ctx, dev)
		sr.Duration = o.clock.Since(sr.StartTime)
		if err != nil {
			sr.Status = core.StatusFailed
			sr.Error = err.Error()
			return err
		}
	}

	waitStart := o.clock.Now()
	err := step.Wait.Wait(ctx, o.clock)
	sr.Waited = o.clock.Since(waitStart)
	if err != nil {
		sr.Status = core.StatusFailed
		sr.Error = err.Error()
		return fmt.Errorf("%s: wait interrupted: %w", step.Name, err)
	}

	sr.Status = core.StatusPassed
	return nil
}

// cleanup force-stops the app after a failed run. It runs even when ctx
// was cancelled, since cancellation is the usual reason to clean up.
func (o *Orchestrator) cleanup(ctx context.Context, dev Device) *core.StepResult {
	sr := &core.StepResult{
		Index:     -1,
		Name:      StepStop,
		State:     core.StateStoppingApp,
		Command:   "adb shell am force-stop " + o.cfg.App.Package,
		StartTime: o.clock.Now(),
	}
	err := o.StopApp(context.WithoutCancel(ctx), dev)
	sr.Duration = o.clock.Since(sr.StartTime)
	if err != nil {
		sr.Status = core.StatusFailed
		sr.Error = err.Error()
	} else {
		sr.Status = core.StatusPassed
	}
	return sr
}

// needsCleanup is true when the app may have been launched and the failed
// step was not the force-stop itself (re-issuing it would be a retry).
func needsCleanup(failed core.State) bool {
	return failed.AppMayBeRunning() && failed != core.StateStoppingApp
}

// commandFailure wraps a bridge error as a DeviceCommandFailure tagged with
// the state it happened in.
func commandFailure(dev Device, state core.State, step string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return core.ErrDeviceCommandFailure.
		WithMessage(fmt.Sprintf("%s failed", step)).
		WithCause(err).
		WithDetails(map[string]interface{}{
			"state":  state.String(),
			"step":   step,
			"serial": dev.Serial(),
		})
}
