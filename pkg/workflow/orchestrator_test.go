package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethangrabau/mythra-web/pkg/config"
	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/device"
	"github.com/ethangrabau/mythra-web/pkg/device/mock"
)

func TestTransferImage_PushThenBroadcastSamePath(t *testing.T) {
	o := instantOrchestrator(t, nil)
	dev := newRecordingDevice("")

	err := o.TransferImage(context.Background(), dev, "session-1731455785816.png")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"push " + filepath.Join("generated_images", "session-1731455785816.png") + " /storage/emulated/0/Pictures/session-1731455785816.png",
		"broadcast android.intent.action.MEDIA_SCANNER_SCAN_FILE file:///storage/emulated/0/Pictures/session-1731455785816.png",
	}, dev.Calls())
}

func TestTransferImage_PushFailureSkipsBroadcast(t *testing.T) {
	o := instantOrchestrator(t, nil)
	dev := newRecordingDevice("push")

	err := o.TransferImage(context.Background(), dev, "missing.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDeviceCommandFailure)
	assert.ErrorIs(t, err, errBridge)
	assert.Len(t, dev.Calls(), 1)
}

func TestSingleOperations(t *testing.T) {
	ctx := context.Background()
	o := instantOrchestrator(t, nil)
	dev := newRecordingDevice("")

	require.NoError(t, o.ResetForegroundState(ctx, dev))
	require.NoError(t, o.ResetForegroundState(ctx, dev))
	require.NoError(t, o.ReturnHome(ctx, dev))
	require.NoError(t, o.LaunchApp(ctx, dev))
	require.NoError(t, o.SimulateTap(ctx, dev, -10, 99999))
	require.NoError(t, o.StopApp(ctx, dev))

	assert.Equal(t, []string{
		"kill-all",
		"kill-all",
		"keyevent KEYCODE_HOME",
		"start com.hp.impulse.panorama/.activity.SplashActivity",
		"tap -10 99999",
		"force-stop com.hp.impulse.panorama",
	}, dev.Calls())
}

func TestSimulateTap_FailureTaggedWithState(t *testing.T) {
	o := instantOrchestrator(t, nil)
	dev := newRecordingDevice("tap")

	err := o.SimulateTap(context.Background(), dev, 1, 2)
	require.Error(t, err)

	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "tapping", execErr.Details["state"])
	assert.Equal(t, "test-serial", execErr.Details["serial"])
}

func TestRunPrintWorkflow_FixedOrder(t *testing.T) {
	for _, image := range []string{"a.png", "session-1731455785816-1731455801923.png", "z z.jpg"} {
		t.Run(image, func(t *testing.T) {
			o := instantOrchestrator(t, nil)
			dev := newRecordingDevice("")

			result, err := o.RunPrintWorkflow(context.Background(), dev, image)
			require.NoError(t, err)

			want := expectedSequence(image)
			want[0] = "push " + filepath.Join("generated_images", image) + " /storage/emulated/0/Pictures/" + image
			assert.Equal(t, want, dev.Calls())

			assert.Equal(t, core.StatusPassed, result.Status)
			assert.True(t, result.Succeeded())
			assert.Equal(t, image, result.Image)
			assert.Equal(t, "test-serial", result.Serial)
			assert.Equal(t, len(o.Plan(image)), result.CountByStatus(core.StatusPassed))
			assert.Nil(t, result.Cleanup)
			assert.Empty(t, result.Error)
		})
	}
}

func TestRunPrintWorkflow_TapCoordinatesPerPosition(t *testing.T) {
	o := instantOrchestrator(t, nil)
	dev := newRecordingDevice("")

	result, err := o.RunPrintWorkflow(context.Background(), dev, "a.png")
	require.NoError(t, err)

	var taps []core.StepResult
	for _, s := range result.Steps {
		if s.State == core.StateTapping {
			taps = append(taps, s)
		}
	}
	require.Len(t, taps, 5)
	assert.Equal(t, 1, taps[0].Tap)
	assert.Equal(t, "adb shell input tap 558 1911", taps[0].Command)
	assert.Equal(t, TapStepName("quick-print"), taps[0].Name)
	assert.Equal(t, 5, taps[4].Tap)
	assert.Equal(t, "adb shell input tap 550 2140", taps[4].Command)
	assert.Equal(t, TapStepName("confirm-print"), taps[4].Name)
}

func TestRunPrintWorkflow_AbortOnFirstFailure(t *testing.T) {
	sequence := expectedSequence("a.png")

	tests := []struct {
		name       string
		failOn     string
		wantCalls  int
		wantState  core.State
		wantFailed string
	}{
		{"push", "push", 1, core.StatePushing, StepPush},
		{"broadcast", "broadcast", 2, core.StateRescanBroadcast, StepRescan},
		{"kill-all", "kill-all", 3, core.StateKillingApps, StepKillAll},
		{"home", "keyevent", 4, core.StateGoingHome, StepHome},
		{"launch", "start", 5, core.StateLaunchingApp, StepLaunch},
		{"third tap", "tap 995 240", 8, core.StateTapping, TapStepName("next")},
		{"force-stop", "force-stop", 11, core.StateStoppingApp, StepStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := instantOrchestrator(t, nil)
			dev := newRecordingDevice(tt.failOn)

			result, err := o.RunPrintWorkflow(context.Background(), dev, "a.png")
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrDeviceCommandFailure)

			calls := dev.Calls()
			require.Len(t, calls, tt.wantCalls, "no command may follow the failure")
			assert.Equal(t, sequence[:tt.wantCalls-1], calls[:tt.wantCalls-1])

			assert.Equal(t, core.StatusFailed, result.Status)
			assert.Equal(t, tt.wantState, result.FailedState)
			failed := result.FailedStep()
			require.NotNil(t, failed)
			assert.Equal(t, tt.wantFailed, failed.Name)
			assert.NotEmpty(t, failed.Error)
			assert.Equal(t, err.Error(), result.Error)

			for _, s := range result.Steps[failed.Index+1:] {
				assert.Equal(t, core.StatusSkipped, s.Status, "step %s", s.Name)
			}
			assert.Nil(t, result.Cleanup, "abort policy never compensates")
		})
	}
}

func TestRunPrintWorkflow_CleanupPolicy(t *testing.T) {
	tests := []struct {
		name         string
		failOn       string
		wantCleanup  bool
		wantLastCall string
	}{
		{"before launch", "keyevent", false, "keyevent KEYCODE_HOME"},
		{"during launch", "start", true, "force-stop com.hp.impulse.panorama"},
		{"during taps", "tap 1000 226", true, "force-stop com.hp.impulse.panorama"},
		{"force-stop itself", "force-stop", false, "force-stop com.hp.impulse.panorama"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := instantOrchestrator(t, nil, WithFailurePolicy(PolicyCleanup))
			dev := newRecordingDevice(tt.failOn)

			var cleaned []core.StepResult
			o.hooks.OnCleanup = func(r core.StepResult) { cleaned = append(cleaned, r) }

			result, err := o.RunPrintWorkflow(context.Background(), dev, "a.png")
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrDeviceCommandFailure, "cleanup must not mask the original error")

			calls := dev.Calls()
			assert.Equal(t, tt.wantLastCall, calls[len(calls)-1])

			if tt.wantCleanup {
				require.NotNil(t, result.Cleanup)
				assert.Equal(t, core.StatusPassed, result.Cleanup.Status)
				assert.Len(t, cleaned, 1)
				forceStops := 0
				for _, c := range calls {
					if c == "force-stop com.hp.impulse.panorama" {
						forceStops++
					}
				}
				assert.Equal(t, 1, forceStops)
			} else {
				assert.Nil(t, result.Cleanup)
				assert.Empty(t, cleaned)
			}
			assert.Equal(t, "cleanup", result.Policy)
		})
	}
}

func TestRunPrintWorkflow_CleanupRunsAfterCancel(t *testing.T) {
	o := instantOrchestrator(t, nil,
		WithFailurePolicy(PolicyCleanup),
		WithWaitPolicy(StepWaitPrint, FixedDelay{Delay: 40 * time.Second}),
	)
	dev := newRecordingDevice("")

	ctx, cancel := context.WithCancel(context.Background())
	o.hooks.OnStepStart = func(step Step, _ int) {
		if step.Name == StepWaitPrint {
			cancel()
		}
	}

	result, err := o.RunPrintWorkflow(ctx, dev, "a.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.StateWaitingForPrint, result.FailedState)
	require.NotNil(t, result.Cleanup)
	assert.Equal(t, core.StatusPassed, result.Cleanup.Status)
}

func TestRunPrintWorkflow_Hooks(t *testing.T) {
	o := instantOrchestrator(t, nil)
	dev := newRecordingDevice("")

	var started, completed []string
	o.hooks = Hooks{
		OnStepStart: func(step Step, total int) {
			assert.Equal(t, 12, total)
			started = append(started, step.Intent)
		},
		OnStepComplete: func(step Step, r core.StepResult, _ int) {
			assert.Equal(t, core.StatusPassed, r.Status)
			completed = append(completed, step.Success)
		},
	}

	_, err := o.RunPrintWorkflow(context.Background(), dev, "a.png")
	require.NoError(t, err)

	require.Len(t, started, 12)
	require.Len(t, completed, 12)
	assert.Equal(t, "Pushing image a.png to the phone...", started[0])
	assert.Equal(t, "Image a.png pushed successfully to /storage/emulated/0/Pictures/a.png", completed[0])
	assert.Equal(t, "com.hp.impulse.panorama stopped. Ready for the next session.", completed[11])
}

func TestRunPrintWorkflow_TotalWaitMatchesConfiguredDelays(t *testing.T) {
	clock := clockwork.NewFakeClock()
	o := New(config.Default(), WithClock(clock))
	dev := newRecordingDevice("")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type outcome struct {
		result *core.RunResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := o.RunPrintWorkflow(ctx, dev, "a.png")
		done <- outcome{r, err}
	}()

	// Advance one second at a time, only while someone is waiting, so the
	// total advanced equals the total waited.
	var advanced time.Duration
	var out outcome
loop:
	for {
		blockCtx, stop := context.WithCancel(ctx)
		blocked := make(chan error, 1)
		go func() { blocked <- clock.BlockUntilContext(blockCtx, 1) }()

		select {
		case out = <-done:
			stop()
			<-blocked
			break loop
		case err := <-blocked:
			stop()
			require.NoError(t, err)
			clock.Advance(time.Second)
			advanced += time.Second
		}
	}

	require.NoError(t, out.err)
	assert.Equal(t, 56*time.Second, advanced)
	assert.Equal(t, 56*time.Second, out.result.TotalWaited())
	assert.Equal(t, 56*time.Second, out.result.Duration)
	assert.Equal(t, 56*time.Second, TotalBudget(o.Plan("a.png")))
}

func TestRunPrintWorkflow_IndependentRuns(t *testing.T) {
	o := instantOrchestrator(t, nil)
	dev := newRecordingDevice("")

	first, err := o.RunPrintWorkflow(context.Background(), dev, "first.png")
	require.NoError(t, err)
	firstCalls := dev.Calls()

	second, err := o.RunPrintWorkflow(context.Background(), dev, "second.png")
	require.NoError(t, err)
	secondCalls := dev.Calls()[len(firstCalls):]

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Len(t, secondCalls, len(firstCalls))
	assert.Contains(t, secondCalls[0], "second.png")
	assert.NotContains(t, secondCalls[0], "first.png")
	// Only the image-bearing commands differ between runs
	assert.Equal(t, firstCalls[2:], secondCalls[2:])
	assert.Equal(t, "force-stop com.hp.impulse.panorama", firstCalls[len(firstCalls)-1])
}

func TestRunPrintWorkflow_ThroughAdbSession(t *testing.T) {
	runner := mock.New(mock.Config{})
	dev, err := device.New(context.Background(), device.Options{ADBPath: "adb", Serial: "emulator-5554", Runner: runner})
	require.NoError(t, err)

	sess, err := device.OpenSession(dev, t.TempDir())
	require.NoError(t, err)
	defer sess.Close()

	o := instantOrchestrator(t, nil)
	result, err := o.RunPrintWorkflow(context.Background(), sess, "a.png")
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", result.Serial)

	assert.Equal(t, []string{
		"push " + filepath.Join("generated_images", "a.png") + " /storage/emulated/0/Pictures/a.png",
		"shell am broadcast -a android.intent.action.MEDIA_SCANNER_SCAN_FILE -d file:///storage/emulated/0/Pictures/a.png",
		"shell am kill-all",
		"shell input keyevent KEYCODE_HOME",
		"shell am start -n com.hp.impulse.panorama/.activity.SplashActivity",
		"shell input tap 558 1911",
		"shell input tap 160 480",
		"shell input tap 995 240",
		"shell input tap 1000 226",
		"shell input tap 550 2140",
		"shell am force-stop com.hp.impulse.panorama",
	}, runner.Commands())
}

func TestRunPrintWorkflow_AdbFailureStopsSequence(t *testing.T) {
	runner := mock.New(mock.Config{FailOn: "input keyevent", Stderr: "error: device offline"})
	dev, err := device.New(context.Background(), device.Options{ADBPath: "adb", Serial: "emulator-5554", Runner: runner})
	require.NoError(t, err)

	o := instantOrchestrator(t, nil)
	result, err := o.RunPrintWorkflow(context.Background(), dev, "a.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDeviceCommandFailure)
	assert.Contains(t, err.Error(), "device offline")

	var cmdErr *device.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, []string{"shell", "input", "keyevent", "KEYCODE_HOME"}, cmdErr.Args)

	assert.Len(t, runner.Commands(), 4)
	assert.Equal(t, core.StateGoingHome, result.FailedState)
}

func TestRunPrintWorkflow_AdbCancelIsNotDeviceFailure(t *testing.T) {
	runner := mock.New(mock.Config{})
	dev, err := device.New(context.Background(), device.Options{ADBPath: "adb", Serial: "emulator-5554", Runner: runner})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	o := instantOrchestrator(t, nil)
	o.hooks.OnStepStart = func(step Step, _ int) {
		if step.Name == StepHome {
			cancel()
		}
	}

	result, err := o.RunPrintWorkflow(ctx, dev, "a.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrDeviceCommandFailure)
	assert.Equal(t, core.StateGoingHome, result.FailedState)
	assert.Len(t, runner.Commands(), 3)
}

func TestNew_DefaultsPolicyFromConfig(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, PolicyAbort, New(cfg).Policy())

	cfg.OnFailure = config.PolicyCleanup
	assert.Equal(t, PolicyCleanup, New(cfg).Policy())

	cfg.OnFailure = ""
	assert.Equal(t, PolicyAbort, New(cfg).Policy())

	assert.Equal(t, PolicyCleanup, New(config.Default(), WithFailurePolicy(PolicyCleanup)).Policy())
}
