package device

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/device/mock"
)

func newTestDevice(t *testing.T, cfg mock.Config) (*AndroidDevice, *mock.Runner) {
	t.Helper()
	runner := mock.New(cfg)
	dev, err := New(context.Background(), Options{
		ADBPath: "adb",
		Serial:  "emulator-5554",
		Runner:  runner,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return dev, runner
}

func TestNew_WithSerial(t *testing.T) {
	dev, runner := newTestDevice(t, mock.Config{})

	if dev.Serial() != "emulator-5554" {
		t.Errorf("Serial() = %q, want emulator-5554", dev.Serial())
	}
	if len(runner.Commands()) != 0 {
		t.Errorf("New should only probe the device, got %v", runner.Commands())
	}
}

func TestNew_AutoDetect(t *testing.T) {
	runner := mock.New(mock.Config{
		Devices: "List of devices attached\n" +
			"0123456789\tunauthorized usb:1-1 transport_id:3\n" +
			"R58M123ABC\tdevice usb:1-2 product:beyond1 model:SM_G973F device:beyond1 transport_id:4\n",
	})

	dev, err := New(context.Background(), Options{ADBPath: "adb", Runner: runner})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if dev.Serial() != "R58M123ABC" {
		t.Errorf("Serial() = %q, want first ready device R58M123ABC", dev.Serial())
	}
}

func TestNew_NoReadyDevice(t *testing.T) {
	runner := mock.New(mock.Config{
		Devices: "List of devices attached\nemulator-5554\toffline\n",
	})

	_, err := New(context.Background(), Options{ADBPath: "adb", Runner: runner})
	if !errors.Is(err, core.ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestNew_SerialNotConnected(t *testing.T) {
	runner := mock.New(mock.Config{Offline: true})

	_, err := New(context.Background(), Options{
		ADBPath:        "adb",
		Serial:         "phone-1",
		Runner:         runner,
		ConnectTimeout: 20 * time.Millisecond,
	})
	if !errors.Is(err, core.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	var execErr *core.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *core.ExecutionError, got %T", err)
	}
	if execErr.Details["serial"] != "phone-1" {
		t.Errorf("Details[serial] = %v, want phone-1", execErr.Details["serial"])
	}
	if len(runner.Commands()) != 0 {
		t.Errorf("no workflow command expected, got %v", runner.Commands())
	}
}

func TestNew_SerialNotConnectedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, Options{
		ADBPath:        "adb",
		Serial:         "phone-1",
		Runner:         mock.New(mock.Config{Offline: true}),
		ConnectTimeout: time.Second,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, core.ErrDeviceNotFound) {
		t.Error("a cancelled connect must not be reported as a missing device")
	}
}

func TestInfo(t *testing.T) {
	dev, runner := newTestDevice(t, mock.Config{
		Props: map[string]string{
			"ro.product.model":     "Pixel 7",
			"ro.product.brand":     "google",
			"ro.build.version.sdk": "34",
		},
	})

	info, err := dev.Info(context.Background())
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	want := DeviceInfo{Serial: "emulator-5554", Model: "Pixel 7", SDK: "34", Brand: "google"}
	if info != want {
		t.Errorf("Info() = %+v, want %+v", info, want)
	}
	if len(runner.Commands()) != 0 {
		t.Errorf("Info should only read properties, got %v", runner.Commands())
	}
}

func TestInfo_Emulator(t *testing.T) {
	dev, _ := newTestDevice(t, mock.Config{Props: map[string]string{"ro.kernel.qemu": "1"}})

	info, _ := dev.Info(context.Background())
	if !info.IsEmulator {
		t.Error("ro.kernel.qemu=1 should mark the device as an emulator")
	}
}

func TestExecRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ExecRunner{}.Run(ctx, "adb", "get-state")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCommand_CancelledUnwrapsToContext(t *testing.T) {
	dev, _ := newTestDevice(t, mock.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dev.Tap(ctx, 1, 2)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled through CommandError, got %v", err)
	}
}

func TestCommands_ArgumentVectors(t *testing.T) {
	ctx := context.Background()
	dev, runner := newTestDevice(t, mock.Config{})

	steps := []func() error{
		func() error { return dev.Push(ctx, "generated_images/a.png", "/storage/emulated/0/Pictures/a.png") },
		func() error {
			return dev.Broadcast(ctx, ActionMediaScannerScanFile, "file:///storage/emulated/0/Pictures/a.png")
		},
		func() error { return dev.KillAll(ctx) },
		func() error { return dev.KeyEvent(ctx, KeycodeHome) },
		func() error { return dev.StartActivity(ctx, "com.hp.impulse.panorama/.activity.SplashActivity") },
		func() error { return dev.Tap(ctx, 558, 1911) },
		func() error { return dev.ForceStop(ctx, "com.hp.impulse.panorama") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("command %d failed: %v", i, err)
		}
	}

	want := []string{
		"push generated_images/a.png /storage/emulated/0/Pictures/a.png",
		"shell am broadcast -a android.intent.action.MEDIA_SCANNER_SCAN_FILE -d file:///storage/emulated/0/Pictures/a.png",
		"shell am kill-all",
		"shell input keyevent KEYCODE_HOME",
		"shell am start -n com.hp.impulse.panorama/.activity.SplashActivity",
		"shell input tap 558 1911",
		"shell am force-stop com.hp.impulse.panorama",
	}
	got := runner.Commands()
	if len(got) != len(want) {
		t.Fatalf("got %d commands, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCommand_FailureCarriesDiagnostics(t *testing.T) {
	dev, _ := newTestDevice(t, mock.Config{
		FailOn: "push",
		Stderr: "adb: error: cannot stat 'generated_images/missing.png': No such file or directory",
	})

	err := dev.Push(context.Background(), "generated_images/missing.png", "/sdcard/Pictures/missing.png")
	if err == nil {
		t.Fatal("expected push failure")
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %T", err)
	}
	if cmdErr.Args[0] != "push" {
		t.Errorf("Args[0] = %q, want push", cmdErr.Args[0])
	}
	if cmdErr.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 for a non-exec error", cmdErr.ExitCode)
	}
	if !strings.Contains(err.Error(), "No such file or directory") {
		t.Errorf("error should include adb diagnostic, got %q", err.Error())
	}
	if !errors.Is(err, mock.ErrExit) {
		t.Error("CommandError should unwrap to the runner error")
	}
}

func TestCommand_Timeout(t *testing.T) {
	runner := mock.New(mock.Config{})
	dev, err := New(context.Background(), Options{ADBPath: "adb", Serial: "s", Runner: runner})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	runner.Config.Delay = time.Second
	dev.timeout = 20 * time.Millisecond

	err = dev.Tap(context.Background(), 1, 2)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestCommandLabel(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "none"},
		{[]string{"push", "a", "b"}, "push"},
		{[]string{"shell", "input", "tap", "1", "2"}, "input tap"},
		{[]string{"shell", "am", "kill-all"}, "am kill-all"},
		{[]string{"shell", "echo"}, "shell"},
	}
	for _, tt := range tests {
		if got := commandLabel(tt.args); got != tt.want {
			t.Errorf("commandLabel(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestParseDevices(t *testing.T) {
	out := "* daemon not running; starting now at tcp:5037\n" +
		"* daemon started successfully\n" +
		"List of devices attached\n" +
		"emulator-5554          device product:sdk_gphone64 model:sdk_gphone64_arm64 device:emu64a transport_id:1\n" +
		"192.168.1.20:5555      offline transport_id:2\n" +
		"\n"

	entries := parseDevices(out)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Serial != "emulator-5554" || !entries[0].Ready() {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[0].Model != "sdk_gphone64_arm64" {
		t.Errorf("Model = %q", entries[0].Model)
	}
	if entries[1].Serial != "192.168.1.20:5555" || entries[1].Ready() {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if firstReady(entries) != "emulator-5554" {
		t.Errorf("firstReady = %q", firstReady(entries))
	}
	if firstReady(entries[1:]) != "" {
		t.Error("firstReady should be empty when nothing is ready")
	}
}

func TestListDevices(t *testing.T) {
	runner := mock.New(mock.Config{
		Devices: "List of devices attached\n" +
			"emulator-5554\tdevice product:sdk model:Pixel_7 transport_id:1\n" +
			"R58M\toffline transport_id:2\n",
	})

	entries, err := ListDevices(context.Background(), Options{ADBPath: "adb", Runner: runner})
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Model != "Pixel_7" || !entries[0].Ready() {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Ready() {
		t.Errorf("offline device reported ready: %+v", entries[1])
	}
}
