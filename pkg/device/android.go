// Package device provides Android device control via ADB.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/logger"
	"github.com/ethangrabau/mythra-web/pkg/metrics"
)

// CommandRunner runs one external process to completion.
// Implemented by the os/exec runner; tests substitute a recorder.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args and captures both output streams.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		// A killed process reports "signal: killed"; surface the cancellation instead.
		err = ctx.Err()
	}
	return stdout.String(), stderr.String(), err
}

// CommandError is returned when an adb invocation exits non-zero or cannot
// be started at all.
type CommandError struct {
	Args     []string // adb arguments, without the -s selector
	ExitCode int      // -1 when the process never ran or was killed
	Output   string   // stderr, or stdout when stderr was empty
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("adb %s: %v", strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Options configures how an AndroidDevice reaches adb.
type Options struct {
	ADBPath        string        // Empty = look up adb
	Serial         string        // Empty = first connected device
	CommandTimeout time.Duration // 0 = no timeout on individual commands
	Runner         CommandRunner // nil = ExecRunner
	ConnectTimeout time.Duration // 0 = 5s for the device to report "device"
}

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial  string
	adbPath string
	timeout time.Duration
	runner  CommandRunner
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	Model      string
	SDK        string
	Brand      string
	IsEmulator bool
}

// New creates an AndroidDevice. If opts.Serial is empty, it auto-detects
// the connected device.
func New(ctx context.Context, opts Options) (*AndroidDevice, error) {
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	adbPath := opts.ADBPath
	if adbPath == "" {
		var err error
		adbPath, err = findADB()
		if err != nil {
			return nil, err
		}
	}

	serial := opts.Serial
	if serial == "" {
		devices, err := listDevices(ctx, runner, adbPath)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
		serial = firstReady(devices)
		if serial == "" {
			return nil, core.ErrDeviceNotFound
		}
	}

	d := &AndroidDevice{
		serial:  serial,
		adbPath: adbPath,
		timeout: opts.CommandTimeout,
		runner:  runner,
	}

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	if err := d.waitForDevice(ctx, connectTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.ErrDeviceNotFound.
			WithCause(err).
			WithDetails(map[string]interface{}{"serial": serial})
	}

	return d, nil
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Info returns device information.
func (d *AndroidDevice) Info(ctx context.Context) (DeviceInfo, error) {
	info := DeviceInfo{Serial: d.serial}

	if model, err := d.Shell(ctx, "getprop", "ro.product.model"); err == nil {
		info.Model = strings.TrimSpace(model)
	}
	if sdk, err := d.Shell(ctx, "getprop", "ro.build.version.sdk"); err == nil {
		info.SDK = strings.TrimSpace(sdk)
	}
	if brand, err := d.Shell(ctx, "getprop", "ro.product.brand"); err == nil {
		info.Brand = strings.TrimSpace(brand)
	}

	chars, _ := d.Shell(ctx, "getprop", "ro.kernel.qemu")
	info.IsEmulator = strings.TrimSpace(chars) == "1"

	return info, nil
}

// adb executes one ADB command and blocks until it exits.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) (string, error) {
	return runADB(ctx, d.runner, d.adbPath, d.serial, d.timeout, args...)
}

func runADB(ctx context.Context, runner CommandRunner, adbPath, serial string, timeout time.Duration, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if serial != "" {
		cmdArgs = append(cmdArgs, "-s", serial)
	}
	cmdArgs = append(cmdArgs, args...)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	label := commandLabel(args)
	start := time.Now()
	logger.Debug("adb %s", strings.Join(cmdArgs, " "))

	stdout, stderr, err := runner.Run(ctx, adbPath, cmdArgs...)
	metrics.DeviceCommandDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DeviceCommandsTotal.WithLabelValues(label, "error").Inc()
		output := stderr
		if strings.TrimSpace(output) == "" {
			output = stdout
		}
		cmdErr := &CommandError{
			Args:     args,
			ExitCode: exitCode(err),
			Output:   output,
			Err:      err,
		}
		logger.Error("%v", cmdErr)
		return "", cmdErr
	}

	metrics.DeviceCommandsTotal.WithLabelValues(label, "ok").Inc()
	return stdout, nil
}

// commandLabel reduces an adb argument vector to a low-cardinality label:
// "push", "am broadcast", "input tap", ...
func commandLabel(args []string) string {
	if len(args) == 0 {
		return "none"
	}
	if args[0] == "shell" && len(args) >= 3 {
		return args[1] + " " + args[2]
	}
	return args[0]
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// waitForDevice waits for the device to be available.
func (d *AndroidDevice) waitForDevice(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if d.isConnected(ctx) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for device %s", d.serial)
		}
		poll := 500 * time.Millisecond
		if remaining := time.Until(deadline); remaining < poll {
			poll = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

// isConnected checks if the device is connected.
func (d *AndroidDevice) isConnected(ctx context.Context) bool {
	out, err := d.adb(ctx, "get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "device"
}

// findADB locates the ADB binary.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}

	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if home := os.Getenv(env); home != "" {
			candidate := filepath.Join(home, "platform-tools", "adb")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("adb not found in PATH; ensure Android SDK platform-tools are installed")
}
