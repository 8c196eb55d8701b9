package device

import (
	"context"
	"strconv"
)

// Android intents and key codes used by the print workflow.
const (
	ActionMediaScannerScanFile = "android.intent.action.MEDIA_SCANNER_SCAN_FILE"
	KeycodeHome                = "KEYCODE_HOME"
)

// Shell executes a shell command on the device. Arguments are passed to adb
// as separate words.
func (d *AndroidDevice) Shell(ctx context.Context, args ...string) (string, error) {
	return d.adb(ctx, append([]string{"shell"}, args...)...)
}

// Push copies a local file to the device.
func (d *AndroidDevice) Push(ctx context.Context, src, dst string) error {
	_, err := d.adb(ctx, "push", src, dst)
	return err
}

// Broadcast sends an intent with a data URI via the activity manager.
func (d *AndroidDevice) Broadcast(ctx context.Context, action, dataURI string) error {
	_, err := d.Shell(ctx, "am", "broadcast", "-a", action, "-d", dataURI)
	return err
}

// KillAll kills every background process the activity manager can kill.
// Safe to call with nothing running.
func (d *AndroidDevice) KillAll(ctx context.Context) error {
	_, err := d.Shell(ctx, "am", "kill-all")
	return err
}

// KeyEvent injects a key press, e.g. KEYCODE_HOME.
func (d *AndroidDevice) KeyEvent(ctx context.Context, keycode string) error {
	_, err := d.Shell(ctx, "input", "keyevent", keycode)
	return err
}

// Tap injects a tap at absolute screen coordinates. The coordinates are not
// checked against the screen size; adb reports success for any value.
func (d *AndroidDevice) Tap(ctx context.Context, x, y int) error {
	_, err := d.Shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// StartActivity launches an activity by component name (pkg/.Activity).
func (d *AndroidDevice) StartActivity(ctx context.Context, component string) error {
	_, err := d.Shell(ctx, "am", "start", "-n", component)
	return err
}

// ForceStop stops every process of a package.
func (d *AndroidDevice) ForceStop(ctx context.Context, pkg string) error {
	_, err := d.Shell(ctx, "am", "force-stop", pkg)
	return err
}
