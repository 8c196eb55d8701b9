package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/ethangrabau/mythra-web/pkg/config"
)

var errBridge = errors.New("exit status 1")

// recordingDevice is a Device that records logical commands and can fail the
// first command whose description contains failOn.
type recordingDevice struct {
	mu     sync.Mutex
	serial string
	failOn string
	calls  []string
}

func newRecordingDevice(failOn string) *recordingDevice {
	return &recordingDevice{serial: "test-serial", failOn: failOn}
}

func (d *recordingDevice) record(call string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
	if d.failOn != "" && strings.Contains(call, d.failOn) {
		d.failOn = ""
		return errBridge
	}
	return nil
}

func (d *recordingDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *recordingDevice) Serial() string { return d.serial }

func (d *recordingDevice) Push(_ context.Context, src, dst string) error {
	return d.record(fmt.Sprintf("push %s %s", src, dst))
}

func (d *recordingDevice) Broadcast(_ context.Context, action, dataURI string) error {
	return d.record(fmt.Sprintf("broadcast %s %s", action, dataURI))
}

func (d *recordingDevice) KillAll(context.Context) error { return d.record("kill-all") }

func (d *recordingDevice) KeyEvent(_ context.Context, keycode string) error {
	return d.record("keyevent " + keycode)
}

func (d *recordingDevice) Tap(_ context.Context, x, y int) error {
	return d.record(fmt.Sprintf("tap %d %d", x, y))
}

func (d *recordingDevice) StartActivity(_ context.Context, component string) error {
	return d.record("start " + component)
}

func (d *recordingDevice) ForceStop(_ context.Context, pkg string) error {
	return d.record("force-stop " + pkg)
}

// instantOrchestrator returns an orchestrator whose waits return
// immediately, with deterministic run IDs.
func instantOrchestrator(t *testing.T, cfg *config.Config, opts ...Option) *Orchestrator {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	n := 0
	base := []Option{
		WithClock(clockwork.NewFakeClock()),
		WithRunIDs(func() string { n++; return fmt.Sprintf("run-%d", n) }),
	}
	o := New(cfg, append(base, opts...)...)
	// Zero every wait so the fake clock never has to be advanced
	for _, s := range o.Plan("x") {
		if _, ok := o.waitOverrides[s.Name]; !ok {
			o.waitOverrides[s.Name] = NoWait{}
		}
	}
	return o
}

var referenceSequence = []string{
	"push generated_images/%[1]s /storage/emulated/0/Pictures/%[1]s",
	"broadcast android.intent.action.MEDIA_SCANNER_SCAN_FILE file:///storage/emulated/0/Pictures/%[1]s",
	"kill-all",
	"keyevent KEYCODE_HOME",
	"start com.hp.impulse.panorama/.activity.SplashActivity",
	"tap 558 1911",
	"tap 160 480",
	"tap 995 240",
	"tap 1000 226",
	"tap 550 2140",
	"force-stop com.hp.impulse.panorama",
}

func expectedSequence(image string) []string {
	out := make([]string, len(referenceSequence))
	for i, s := range referenceSequence {
		if strings.Contains(s, "%[1]s") {
			out[i] = fmt.Sprintf(s, image)
		} else {
			out[i] = s
		}
	}
	return out
}
