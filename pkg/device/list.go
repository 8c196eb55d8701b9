package device

import (
	"context"
	"strings"
)

// Entry is one line of `adb devices -l`.
type Entry struct {
	Serial string
	State  string // device, offline, unauthorized, ...
	Model  string
	Props  map[string]string // usb, product, model, device, transport_id
}

// Ready reports whether the device accepts commands.
func (e Entry) Ready() bool {
	return e.State == "device"
}

// ListDevices returns every device adb knows about, in adb's order. Only
// opts.ADBPath and opts.Runner are used.
func ListDevices(ctx context.Context, opts Options) ([]Entry, error) {
	adbPath := opts.ADBPath
	if adbPath == "" {
		var err error
		adbPath, err = findADB()
		if err != nil {
			return nil, err
		}
	}
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	return listDevices(ctx, runner, adbPath)
}

func listDevices(ctx context.Context, runner CommandRunner, adbPath string) ([]Entry, error) {
	out, err := runADB(ctx, runner, adbPath, "", 0, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

// parseDevices parses `adb devices -l` output.
func parseDevices(out string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		e := Entry{Serial: parts[0], State: parts[1], Props: map[string]string{}}
		for _, kv := range parts[2:] {
			if k, v, ok := strings.Cut(kv, ":"); ok {
				e.Props[k] = v
			}
		}
		e.Model = e.Props["model"]
		entries = append(entries, e)
	}
	return entries
}

func firstReady(entries []Entry) string {
	for _, e := range entries {
		if e.Ready() {
			return e.Serial
		}
	}
	return ""
}
