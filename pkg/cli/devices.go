package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ethangrabau/mythra-web/pkg/config"
	"github.com/ethangrabau/mythra-web/pkg/device"
	"github.com/ethangrabau/mythra-web/pkg/logger"
)

var devicesCommand = &cli.Command{
	Name:   "devices",
	Usage:  "List devices visible to adb",
	Action: runDevices,
}

func runDevices(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	entries, err := device.ListDevices(c.Context, deviceOptions(cfg))
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.App.Writer, "No devices attached")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		info := readyInfo(c, cfg, e)
		rows = append(rows, []string{e.Serial, e.State, e.Model, info.Brand, info.SDK, deviceKind(e, info), markSelected(cfg, e)})
	}
	headers := []string{"Serial", "State", "Model", "Brand", "SDK", "Type", ""}
	fmt.Fprintln(c.App.Writer, renderTable(headers, rows, nil, nil))
	return nil
}

// readyInfo reads build properties from a ready device. Devices that are
// offline or unauthorized cannot answer getprop and get an empty row.
func readyInfo(c *cli.Context, cfg *config.Config, e device.Entry) device.DeviceInfo {
	if !e.Ready() {
		return device.DeviceInfo{Serial: e.Serial}
	}
	opts := deviceOptions(cfg)
	opts.Serial = e.Serial
	dev, err := device.New(c.Context, opts)
	if err != nil {
		logger.Warn("Device %s: %v", e.Serial, err)
		return device.DeviceInfo{Serial: e.Serial}
	}
	info, _ := dev.Info(c.Context)
	return info
}

func deviceKind(e device.Entry, info device.DeviceInfo) string {
	switch {
	case !e.Ready():
		return ""
	case info.IsEmulator:
		return "emulator"
	default:
		return "phone"
	}
}

func markSelected(cfg *config.Config, e device.Entry) string {
	if cfg.Serial != "" && cfg.Serial == e.Serial {
		return "selected"
	}
	return ""
}
