// Package cli provides the command-line interface for mythra-print.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ethangrabau/mythra-web/pkg/config"
	"github.com/ethangrabau/mythra-web/pkg/device"
	"github.com/ethangrabau/mythra-web/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// commandRunner replaces the adb process runner when non-nil.
var commandRunner device.CommandRunner

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (default: ./mythra-print.yaml if present)",
		EnvVars: []string{"MYTHRA_PRINT_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"s"},
		Usage:   "Device serial to print from (default: first connected device)",
		EnvVars: []string{"ANDROID_SERIAL"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"MYTHRA_PRINT_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "mythra-print",
		Usage:   "Print generated images through a phone-controlled photo printer",
		Version: Version,
		Description: `mythra-print pushes an image to an Android phone over adb, opens the
printer companion app and taps through its print dialog.

Examples:
  mythra-print print session-1731455785816.png
  mythra-print --device emulator-5554 print a.png --on-failure cleanup
  mythra-print plan
  mythra-print serve --addr :8080`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			printCommand,
			planCommand,
			devicesCommand,
			historyCommand,
			serveCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config (or the working directory's config file),
// applies --device and validates the result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if serial := c.String("device"); serial != "" {
		cfg.Serial = serial
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogging opens <home>/logs/mythra-print.log. --verbose forces debug.
func initLogging(c *cli.Context, cfg *config.Config) error {
	level := cfg.LogLevel
	if c.Bool("verbose") {
		level = "debug"
	}
	return logger.Init(filepath.Join(config.GetLogDir(), "mythra-print.log"), level)
}

func deviceOptions(cfg *config.Config) device.Options {
	return device.Options{
		ADBPath:        cfg.ADBPath,
		Serial:         cfg.Serial,
		CommandTimeout: cfg.CommandTimeout,
		Runner:         commandRunner,
	}
}
