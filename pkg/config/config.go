// Package config handles configuration for mythra-print.
package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ethangrabau/mythra-web/pkg/core"
)

// File names looked up by LoadFromDir, in order.
const (
	FileName    = "mythra-print.yaml"
	AltFileName = "mythra-print.yml"
)

// Failure policies.
const (
	PolicyAbort   = "abort"   // Stop at the failed step, no compensation
	PolicyCleanup = "cleanup" // Stop, then force-stop the app if it may be running
)

// Config represents the print workflow configuration (mythra-print.yaml).
type Config struct {
	// Local side
	SourceDir string `yaml:"source_dir"` // Folder holding generated images

	// Bridge
	ADBPath        string        `yaml:"adb_path"`        // Empty = look up adb in $PATH
	Serial         string        `yaml:"serial"`          // Empty = first connected device
	CommandTimeout time.Duration `yaml:"command_timeout"` // 0 = wait for adb forever

	// Device side
	PictureDir string `yaml:"picture_dir"` // Absolute on-device folder for pushed images
	App        App    `yaml:"app"`

	// Timing
	Delays Delays `yaml:"delays"`
	Taps   []Tap  `yaml:"taps"` // Ordered blind taps, each followed by its own wait

	// Behaviour
	OnFailure string `yaml:"on_failure"` // abort or cleanup

	// Local state
	LockDir   string `yaml:"lock_dir"`   // Empty = os.TempDir()
	ReportDir string `yaml:"report_dir"` // Empty = <home>/runs
	LogLevel  string `yaml:"log_level"`
}

// App identifies the printing application on the device.
type App struct {
	Component string `yaml:"component"` // Activity passed to am start -n
	Package   string `yaml:"package"`   // Package passed to am force-stop
}

// Delays are the fixed waits standing in for completion signals the
// device never gives us.
type Delays struct {
	KillAll time.Duration `yaml:"kill_all"` // After am kill-all
	Home    time.Duration `yaml:"home"`     // After KEYCODE_HOME
	Launch  time.Duration `yaml:"launch"`   // App cold start
	Print   time.Duration `yaml:"print"`    // Expected print job duration
}

// Tap is one blind tap and the wait that follows it. The coordinates only
// mean something for the app version and screen they were measured on.
type Tap struct {
	Name string        `yaml:"name"`
	X    int           `yaml:"x"`
	Y    int           `yaml:"y"`
	Wait time.Duration `yaml:"wait"`
}

// Default returns the reference configuration: HP Sprocket Panorama on a
// 1080x2400 portrait phone.
func Default() *Config {
	return &Config{
		SourceDir:  "generated_images",
		PictureDir: "/storage/emulated/0/Pictures",
		App: App{
			Component: "com.hp.impulse.panorama/.activity.SplashActivity",
			Package:   "com.hp.impulse.panorama",
		},
		Delays: Delays{
			KillAll: 1 * time.Second,
			Home:    1 * time.Second,
			Launch:  3 * time.Second,
			Print:   40 * time.Second,
		},
		Taps: []Tap{
			{Name: "quick-print", X: 558, Y: 1911, Wait: 2 * time.Second},
			{Name: "select-image", X: 160, Y: 480, Wait: 2 * time.Second},
			{Name: "next", X: 995, Y: 240, Wait: 3 * time.Second},
			{Name: "print-icon", X: 1000, Y: 226, Wait: 2 * time.Second},
			{Name: "confirm-print", X: 550, Y: 2140, Wait: 2 * time.Second},
		},
		OnFailure: PolicyAbort,
		LogLevel:  "info",
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir looks for mythra-print.yaml or mythra-print.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{FileName, AltFileName} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, use the reference configuration
	return Default(), nil
}

// Validate checks the configuration. Tap coordinates are deliberately not
// checked against any screen size.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return core.ErrInvalidConfig.WithMessage("invalid configuration: " + fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.SourceDir) == "" {
		return invalid("source_dir is required")
	}
	if !path.IsAbs(c.PictureDir) {
		return invalid("picture_dir must be an absolute device path, got %q", c.PictureDir)
	}
	if c.App.Component == "" {
		return invalid("app.component is required")
	}
	if c.App.Package == "" {
		return invalid("app.package is required")
	}
	if len(c.Taps) == 0 {
		return invalid("at least one tap is required")
	}

	delays := map[string]time.Duration{
		"delays.kill_all": c.Delays.KillAll,
		"delays.home":     c.Delays.Home,
		"delays.launch":   c.Delays.Launch,
		"delays.print":    c.Delays.Print,
		"command_timeout": c.CommandTimeout,
	}
	for name, d := range delays {
		if d < 0 {
			return invalid("%s must not be negative", name)
		}
	}
	for i, tap := range c.Taps {
		if tap.Wait < 0 {
			return invalid("taps[%d].wait must not be negative", i)
		}
	}

	switch c.OnFailure {
	case PolicyAbort, PolicyCleanup:
	default:
		return invalid("on_failure must be %q or %q, got %q", PolicyAbort, PolicyCleanup, c.OnFailure)
	}

	return nil
}

// ImagePath returns the local path of an image in the source folder.
func (c *Config) ImagePath(image string) string {
	return filepath.Join(c.SourceDir, image)
}

// DevicePath returns the on-device path an image is pushed to.
func (c *Config) DevicePath(image string) string {
	return path.Join(c.PictureDir, image)
}

// TotalWait returns the sum of every fixed delay a successful run sits through.
func (c *Config) TotalWait() time.Duration {
	total := c.Delays.KillAll + c.Delays.Home + c.Delays.Launch + c.Delays.Print
	for _, tap := range c.Taps {
		total += tap.Wait
	}
	return total
}

// ResolvedLockDir returns the directory holding device session locks.
func (c *Config) ResolvedLockDir() string {
	if c.LockDir != "" {
		return c.LockDir
	}
	return os.TempDir()
}

// ResolvedReportDir returns the directory holding run records.
func (c *Config) ResolvedReportDir() string {
	if c.ReportDir != "" {
		return c.ReportDir
	}
	return GetRunsDir()
}
