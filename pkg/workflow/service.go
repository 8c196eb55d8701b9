package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/ethangrabau/mythra-web/pkg/config"
	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/device"
	"github.com/ethangrabau/mythra-web/pkg/logger"
	"github.com/ethangrabau/mythra-web/pkg/metrics"
	"github.com/ethangrabau/mythra-web/pkg/report"
)

// Service runs one print job end to end: connect to the device, take the
// session lock, run the workflow, record the result in the report dir.
type Service struct {
	cfg     *config.Config
	devOpts device.Options
	opts    []Option
}

// NewService creates a Service. opts are applied to every run's Orchestrator.
func NewService(cfg *config.Config, devOpts device.Options, opts ...Option) *Service {
	return &Service{cfg: cfg, devOpts: devOpts, opts: opts}
}

// Print runs the workflow for image. A held session lock returns
// core.ErrDeviceBusy before any workflow command is sent; only the read-only
// connection probes (adb devices, get-state) run ahead of the lock. When the
// workflow ran, the result is non-nil and has been written to the report
// dir, even if err is set.
func (s *Service) Print(ctx context.Context, image string) (*core.RunResult, error) {
	if err := ValidateImageName(image); err != nil {
		return nil, err
	}

	dev, err := device.New(ctx, s.devOpts)
	if err != nil {
		return nil, err
	}

	sess, err := device.OpenSession(dev, s.cfg.ResolvedLockDir())
	if err != nil {
		if errors.Is(err, core.ErrDeviceBusy) {
			metrics.SessionBusyTotal.Inc()
		}
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("%v", err)
		}
	}()

	result, runErr := New(s.cfg, s.opts...).RunPrintWorkflow(ctx, sess, image)

	s.record(context.WithoutCancel(ctx), result)
	return result, runErr
}

// record writes the run record and indexes it. Failures are logged only;
// they never change the outcome of the print.
func (s *Service) record(ctx context.Context, result *core.RunResult) {
	dir := s.cfg.ResolvedReportDir()
	if _, err := report.WriteRun(dir, result); err != nil {
		logger.Warn("Failed to write run record: %v", err)
	}

	history, err := report.OpenHistory(ctx, dir)
	if err != nil {
		logger.Warn("Failed to open run history: %v", err)
		return
	}
	defer history.Close()
	if err := history.Record(ctx, result); err != nil {
		logger.Warn("Failed to index run: %v", err)
	}
}

// ValidateImageName rejects names that are empty or contain a path
// separator. Images are always resolved inside the source folder.
func ValidateImageName(image string) error {
	switch {
	case strings.TrimSpace(image) == "":
		return core.ErrInvalidImage.WithMessage("Image name is required")
	case strings.ContainsAny(image, `/\`), image == ".", image == "..":
		return core.ErrInvalidImage.WithMessage("image name must be a plain file name, got " + image)
	}
	return nil
}
