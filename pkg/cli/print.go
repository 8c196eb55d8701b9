package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ethangrabau/mythra-web/pkg/config"
	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/logger"
	"github.com/ethangrabau/mythra-web/pkg/report"
	"github.com/ethangrabau/mythra-web/pkg/workflow"
)

var printCommand = &cli.Command{
	Name:      "print",
	Usage:     "Push an image to the phone and print it",
	ArgsUsage: "<image>",
	Description: `Runs the full print workflow for one image from the source folder:
push, media rescan, kill background apps, home, launch the printer app,
tap through the print dialog, wait for the print, stop the app.

Examples:
  mythra-print print session-1731455785816.png
  mythra-print print a.png --on-failure cleanup`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "on-failure",
			Usage: "What to do when a step fails: abort or cleanup (force-stop the app)",
		},
	},
	Action: runPrint,
}

func runPrint(c *cli.Context) error {
	image := c.Args().First()
	if err := workflow.ValidateImageName(image); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if policy := c.String("on-failure"); policy != "" {
		cfg.OnFailure = policy
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if err := initLogging(c, cfg); err != nil {
		return err
	}
	defer logger.Close()
	logger.Info("Print requested: image=%s serial=%q policy=%s", image, cfg.Serial, cfg.OnFailure)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := c.App.Writer
	printSection(out, "Setup")
	printSetupStep(out, fmt.Sprintf("Image: %s", cfg.ImagePath(image)))
	printSetupStep(out, fmt.Sprintf("Expected duration: at least %s", cfg.TotalWait()))

	svc := workflow.NewService(cfg, deviceOptions(cfg), workflow.WithHooks(consoleHooks(out)))
	printSection(out, "Execution")
	result, runErr := svc.Print(ctx, image)

	if result == nil {
		// Never reached the device
		if errors.Is(runErr, core.ErrDeviceBusy) {
			printFailure(out, "Device is busy", runErr.Error())
		} else {
			printFailure(out, "Could not start the print run", runErr.Error())
		}
		return runErr
	}

	printRunSummary(out, cfg, result)
	if runErr != nil {
		return fmt.Errorf("print failed in state %s: %w", result.FailedState, runErr)
	}
	return nil
}

// consoleHooks prints one line before and one after every step.
func consoleHooks(w io.Writer) workflow.Hooks {
	n := 0
	return workflow.Hooks{
		OnStepStart: func(step workflow.Step, total int) {
			n++
			fmt.Fprintf(w, "  %s[%d/%d]%s %s\n", color(colorCyan), n, total, color(colorReset), step.Intent)
		},
		OnStepComplete: func(step workflow.Step, r core.StepResult, _ int) {
			if r.Status == core.StatusPassed {
				dur := formatDuration(r.Duration + r.Waited)
				fmt.Fprintf(w, "    %s✓%s %s %s(%s)%s\n",
					color(colorGreen), color(colorReset), step.Success, color(colorGray), dur, color(colorReset))
				return
			}
			fmt.Fprintf(w, "    %s✗%s %s failed in state %s\n", color(colorRed), color(colorReset), step.Name, r.State)
			fmt.Fprintf(w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), r.Error)
		},
		OnCleanup: func(r core.StepResult) {
			if r.Status == core.StatusPassed {
				printWarning(w, "Cleanup: printer app force-stopped")
				return
			}
			printFailure(w, "Cleanup force-stop failed", r.Error)
		},
	}
}

func printRunSummary(w io.Writer, cfg *config.Config, result *core.RunResult) {
	printSection(w, "Summary")
	fmt.Fprintf(w, "  Run:      %s\n", result.RunID)
	fmt.Fprintf(w, "  Device:   %s\n", result.Serial)
	fmt.Fprintf(w, "  Duration: %s (waited %s)\n", formatDuration(result.Duration), formatDuration(result.TotalWaited()))
	fmt.Fprintf(w, "  Record:   %s\n", report.Path(cfg.ResolvedReportDir(), result.RunID))

	if result.Succeeded() {
		fmt.Fprintf(w, "\n%s✓ Printed %s%s\n", color(colorGreen), result.Image, color(colorReset))
		return
	}
	fmt.Fprintf(w, "\n%s✗ Print of %s failed in state %s%s\n", color(colorRed), result.Image, result.FailedState, color(colorReset))
	if skipped := result.CountByStatus(core.StatusSkipped); skipped > 0 {
		fmt.Fprintf(w, "  %d step(s) not attempted\n", skipped)
	}
}
