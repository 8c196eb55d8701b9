package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/logger"
	"github.com/ethangrabau/mythra-web/pkg/report"
)

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "List recorded print runs, most recent first",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Show at most N runs (0 = all)",
			Value: 20,
		},
		&cli.StringFlag{
			Name:  "status",
			Usage: "Only runs that ended passed or failed",
		},
		&cli.StringFlag{
			Name:  "image",
			Usage: "Only runs for this image",
		},
		&cli.StringFlag{
			Name:  "run",
			Usage: "Show the steps of one recorded run",
		},
		&cli.BoolFlag{
			Name:  "reindex",
			Usage: "Rebuild the history index from the run records on disk",
		},
	},
	Action: runHistory,
}

func runHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if id := c.String("run"); id != "" {
		return showRun(c, cfg.ResolvedReportDir(), id)
	}

	filter := report.HistoryFilter{Limit: c.Int("limit"), Image: c.String("image")}
	if s := c.String("status"); s != "" {
		var status core.StepStatus
		if err := status.UnmarshalText([]byte(s)); err != nil {
			return err
		}
		filter.Status = &status
	}

	history, err := report.OpenHistory(c.Context, cfg.ResolvedReportDir())
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer history.Close()

	if c.Bool("reindex") {
		if err := reindex(c, history, cfg.ResolvedReportDir()); err != nil {
			return err
		}
	}

	entries, err := history.Recent(c.Context, filter)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.App.Writer, "No recorded runs")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		failed := ""
		if e.Status == core.StatusFailed {
			failed = e.FailedState.String()
		}
		rows = append(rows, []string{
			e.StartTime.Local().Format("2006-01-02 15:04:05"),
			e.RunID,
			e.Image,
			e.Status.String(),
			failed,
			formatDuration(e.Duration),
		})
	}
	fmt.Fprintln(c.App.Writer, renderTable(
		[]string{"Started", "Run", "Image", "Status", "Failed in", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		nil,
	))
	return nil
}

// showRun renders one run record step by step.
func showRun(c *cli.Context, dir, runID string) error {
	result, err := report.Load(dir, runID)
	if err != nil {
		return err
	}
	w := c.App.Writer

	printSection(w, "Run "+result.RunID)
	fmt.Fprintf(w, "  Image:    %s\n", result.Image)
	fmt.Fprintf(w, "  Device:   %s\n", result.Serial)
	fmt.Fprintf(w, "  Policy:   %s\n", result.Policy)
	fmt.Fprintf(w, "  Started:  %s\n", result.StartTime.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Status:   %s\n", result.Status)
	if result.Status == core.StatusFailed {
		fmt.Fprintf(w, "  Failed in %s: %s\n", result.FailedState, result.Error)
	}
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(result.Steps)+1)
	for _, s := range result.Steps {
		rows = append(rows, stepRow(s, s.Name))
	}
	if result.Cleanup != nil {
		rows = append(rows, stepRow(*result.Cleanup, result.Cleanup.Name+" (cleanup)"))
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Step", "State", "Status", "Took", "Waited", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		[]string{"", "", "", "Total", formatDuration(result.Duration), formatDuration(result.TotalWaited()), ""},
	))
	return nil
}

func stepRow(s core.StepResult, name string) []string {
	pos := ""
	if s.Index >= 0 {
		pos = fmt.Sprintf("%d", s.Index+1)
	}
	return []string{
		pos,
		name,
		s.State.String(),
		s.Status.String(),
		formatDuration(s.Duration),
		formatDuration(s.Waited),
		s.Error,
	}
}

// reindex records every finished run found in dir. Records already indexed
// are replaced.
func reindex(c *cli.Context, history *report.History, dir string) error {
	runs, err := report.List(dir)
	if err != nil {
		return err
	}
	indexed := 0
	for _, r := range runs {
		if !r.Status.IsTerminal() {
			logger.Warn("Skipping unfinished run %s", r.RunID)
			continue
		}
		if err := history.Record(c.Context, r); err != nil {
			return err
		}
		indexed++
	}
	fmt.Fprintf(c.App.Writer, "Indexed %d run(s)\n\n", indexed)
	return nil
}
