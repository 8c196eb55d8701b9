package cli

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/ethangrabau/mythra-web/pkg/workflow"
)

var planCommand = &cli.Command{
	Name:      "plan",
	Usage:     "Show the steps a print run would execute",
	ArgsUsage: "[image]",
	Action:    runPlan,
}

func runPlan(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	image := c.Args().First()
	if image == "" {
		image = "<image>"
	}

	steps := workflow.New(cfg).Plan(image)
	rows := make([][]string, 0, len(steps))
	for i, s := range steps {
		cmd := s.Command
		if !s.HasCommand() {
			cmd = "-"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), s.Name, s.State.String(), cmd, s.Wait.String()})
	}

	total := workflow.TotalBudget(steps)
	fmt.Fprintln(c.App.Writer, renderTable(
		[]string{"#", "Step", "State", "Command", "Wait"},
		rows,
		[]columnAlignment{alignRight},
		[]string{"", "", "", "Total wait", total.String()},
	))
	return nil
}
