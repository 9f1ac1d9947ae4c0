package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/planner"
)

type PlanCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	objective string
}

// NewPlanCommand returns the plan command.
func NewPlanCommand(rootCmd *RootCommand, app *kingpin.Application) *PlanCommand {
	c := &PlanCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("plan", "Decompose an objective into sub-projects without enqueuing it.")
	c.Cmd.Arg("objective", "The objective to decompose.").Required().StringVar(&c.objective)

	return c
}

func (c PlanCommand) Name() string { return c.Cmd.FullCommand() }

func (c PlanCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	engineCfg, err := c.rootCmd.EngineConfig(ctx)
	if err != nil {
		return fmt.Errorf("could not load engine config: %w", err)
	}

	rsn, err := NewReasoner(engineCfg, logger)
	if err != nil {
		return fmt.Errorf("could not create reasoner: %w", err)
	}

	pln, err := planner.NewPlanner(planner.PlannerConfig{Reasoner: rsn, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create planner: %w", err)
	}

	if !pln.IsMegaTask(c.objective) {
		fmt.Fprintf(c.rootCmd.Stdout, "Objective is small enough for a flat step list, decomposing anyway.\n\n")
	}

	result, err := pln.Decompose(ctx, c.objective)
	if err != nil {
		return fmt.Errorf("could not decompose objective: %w", err)
	}

	if result.Fallback {
		fmt.Fprintf(c.rootCmd.Stdout, "Decomposition degraded to fallback plan: %s\n\n", result.Reason)
	}

	fmt.Fprintln(c.rootCmd.Stdout, planner.RenderProgress(result.Plan))
	for _, sp := range result.Plan.SubProjects {
		fmt.Fprintf(c.rootCmd.Stdout, "\n%s", sp.Name)
		if len(sp.DependsOn) > 0 {
			fmt.Fprintf(c.rootCmd.Stdout, " (depends on: %v)", sp.DependsOn)
		}
		fmt.Fprintln(c.rootCmd.Stdout)
		for _, step := range sp.Steps {
			fmt.Fprintf(c.rootCmd.Stdout, "  - %s\n", step)
		}
	}

	return nil
}
