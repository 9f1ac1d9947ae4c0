package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/storage/sqlite"
)

type CheckpointLatestCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	objective string
	format    string
}

// NewCheckpointLatestCommand returns the checkpoint latest command.
func NewCheckpointLatestCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *CheckpointLatestCommand {
	c := &CheckpointLatestCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("latest", "Show the newest checkpoint.")
	c.Cmd.Flag("objective", "Scope to one objective.").StringVar(&c.objective)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c CheckpointLatestCommand) Name() string { return c.Cmd.FullCommand() }

func (c CheckpointLatestCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	db, err := sqlite.NewDB(ctx, sqlite.DBConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	defer db.Close()

	repo, err := sqlite.NewCheckpointRepository(sqlite.CheckpointRepositoryConfig{DB: db, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}

	cp, err := repo.LatestCheckpoint(ctx, c.objective)
	if err != nil {
		return fmt.Errorf("could not get latest checkpoint: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if cp == nil {
		return p.PrintMessage("No checkpoints found.")
	}
	return p.PrintCheckpoint(*cp)
}
