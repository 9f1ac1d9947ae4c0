package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/storage/sqlite"
)

type CheckpointListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewCheckpointListCommand returns the checkpoint list command.
func NewCheckpointListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *CheckpointListCommand {
	c := &CheckpointListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "List checkpoints, newest first.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c CheckpointListCommand) Name() string { return c.Cmd.FullCommand() }

func (c CheckpointListCommand) Run(ctx context.Context) error {
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

	checkpoints, err := repo.ListCheckpoints(ctx)
	if err != nil {
		return fmt.Errorf("could not list checkpoints: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintCheckpointList(checkpoints); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}
