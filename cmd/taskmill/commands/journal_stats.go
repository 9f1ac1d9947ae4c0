package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/journal"
	"github.com/urko/taskmill/internal/storage/sqlite"
)

type JournalStatsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewJournalStatsCommand returns the journal stats command.
func NewJournalStatsCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *JournalStatsCommand {
	c := &JournalStatsCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("stats", "Show a summary of recorded errors.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c JournalStatsCommand) Name() string { return c.Cmd.FullCommand() }

func (c JournalStatsCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	db, err := sqlite.NewDB(ctx, sqlite.DBConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	defer db.Close()

	repo, err := sqlite.NewJournalRepository(sqlite.JournalRepositoryConfig{DB: db, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}

	svc, err := journal.NewService(journal.ServiceConfig{Repository: repo, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create journal service: %w", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		return fmt.Errorf("could not get journal stats: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintJournalStats(stats); err != nil {
		return fmt.Errorf("could not print stats: %w", err)
	}

	return nil
}
