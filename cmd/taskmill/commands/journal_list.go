package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/storage/sqlite"
)

type JournalListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewJournalListCommand returns the journal list command.
func NewJournalListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *JournalListCommand {
	c := &JournalListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "List recorded errors, newest first.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c JournalListCommand) Name() string { return c.Cmd.FullCommand() }

func (c JournalListCommand) Run(ctx context.Context) error {
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

	entries, err := repo.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("could not list journal entries: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintJournalList(entries); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}
