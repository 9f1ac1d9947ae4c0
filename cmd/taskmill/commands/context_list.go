package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/contextstore"
	"github.com/urko/taskmill/internal/conventions"
)

type ContextListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewContextListCommand returns the context list command.
func NewContextListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ContextListCommand {
	c := &ContextListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "List context domains and their sizes.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ContextListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ContextListCommand) Run(ctx context.Context) error {
	store, err := contextstore.NewStore(contextstore.StoreConfig{
		Dir:    conventions.ContextPath(c.rootCmd.DataDir),
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create context store: %w", err)
	}

	domains, err := store.Domains(ctx)
	if err != nil {
		return fmt.Errorf("could not list domains: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintDomainList(domains); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}
