package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/contextstore"
	"github.com/urko/taskmill/internal/conventions"
)

type ContextClearCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	domain string
}

// NewContextClearCommand returns the context clear command.
func NewContextClearCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ContextClearCommand {
	c := &ContextClearCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("clear", "Clear a context domain.")
	c.Cmd.Arg("domain", "Domain name.").Required().StringVar(&c.domain)

	return c
}

func (c ContextClearCommand) Name() string { return c.Cmd.FullCommand() }

func (c ContextClearCommand) Run(ctx context.Context) error {
	store, err := contextstore.NewStore(contextstore.StoreConfig{
		Dir:    conventions.ContextPath(c.rootCmd.DataDir),
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create context store: %w", err)
	}

	if err := store.Clear(ctx, c.domain); err != nil {
		return fmt.Errorf("could not clear domain: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Cleared domain %q.\n", c.domain)
	return nil
}
