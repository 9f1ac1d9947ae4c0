package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/contextstore"
	"github.com/urko/taskmill/internal/conventions"
)

type ContextAppendCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	domain  string
	content string
}

// NewContextAppendCommand returns the context append command.
func NewContextAppendCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ContextAppendCommand {
	c := &ContextAppendCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("append", "Append an entry to a context domain.")
	c.Cmd.Arg("domain", "Domain name.").Required().StringVar(&c.domain)
	c.Cmd.Arg("content", "Entry content.").Required().StringVar(&c.content)

	return c
}

func (c ContextAppendCommand) Name() string { return c.Cmd.FullCommand() }

func (c ContextAppendCommand) Run(ctx context.Context) error {
	store, err := c.newStore()
	if err != nil {
		return err
	}

	if err := store.Append(ctx, c.domain, c.content); err != nil {
		return fmt.Errorf("could not append to domain: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Appended to domain %q.\n", c.domain)
	return nil
}

func (c ContextAppendCommand) newStore() (*contextstore.Store, error) {
	engineCfg, err := c.rootCmd.EngineConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("could not load engine config: %w", err)
	}

	store, err := contextstore.NewStore(contextstore.StoreConfig{
		Dir:                conventions.ContextPath(c.rootCmd.DataDir),
		DomainBudgetTokens: engineCfg.DomainBudgetTokens,
		Logger:             c.rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create context store: %w", err)
	}
	return store, nil
}
