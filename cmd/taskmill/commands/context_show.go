package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/contextstore"
	"github.com/urko/taskmill/internal/conventions"
)

type ContextShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	domain string
}

// NewContextShowCommand returns the context show command.
func NewContextShowCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ContextShowCommand {
	c := &ContextShowCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("show", "Print a context domain's content.")
	c.Cmd.Arg("domain", "Domain name.").Required().StringVar(&c.domain)

	return c
}

func (c ContextShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c ContextShowCommand) Run(ctx context.Context) error {
	store, err := contextstore.NewStore(contextstore.StoreConfig{
		Dir:    conventions.ContextPath(c.rootCmd.DataDir),
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create context store: %w", err)
	}

	content, err := store.Read(ctx, c.domain)
	if err != nil {
		return fmt.Errorf("could not read domain: %w", err)
	}

	fmt.Fprint(c.rootCmd.Stdout, content)
	return nil
}
