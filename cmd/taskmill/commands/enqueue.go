package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/queue"
	"github.com/urko/taskmill/internal/storage/sqlite"
)

type EnqueueCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	kind  string
	input string
}

// NewEnqueueCommand returns the enqueue command.
func NewEnqueueCommand(rootCmd *RootCommand, app *kingpin.Application) *EnqueueCommand {
	c := &EnqueueCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("enqueue", "Enqueue a new task for the background worker.")
	c.Cmd.Flag("kind", "Task kind (autonomous, research, build, deploy).").Default(string(model.TaskKindAutonomous)).
		EnumVar(&c.kind, string(model.TaskKindAutonomous), string(model.TaskKindResearch), string(model.TaskKindBuild), string(model.TaskKindDeploy))
	c.Cmd.Arg("input", "What the task should accomplish.").Required().StringVar(&c.input)

	return c
}

func (c EnqueueCommand) Name() string { return c.Cmd.FullCommand() }

func (c EnqueueCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Initialize storage (SQLite).
	db, err := sqlite.NewDB(ctx, sqlite.DBConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	defer db.Close()

	repo, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: db, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}

	svc, err := queue.NewService(queue.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	id, err := svc.Enqueue(ctx, model.TaskKind(c.kind), c.input)
	if err != nil {
		return fmt.Errorf("could not enqueue task: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Task enqueued!\n")
	fmt.Fprintf(c.rootCmd.Stdout, "  ID:   %d\n", id)
	fmt.Fprintf(c.rootCmd.Stdout, "  Kind: %s\n", c.kind)

	return nil
}
