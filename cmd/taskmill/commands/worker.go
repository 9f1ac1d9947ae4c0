package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/urko/taskmill/internal/contextstore"
	"github.com/urko/taskmill/internal/conventions"
	"github.com/urko/taskmill/internal/escalation"
	"github.com/urko/taskmill/internal/executor"
	"github.com/urko/taskmill/internal/journal"
	"github.com/urko/taskmill/internal/planner"
	"github.com/urko/taskmill/internal/queue"
	"github.com/urko/taskmill/internal/storage/sqlite"
)

type WorkerCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	pollInterval time.Duration
}

// NewWorkerCommand returns the worker command.
func NewWorkerCommand(rootCmd *RootCommand, app *kingpin.Application) *WorkerCommand {
	c := &WorkerCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("worker", "Run the background worker until interrupted.")
	c.Cmd.Flag("poll-interval", "How often the worker polls an empty queue.").DurationVar(&c.pollInterval)

	return c
}

func (c WorkerCommand) Name() string { return c.Cmd.FullCommand() }

func (c WorkerCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	engineCfg, err := c.rootCmd.EngineConfig(ctx)
	if err != nil {
		return fmt.Errorf("could not load engine config: %w", err)
	}

	// Initialize storage (SQLite).
	db, err := sqlite.NewDB(ctx, sqlite.DBConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	defer db.Close()

	taskRepo, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: db, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create task repository: %w", err)
	}
	checkpointRepo, err := sqlite.NewCheckpointRepository(sqlite.CheckpointRepositoryConfig{DB: db, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create checkpoint repository: %w", err)
	}
	journalRepo, err := sqlite.NewJournalRepository(sqlite.JournalRepositoryConfig{DB: db, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create journal repository: %w", err)
	}

	// Context store and retriever.
	store, err := contextstore.NewStore(contextstore.StoreConfig{
		Dir:                conventions.ContextPath(c.rootCmd.DataDir),
		DomainBudgetTokens: engineCfg.DomainBudgetTokens,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("could not create context store: %w", err)
	}

	rsn, err := NewReasoner(engineCfg, logger)
	if err != nil {
		return fmt.Errorf("could not create reasoner: %w", err)
	}

	reasonerSelector, err := contextstore.NewReasonerSelector(contextstore.ReasonerSelectorConfig{
		Reasoner: rsn,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create selector: %w", err)
	}
	selector := contextstore.NewFallbackSelector(reasonerSelector, contextstore.KeywordSelector{}, logger)

	retriever, err := contextstore.NewRetriever(contextstore.RetrieverConfig{
		Store:          store,
		Selector:       selector,
		MaxTotalTokens: engineCfg.MaxContextTokens,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create retriever: %w", err)
	}

	// Planner, escalation, journal.
	pln, err := planner.NewPlanner(planner.PlannerConfig{Reasoner: rsn, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create planner: %w", err)
	}

	esc, err := escalation.NewEngine(escalation.EngineConfig{
		MaxConsecutiveFailures: engineCfg.MaxConsecutiveFailures,
		MaxCostDollars:         engineCfg.MaxCostDollars,
		Logger:                 logger,
	})
	if err != nil {
		return fmt.Errorf("could not create escalation engine: %w", err)
	}

	jrnl, err := journal.NewService(journal.ServiceConfig{Repository: journalRepo, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create journal: %w", err)
	}

	// Executor.
	exec, err := executor.NewService(executor.ServiceConfig{
		Reasoner:     rsn,
		Retriever:    retriever,
		ContextStore: store,
		Planner:      pln,
		Escalation:   esc,
		Journal:      jrnl,
		Checkpoints:  checkpointRepo,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create executor: %w", err)
	}

	// Worker.
	pollInterval := c.pollInterval
	if pollInterval == 0 && engineCfg.PollIntervalSeconds > 0 {
		pollInterval = time.Duration(engineCfg.PollIntervalSeconds) * time.Second
	}

	worker, err := queue.NewWorker(queue.WorkerConfig{
		Repository:   taskRepo,
		Executor:     exec.Execute,
		PollInterval: pollInterval,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create worker: %w", err)
	}

	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("could not start worker: %w", err)
	}

	<-ctx.Done()

	// The in-flight task gets to finish, stop is cooperative.
	stopCtx, cancel := context.WithTimeout(context.Background(), queue.DefaultStopTimeout)
	defer cancel()
	if err := worker.Stop(stopCtx); err != nil {
		return fmt.Errorf("could not stop worker: %w", err)
	}

	return nil
}
