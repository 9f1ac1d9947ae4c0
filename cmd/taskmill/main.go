package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/urko/taskmill/cmd/taskmill/commands"
	"github.com/urko/taskmill/internal/log"
	loglogrus "github.com/urko/taskmill/internal/log/logrus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("taskmill", "Autonomous task orchestration tool.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	enqueueCmd := commands.NewEnqueueCommand(rootCmd, app)
	listCmd := commands.NewListCommand(rootCmd, app)
	statusCmd := commands.NewStatusCommand(rootCmd, app)
	workerCmd := commands.NewWorkerCommand(rootCmd, app)
	planCmd := commands.NewPlanCommand(rootCmd, app)

	// Checkpoint subcommands share a parent command.
	checkpointCmd := app.Command("checkpoint", "Manage checkpoints.")
	checkpointListCmd := commands.NewCheckpointListCommand(rootCmd, checkpointCmd)
	checkpointLatestCmd := commands.NewCheckpointLatestCommand(rootCmd, checkpointCmd)

	// Context subcommands share a parent command.
	contextCmd := app.Command("context", "Manage context domains.")
	contextAppendCmd := commands.NewContextAppendCommand(rootCmd, contextCmd)
	contextShowCmd := commands.NewContextShowCommand(rootCmd, contextCmd)
	contextClearCmd := commands.NewContextClearCommand(rootCmd, contextCmd)
	contextListCmd := commands.NewContextListCommand(rootCmd, contextCmd)

	// Journal subcommands share a parent command.
	journalCmd := app.Command("journal", "Inspect the error journal.")
	journalListCmd := commands.NewJournalListCommand(rootCmd, journalCmd)
	journalStatsCmd := commands.NewJournalStatsCommand(rootCmd, journalCmd)

	cmds := map[string]commands.Command{
		enqueueCmd.Name():          enqueueCmd,
		listCmd.Name():             listCmd,
		statusCmd.Name():           statusCmd,
		workerCmd.Name():           workerCmd,
		planCmd.Name():             planCmd,
		checkpointListCmd.Name():   checkpointListCmd,
		checkpointLatestCmd.Name(): checkpointLatestCmd,
		contextAppendCmd.Name():    contextAppendCmd,
		contextShowCmd.Name():      contextShowCmd,
		contextClearCmd.Name():     contextClearCmd,
		contextListCmd.Name():      contextListCmd,
		journalListCmd.Name():      journalListCmd,
		journalStatsCmd.Name():     journalStatsCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Auto-suppress logging for commands that produce structured output (table/JSON)
	// to prevent log noise from mixing with printer output in the terminal.
	// Users can still enable logging with --debug.
	printerCommands := map[string]bool{
		"list":              true,
		"status":            true,
		"checkpoint list":   true,
		"checkpoint latest": true,
		"context show":      true,
		"context list":      true,
		"journal list":      true,
		"journal stats":     true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// Set logger.
	rootCmd.Logger = getLogger(ctx, *rootCmd)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(ctx context.Context, config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	// If logger not disabled use logrus logger.
	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // By default logger goes to stderr (so it can split stdout prints).
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	// Log format.
	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
