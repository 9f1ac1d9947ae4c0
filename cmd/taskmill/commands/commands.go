package commands

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/urko/taskmill/internal/conventions"
	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/printer"
	"github.com/urko/taskmill/internal/reasoner"
	storageio "github.com/urko/taskmill/internal/storage/io"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

const (
	defaultReasonerURL   = "http://localhost:1234/v1"
	defaultReasonerModel = "local-model"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DataDir    string
	DBPath     string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDataDir := filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir)
	app.Flag("data-dir", "Path to the taskmill data directory.").Envar("TASKMILL_DATA_DIR").Default(defaultDataDir).StringVar(&c.DataDir)

	defaultDBPath := conventions.DBPath(defaultDataDir)
	app.Flag("db-path", "Path to the SQLite database file.").Envar("TASKMILL_DB_PATH").Default(defaultDBPath).StringVar(&c.DBPath)

	return c
}

// EngineConfig loads the engine configuration from the data dir. A missing
// config file is not an error, everything has a default.
func (c *RootCommand) EngineConfig(ctx context.Context) (model.EngineConfig, error) {
	repo := storageio.NewConfigYAMLRepository(os.DirFS(c.DataDir))
	cfg, err := repo.GetConfig(ctx, conventions.ConfigFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.EngineConfig{
				ReasonerURL:   defaultReasonerURL,
				ReasonerModel: defaultReasonerModel,
			}, nil
		}
		return model.EngineConfig{}, err
	}

	return cfg, nil
}

// NewReasoner builds the retrying reasoner client against the configured
// endpoint.
func NewReasoner(cfg model.EngineConfig, logger log.Logger) (reasoner.Reasoner, error) {
	client, err := reasoner.NewClient(reasoner.ClientConfig{
		BaseURL: cfg.ReasonerURL,
		Model:   cfg.ReasonerModel,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	return reasoner.NewRetrier(reasoner.RetrierConfig{
		Reasoner: client,
		Logger:   logger,
	})
}

// newPrinter selects the output printer for a format flag value.
func newPrinter(format string, out io.Writer) printer.Printer {
	switch format {
	case "json":
		return printer.NewJSONPrinter(out)
	default: // table
		return printer.NewTablePrinter(out)
	}
}
