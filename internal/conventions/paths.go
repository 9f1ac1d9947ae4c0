package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default taskmill data directory name (relative to home).
	DefaultDataDir = ".taskmill"
	// DBFile is the SQLite database filename.
	DBFile = "taskmill.db"
	// ContextDir is the subdirectory holding the context domain files.
	ContextDir = "context"
	// ConfigFile is the engine configuration filename.
	ConfigFile = "config.yaml"
)

// DBPath returns the full path to the SQLite database file.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// ContextPath returns the directory holding the context domain files.
func ContextPath(dataDir string) string {
	return filepath.Join(dataDir, ContextDir)
}

// ConfigPath returns the full path to the engine configuration file.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, ConfigFile)
}
