package sqlite_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/storage/sqlite"
	"github.com/urko/taskmill/internal/storage/sqlite/migrations"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Create temp database
	tmpFile, err := os.CreateTemp("", "taskmill-test-*.db")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	// Open database
	db, err := sql.Open("sqlite", tmpFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Run migrations
	migrator, err := migrations.NewMigrator(db, log.Noop)
	require.NoError(t, err)
	err = migrator.Up(context.Background())
	require.NoError(t, err)

	return db
}

func TestNewDB(t *testing.T) {
	require := require.New(t)

	dbPath := filepath.Join(t.TempDir(), "nested", "taskmill.db")

	db, err := sqlite.NewDB(context.Background(), sqlite.DBConfig{DBPath: dbPath, Logger: log.Noop})
	require.NoError(err)
	t.Cleanup(func() { db.Close() })

	// The parent directory is created and the schema is usable.
	_, err = os.Stat(filepath.Dir(dbPath))
	require.NoError(err)

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&count)
	require.NoError(err)
	require.Equal(0, count)
}

func TestNewDBMissingPath(t *testing.T) {
	_, err := sqlite.NewDB(context.Background(), sqlite.DBConfig{})
	require.Error(t, err)
}
