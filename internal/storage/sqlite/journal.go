package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
)

// DefaultMaxJournalEntries is the size of the journal ring: once exceeded,
// the oldest entries are dropped.
const DefaultMaxJournalEntries = 100

// JournalRepositoryConfig is the configuration for the SQLite journal repository.
type JournalRepositoryConfig struct {
	DB         *sql.DB
	MaxEntries int
	Logger     log.Logger
}

func (c *JournalRepositoryConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxJournalEntries
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.JournalRepository"})
	return nil
}

// JournalRepository is a SQLite implementation of storage.JournalRepository.
type JournalRepository struct {
	db         *sql.DB
	maxEntries int
	logger     log.Logger
}

// NewJournalRepository creates a new SQLite journal repository.
func NewJournalRepository(cfg JournalRepositoryConfig) (*JournalRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &JournalRepository{
		db:         cfg.DB,
		maxEntries: cfg.MaxEntries,
		logger:     cfg.Logger,
	}, nil
}

const journalColumns = `id, task_type, description, error, keywords, solution, occurrences, created_at, last_seen_at`

// CreateEntry stores a new journal entry, dropping the oldest entries past
// the ring limit.
func (r *JournalRepository) CreateEntry(ctx context.Context, e model.JournalEntry) error {
	if e.ID == "" {
		return fmt.Errorf("entry id is required: %w", model.ErrNotValid)
	}

	keywords, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("could not marshal keywords: %w", err)
	}

	query := `
		INSERT INTO journal_entries (id, task_type, description, error, keywords, solution, occurrences, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.TaskType, e.Description, e.Error, string(keywords),
		e.Solution, e.Occurrences, e.CreatedAt.Unix(), e.LastSeenAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("could not insert journal entry: %w", err)
	}

	if err := r.prune(ctx); err != nil {
		return err
	}

	r.logger.Debugf("Created journal entry %s", e.ID)
	return nil
}

// UpdateEntry replaces an existing entry's mutable fields.
func (r *JournalRepository) UpdateEntry(ctx context.Context, e model.JournalEntry) error {
	query := `
		UPDATE journal_entries
		SET solution = ?, occurrences = ?, last_seen_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, e.Solution, e.Occurrences, e.LastSeenAt.Unix(), e.ID)
	if err != nil {
		return fmt.Errorf("could not update journal entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("journal entry %s: %w", e.ID, model.ErrNotFound)
	}

	return nil
}

// ListEntries returns all entries newest first.
func (r *JournalRepository) ListEntries(ctx context.Context) ([]model.JournalEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM journal_entries ORDER BY created_at DESC, id DESC`, journalColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		var keywords string
		var createdAt, lastSeenAt int64

		err := rows.Scan(&e.ID, &e.TaskType, &e.Description, &e.Error, &keywords, &e.Solution, &e.Occurrences, &createdAt, &lastSeenAt)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(keywords), &e.Keywords); err != nil {
			return nil, fmt.Errorf("could not unmarshal keywords: %w", err)
		}

		e.CreatedAt = timeFromUnix(createdAt)
		e.LastSeenAt = timeFromUnix(lastSeenAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

func (r *JournalRepository) prune(ctx context.Context) error {
	query := `
		DELETE FROM journal_entries
		WHERE id NOT IN (
			SELECT id FROM journal_entries ORDER BY created_at DESC, id DESC LIMIT ?
		)
	`

	result, err := r.db.ExecContext(ctx, query, r.maxEntries)
	if err != nil {
		return fmt.Errorf("could not prune journal entries: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		r.logger.Debugf("Dropped %d old journal entries", rows)
	}

	return nil
}
