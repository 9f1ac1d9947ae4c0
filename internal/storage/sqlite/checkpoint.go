package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
)

// DefaultMaxCheckpoints is how many checkpoints are retained before the
// oldest ones are pruned.
const DefaultMaxCheckpoints = 10

// CheckpointRepositoryConfig is the configuration for the SQLite
// checkpoint repository.
type CheckpointRepositoryConfig struct {
	DB             *sql.DB
	MaxCheckpoints int
	Logger         log.Logger
}

func (c *CheckpointRepositoryConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	if c.MaxCheckpoints <= 0 {
		c.MaxCheckpoints = DefaultMaxCheckpoints
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.CheckpointRepository"})
	return nil
}

// CheckpointRepository is a SQLite implementation of storage.CheckpointRepository.
type CheckpointRepository struct {
	db             *sql.DB
	maxCheckpoints int
	logger         log.Logger
}

// NewCheckpointRepository creates a new SQLite checkpoint repository.
func NewCheckpointRepository(cfg CheckpointRepositoryConfig) (*CheckpointRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &CheckpointRepository{
		db:             cfg.DB,
		maxCheckpoints: cfg.MaxCheckpoints,
		logger:         cfg.Logger,
	}, nil
}

const checkpointColumns = `id, objective, iteration, completed_steps, pending_steps, metadata, created_at`

// SaveCheckpoint stores a new checkpoint and prunes old ones past the
// retention limit. Checkpoints are immutable once written.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) (string, error) {
	if cp.Objective == "" {
		return "", fmt.Errorf("objective is required: %w", model.ErrNotValid)
	}

	if cp.ID == "" {
		cp.ID = ulid.Make().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	completed, err := json.Marshal(cp.CompletedSteps)
	if err != nil {
		return "", fmt.Errorf("could not marshal completed steps: %w", err)
	}
	pending, err := json.Marshal(cp.PendingSteps)
	if err != nil {
		return "", fmt.Errorf("could not marshal pending steps: %w", err)
	}
	metadata, err := json.Marshal(cp.Metadata)
	if err != nil {
		return "", fmt.Errorf("could not marshal metadata: %w", err)
	}

	query := `
		INSERT INTO checkpoints (id, objective, iteration, completed_steps, pending_steps, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query, cp.ID, cp.Objective, cp.Iteration, string(completed), string(pending), string(metadata), cp.CreatedAt.Unix())
	if err != nil {
		return "", fmt.Errorf("could not insert checkpoint: %w", err)
	}

	if err := r.prune(ctx); err != nil {
		return "", err
	}

	r.logger.Debugf("Saved checkpoint %s (objective %q, iteration %d)", cp.ID, cp.Objective, cp.Iteration)
	return cp.ID, nil
}

// LatestCheckpoint returns the newest checkpoint, scoped to an objective
// when it is not empty, or nil when there is none.
func (r *CheckpointRepository) LatestCheckpoint(ctx context.Context, objective string) (*model.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT %s FROM checkpoints`, checkpointColumns)
	args := []any{}
	if objective != "" {
		query += ` WHERE objective = ?`
		args = append(args, objective)
	}
	query += ` ORDER BY created_at DESC, iteration DESC LIMIT 1`

	cp, err := r.scanRow(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No checkpoints yet.
		}
		return nil, fmt.Errorf("could not query latest checkpoint: %w", err)
	}

	return &cp, nil
}

// ListCheckpoints returns all checkpoints newest first.
func (r *CheckpointRepository) ListCheckpoints(ctx context.Context) ([]model.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT %s FROM checkpoints ORDER BY created_at DESC, iteration DESC`, checkpointColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []model.Checkpoint
	for rows.Next() {
		cp, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return checkpoints, nil
}

// prune deletes the oldest checkpoints past the retention limit.
func (r *CheckpointRepository) prune(ctx context.Context) error {
	query := `
		DELETE FROM checkpoints
		WHERE id NOT IN (
			SELECT id FROM checkpoints ORDER BY created_at DESC, iteration DESC LIMIT ?
		)
	`

	result, err := r.db.ExecContext(ctx, query, r.maxCheckpoints)
	if err != nil {
		return fmt.Errorf("could not prune checkpoints: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		r.logger.Debugf("Pruned %d old checkpoints", rows)
	}

	return nil
}

func (r *CheckpointRepository) scanRow(s scanner) (model.Checkpoint, error) {
	var cp model.Checkpoint
	var completed, pending, metadata string
	var createdAt int64

	err := s.Scan(&cp.ID, &cp.Objective, &cp.Iteration, &completed, &pending, &metadata, &createdAt)
	if err != nil {
		return model.Checkpoint{}, err
	}

	if err := json.Unmarshal([]byte(completed), &cp.CompletedSteps); err != nil {
		return model.Checkpoint{}, fmt.Errorf("could not unmarshal completed steps: %w", err)
	}
	if err := json.Unmarshal([]byte(pending), &cp.PendingSteps); err != nil {
		return model.Checkpoint{}, fmt.Errorf("could not unmarshal pending steps: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &cp.Metadata); err != nil {
		return model.Checkpoint{}, fmt.Errorf("could not unmarshal metadata: %w", err)
	}

	cp.CreatedAt = timeFromUnix(createdAt)
	return cp, nil
}
