package reasoner

import (
	"context"
	"fmt"
	"time"

	"github.com/urko/taskmill/internal/log"
)

// RetrierConfig is the configuration for the retrying reasoner decorator.
type RetrierConfig struct {
	Reasoner     Reasoner
	MaxRetries   int
	InitialDelay time.Duration
	// BackoffFactor multiplies the delay on each retry (2 = 1s, 2s, 4s).
	BackoffFactor int
	Logger        log.Logger
}

func (c *RetrierConfig) defaults() error {
	if c.Reasoner == nil {
		return fmt.Errorf("reasoner is required")
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "reasoner.Retrier"})
	return nil
}

// Retrier wraps a Reasoner with exponential backoff retries. Transient
// infrastructure failures (timeouts, refused connections) are absorbed
// here, never surfaced as task failures unless all retries exhaust.
type Retrier struct {
	reasoner      Reasoner
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor int
	logger        log.Logger
}

// NewRetrier creates a new retrying reasoner decorator.
func NewRetrier(cfg RetrierConfig) (*Retrier, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Retrier{
		reasoner:      cfg.Reasoner,
		maxRetries:    cfg.MaxRetries,
		initialDelay:  cfg.InitialDelay,
		backoffFactor: cfg.BackoffFactor,
		logger:        cfg.Logger,
	}, nil
}

// Reason calls the wrapped reasoner, retrying with exponential backoff.
func (r *Retrier) Reason(ctx context.Context, req Request) (string, error) {
	delay := r.initialDelay
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := r.reasoner.Reason(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == r.maxRetries {
			break
		}

		r.logger.Warningf("Reasoning call failed (attempt %d/%d), retrying in %s: %s", attempt+1, r.maxRetries, delay, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		delay *= time.Duration(r.backoffFactor)
	}

	return "", fmt.Errorf("all %d retries failed: %w", r.maxRetries, lastErr)
}
