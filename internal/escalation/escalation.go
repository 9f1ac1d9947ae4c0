// Package escalation decides when execution must pause and ask a human.
// An escalation is a deliberate stop, not a failure.
package escalation

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
)

const (
	// DefaultMaxConsecutiveFailures is how many failures in a row trigger
	// an escalation.
	DefaultMaxConsecutiveFailures = 3
	// DefaultMaxCostDollars is the accumulated-cost escalation threshold.
	DefaultMaxCostDollars = 10.0
)

var ambiguousPhrases = []string{
	"not sure", "maybe", "something like", "etc", "whatever",
	"you decide", "your choice", "as needed", "if possible",
}

var destructiveKeywords = []string{
	"delete", "remove", "drop", "truncate", "destroy",
	"wipe", "clear all", "reset", "overwrite", "replace all",
}

// Session holds the per-run mutable counters the rules consult. Each
// execution session gets its own, counters are never shared across
// concurrent runs.
type Session struct {
	FailureCount int
	TotalCost    float64
}

// RecordFailure bumps the consecutive-failure counter.
func (s *Session) RecordFailure() {
	s.FailureCount++
}

// RecordSuccess resets the consecutive-failure counter.
func (s *Session) RecordSuccess() {
	s.FailureCount = 0
}

// RecordCost adds to the accumulated cost.
func (s *Session) RecordCost(cost float64) {
	s.TotalCost += cost
}

type rule struct {
	reason    model.EscalationReason
	priority  int
	condition func(e *Engine, s *Session, check model.EscalationCheck) (string, bool)
}

// EngineConfig is the configuration for the escalation engine.
type EngineConfig struct {
	MaxConsecutiveFailures int
	MaxCostDollars         float64
	// LookupEnv resolves credential environment variables, settable for tests.
	LookupEnv func(key string) (string, bool)
	Logger    log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if c.MaxCostDollars <= 0 {
		c.MaxCostDollars = DefaultMaxCostDollars
	}
	if c.LookupEnv == nil {
		c.LookupEnv = os.LookupEnv
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "escalation.Engine"})
	return nil
}

// Engine evaluates a fixed, priority-ordered rule set against an
// execution state. The first matching rule wins. The engine itself is
// stateless, the mutable counters live in the caller's Session.
type Engine struct {
	maxFailures int
	maxCost     float64
	lookupEnv   func(key string) (string, bool)
	rules       []rule
	logger      log.Logger
}

// NewEngine creates a new escalation engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		maxFailures: cfg.MaxConsecutiveFailures,
		maxCost:     cfg.MaxCostDollars,
		lookupEnv:   cfg.LookupEnv,
		logger:      cfg.Logger,
	}
	e.rules = []rule{
		{model.EscalationReasonMissingCredential, 1, (*Engine).checkMissingCredential},
		{model.EscalationReasonConsecutiveFailures, 1, (*Engine).checkConsecutiveFailures},
		{model.EscalationReasonDestructiveAction, 1, (*Engine).checkDestructiveAction},
		{model.EscalationReasonAmbiguousInstruction, 2, (*Engine).checkAmbiguousInstruction},
		{model.EscalationReasonCostThreshold, 2, (*Engine).checkCostThreshold},
	}
	sort.SliceStable(e.rules, func(i, j int) bool { return e.rules[i].priority < e.rules[j].priority })

	return e, nil
}

// ShouldEscalate evaluates the rules in priority order and returns the
// first match, or nil when no rule fires.
func (e *Engine) ShouldEscalate(session *Session, check model.EscalationCheck) *model.Escalation {
	for _, r := range e.rules {
		msg, fired := r.condition(e, session, check)
		if !fired {
			continue
		}

		e.logger.Warningf("Escalation fired (%s): %s", r.reason, msg)
		return &model.Escalation{
			Reason:   r.reason,
			Message:  msg,
			Priority: r.priority,
			Check:    check,
		}
	}

	return nil
}

func (e *Engine) checkMissingCredential(_ *Session, check model.EscalationCheck) (string, bool) {
	for _, key := range check.CredentialsNeeded {
		if v, ok := e.lookupEnv(key); !ok || v == "" {
			return fmt.Sprintf("Missing credential: %s. Please set the environment variable.", key), true
		}
	}
	return "", false
}

func (e *Engine) checkConsecutiveFailures(s *Session, check model.EscalationCheck) (string, bool) {
	if s.FailureCount < e.maxFailures {
		return "", false
	}

	lastErr := check.LastError
	if lastErr == "" {
		lastErr = "unknown error"
	}
	return fmt.Sprintf("Failed %d times in a row. Last error: %s", s.FailureCount, lastErr), true
}

func (e *Engine) checkAmbiguousInstruction(_ *Session, check model.EscalationCheck) (string, bool) {
	taskLower := strings.ToLower(check.Task)
	for _, phrase := range ambiguousPhrases {
		if strings.Contains(taskLower, phrase) {
			return fmt.Sprintf("Requirements unclear: %q. Please clarify.", phrase), true
		}
	}
	return "", false
}

func (e *Engine) checkCostThreshold(s *Session, check model.EscalationCheck) (string, bool) {
	total := s.TotalCost + check.EstimatedCost
	if total <= e.maxCost {
		return "", false
	}
	return fmt.Sprintf("Estimated cost $%.2f exceeds threshold $%.2f. Proceed?", total, e.maxCost), true
}

func (e *Engine) checkDestructiveAction(_ *Session, check model.EscalationCheck) (string, bool) {
	actionLower := strings.ToLower(check.Action)
	for _, kw := range destructiveKeywords {
		if strings.Contains(actionLower, kw) {
			return fmt.Sprintf("About to perform destructive action: %s. Confirm?", check.Action), true
		}
	}
	return "", false
}
