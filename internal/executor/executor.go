// Package executor runs queued tasks: it assembles context, plans,
// executes steps through the reasoning endpoint, checkpoints progress and
// journals failures.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urko/taskmill/internal/contextstore"
	"github.com/urko/taskmill/internal/escalation"
	"github.com/urko/taskmill/internal/journal"
	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/planner"
	"github.com/urko/taskmill/internal/reasoner"
	"github.com/urko/taskmill/internal/storage"
)

// ErrEscalationRequired marks a task that stopped because a human must be
// consulted. An escalation is a deliberate pause, not a malfunction, but
// the queue only speaks task statuses, so it surfaces as a failed task
// wrapping this error.
var ErrEscalationRequired = errors.New("escalation required")

// maxStepAttempts bounds how often one step is retried before the
// consecutive-failures escalation fires anyway.
const maxStepAttempts = 5

// ServiceConfig is the configuration for the executor service.
type ServiceConfig struct {
	Reasoner     reasoner.Reasoner
	Retriever    *contextstore.Retriever
	ContextStore *contextstore.Store
	Planner      *planner.Planner
	Escalation   *escalation.Engine
	Journal      *journal.Service
	Checkpoints  storage.CheckpointRepository
	Logger       log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Reasoner == nil {
		return fmt.Errorf("reasoner is required")
	}
	if c.Retriever == nil {
		return fmt.Errorf("retriever is required")
	}
	if c.ContextStore == nil {
		return fmt.Errorf("context store is required")
	}
	if c.Planner == nil {
		return fmt.Errorf("planner is required")
	}
	if c.Escalation == nil {
		return fmt.Errorf("escalation engine is required")
	}
	if c.Journal == nil {
		return fmt.Errorf("journal is required")
	}
	if c.Checkpoints == nil {
		return fmt.Errorf("checkpoint repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "executor.Service"})
	return nil
}

// Service executes queue tasks. It is handed to the queue worker as its
// executor function.
type Service struct {
	reasoner     reasoner.Reasoner
	retriever    *contextstore.Retriever
	contextStore *contextstore.Store
	planner      *planner.Planner
	escalation   *escalation.Engine
	journal      *journal.Service
	checkpoints  storage.CheckpointRepository
	logger       log.Logger
}

// NewService creates a new executor service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		reasoner:     cfg.Reasoner,
		retriever:    cfg.Retriever,
		contextStore: cfg.ContextStore,
		planner:      cfg.Planner,
		escalation:   cfg.Escalation,
		journal:      cfg.Journal,
		checkpoints:  cfg.Checkpoints,
		logger:       cfg.Logger,
	}, nil
}

// Execute dispatches one task by kind. It matches the queue worker's
// executor signature.
func (s *Service) Execute(ctx context.Context, kind model.TaskKind, input string, progress func(string)) (string, error) {
	if progress == nil {
		progress = func(string) {}
	}

	switch kind {
	case model.TaskKindAutonomous:
		return s.runAutonomous(ctx, input, progress)
	case model.TaskKindResearch, model.TaskKindBuild, model.TaskKindDeploy:
		return s.runSinglePass(ctx, kind, input, progress)
	}

	return "", fmt.Errorf("unknown task kind %q: %w", kind, model.ErrNotValid)
}

var singlePassPrompts = map[model.TaskKind]string{
	model.TaskKindResearch: "Research the following topic. Summarize findings, name sources where possible, and list open questions.",
	model.TaskKindBuild:    "Implement the following. Produce complete, working output, and note anything deliberately left out.",
	model.TaskKindDeploy:   "Produce a step-by-step deployment runbook for the following. Be explicit about prerequisites and rollback.",
}

// runSinglePass handles the non-autonomous kinds with one reasoning call.
func (s *Service) runSinglePass(ctx context.Context, kind model.TaskKind, input string, progress func(string)) (string, error) {
	session := &escalation.Session{}
	if esc := s.escalation.ShouldEscalate(session, model.EscalationCheck{Task: input, Action: input}); esc != nil {
		return "", fmt.Errorf("%w: %s", ErrEscalationRequired, esc.Message)
	}

	progress("Assembling context")
	assembled, err := s.retriever.Assemble(ctx, input, string(kind))
	if err != nil {
		return "", fmt.Errorf("could not assemble context: %w", err)
	}

	avoid, err := s.journal.AvoidInstructions(ctx, input)
	if err != nil {
		return "", fmt.Errorf("could not get avoid instructions: %w", err)
	}

	progress("Running " + string(kind))
	result, err := s.reasoner.Reason(ctx, reasoner.Request{
		Prompt: buildPrompt(singlePassPrompts[kind], input, assembled, avoid),
	})
	if err != nil {
		if jErr := s.journal.LogError(ctx, string(kind), input, err.Error(), ""); jErr != nil {
			s.logger.Warningf("Could not journal error: %s", jErr)
		}
		return "", fmt.Errorf("%s pass failed: %w", kind, err)
	}

	return result, nil
}

// runAutonomous drives the full long-horizon loop: plan, execute
// sub-projects in dependency order, checkpoint, escalate when a rule fires.
func (s *Service) runAutonomous(ctx context.Context, objective string, progress func(string)) (string, error) {
	logger := s.logger.WithValues(log.Kv{"objective": truncate(objective, 60)})
	session := &escalation.Session{}

	if esc := s.escalation.ShouldEscalate(session, model.EscalationCheck{Task: objective, Action: objective}); esc != nil {
		return "", fmt.Errorf("%w: %s", ErrEscalationRequired, esc.Message)
	}

	progress("Assembling context")
	assembled, err := s.retriever.Assemble(ctx, objective, "autonomous")
	if err != nil {
		return "", fmt.Errorf("could not assemble context: %w", err)
	}

	avoid, err := s.journal.AvoidInstructions(ctx, objective)
	if err != nil {
		return "", fmt.Errorf("could not get avoid instructions: %w", err)
	}

	progress("Planning")
	plan, degraded := s.buildPlan(ctx, objective)
	if degraded != "" {
		logger.Warningf("Planning degraded: %s", degraded)
	}

	iteration := 0
	for {
		sp := s.planner.NextRunnable(plan)
		if sp == nil {
			break
		}

		if esc := s.escalation.ShouldEscalate(session, model.EscalationCheck{Task: objective, Action: sp.Name + ": " + sp.Description}); esc != nil {
			return "", fmt.Errorf("%w: %s", ErrEscalationRequired, esc.Message)
		}

		logger.Infof("Running sub-project %q (%d steps)", sp.Name, len(sp.Steps))

		for _, step := range sp.Steps {
			if sp.StepCompleted(step) {
				continue
			}

			if err := s.runStep(ctx, session, objective, assembled, avoid, sp.Name, step); err != nil {
				return "", err
			}

			s.planner.MarkStepComplete(plan, sp.Name, step)
			progress(fmt.Sprintf("[%.0f%%] %s: %s", plan.OverallProgress(), sp.Name, step))
		}

		iteration++
		if err := s.saveCheckpoint(ctx, objective, iteration, plan, sp.Name); err != nil {
			logger.Warningf("Could not save checkpoint: %s", err)
		}
	}

	if err := s.contextStore.Append(ctx, contextstore.TaskStateDomain, fmt.Sprintf("Objective done: %s", objective)); err != nil {
		logger.Warningf("Could not update task state: %s", err)
	}

	return planner.RenderProgress(plan), nil
}

// buildPlan decomposes mega objectives hierarchically and plans smaller
// ones as a single sub-project with a flat step list. Returns the plan and
// a non-empty degradation reason when planning fell back.
func (s *Service) buildPlan(ctx context.Context, objective string) (*model.Plan, string) {
	if s.planner.IsMegaTask(objective) {
		result, _ := s.planner.Decompose(ctx, objective)
		if result.Fallback {
			return result.Plan, result.Reason
		}
		return result.Plan, ""
	}

	steps, err := s.planSteps(ctx, objective)
	if err != nil {
		// Same degradation path as the planner: a trivial plan, never a
		// hard failure. No second reasoning call, the reported reason must
		// stay the step-planning error.
		result := s.planner.Fallback(objective, err.Error())
		return result.Plan, result.Reason
	}

	return &model.Plan{
		MainGoal: objective,
		SubProjects: []model.SubProject{{
			Name:        "Main Project",
			Description: objective,
			Steps:       steps,
			Status:      model.SubProjectStatusPending,
		}},
		CreatedAt: time.Now().UTC(),
	}, ""
}

// planSteps asks the reasoning step for a flat numbered step list.
func (s *Service) planSteps(ctx context.Context, objective string) ([]string, error) {
	prompt := fmt.Sprintf(`Break down this objective into concrete steps:

OBJECTIVE: %s

Output a numbered list of 5-10 specific, actionable steps.
Each step should be one clear action (e.g., "Create React component for login form").
Format: Just the numbered list, nothing else.`, objective)

	reply, err := s.reasoner.Reason(ctx, reasoner.Request{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("step planning failed: %w", err)
	}

	steps := parseSteps(reply)
	if len(steps) == 0 {
		return nil, fmt.Errorf("step planning returned no parseable steps")
	}

	return steps, nil
}

// runStep executes one step, retrying on failure until it succeeds or the
// consecutive-failures escalation fires.
func (s *Service) runStep(ctx context.Context, session *escalation.Session, objective, assembled, avoid, subProject, step string) error {
	lastErr := ""
	for attempt := 0; attempt < maxStepAttempts; attempt++ {
		if esc := s.escalation.ShouldEscalate(session, model.EscalationCheck{
			Task:      objective,
			Action:    step,
			LastError: lastErr,
		}); esc != nil {
			return fmt.Errorf("%w: %s", ErrEscalationRequired, esc.Message)
		}

		result, err := s.executeStep(ctx, objective, assembled, avoid, step)
		if err == nil {
			session.RecordSuccess()

			state := fmt.Sprintf("Completed: %s\nResult: %s", step, truncate(result, 200))
			if sErr := s.contextStore.Append(ctx, contextstore.TaskStateDomain, state); sErr != nil {
				s.logger.Warningf("Could not update task state: %s", sErr)
			}
			return nil
		}

		session.RecordFailure()
		lastErr = err.Error()

		if jErr := s.journal.LogError(ctx, "autonomous", step, err.Error(), ""); jErr != nil {
			s.logger.Warningf("Could not journal error: %s", jErr)
		}
		s.logger.Warningf("Step %q failed (attempt %d): %s", step, attempt+1, err)
	}

	return fmt.Errorf("step %q failed %d times in sub-project %q", step, maxStepAttempts, subProject)
}

func (s *Service) executeStep(ctx context.Context, objective, assembled, avoid, step string) (string, error) {
	instruction := fmt.Sprintf("Execute this step toward the objective.\n\nOBJECTIVE: %s\n\nSTEP: %s", objective, step)
	return s.reasoner.Reason(ctx, reasoner.Request{
		Prompt: buildPrompt(instruction, "", assembled, avoid),
	})
}

func (s *Service) saveCheckpoint(ctx context.Context, objective string, iteration int, plan *model.Plan, subProject string) error {
	var completed, pending []string
	for _, sp := range plan.SubProjects {
		completed = append(completed, sp.CompletedSteps...)
		for _, step := range sp.Steps {
			if !sp.StepCompleted(step) {
				pending = append(pending, step)
			}
		}
	}

	_, err := s.checkpoints.SaveCheckpoint(ctx, model.Checkpoint{
		Objective:      objective,
		Iteration:      iteration,
		CompletedSteps: completed,
		PendingSteps:   pending,
		Metadata:       map[string]string{"sub_project": subProject},
	})
	return err
}

func buildPrompt(instruction, input, assembled, avoid string) string {
	var b strings.Builder
	b.WriteString(instruction)
	if input != "" {
		b.WriteString("\n\n")
		b.WriteString(input)
	}
	if avoid != "" {
		b.WriteString("\n\n")
		b.WriteString(avoid)
	}
	if assembled != "" {
		b.WriteString("\n\n# CONTEXT\n\n")
		b.WriteString(assembled)
	}
	return b.String()
}

// parseSteps pulls the step lines out of a numbered or bulleted list.
func parseSteps(reply string) []string {
	var steps []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line[0] < '0' || line[0] > '9' {
			if !strings.HasPrefix(line, "-") {
				continue
			}
		}
		step := strings.TrimLeft(line, "0123456789.-) ")
		if step != "" {
			steps = append(steps, step)
		}
		if len(steps) == 10 {
			break
		}
	}
	return steps
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
