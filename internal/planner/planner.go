// Package planner decomposes large objectives into dependency-gated
// sub-projects with their own step lists and progress.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/reasoner"
)

// megaTaskKeywords mark an objective as big enough to need decomposition.
var megaTaskKeywords = []string{
	"os", "system", "platform", "ecosystem", "full", "complete",
	"entire", "everything", "crm", "dashboard", "application",
	"business", "enterprise", "management", "saas", "marketplace",
}

// conjunctionMarkers hint at multiple components in one objective.
var conjunctionMarkers = []string{"and", "with", "including", "plus", "also", ","}

// fallbackSteps is the generic step list used when decomposition degrades.
var fallbackSteps = []string{
	"Analyze requirements",
	"Design architecture",
	"Implement core features",
	"Add supporting features",
	"Test and refine",
}

// Result is the outcome of a decomposition. Fallback plans are still valid
// plans, the tag lets callers tell a good decomposition from a degraded one.
type Result struct {
	Plan     *model.Plan
	Fallback bool
	// Reason says why the planner degraded, empty on a parsed plan.
	Reason string
}

// PlannerConfig is the configuration for the hierarchical planner.
type PlannerConfig struct {
	Reasoner reasoner.Reasoner
	Logger   log.Logger
}

func (c *PlannerConfig) defaults() error {
	if c.Reasoner == nil {
		return fmt.Errorf("reasoner is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "planner.Planner"})
	return nil
}

// Planner breaks large objectives into manageable sub-projects. It never
// fails outright: unusable reasoner output degrades to a trivial
// single-sub-project plan.
type Planner struct {
	reasoner reasoner.Reasoner
	logger   log.Logger
}

// NewPlanner creates a new hierarchical planner.
func NewPlanner(cfg PlannerConfig) (*Planner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Planner{
		reasoner: cfg.Reasoner,
		logger:   cfg.Logger,
	}, nil
}

// IsMegaTask reports whether an objective is complex enough for
// hierarchical planning: it names a scale word, or mentions two or more
// component conjunctions.
func (p *Planner) IsMegaTask(objective string) bool {
	objLower := strings.ToLower(objective)

	for _, kw := range megaTaskKeywords {
		if strings.Contains(objLower, kw) {
			return true
		}
	}

	markers := 0
	for _, m := range conjunctionMarkers {
		if strings.Contains(objLower, m) {
			markers++
		}
	}

	return markers >= 2
}

type decomposition struct {
	SubProjects []struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Steps       []string `json:"steps"`
		DependsOn   []string `json:"depends_on"`
	} `json:"sub_projects"`
}

// Decompose asks the reasoning step for a structured breakdown of the
// objective. Unparseable or invalid output (no sub-projects, unknown
// dependencies, dependency cycles) degrades to the fallback plan instead
// of failing.
func (p *Planner) Decompose(ctx context.Context, objective string) (Result, error) {
	prompt := fmt.Sprintf(`Break down this objective into focused sub-projects.

OBJECTIVE: %s

CRITICAL RULES:
1. ONLY include tasks that directly serve the objective
2. DO NOT add generic features (auth, database, API) unless explicitly mentioned
3. FOCUS on what the user actually asked for
4. Keep steps specific to the actual goal

Return a JSON object:
{
  "sub_projects": [
    {
      "name": "Short descriptive name",
      "description": "What this accomplishes toward the objective",
      "steps": ["Specific step 1", "Specific step 2"],
      "depends_on": []
    }
  ]
}

Return ONLY valid JSON, no explanation.`, objective)

	reply, err := p.reasoner.Reason(ctx, reasoner.Request{Prompt: prompt})
	if err != nil {
		return p.Fallback(objective, fmt.Sprintf("reasoning step failed: %s", err)), nil
	}

	plan, err := parsePlan(objective, reply)
	if err != nil {
		return p.Fallback(objective, err.Error()), nil
	}

	if err := validatePlan(plan); err != nil {
		return p.Fallback(objective, err.Error()), nil
	}

	return Result{Plan: plan}, nil
}

// Fallback builds the trivial single-sub-project plan with the generic
// step list, tagged with the degradation reason. It involves no reasoning
// call, so callers can use it when their own planning attempt failed.
func (p *Planner) Fallback(objective, reason string) Result {
	p.logger.Warningf("Degrading to fallback plan: %s", reason)

	return Result{
		Plan: &model.Plan{
			MainGoal: objective,
			SubProjects: []model.SubProject{{
				Name:        "Main Project",
				Description: objective,
				Steps:       append([]string{}, fallbackSteps...),
				Status:      model.SubProjectStatusPending,
			}},
			CreatedAt: time.Now().UTC(),
		},
		Fallback: true,
		Reason:   reason,
	}
}

// parsePlan extracts the JSON object from a reply that may have prose
// around it.
func parsePlan(objective, reply string) (*model.Plan, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("reply has no JSON object")
	}

	var dec decomposition
	if err := json.Unmarshal([]byte(reply[start:end+1]), &dec); err != nil {
		return nil, fmt.Errorf("could not parse decomposition: %s", err)
	}
	if len(dec.SubProjects) == 0 {
		return nil, fmt.Errorf("decomposition has no sub-projects")
	}

	plan := &model.Plan{
		MainGoal:  objective,
		CreatedAt: time.Now().UTC(),
	}
	for _, sp := range dec.SubProjects {
		if sp.Name == "" {
			return nil, fmt.Errorf("decomposition has a sub-project without a name")
		}
		plan.SubProjects = append(plan.SubProjects, model.SubProject{
			Name:        sp.Name,
			Description: sp.Description,
			Steps:       sp.Steps,
			DependsOn:   sp.DependsOn,
			Status:      model.SubProjectStatusPending,
		})
	}

	return plan, nil
}

// validatePlan rejects empty step lists, unknown dependency names and
// dependency cycles. A zero-step sub-project can never complete and a
// cyclic plan would never have a runnable sub-project, better to degrade
// loudly at decompose time than deadlock silently later.
func validatePlan(plan *model.Plan) error {
	for _, sp := range plan.SubProjects {
		if len(sp.Steps) == 0 {
			return fmt.Errorf("sub-project %q has no steps", sp.Name)
		}
		for _, dep := range sp.DependsOn {
			if plan.SubProject(dep) == nil {
				return fmt.Errorf("sub-project %q depends on unknown %q", sp.Name, dep)
			}
		}
	}

	// DFS cycle check over the dependency edges.
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return false
		case done:
			return true
		}
		state[name] = visiting
		for _, dep := range plan.SubProject(name).DependsOn {
			if !visit(dep) {
				return false
			}
		}
		state[name] = done
		return true
	}

	for _, sp := range plan.SubProjects {
		if !visit(sp.Name) {
			return fmt.Errorf("dependency cycle through sub-project %q", sp.Name)
		}
	}

	return nil
}

// NextRunnable returns the first pending sub-project whose dependencies
// are all completed, or nil when none can run.
func (p *Planner) NextRunnable(plan *model.Plan) *model.SubProject {
	for i := range plan.SubProjects {
		sp := &plan.SubProjects[i]
		if sp.Status != model.SubProjectStatusPending {
			continue
		}

		depsMet := true
		for _, dep := range sp.DependsOn {
			depSP := plan.SubProject(dep)
			if depSP == nil || depSP.Status != model.SubProjectStatusCompleted {
				depsMet = false
				break
			}
		}
		if depsMet {
			return sp
		}
	}

	return nil
}

// MarkStepComplete marks one step done in a sub-project. Idempotent:
// completing the same step twice counts once. Status is promoted to
// in_progress on first progress and to completed when all steps are done.
func (p *Planner) MarkStepComplete(plan *model.Plan, subProjectName, step string) {
	sp := plan.SubProject(subProjectName)
	if sp == nil {
		return
	}

	if !sp.StepCompleted(step) {
		sp.CompletedSteps = append(sp.CompletedSteps, step)
	}

	if len(sp.CompletedSteps) >= len(sp.Steps) {
		sp.Status = model.SubProjectStatusCompleted
	} else if sp.Status == model.SubProjectStatusPending {
		sp.Status = model.SubProjectStatusInProgress
	}
}

var statusIcons = map[model.SubProjectStatus]string{
	model.SubProjectStatusPending:    "[ ]",
	model.SubProjectStatusInProgress: "[>]",
	model.SubProjectStatusCompleted:  "[x]",
	model.SubProjectStatusBlocked:    "[#]",
	model.SubProjectStatusFailed:     "[!]",
}

// RenderProgress formats a plan as a short textual progress tree.
func RenderProgress(plan *model.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n", plan.MainGoal)
	fmt.Fprintf(&b, "Overall: %.0f%%\n\n", plan.OverallProgress())

	for _, sp := range plan.SubProjects {
		icon, ok := statusIcons[sp.Status]
		if !ok {
			icon = "[ ]"
		}
		fmt.Fprintf(&b, "%s %s (%.0f%%)\n", icon, sp.Name, sp.ProgressPercent())

		if sp.Status == model.SubProjectStatusInProgress {
			for _, step := range sp.Steps {
				done := " "
				if sp.StepCompleted(step) {
					done = "x"
				}
				if len(step) > 50 {
					step = step[:50]
				}
				fmt.Fprintf(&b, "   [%s] %s\n", done, step)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
