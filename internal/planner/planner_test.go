package planner_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/planner"
	"github.com/urko/taskmill/internal/reasoner/reasonermock"
)

func getTestPlanner(t *testing.T, reply string, replyErr error) *planner.Planner {
	t.Helper()

	mr := &reasonermock.MockReasoner{}
	mr.On("Reason", mock.Anything, mock.Anything).Return(reply, replyErr)

	p, err := planner.NewPlanner(planner.PlannerConfig{Reasoner: mr})
	require.NoError(t, err)

	return p
}

func TestIsMegaTask(t *testing.T) {
	tests := map[string]struct {
		objective string
		expMega   bool
	}{
		"A scale keyword should mark a mega task": {
			objective: "Build a CRM for the sales team",
			expMega:   true,
		},
		"Another scale keyword should mark a mega task": {
			objective: "Create a complete dashboard",
			expMega:   true,
		},
		"Two conjunction markers should mark a mega task": {
			objective: "Build a blog with comments and an RSS feed",
			expMega:   true,
		},
		"A comma plus a conjunction should mark a mega task": {
			objective: "Add login, signup and password reset",
			expMega:   true,
		},
		"A single focused task should not be a mega task": {
			objective: "Fix the broken test",
			expMega:   false,
		},
		"One conjunction alone should not be a mega task": {
			objective: "Refactor the parser with better errors",
			expMega:   false,
		},
		"Keyword matching should be case insensitive": {
			objective: "BUILD A SAAS PRODUCT",
			expMega:   true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p := getTestPlanner(t, "", nil)

			assert.Equal(t, test.expMega, p.IsMegaTask(test.objective))
		})
	}
}

func TestDecompose(t *testing.T) {
	validReply := `{
		"sub_projects": [
			{"name": "Data layer", "description": "Schema and storage", "steps": ["Design schema", "Write migrations"], "depends_on": []},
			{"name": "API", "description": "HTTP endpoints", "steps": ["Define routes", "Implement handlers"], "depends_on": ["Data layer"]}
		]
	}`

	tests := map[string]struct {
		reply       string
		replyErr    error
		expFallback bool
		validate    func(t *testing.T, res planner.Result)
	}{
		"A valid decomposition should be parsed": {
			reply: validReply,
			validate: func(t *testing.T, res planner.Result) {
				require.Len(t, res.Plan.SubProjects, 2)
				assert.Equal(t, "Data layer", res.Plan.SubProjects[0].Name)
				assert.Equal(t, []string{"Data layer"}, res.Plan.SubProjects[1].DependsOn)
				assert.Equal(t, model.SubProjectStatusPending, res.Plan.SubProjects[0].Status)
			},
		},
		"Prose around the JSON should be tolerated": {
			reply: "Here is the plan:\n" + validReply + "\nGood luck!",
			validate: func(t *testing.T, res planner.Result) {
				require.Len(t, res.Plan.SubProjects, 2)
			},
		},
		"A reasoner error should degrade to fallback": {
			replyErr:    fmt.Errorf("connection refused"),
			expFallback: true,
		},
		"A reply without JSON should degrade to fallback": {
			reply:       "I refuse to answer in JSON.",
			expFallback: true,
		},
		"Malformed JSON should degrade to fallback": {
			reply:       `{"sub_projects": [{"name": }]}`,
			expFallback: true,
		},
		"An empty sub-project list should degrade to fallback": {
			reply:       `{"sub_projects": []}`,
			expFallback: true,
		},
		"A sub-project without steps should degrade to fallback": {
			reply:       `{"sub_projects": [{"name": "Empty one", "steps": [], "depends_on": []}]}`,
			expFallback: true,
		},
		"A nameless sub-project should degrade to fallback": {
			reply:       `{"sub_projects": [{"name": "", "steps": ["a"]}]}`,
			expFallback: true,
		},
		"An unknown dependency should degrade to fallback": {
			reply:       `{"sub_projects": [{"name": "API", "steps": ["a"], "depends_on": ["Ghost"]}]}`,
			expFallback: true,
		},
		"A dependency cycle should degrade to fallback": {
			reply: `{"sub_projects": [
				{"name": "A", "steps": ["s"], "depends_on": ["B"]},
				{"name": "B", "steps": ["s"], "depends_on": ["A"]}
			]}`,
			expFallback: true,
		},
		"A self dependency should degrade to fallback": {
			reply:       `{"sub_projects": [{"name": "A", "steps": ["s"], "depends_on": ["A"]}]}`,
			expFallback: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p := getTestPlanner(t, test.reply, test.replyErr)

			res, err := p.Decompose(context.Background(), "build something")

			require.NoError(t, err)
			require.NotNil(t, res.Plan)
			assert.Equal(t, "build something", res.Plan.MainGoal)

			if test.expFallback {
				assert.True(t, res.Fallback)
				assert.NotEmpty(t, res.Reason)
				require.Len(t, res.Plan.SubProjects, 1)
				assert.Equal(t, "Main Project", res.Plan.SubProjects[0].Name)
				assert.Len(t, res.Plan.SubProjects[0].Steps, 5)
			} else {
				assert.False(t, res.Fallback)
				assert.Empty(t, res.Reason)
				if test.validate != nil {
					test.validate(t, res)
				}
			}
		})
	}
}

func testPlan() *model.Plan {
	return &model.Plan{
		MainGoal: "ship the feature",
		SubProjects: []model.SubProject{
			{Name: "Data layer", Steps: []string{"schema", "migrations"}, Status: model.SubProjectStatusPending},
			{Name: "API", Steps: []string{"routes", "handlers"}, DependsOn: []string{"Data layer"}, Status: model.SubProjectStatusPending},
			{Name: "Frontend", Steps: []string{"views"}, DependsOn: []string{"API"}, Status: model.SubProjectStatusPending},
		},
	}
}

func TestNextRunnable(t *testing.T) {
	tests := map[string]struct {
		mutate  func(plan *model.Plan)
		expName string
		expNil  bool
	}{
		"A fresh plan should start with the dependency-free sub-project": {
			mutate:  func(plan *model.Plan) {},
			expName: "Data layer",
		},
		"A completed dependency should unlock the next sub-project": {
			mutate: func(plan *model.Plan) {
				plan.SubProjects[0].Status = model.SubProjectStatusCompleted
			},
			expName: "API",
		},
		"An in-progress dependency should not unlock dependents": {
			mutate: func(plan *model.Plan) {
				plan.SubProjects[0].Status = model.SubProjectStatusInProgress
			},
			expNil: true,
		},
		"A fully completed plan should have nothing runnable": {
			mutate: func(plan *model.Plan) {
				for i := range plan.SubProjects {
					plan.SubProjects[i].Status = model.SubProjectStatusCompleted
				}
			},
			expNil: true,
		},
		"A failed dependency should keep dependents gated": {
			mutate: func(plan *model.Plan) {
				plan.SubProjects[0].Status = model.SubProjectStatusFailed
			},
			expNil: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p := getTestPlanner(t, "", nil)
			plan := testPlan()
			test.mutate(plan)

			sp := p.NextRunnable(plan)

			if test.expNil {
				assert.Nil(t, sp)
			} else {
				require.NotNil(t, sp)
				assert.Equal(t, test.expName, sp.Name)
			}
		})
	}
}

func TestMarkStepComplete(t *testing.T) {
	assert := assert.New(t)

	p := getTestPlanner(t, "", nil)
	plan := testPlan()

	// First step promotes to in progress.
	p.MarkStepComplete(plan, "Data layer", "schema")
	sp := plan.SubProject("Data layer")
	assert.Equal(model.SubProjectStatusInProgress, sp.Status)
	assert.InDelta(50.0, sp.ProgressPercent(), 0.01)

	// Completing the same step twice counts once.
	p.MarkStepComplete(plan, "Data layer", "schema")
	assert.Len(sp.CompletedSteps, 1)
	assert.InDelta(50.0, sp.ProgressPercent(), 0.01)

	// Last step completes the sub-project.
	p.MarkStepComplete(plan, "Data layer", "migrations")
	assert.Equal(model.SubProjectStatusCompleted, sp.Status)
	assert.InDelta(100.0, sp.ProgressPercent(), 0.01)

	// Unknown sub-project is a no-op.
	p.MarkStepComplete(plan, "Ghost", "step")
}

func TestRenderProgress(t *testing.T) {
	assert := assert.New(t)

	plan := testPlan()
	plan.SubProjects[0].Status = model.SubProjectStatusCompleted
	plan.SubProjects[0].CompletedSteps = []string{"schema", "migrations"}
	plan.SubProjects[1].Status = model.SubProjectStatusInProgress
	plan.SubProjects[1].CompletedSteps = []string{"routes"}

	out := planner.RenderProgress(plan)

	assert.Contains(out, "## ship the feature")
	assert.Contains(out, "[x] Data layer (100%)")
	assert.Contains(out, "[>] API (50%)")
	assert.Contains(out, "[ ] Frontend (0%)")

	// Step checklist only renders for the in-progress sub-project.
	assert.Contains(out, "   [x] routes")
	assert.Contains(out, "   [ ] handlers")
	assert.NotContains(out, "   [x] schema")
}
