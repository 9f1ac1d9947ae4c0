package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/urko/taskmill/internal/model"
)

func TestSubProjectStepCompleted(t *testing.T) {
	assert := assert.New(t)

	sp := model.SubProject{
		Steps:          []string{"Model the data", "Render the lists"},
		CompletedSteps: []string{"Model the data"},
	}

	assert.True(sp.StepCompleted("Model the data"))
	assert.False(sp.StepCompleted("Render the lists"))
	assert.False(sp.StepCompleted("Ship it"))
}

func TestSubProjectProgressPercent(t *testing.T) {
	tests := map[string]struct {
		sp  model.SubProject
		exp float64
	}{
		"No steps should be 0%": {
			sp:  model.SubProject{},
			exp: 0,
		},
		"No completed steps should be 0%": {
			sp:  model.SubProject{Steps: []string{"a", "b"}},
			exp: 0,
		},
		"Half completed should be 50%": {
			sp: model.SubProject{
				Steps:          []string{"a", "b"},
				CompletedSteps: []string{"a"},
			},
			exp: 50,
		},
		"All completed should be 100%": {
			sp: model.SubProject{
				Steps:          []string{"a", "b"},
				CompletedSteps: []string{"a", "b"},
			},
			exp: 100,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, test.sp.ProgressPercent())
		})
	}
}

func TestPlanSubProjectLookup(t *testing.T) {
	assert := assert.New(t)

	plan := model.Plan{
		MainGoal: "build a todo app",
		SubProjects: []model.SubProject{
			{Name: "Data layer"},
			{Name: "API"},
		},
	}

	sp := plan.SubProject("API")
	assert.NotNil(sp)
	assert.Equal("API", sp.Name)

	// The lookup returns a pointer into the plan, not a copy.
	sp.Status = model.SubProjectStatusInProgress
	assert.Equal(model.SubProjectStatusInProgress, plan.SubProjects[1].Status)

	assert.Nil(plan.SubProject("Frontend"))
}

func TestPlanOverallProgress(t *testing.T) {
	tests := map[string]struct {
		plan model.Plan
		exp  float64
	}{
		"An empty plan should be 0%": {
			plan: model.Plan{},
			exp:  0,
		},
		"Progress should be weighted by step count": {
			plan: model.Plan{SubProjects: []model.SubProject{
				{Steps: []string{"a", "b", "c"}, CompletedSteps: []string{"a", "b", "c"}},
				{Steps: []string{"d"}},
			}},
			exp: 75,
		},
		"A finished plan should be 100%": {
			plan: model.Plan{SubProjects: []model.SubProject{
				{Steps: []string{"a"}, CompletedSteps: []string{"a"}},
				{Steps: []string{"b"}, CompletedSteps: []string{"b"}},
			}},
			exp: 100,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, test.plan.OverallProgress())
		})
	}
}
