package model

import "time"

// SubProjectStatus represents the state of one decomposed sub-project.
type SubProjectStatus string

const (
	SubProjectStatusPending    SubProjectStatus = "pending"
	SubProjectStatusInProgress SubProjectStatus = "in_progress"
	SubProjectStatusCompleted  SubProjectStatus = "completed"
	SubProjectStatusBlocked    SubProjectStatus = "blocked"
	SubProjectStatusFailed     SubProjectStatus = "failed"
)

// SubProject is one dependency-gated slice of a decomposed objective.
//
// Progress is always derived from CompletedSteps, it is never stored
// independently.
type SubProject struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Steps          []string `json:"steps"`
	DependsOn      []string `json:"depends_on"`
	Status         SubProjectStatus `json:"status"`
	CompletedSteps []string `json:"completed_steps"`
}

// StepCompleted reports whether a step has already been marked done.
func (sp *SubProject) StepCompleted(step string) bool {
	for _, s := range sp.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// ProgressPercent is the derived completion ratio of the sub-project.
func (sp *SubProject) ProgressPercent() float64 {
	if len(sp.Steps) == 0 {
		return 0
	}
	return float64(len(sp.CompletedSteps)) / float64(len(sp.Steps)) * 100
}

// Plan is the root decomposition of one objective into sub-projects.
type Plan struct {
	MainGoal    string       `json:"main_goal"`
	SubProjects []SubProject `json:"sub_projects"`
	CreatedAt   time.Time    `json:"created_at"`
}

// SubProject returns the named sub-project, or nil if it is not in the plan.
func (p *Plan) SubProject(name string) *SubProject {
	for i := range p.SubProjects {
		if p.SubProjects[i].Name == name {
			return &p.SubProjects[i]
		}
	}
	return nil
}

// OverallProgress is the derived completion ratio across all sub-projects.
func (p *Plan) OverallProgress() float64 {
	totalSteps := 0
	completedSteps := 0
	for _, sp := range p.SubProjects {
		totalSteps += len(sp.Steps)
		completedSteps += len(sp.CompletedSteps)
	}
	if totalSteps == 0 {
		return 0
	}
	return float64(completedSteps) / float64(totalSteps) * 100
}
