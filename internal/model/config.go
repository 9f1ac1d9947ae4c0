package model

// EngineConfig is the operator-tunable orchestration configuration,
// loaded from the data dir's YAML file. Zero values mean "use the
// component default".
type EngineConfig struct {
	// ReasonerURL is the OpenAI-compatible endpoint root.
	ReasonerURL string
	// ReasonerModel is the model requested from the endpoint.
	ReasonerModel string
	// DomainBudgetTokens caps each context domain.
	DomainBudgetTokens int
	// MaxContextTokens bounds the assembled context string.
	MaxContextTokens int
	// MaxConsecutiveFailures is the repeated-failure escalation threshold.
	MaxConsecutiveFailures int
	// MaxCostDollars is the accumulated-cost escalation threshold.
	MaxCostDollars float64
	// PollIntervalSeconds is the worker's empty-queue sleep.
	PollIntervalSeconds int
}
