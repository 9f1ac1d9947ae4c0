package model

// EscalationReason identifies which rule fired.
type EscalationReason string

const (
	EscalationReasonMissingCredential    EscalationReason = "missing_credential"
	EscalationReasonConsecutiveFailures  EscalationReason = "consecutive_failures"
	EscalationReasonAmbiguousInstruction EscalationReason = "ambiguous_instruction"
	EscalationReasonCostThreshold        EscalationReason = "cost_threshold"
	EscalationReasonDestructiveAction    EscalationReason = "destructive_action"
)

// EscalationCheck is the execution state inspected by the escalation rules.
type EscalationCheck struct {
	// Task is the natural-language description of the work in flight.
	Task string
	// Action is the concrete next action about to be taken, if any.
	Action string
	// LastError is the most recent failure message, if any.
	LastError string
	// CredentialsNeeded names environment variables the work requires.
	CredentialsNeeded []string
	// EstimatedCost is the projected cost of the next action in dollars.
	EstimatedCost float64
}

// Escalation is a transient decision record: execution must pause and a
// human must be consulted. It is never persisted.
type Escalation struct {
	Reason   EscalationReason
	Message  string
	Priority int
	Check    EscalationCheck
}
