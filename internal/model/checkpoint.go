package model

import "time"

// Checkpoint is a durable snapshot of in-flight objective progress.
// Immutable once written, resumption is entirely the caller's job: it
// re-reads the latest checkpoint and re-injects the step lists into a
// fresh planning cycle.
type Checkpoint struct {
	ID             string
	Objective      string
	Iteration      int
	CompletedSteps []string
	PendingSteps   []string
	Metadata       map[string]string
	CreatedAt      time.Time
}
