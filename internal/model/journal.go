package model

import "time"

// JournalEntry is one recorded failure in the error journal. Near-identical
// recurrences increment Occurrences on the existing entry instead of
// creating duplicates.
type JournalEntry struct {
	ID          string
	TaskType    string
	Description string
	Error       string
	Keywords    []string
	Solution    string
	Occurrences int
	CreatedAt   time.Time
	LastSeenAt  time.Time
}
