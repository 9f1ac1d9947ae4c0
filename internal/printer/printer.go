package printer

import (
	"github.com/urko/taskmill/internal/contextstore"
	"github.com/urko/taskmill/internal/journal"
	"github.com/urko/taskmill/internal/model"
)

// Printer knows how to print orchestration information in different formats.
type Printer interface {
	PrintTaskList(tasks []model.Task) error
	PrintTask(task model.Task) error
	PrintQueueStatus(status model.QueueStatus) error
	PrintCheckpointList(checkpoints []model.Checkpoint) error
	PrintCheckpoint(cp model.Checkpoint) error
	PrintJournalList(entries []model.JournalEntry) error
	PrintJournalStats(stats journal.Stats) error
	PrintDomainList(domains []contextstore.DomainInfo) error
	PrintMessage(msg string) error
}
