package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/urko/taskmill/internal/contextstore"
	"github.com/urko/taskmill/internal/journal"
	"github.com/urko/taskmill/internal/model"
)

// JSONPrinter prints orchestration information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// taskItem represents a task in the list output (subset of fields).
type taskItem struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Progress  string    `json:"progress,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// taskOutput represents the full task output.
type taskOutput struct {
	ID          int64      `json:"id"`
	Kind        string     `json:"kind"`
	Input       string     `json:"input"`
	Status      string     `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	Progress    string     `json:"progress,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// queueStatusOutput represents the queue summary output.
type queueStatusOutput struct {
	Pending       int        `json:"pending"`
	Busy          bool       `json:"busy"`
	CurrentTaskID *int64     `json:"current_task_id"`
	RecentTasks   []taskItem `json:"recent_tasks"`
}

// checkpointOutput represents a checkpoint output.
type checkpointOutput struct {
	ID             string            `json:"id"`
	Objective      string            `json:"objective"`
	Iteration      int               `json:"iteration"`
	CompletedSteps []string          `json:"completed_steps"`
	PendingSteps   []string          `json:"pending_steps"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// journalItem represents a journal entry output.
type journalItem struct {
	ID          string    `json:"id"`
	TaskType    string    `json:"task_type"`
	Description string    `json:"description"`
	Error       string    `json:"error"`
	Solution    string    `json:"solution,omitempty"`
	Occurrences int       `json:"occurrences"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// journalStatsOutput represents the journal summary output.
type journalStatsOutput struct {
	Total      int           `json:"total"`
	Solved     int           `json:"solved"`
	Unsolved   int           `json:"unsolved"`
	MostCommon []journalItem `json:"most_common"`
}

// domainItem represents a context domain output.
type domainItem struct {
	Name       string `json:"name"`
	SizeTokens int    `json:"size_tokens"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintTaskList prints tasks in JSON format with a subset of fields.
func (j *JSONPrinter) PrintTaskList(tasks []model.Task) error {
	items := make([]taskItem, len(tasks))
	for i, t := range tasks {
		items[i] = newTaskItem(t)
	}

	return j.encode(items)
}

// PrintTask prints a full task in JSON format.
func (j *JSONPrinter) PrintTask(task model.Task) error {
	output := taskOutput{
		ID:        task.ID,
		Kind:      string(task.Kind),
		Input:     task.Input,
		Status:    string(task.Status),
		Result:    task.Result,
		Error:     task.Error,
		Progress:  task.Progress,
		CreatedAt: task.CreatedAt.UTC(),
	}

	if task.StartedAt != nil {
		utcTime := task.StartedAt.UTC()
		output.StartedAt = &utcTime
	}
	if task.CompletedAt != nil {
		utcTime := task.CompletedAt.UTC()
		output.CompletedAt = &utcTime
	}

	return j.encode(output)
}

// PrintQueueStatus prints the queue summary in JSON format.
func (j *JSONPrinter) PrintQueueStatus(status model.QueueStatus) error {
	output := queueStatusOutput{
		Pending:       status.Pending,
		Busy:          status.Busy,
		CurrentTaskID: status.CurrentTaskID,
		RecentTasks:   make([]taskItem, len(status.RecentTasks)),
	}
	for i, t := range status.RecentTasks {
		output.RecentTasks[i] = newTaskItem(t)
	}

	return j.encode(output)
}

// PrintCheckpointList prints checkpoints in JSON format.
func (j *JSONPrinter) PrintCheckpointList(checkpoints []model.Checkpoint) error {
	items := make([]checkpointOutput, len(checkpoints))
	for i, cp := range checkpoints {
		items[i] = newCheckpointOutput(cp)
	}

	return j.encode(items)
}

// PrintCheckpoint prints one checkpoint in JSON format.
func (j *JSONPrinter) PrintCheckpoint(cp model.Checkpoint) error {
	return j.encode(newCheckpointOutput(cp))
}

// PrintJournalList prints journal entries in JSON format.
func (j *JSONPrinter) PrintJournalList(entries []model.JournalEntry) error {
	items := make([]journalItem, len(entries))
	for i, e := range entries {
		items[i] = newJournalItem(e)
	}

	return j.encode(items)
}

// PrintJournalStats prints the journal summary in JSON format.
func (j *JSONPrinter) PrintJournalStats(stats journal.Stats) error {
	output := journalStatsOutput{
		Total:      stats.Total,
		Solved:     stats.Solved,
		Unsolved:   stats.Unsolved,
		MostCommon: make([]journalItem, len(stats.MostCommon)),
	}
	for i, e := range stats.MostCommon {
		output.MostCommon[i] = newJournalItem(e)
	}

	return j.encode(output)
}

// PrintDomainList prints context domains in JSON format.
func (j *JSONPrinter) PrintDomainList(domains []contextstore.DomainInfo) error {
	items := make([]domainItem, len(domains))
	for i, d := range domains {
		items[i] = domainItem{Name: d.Name, SizeTokens: d.SizeTokens}
	}

	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTaskItem(t model.Task) taskItem {
	return taskItem{
		ID:        t.ID,
		Kind:      string(t.Kind),
		Status:    string(t.Status),
		Progress:  t.Progress,
		CreatedAt: t.CreatedAt.UTC(),
	}
}

func newCheckpointOutput(cp model.Checkpoint) checkpointOutput {
	return checkpointOutput{
		ID:             cp.ID,
		Objective:      cp.Objective,
		Iteration:      cp.Iteration,
		CompletedSteps: cp.CompletedSteps,
		PendingSteps:   cp.PendingSteps,
		Metadata:       cp.Metadata,
		CreatedAt:      cp.CreatedAt.UTC(),
	}
}

func newJournalItem(e model.JournalEntry) journalItem {
	return journalItem{
		ID:          e.ID,
		TaskType:    e.TaskType,
		Description: e.Description,
		Error:       e.Error,
		Solution:    e.Solution,
		Occurrences: e.Occurrences,
		CreatedAt:   e.CreatedAt.UTC(),
		LastSeenAt:  e.LastSeenAt.UTC(),
	}
}
