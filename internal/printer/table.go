package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urko/taskmill/internal/contextstore"
	"github.com/urko/taskmill/internal/journal"
	"github.com/urko/taskmill/internal/model"
)

// TablePrinter prints orchestration information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintTaskList prints tasks in a table format.
func (t *TablePrinter) PrintTaskList(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tPROGRESS\tCREATED")

	// Print rows
	for _, task := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			task.ID, task.Kind, task.Status, firstLine(task.Progress, 40), TimeAgo(task.CreatedAt))
	}

	return nil
}

// PrintTask prints detailed task status.
func (t *TablePrinter) PrintTask(task model.Task) error {
	fmt.Fprintf(t.writer, "ID:         %d\n", task.ID)
	fmt.Fprintf(t.writer, "Kind:       %s\n", task.Kind)
	fmt.Fprintf(t.writer, "Status:     %s\n", task.Status)
	fmt.Fprintf(t.writer, "Input:      %s\n", task.Input)
	if task.Progress != "" {
		fmt.Fprintf(t.writer, "Progress:   %s\n", task.Progress)
	}
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(task.CreatedAt))
	if task.StartedAt != nil {
		fmt.Fprintf(t.writer, "Started:    %s\n", FormatTimestamp(*task.StartedAt))
	}
	if task.CompletedAt != nil {
		fmt.Fprintf(t.writer, "Completed:  %s\n", FormatTimestamp(*task.CompletedAt))
	}
	if task.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", task.Error)
	}
	if task.Result != "" {
		fmt.Fprintf(t.writer, "\n%s\n", task.Result)
	}

	return nil
}

// PrintQueueStatus prints a queue summary.
func (t *TablePrinter) PrintQueueStatus(status model.QueueStatus) error {
	fmt.Fprintf(t.writer, "Pending:    %d\n", status.Pending)
	busy := "idle"
	if status.Busy {
		busy = fmt.Sprintf("running task #%d", *status.CurrentTaskID)
	}
	fmt.Fprintf(t.writer, "Worker:     %s\n", busy)

	if len(status.RecentTasks) > 0 {
		fmt.Fprintf(t.writer, "\nRecent tasks:\n")
		return t.PrintTaskList(status.RecentTasks)
	}

	return nil
}

// PrintCheckpointList prints checkpoints in a table format.
func (t *TablePrinter) PrintCheckpointList(checkpoints []model.Checkpoint) error {
	if len(checkpoints) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "ID\tOBJECTIVE\tITER\tDONE\tPENDING\tCREATED")

	// Print rows.
	for _, cp := range checkpoints {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			cp.ID, firstLine(cp.Objective, 40), cp.Iteration,
			len(cp.CompletedSteps), len(cp.PendingSteps), TimeAgo(cp.CreatedAt))
	}

	return nil
}

// PrintCheckpoint prints one checkpoint in full.
func (t *TablePrinter) PrintCheckpoint(cp model.Checkpoint) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", cp.ID)
	fmt.Fprintf(t.writer, "Objective:  %s\n", cp.Objective)
	fmt.Fprintf(t.writer, "Iteration:  %d\n", cp.Iteration)
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(cp.CreatedAt))

	if len(cp.CompletedSteps) > 0 {
		fmt.Fprintf(t.writer, "\nCompleted steps:\n")
		for _, s := range cp.CompletedSteps {
			fmt.Fprintf(t.writer, "  [x] %s\n", s)
		}
	}
	if len(cp.PendingSteps) > 0 {
		fmt.Fprintf(t.writer, "\nPending steps:\n")
		for _, s := range cp.PendingSteps {
			fmt.Fprintf(t.writer, "  [ ] %s\n", s)
		}
	}

	return nil
}

// PrintJournalList prints journal entries in a table format.
func (t *TablePrinter) PrintJournalList(entries []model.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "TYPE\tERROR\tTIMES\tSOLVED\tLAST SEEN")

	// Print rows.
	for _, e := range entries {
		solved := "no"
		if e.Solution != "" {
			solved = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			e.TaskType, firstLine(e.Error, 50), e.Occurrences, solved, TimeAgo(e.LastSeenAt))
	}

	return nil
}

// PrintJournalStats prints a journal summary.
func (t *TablePrinter) PrintJournalStats(stats journal.Stats) error {
	fmt.Fprintf(t.writer, "Total:      %d\n", stats.Total)
	fmt.Fprintf(t.writer, "Solved:     %d\n", stats.Solved)
	fmt.Fprintf(t.writer, "Unsolved:   %d\n", stats.Unsolved)

	if len(stats.MostCommon) > 0 {
		fmt.Fprintf(t.writer, "\nMost common:\n")
		for _, e := range stats.MostCommon {
			fmt.Fprintf(t.writer, "  %dx %s\n", e.Occurrences, firstLine(e.Error, 60))
		}
	}

	return nil
}

// PrintDomainList prints context domains in a table format.
func (t *TablePrinter) PrintDomainList(domains []contextstore.DomainInfo) error {
	if len(domains) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "DOMAIN\tSIZE (TOKENS)")

	// Print rows.
	for _, d := range domains {
		fmt.Fprintf(tw, "%s\t%d\n", d.Name, d.SizeTokens)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

// firstLine truncates text to its first line, capped at n characters.
func firstLine(s string, n int) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > n {
		s = s[:n]
	}
	return s
}
