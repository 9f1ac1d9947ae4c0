// Package journal records past failures and turns them into
// forward-looking avoid instructions for the reasoning step.
package journal

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
	"github.com/urko/taskmill/internal/storage"
)

const (
	maxKeywords           = 20
	maxDescriptionLength  = 200
	defaultRelevantErrors = 3
	// similarityThreshold: a new error whose keywords overlap an existing
	// entry's by more than this fraction is treated as a recurrence.
	similarityThreshold = 0.5
)

var wordRegexp = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\b`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	"of": {}, "and": {}, "or": {}, "not": {},
}

// ServiceConfig is the configuration for the journal service.
type ServiceConfig struct {
	Repository storage.JournalRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "journal.Service"})
	return nil
}

// Service is the error journal. Deduplication is best effort: keyword
// overlap, not exact matching, so false merges and missed merges are both
// possible and acceptable.
type Service struct {
	repository storage.JournalRepository
	logger     log.Logger
}

// NewService creates a new journal service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repository: cfg.Repository,
		logger:     cfg.Logger,
	}, nil
}

// LogError records a failure. A near-identical existing entry (keyword
// overlap above the similarity threshold) gets its occurrence counter
// bumped instead of a duplicate row, and adopts the solution if it had
// none.
func (s *Service) LogError(ctx context.Context, taskType, description, errText, solution string) error {
	if errText == "" {
		return fmt.Errorf("error text is required: %w", model.ErrNotValid)
	}

	if len(description) > maxDescriptionLength {
		description = description[:maxDescriptionLength]
	}

	entries, err := s.repository.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("could not list journal entries: %w", err)
	}

	keywords := ExtractKeywords(errText)
	now := time.Now().UTC()

	if similar := findSimilar(entries, errText, keywords); similar != nil {
		similar.Occurrences++
		similar.LastSeenAt = now
		if solution != "" && similar.Solution == "" {
			similar.Solution = solution
		}
		if err := s.repository.UpdateEntry(ctx, *similar); err != nil {
			return fmt.Errorf("could not update journal entry: %w", err)
		}
		s.logger.Debugf("Error recurrence on entry %s (%d occurrences)", similar.ID, similar.Occurrences)
		return nil
	}

	entry := model.JournalEntry{
		ID:          ulid.Make().String(),
		TaskType:    taskType,
		Description: description,
		Error:       errText,
		Keywords:    keywords,
		Solution:    solution,
		Occurrences: 1,
		CreatedAt:   now,
		LastSeenAt:  now,
	}
	if err := s.repository.CreateEntry(ctx, entry); err != nil {
		return fmt.Errorf("could not create journal entry: %w", err)
	}

	return nil
}

// RelevantErrors returns past errors whose keywords overlap the task,
// ranked by overlap then occurrences, up to limit.
func (s *Service) RelevantErrors(ctx context.Context, task string, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = defaultRelevantErrors
	}

	entries, err := s.repository.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list journal entries: %w", err)
	}

	taskKeywords := keywordSet(ExtractKeywords(task))

	type scored struct {
		score int
		entry model.JournalEntry
	}
	var matches []scored
	for _, e := range entries {
		score := overlapCount(taskKeywords, e.Keywords)
		if score > 0 {
			matches = append(matches, scored{score, e})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].entry.Occurrences > matches[j].entry.Occurrences
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	result := make([]model.JournalEntry, 0, len(matches))
	for _, m := range matches {
		result = append(result, m.entry)
	}
	return result, nil
}

// AvoidInstructions renders the relevant past errors as a short block
// meant for injection into a reasoning prompt. Empty when nothing matches.
func (s *Service) AvoidInstructions(ctx context.Context, task string) (string, error) {
	relevant, err := s.RelevantErrors(ctx, task, defaultRelevantErrors)
	if err != nil {
		return "", err
	}
	if len(relevant) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("## AVOID (Based on Past Errors):\n\n")
	for _, e := range relevant {
		fmt.Fprintf(&b, "- **%s**\n", truncate(e.Error, 100))
		if e.Solution != "" {
			fmt.Fprintf(&b, "  Fix: %s\n", truncate(e.Solution, 100))
		}
		fmt.Fprintf(&b, "  (occurred %dx)\n\n", e.Occurrences)
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

// Stats is a summary of the journal contents.
type Stats struct {
	Total      int
	Solved     int
	Unsolved   int
	MostCommon []model.JournalEntry
}

// Stats summarizes the journal: totals, how many entries have a known
// fix, and the five most recurrent errors.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.repository.ListEntries(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("could not list journal entries: %w", err)
	}

	stats := Stats{Total: len(entries)}
	for _, e := range entries {
		if e.Solution != "" {
			stats.Solved++
		}
	}
	stats.Unsolved = stats.Total - stats.Solved

	sorted := make([]model.JournalEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Occurrences > sorted[j].Occurrences })
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}
	stats.MostCommon = sorted

	return stats, nil
}

// ExtractKeywords tokenizes text into deduplicated lowercase keywords,
// dropping stopwords and short tokens, capped at 20.
func ExtractKeywords(text string) []string {
	words := wordRegexp.FindAllString(strings.ToLower(text), -1)

	seen := map[string]struct{}{}
	var keywords []string
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
		if len(keywords) == maxKeywords {
			break
		}
	}

	return keywords
}

// findSimilar matches on the exact error text first, then on keyword
// overlap. The exact match also covers error texts that yield no keywords
// at all, where the overlap fraction can never clear the threshold.
func findSimilar(entries []model.JournalEntry, errText string, keywords []string) *model.JournalEntry {
	kwSet := keywordSet(keywords)
	for i := range entries {
		if entries[i].Error == errText {
			return &entries[i]
		}
		overlap := overlapCount(kwSet, entries[i].Keywords)
		if float64(overlap) > float64(len(keywords))*similarityThreshold {
			return &entries[i]
		}
	}
	return nil
}

func keywordSet(keywords []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		set[k] = struct{}{}
	}
	return set
}

func overlapCount(set map[string]struct{}, keywords []string) int {
	count := 0
	for _, k := range keywords {
		if _, ok := set[k]; ok {
			count++
		}
	}
	return count
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
