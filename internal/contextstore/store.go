package contextstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/model"
)

// DefaultDomainBudgetTokens is the per-domain token budget (4 chars is
// roughly one token for the models this targets).
const DefaultDomainBudgetTokens = 2000

const (
	entryMarker   = "\n### ["
	charsPerToken = 4
)

var domainNameRegexp = regexp.MustCompile(`^[a-z0-9_-]+$`)

// DomainInfo is a summary of one context domain.
type DomainInfo struct {
	Name       string
	SizeTokens int
}

// StoreConfig is the configuration for the context store.
type StoreConfig struct {
	// Dir is where the per-domain files live, one markdown blob each.
	Dir string
	// DomainBudgetTokens caps each domain's size. Appends that would
	// exceed it evict the oldest entries first.
	DomainBudgetTokens int
	Logger             log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if c.DomainBudgetTokens <= 0 {
		c.DomainBudgetTokens = DefaultDomainBudgetTokens
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "contextstore.Store"})
	return nil
}

// Store is a set of named, budget-capped context domains backed by one
// append-only text file per domain. Eviction is FIFO on write time:
// appending past the budget drops the oldest entries, reads never evict.
type Store struct {
	dir          string
	budgetTokens int
	logger       log.Logger
}

// NewStore creates a new context store. Domains are created lazily on
// first write.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create context directory: %w", err)
	}

	return &Store{
		dir:          cfg.Dir,
		budgetTokens: cfg.DomainBudgetTokens,
		logger:       cfg.Logger,
	}, nil
}

// Append adds a timestamped entry to a domain, evicting the oldest
// entries if the budget would be exceeded.
func (s *Store) Append(ctx context.Context, domain, content string) error {
	if err := validateDomain(domain); err != nil {
		return err
	}

	current, err := s.readFile(domain)
	if err != nil {
		return err
	}

	entry := fmt.Sprintf("%s%s]\n%s\n", entryMarker, time.Now().UTC().Format(time.RFC3339), strings.TrimSpace(content))
	combined := current + entry
	combined = s.enforceBudget(domain, combined)

	if err := os.WriteFile(s.path(domain), []byte(combined), 0644); err != nil {
		return fmt.Errorf("could not write domain %q: %w", domain, err)
	}

	return nil
}

// Read returns a domain's full content. Missing domains read as empty,
// the read path is pure.
func (s *Store) Read(ctx context.Context, domain string) (string, error) {
	if err := validateDomain(domain); err != nil {
		return "", err
	}
	return s.readFile(domain)
}

// Clear removes a domain's content. This is an explicit operator action,
// domains are never auto-deleted.
func (s *Store) Clear(ctx context.Context, domain string) error {
	if err := validateDomain(domain); err != nil {
		return err
	}

	err := os.Remove(s.path(domain))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not clear domain %q: %w", domain, err)
	}

	s.logger.Debugf("Cleared domain %q", domain)
	return nil
}

// Domains lists the existing domains with their current sizes.
func (s *Store) Domains(ctx context.Context) ([]DomainInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("could not read context directory: %w", err)
	}

	var infos []DomainInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".md")
		content, err := s.readFile(name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, DomainInfo{
			Name:       name,
			SizeTokens: estimateTokens(content),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// enforceBudget drops the oldest entries until the domain fits its budget.
func (s *Store) enforceBudget(domain, content string) string {
	if estimateTokens(content) <= s.budgetTokens {
		return content
	}

	entries := splitEntries(content)
	dropped := 0
	for len(entries) > 1 && estimateTokens(strings.Join(entries, "")) > s.budgetTokens {
		entries = entries[1:]
		dropped++
	}
	if dropped > 0 {
		s.logger.Debugf("Evicted %d oldest entries from domain %q", dropped, domain)
	}

	result := strings.Join(entries, "")

	// A single oversized entry still has to fit: keep its tail.
	if maxChars := s.budgetTokens * charsPerToken; len(result) > maxChars {
		result = result[len(result)-maxChars:]
	}

	return result
}

func (s *Store) readFile(domain string) (string, error) {
	data, err := os.ReadFile(s.path(domain))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("could not read domain %q: %w", domain, err)
	}
	return string(data), nil
}

func (s *Store) path(domain string) string {
	return filepath.Join(s.dir, domain+".md")
}

func validateDomain(domain string) error {
	if !domainNameRegexp.MatchString(domain) {
		return fmt.Errorf("invalid domain name %q: %w", domain, model.ErrNotValid)
	}
	return nil
}

// splitEntries splits a domain blob into its timestamped entries, oldest
// first. Text before the first marker stays glued to the first entry.
func splitEntries(content string) []string {
	var entries []string
	remaining := content
	for {
		idx := strings.Index(remaining[1:], entryMarker)
		if idx < 0 {
			entries = append(entries, remaining)
			return entries
		}
		entries = append(entries, remaining[:idx+1])
		remaining = remaining[idx+1:]
	}
}

func estimateTokens(text string) int {
	return len(text) / charsPerToken
}
