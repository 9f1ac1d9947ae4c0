package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/reasoner"
)

// TaskStateDomain is always included when assembling context, it carries
// the progress of the objective in flight.
const TaskStateDomain = "task_state"

// KnownDomains maps the selectable domain names to the one-line
// descriptions the selector prompt shows.
var KnownDomains = map[string]string{
	"frontend":     "UI components, styling and layout decisions",
	"backend":      "API routes, server logic, authentication",
	"database":     "Schema, queries, migrations",
	"research":     "Research notes, findings, sources",
	"decisions":    "Architectural and design decisions",
	"architecture": "System design, component relationships",
	"codebase_map": "Project file structure overview",
	"qa":           "Testing notes, bug reports",
	"deployment":   "DevOps, CI/CD, server configs",
	TaskStateDomain: "Current task progress and objectives",
}

const maxSelectedDomains = 3

// Selector picks which context domains matter for a task.
type Selector interface {
	SelectDomains(ctx context.Context, task, agent string) ([]string, error)
}

// SelectorFunc adapts a function into a Selector.
type SelectorFunc func(ctx context.Context, task, agent string) ([]string, error)

func (f SelectorFunc) SelectDomains(ctx context.Context, task, agent string) ([]string, error) {
	return f(ctx, task, agent)
}

// ReasonerSelectorConfig is the configuration for the reasoner-backed
// selector.
type ReasonerSelectorConfig struct {
	Reasoner reasoner.Reasoner
	Logger   log.Logger
}

func (c *ReasonerSelectorConfig) defaults() error {
	if c.Reasoner == nil {
		return fmt.Errorf("reasoner is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "contextstore.ReasonerSelector"})
	return nil
}

// ReasonerSelector asks the reasoning step which domains matter. Unknown
// names in the reply are dropped, an unparseable reply is an error so the
// caller can fall back.
type ReasonerSelector struct {
	reasoner reasoner.Reasoner
	logger   log.Logger
}

// NewReasonerSelector creates a new reasoner-backed selector.
func NewReasonerSelector(cfg ReasonerSelectorConfig) (*ReasonerSelector, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ReasonerSelector{
		reasoner: cfg.Reasoner,
		logger:   cfg.Logger,
	}, nil
}

func (s *ReasonerSelector) SelectDomains(ctx context.Context, task, agent string) ([]string, error) {
	if agent == "" {
		agent = "general"
	}

	names := make([]string, 0, len(KnownDomains))
	for name := range KnownDomains {
		names = append(names, name)
	}
	sort.Strings(names)

	var list strings.Builder
	for _, name := range names {
		fmt.Fprintf(&list, "- %s: %s\n", name, KnownDomains[name])
	}

	prompt := fmt.Sprintf(`You are a context selector. Given a task, select which context domains are relevant.

TASK: %s
AGENT: %s

AVAILABLE CONTEXT DOMAINS:
%s
Select 1-3 domains that are most relevant. Return ONLY a JSON array, nothing else:
["domain1", "domain2"]

If no domains are clearly relevant, return: ["%s"]`, task, agent, list.String(), TaskStateDomain)

	reply, err := s.reasoner.Reason(ctx, reasoner.Request{
		Prompt:    prompt,
		MaxTokens: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("could not select domains: %w", err)
	}

	selected, err := parseDomainList(reply)
	if err != nil {
		return nil, err
	}

	var valid []string
	for _, name := range selected {
		if _, ok := KnownDomains[name]; ok {
			valid = append(valid, name)
		} else {
			s.logger.Debugf("Dropping unknown domain %q from selection", name)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("selection contained no known domains")
	}
	if len(valid) > maxSelectedDomains {
		valid = valid[:maxSelectedDomains]
	}

	return valid, nil
}

// parseDomainList extracts a JSON string array from a reply that may have
// prose around it.
func parseDomainList(reply string) ([]string, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("reply has no JSON array: %q", reply)
	}

	var names []string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &names); err != nil {
		return nil, fmt.Errorf("could not parse domain list: %w", err)
	}

	return names, nil
}

var keywordDomains = []struct {
	domain   string
	keywords []string
}{
	{"frontend", []string{"ui", "react", "css", "component", "button", "page", "style"}},
	{"backend", []string{"api", "server", "route", "endpoint", "backend", "auth"}},
	{"database", []string{"database", "query", "schema", "sql", "table", "db"}},
	{"research", []string{"research", "paper", "study", "analyze", "find"}},
	{"decisions", []string{"decision", "choose", "why", "design", "architecture"}},
	{"codebase_map", []string{"code", "file", "project", "structure", "edit", "modify"}},
	{"deployment", []string{"deploy", "host", "ci", "cd", "docker"}},
}

// KeywordSelector is the deterministic fallback selector: a fixed keyword
// table, never errors.
type KeywordSelector struct{}

func (KeywordSelector) SelectDomains(ctx context.Context, task, agent string) ([]string, error) {
	taskLower := strings.ToLower(task)

	var selected []string
	for _, kd := range keywordDomains {
		for _, kw := range kd.keywords {
			if strings.Contains(taskLower, kw) {
				selected = append(selected, kd.domain)
				break
			}
		}
		if len(selected) == maxSelectedDomains {
			break
		}
	}

	if len(selected) == 0 {
		selected = []string{TaskStateDomain}
	}

	return selected, nil
}

type fallbackSelector struct {
	primary  Selector
	fallback Selector
	logger   log.Logger
}

// NewFallbackSelector composes two selectors: the primary's result is used
// unless it errors, then the fallback decides.
func NewFallbackSelector(primary, fallback Selector, logger log.Logger) Selector {
	if logger == nil {
		logger = log.Noop
	}
	return fallbackSelector{
		primary:  primary,
		fallback: fallback,
		logger:   logger.WithValues(log.Kv{"svc": "contextstore.FallbackSelector"}),
	}
}

func (s fallbackSelector) SelectDomains(ctx context.Context, task, agent string) ([]string, error) {
	domains, err := s.primary.SelectDomains(ctx, task, agent)
	if err == nil {
		return domains, nil
	}

	s.logger.Warningf("Primary selector failed, using fallback: %s", err)
	return s.fallback.SelectDomains(ctx, task, agent)
}

// DefaultMaxContextTokens bounds the assembled context string.
const DefaultMaxContextTokens = 8000

// RetrieverConfig is the configuration for the context retriever.
type RetrieverConfig struct {
	Store    *Store
	Selector Selector
	// MaxTotalTokens bounds the assembled string. Domains that would
	// push past it are omitted whole, never truncated mid-text.
	MaxTotalTokens int
	Logger         log.Logger
}

func (c *RetrieverConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Selector == nil {
		return fmt.Errorf("selector is required")
	}
	if c.MaxTotalTokens <= 0 {
		c.MaxTotalTokens = DefaultMaxContextTokens
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "contextstore.Retriever"})
	return nil
}

// Retriever assembles a bounded context string for a task from the
// selected domains.
type Retriever struct {
	store          *Store
	selector       Selector
	maxTotalTokens int
	logger         log.Logger
}

// NewRetriever creates a new context retriever.
func NewRetriever(cfg RetrieverConfig) (*Retriever, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Retriever{
		store:          cfg.Store,
		selector:       cfg.Selector,
		maxTotalTokens: cfg.MaxTotalTokens,
		logger:         cfg.Logger,
	}, nil
}

// Assemble builds the context string for a task. The task state domain is
// always first when non-empty, then the selected domains in selection
// order. The result never exceeds the total token budget.
func (r *Retriever) Assemble(ctx context.Context, task, agent string) (string, error) {
	var parts []string
	used := 0

	taskState, err := r.store.Read(ctx, TaskStateDomain)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(taskState) != "" {
		part := fmt.Sprintf("## CURRENT TASK STATE\n%s", taskState)
		parts = append(parts, part)
		used += estimateTokens(part)
	}

	selected, err := r.selector.SelectDomains(ctx, task, agent)
	if err != nil {
		return "", fmt.Errorf("could not select domains: %w", err)
	}

	for _, domain := range selected {
		if domain == TaskStateDomain {
			continue
		}

		content, err := r.store.Read(ctx, domain)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		part := fmt.Sprintf("## %s\n%s", strings.ToUpper(domain), content)
		cost := estimateTokens(part)
		if used+cost > r.maxTotalTokens {
			r.logger.Debugf("Omitting domain %q, would exceed context budget", domain)
			continue
		}
		used += cost
		parts = append(parts, part)
	}

	return strings.Join(parts, "\n\n---\n\n"), nil
}
