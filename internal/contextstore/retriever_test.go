package contextstore_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/urko/taskmill/internal/contextstore"
	"github.com/urko/taskmill/internal/log"
	"github.com/urko/taskmill/internal/reasoner/reasonermock"
)

func TestKeywordSelector(t *testing.T) {
	tests := map[string]struct {
		task       string
		expDomains []string
	}{
		"A frontend task should select the frontend domain": {
			task:       "Fix the login button style",
			expDomains: []string{"frontend"},
		},
		"A task spanning concerns should select multiple domains": {
			task:       "Add an API endpoint that queries the database",
			expDomains: []string{"backend", "database"},
		},
		"Selection should cap at three domains": {
			task:       "Build the ui, add an api, fix the database query, research papers, deploy with docker",
			expDomains: []string{"frontend", "backend", "database"},
		},
		"A task with no keyword hits should default to task state": {
			task:       "Hello there",
			expDomains: []string{contextstore.TaskStateDomain},
		},
		"Matching should be case insensitive": {
			task:       "FIX THE REACT COMPONENT",
			expDomains: []string{"frontend"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			domains, err := contextstore.KeywordSelector{}.SelectDomains(context.Background(), test.task, "")

			assert.NoError(t, err)
			assert.Equal(t, test.expDomains, domains)
		})
	}
}

func TestReasonerSelector(t *testing.T) {
	tests := map[string]struct {
		reply      string
		replyErr   error
		expDomains []string
		expErr     bool
	}{
		"A clean JSON array reply should be used as is": {
			reply:      `["backend", "database"]`,
			expDomains: []string{"backend", "database"},
		},
		"Prose around the array should be tolerated": {
			reply:      "Sure! Here are the domains:\n[\"frontend\"]\nHope that helps.",
			expDomains: []string{"frontend"},
		},
		"Unknown domain names should be dropped": {
			reply:      `["backend", "made_up_domain"]`,
			expDomains: []string{"backend"},
		},
		"More than three domains should be capped": {
			reply:      `["backend", "database", "frontend", "qa"]`,
			expDomains: []string{"backend", "database", "frontend"},
		},
		"A reply with no array should fail": {
			reply:  "I cannot help with that.",
			expErr: true,
		},
		"A reply with only unknown domains should fail": {
			reply:  `["nope", "nada"]`,
			expErr: true,
		},
		"A reasoner error should fail": {
			replyErr: fmt.Errorf("connection refused"),
			expErr:   true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			mr := &reasonermock.MockReasoner{}
			mr.On("Reason", mock.Anything, mock.Anything).Return(test.reply, test.replyErr)

			sel, err := contextstore.NewReasonerSelector(contextstore.ReasonerSelectorConfig{Reasoner: mr})
			require.NoError(t, err)

			domains, err := sel.SelectDomains(context.Background(), "some task", "general")

			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, test.expDomains, domains)
			}
		})
	}
}

func TestFallbackSelector(t *testing.T) {
	tests := map[string]struct {
		primary    contextstore.Selector
		expDomains []string
	}{
		"A working primary should be used": {
			primary: contextstore.SelectorFunc(func(_ context.Context, _, _ string) ([]string, error) {
				return []string{"research"}, nil
			}),
			expDomains: []string{"research"},
		},
		"A failing primary should fall back to keywords": {
			primary: contextstore.SelectorFunc(func(_ context.Context, _, _ string) ([]string, error) {
				return nil, fmt.Errorf("reasoner unavailable")
			}),
			expDomains: []string{"backend"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			sel := contextstore.NewFallbackSelector(test.primary, contextstore.KeywordSelector{}, log.Noop)

			domains, err := sel.SelectDomains(context.Background(), "add an api endpoint", "")

			assert.NoError(t, err)
			assert.Equal(t, test.expDomains, domains)
		})
	}
}

func staticSelector(domains ...string) contextstore.Selector {
	return contextstore.SelectorFunc(func(_ context.Context, _, _ string) ([]string, error) {
		return domains, nil
	})
}

func TestRetrieverAssemble(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	store := getTestStore(t, 0)
	require.NoError(store.Append(context.Background(), contextstore.TaskStateDomain, "Building the checkout flow"))
	require.NoError(store.Append(context.Background(), "backend", "API uses chi router"))
	require.NoError(store.Append(context.Background(), "database", "Orders table has a status column"))

	ret, err := contextstore.NewRetriever(contextstore.RetrieverConfig{
		Store:    store,
		Selector: staticSelector("backend", "database"),
	})
	require.NoError(err)

	result, err := ret.Assemble(context.Background(), "finish the checkout flow", "")
	require.NoError(err)

	// Task state leads, then the selected domains in selection order.
	stateIdx := strings.Index(result, "## CURRENT TASK STATE")
	backendIdx := strings.Index(result, "## BACKEND")
	dbIdx := strings.Index(result, "## DATABASE")
	require.GreaterOrEqual(stateIdx, 0)
	assert.Greater(backendIdx, stateIdx)
	assert.Greater(dbIdx, backendIdx)
	assert.Contains(result, "API uses chi router")
	assert.Contains(result, "\n\n---\n\n")
}

func TestRetrieverAssembleSkipsEmptyAndDuplicateDomains(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	store := getTestStore(t, 0)
	require.NoError(store.Append(context.Background(), contextstore.TaskStateDomain, "in progress"))

	ret, err := contextstore.NewRetriever(contextstore.RetrieverConfig{
		Store:    store,
		Selector: staticSelector(contextstore.TaskStateDomain, "frontend"),
	})
	require.NoError(err)

	result, err := ret.Assemble(context.Background(), "task", "")
	require.NoError(err)

	// Task state appears once, the empty frontend domain is skipped.
	assert.Equal(1, strings.Count(result, "## CURRENT TASK STATE"))
	assert.NotContains(result, "## FRONTEND")
	assert.NotContains(result, "## TASK_STATE")
}

func TestRetrieverAssembleOmitsDomainsOverBudget(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	store := getTestStore(t, 2000)
	require.NoError(store.Append(context.Background(), "backend", strings.Repeat("big backend note ", 100)))
	require.NoError(store.Append(context.Background(), "qa", "small note"))

	ret, err := contextstore.NewRetriever(contextstore.RetrieverConfig{
		Store:          store,
		Selector:       staticSelector("backend", "qa"),
		MaxTotalTokens: 100,
	})
	require.NoError(err)

	result, err := ret.Assemble(context.Background(), "task", "")
	require.NoError(err)

	// The oversized domain is dropped whole, the small one still fits.
	assert.NotContains(result, "## BACKEND")
	assert.Contains(result, "## QA")
	assert.Contains(result, "small note")
}

func TestRetrieverAssembleSelectorError(t *testing.T) {
	require := require.New(t)

	store := getTestStore(t, 0)
	ret, err := contextstore.NewRetriever(contextstore.RetrieverConfig{
		Store: store,
		Selector: contextstore.SelectorFunc(func(_ context.Context, _, _ string) ([]string, error) {
			return nil, fmt.Errorf("boom")
		}),
	})
	require.NoError(err)

	_, err = ret.Assemble(context.Background(), "task", "")
	require.Error(err)
}
