package reasoner_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urko/taskmill/internal/reasoner"
)

type scriptedReasoner struct {
	calls    int32
	failures int32
}

func (s *scriptedReasoner) Reason(ctx context.Context, req reasoner.Request) (string, error) {
	call := atomic.AddInt32(&s.calls, 1)
	if call <= s.failures {
		return "", fmt.Errorf("transient failure %d", call)
	}
	return "recovered", nil
}

func TestRetrierReason(t *testing.T) {
	tests := map[string]struct {
		failures  int32
		expResult string
		expCalls  int32
		expErr    bool
	}{
		"A healthy reasoner should be called once": {
			failures:  0,
			expResult: "recovered",
			expCalls:  1,
		},
		"Transient failures should be retried through": {
			failures:  2,
			expResult: "recovered",
			expCalls:  3,
		},
		"The last allowed attempt may still succeed": {
			failures:  3,
			expResult: "recovered",
			expCalls:  4,
		},
		"Exhausted retries should surface the last error": {
			failures: 10,
			expCalls: 4,
			expErr:   true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			scripted := &scriptedReasoner{failures: test.failures}
			retrier, err := reasoner.NewRetrier(reasoner.RetrierConfig{
				Reasoner:     scripted,
				MaxRetries:   3,
				InitialDelay: time.Millisecond,
			})
			require.NoError(t, err)

			result, err := retrier.Reason(context.Background(), reasoner.Request{Prompt: "go"})

			if test.expErr {
				require.Error(t, err)
				assert.Contains(err.Error(), "all 3 retries failed")
				assert.Contains(err.Error(), "transient failure 4")
			} else {
				require.NoError(t, err)
				assert.Equal(test.expResult, result)
			}
			assert.Equal(test.expCalls, atomic.LoadInt32(&scripted.calls))
		})
	}
}

func TestRetrierContextCancellation(t *testing.T) {
	require := require.New(t)

	scripted := &scriptedReasoner{failures: 10}
	retrier, err := reasoner.NewRetrier(reasoner.RetrierConfig{
		Reasoner:     scripted,
		MaxRetries:   3,
		InitialDelay: time.Minute,
	})
	require.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = retrier.Reason(ctx, reasoner.Request{Prompt: "go"})
	require.ErrorIs(err, context.DeadlineExceeded)
}
