package printer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/urko/taskmill/internal/printer"
)

func TestTimeAgo(t *testing.T) {
	now := time.Now().UTC()

	tests := map[string]struct {
		t   time.Time
		exp string
	}{
		"A few seconds ago": {
			t:   now.Add(-5 * time.Second),
			exp: "5 seconds ago (UTC)",
		},
		"Exactly one minute ago": {
			t:   now.Add(-time.Minute),
			exp: "1 minute ago (UTC)",
		},
		"Some minutes ago": {
			t:   now.Add(-10 * time.Minute),
			exp: "10 minutes ago (UTC)",
		},
		"Some hours ago": {
			t:   now.Add(-3 * time.Hour),
			exp: "3 hours ago (UTC)",
		},
		"Exactly one day ago": {
			t:   now.Add(-24 * time.Hour),
			exp: "1 day ago (UTC)",
		},
		"Some days ago": {
			t:   now.Add(-72 * time.Hour),
			exp: "3 days ago (UTC)",
		},
		"A future time": {
			t:   now.Add(time.Hour),
			exp: "in the future (UTC)",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, printer.TimeAgo(test.t))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 2, 10, 9, 30, 45, 0, time.UTC)

	assert.Equal(t, "2026-02-10 09:30:45 UTC", printer.FormatTimestamp(ts))
}
