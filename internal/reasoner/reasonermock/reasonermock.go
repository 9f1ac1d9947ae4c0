// Package reasonermock has testify mocks for the reasoner boundary.
package reasonermock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/urko/taskmill/internal/reasoner"
)

// MockReasoner is a mock of reasoner.Reasoner.
type MockReasoner struct {
	mock.Mock
}

func (m *MockReasoner) Reason(ctx context.Context, req reasoner.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
