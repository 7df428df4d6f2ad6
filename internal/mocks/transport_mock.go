package mocks

import (
	"context"

	"github.com/benmeehan/whatsminer-cli/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockTransport is a mock implementation of the services.Transport interface
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Exchange(ctx context.Context, host string, port int, req *models.Request) (models.Response, error) {
	args := m.Called(ctx, host, port, req)
	return args.Get(0).(models.Response), args.Error(1)
}
