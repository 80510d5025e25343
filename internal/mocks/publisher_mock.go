package mocks

import (
	"context"

	"storyboard-server/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock type for the EventPublisher type
type MockEventPublisher struct {
	mock.Mock
}

var _ messaging.EventPublisher = (*MockEventPublisher)(nil)

// Publish provides a mock function with given fields: ctx, event
func (_m *MockEventPublisher) Publish(ctx context.Context, event messaging.Event) error {
	ret := _m.Called(ctx, event)
	return ret.Error(0)
}

// Close provides a mock function with given fields:
func (_m *MockEventPublisher) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}
