package mocks

import (
	"context"

	"storyboard-server/internal/ingest"
	"storyboard-server/internal/planner"
	"storyboard-server/internal/renderer"

	"github.com/stretchr/testify/mock"
)

// MockImageBackend is a mock type for the renderer.ImageBackend type
type MockImageBackend struct {
	mock.Mock
}

var _ renderer.ImageBackend = (*MockImageBackend)(nil)

// Generate provides a mock function with given fields: ctx, req
func (_m *MockImageBackend) Generate(ctx context.Context, req renderer.ImageRequest) (*renderer.ImageResponse, error) {
	ret := _m.Called(ctx, req)

	var r0 *renderer.ImageResponse
	if rf, ok := ret.Get(0).(func(context.Context, renderer.ImageRequest) *renderer.ImageResponse); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*renderer.ImageResponse)
	}
	return r0, ret.Error(1)
}

// MockQuickClient is a mock type for the planner.QuickClient type
type MockQuickClient struct {
	mock.Mock
}

var _ planner.QuickClient = (*MockQuickClient)(nil)

// Storyboard provides a mock function with given fields: ctx, req
func (_m *MockQuickClient) Storyboard(ctx context.Context, req planner.QuickRequest) (*planner.QuickResponse, error) {
	ret := _m.Called(ctx, req)

	var r0 *planner.QuickResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*planner.QuickResponse)
	}
	return r0, ret.Error(1)
}

// MockOCRClient is a mock type for the ingest.OCRClient type
type MockOCRClient struct {
	mock.Mock
}

var _ ingest.OCRClient = (*MockOCRClient)(nil)

// Extract provides a mock function with given fields: ctx, filename, content, progress
func (_m *MockOCRClient) Extract(ctx context.Context, filename string, content []byte, progress ingest.ProgressFunc) (string, error) {
	ret := _m.Called(ctx, filename, content, progress)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, []byte, ingest.ProgressFunc) string); ok {
		r0 = rf(ctx, filename, content, progress)
	} else {
		r0 = ret.String(0)
	}
	return r0, ret.Error(1)
}
