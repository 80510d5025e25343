package mocks

import (
	"context"

	"storyboard-server/internal/models"
	"storyboard-server/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockProjectRepository is a mock type for the ProjectRepository type
type MockProjectRepository struct {
	mock.Mock
}

var _ repository.ProjectRepository = (*MockProjectRepository)(nil)

// Create provides a mock function with given fields: ctx, project
func (_m *MockProjectRepository) Create(ctx context.Context, project *models.Project) error {
	ret := _m.Called(ctx, project)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *models.Project) error); ok {
		r0 = rf(ctx, project)
	} else {
		r0 = ret.Error(0)
	}
	return r0
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.Project
	if rf, ok := ret.Get(0).(func(context.Context, string) *models.Project); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Project)
	}
	return r0, ret.Error(1)
}

// ListByOwner provides a mock function with given fields: ctx, ownerID
func (_m *MockProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ProjectSummary, error) {
	ret := _m.Called(ctx, ownerID)

	var r0 []models.ProjectSummary
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.ProjectSummary)
	}
	return r0, ret.Error(1)
}

// Delete provides a mock function with given fields: ctx, id
func (_m *MockProjectRepository) Delete(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

// UpdateScript provides a mock function with given fields: ctx, id, upd
func (_m *MockProjectRepository) UpdateScript(ctx context.Context, id string, upd models.ScriptUpdate) (*models.Project, error) {
	ret := _m.Called(ctx, id, upd)
	return projectResult(ret)
}

// ReplaceShots provides a mock function with given fields: ctx, id, shots
func (_m *MockProjectRepository) ReplaceShots(ctx context.Context, id string, shots []models.Shot) (*models.Project, error) {
	ret := _m.Called(ctx, id, shots)
	return projectResult(ret)
}

// UpdateShot provides a mock function with given fields: ctx, id, ref, patch
func (_m *MockProjectRepository) UpdateShot(ctx context.Context, id string, ref models.ShotRef, patch models.ShotPatch) (*models.Project, error) {
	ret := _m.Called(ctx, id, ref, patch)
	return projectResult(ret)
}

// InsertShot provides a mock function with given fields: ctx, id, after
func (_m *MockProjectRepository) InsertShot(ctx context.Context, id string, after int) (*models.Project, error) {
	ret := _m.Called(ctx, id, after)
	return projectResult(ret)
}

// DeleteShot provides a mock function with given fields: ctx, id, number
func (_m *MockProjectRepository) DeleteShot(ctx context.Context, id string, number int) (*models.Project, error) {
	ret := _m.Called(ctx, id, number)
	return projectResult(ret)
}

// ReplaceFrames provides a mock function with given fields: ctx, id, frames
func (_m *MockProjectRepository) ReplaceFrames(ctx context.Context, id string, frames []models.Frame) (*models.Project, error) {
	ret := _m.Called(ctx, id, frames)
	return projectResult(ret)
}

// MergeFrame provides a mock function with given fields: ctx, id, frame
func (_m *MockProjectRepository) MergeFrame(ctx context.Context, id string, frame models.Frame) (*models.Project, error) {
	ret := _m.Called(ctx, id, frame)
	return projectResult(ret)
}

// MergeShotFrame provides a mock function with given fields: ctx, id, shotID, frame
func (_m *MockProjectRepository) MergeShotFrame(ctx context.Context, id string, shotID string, frame models.Frame) (*models.Project, error) {
	ret := _m.Called(ctx, id, shotID, frame)
	return projectResult(ret)
}

// SetFrameStyle provides a mock function with given fields: ctx, id, number, style
func (_m *MockProjectRepository) SetFrameStyle(ctx context.Context, id string, number int, style string) (*models.Project, error) {
	ret := _m.Called(ctx, id, number, style)
	return projectResult(ret)
}

// MergeCharacters provides a mock function with given fields: ctx, id, defs
func (_m *MockProjectRepository) MergeCharacters(ctx context.Context, id string, defs []models.CharacterDefinition) (*models.Project, error) {
	ret := _m.Called(ctx, id, defs)
	return projectResult(ret)
}

func projectResult(ret mock.Arguments) (*models.Project, error) {
	var r0 *models.Project
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Project)
	}
	return r0, ret.Error(1)
}

// NewMockProjectRepository creates a new instance of MockProjectRepository. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockProjectRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProjectRepository {
	m := &MockProjectRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
