package mocks

import (
	"context"

	"storyboard-server/internal/batch"
	"storyboard-server/internal/models"
	"storyboard-server/internal/planner"
	"storyboard-server/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockShotPlanner is a mock type for the service.ShotPlanner type
type MockShotPlanner struct {
	mock.Mock
}

var _ service.ShotPlanner = (*MockShotPlanner)(nil)

// PlanDetailed provides a mock function with given fields: ctx, userID, req
func (_m *MockShotPlanner) PlanDetailed(ctx context.Context, userID string, req planner.PlanRequest) ([]models.Shot, error) {
	ret := _m.Called(ctx, userID, req)

	var r0 []models.Shot
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Shot)
	}
	return r0, ret.Error(1)
}

// QuickStoryboard provides a mock function with given fields: ctx, userID, script, style, aspect
func (_m *MockShotPlanner) QuickStoryboard(ctx context.Context, userID string, script string, style string, aspect models.AspectRatio) (*planner.QuickPlan, error) {
	ret := _m.Called(ctx, userID, script, style, aspect)

	var r0 *planner.QuickPlan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*planner.QuickPlan)
	}
	return r0, ret.Error(1)
}

// ReviseShot provides a mock function with given fields: ctx, userID, shot, instruction
func (_m *MockShotPlanner) ReviseShot(ctx context.Context, userID string, shot models.Shot, instruction string) (models.ShotPatch, error) {
	ret := _m.Called(ctx, userID, shot, instruction)

	var r0 models.ShotPatch
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(models.ShotPatch)
	}
	return r0, ret.Error(1)
}

// MockFrameGenerator is a mock type for the service.FrameGenerator type
type MockFrameGenerator struct {
	mock.Mock
}

var _ service.FrameGenerator = (*MockFrameGenerator)(nil)

// Run provides a mock function with given fields: ctx, projectID, hook
func (_m *MockFrameGenerator) Run(ctx context.Context, projectID string, hook batch.FrameHook) (*batch.Report, error) {
	ret := _m.Called(ctx, projectID, hook)

	var r0 *batch.Report
	if rf, ok := ret.Get(0).(func(context.Context, string, batch.FrameHook) *batch.Report); ok {
		r0 = rf(ctx, projectID, hook)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*batch.Report)
	}
	return r0, ret.Error(1)
}

// Start provides a mock function with given fields: ctx, projectID, hook, done
func (_m *MockFrameGenerator) Start(ctx context.Context, projectID string, hook batch.FrameHook, done func(*batch.Report, error)) error {
	ret := _m.Called(ctx, projectID, hook, done)
	return ret.Error(0)
}

// RenderOne provides a mock function with given fields: ctx, projectID, number
func (_m *MockFrameGenerator) RenderOne(ctx context.Context, projectID string, number int) (models.Frame, error) {
	ret := _m.Called(ctx, projectID, number)

	var r0 models.Frame
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(models.Frame)
	}
	return r0, ret.Error(1)
}

// MockStoryboardService is a mock type for the service.StoryboardService type
type MockStoryboardService struct {
	mock.Mock
}

var _ service.StoryboardService = (*MockStoryboardService)(nil)

func (_m *MockStoryboardService) CreateStoryboard(ctx context.Context, user models.CurrentUser, req service.CreateStoryboardRequest) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, req))
}

func (_m *MockStoryboardService) CreateQuickStoryboard(ctx context.Context, user models.CurrentUser, req service.QuickStoryboardRequest) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, req))
}

func (_m *MockStoryboardService) GetProject(ctx context.Context, user models.CurrentUser, id string) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, id))
}

func (_m *MockStoryboardService) ListProjects(ctx context.Context, user models.CurrentUser) ([]models.ProjectSummary, error) {
	ret := _m.Called(ctx, user)

	var r0 []models.ProjectSummary
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.ProjectSummary)
	}
	return r0, ret.Error(1)
}

func (_m *MockStoryboardService) DeleteProject(ctx context.Context, user models.CurrentUser, id string) error {
	return _m.Called(ctx, user, id).Error(0)
}

func (_m *MockStoryboardService) UpdateScript(ctx context.Context, user models.CurrentUser, id string, upd models.ScriptUpdate) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, id, upd))
}

func (_m *MockStoryboardService) UpdateShot(ctx context.Context, user models.CurrentUser, id string, number int, patch models.ShotPatch) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, id, number, patch))
}

func (_m *MockStoryboardService) EditShotWithPrompt(ctx context.Context, user models.CurrentUser, id string, number int, instruction string) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, id, number, instruction))
}

func (_m *MockStoryboardService) InsertShot(ctx context.Context, user models.CurrentUser, id string, after int) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, id, after))
}

func (_m *MockStoryboardService) DeleteShot(ctx context.Context, user models.CurrentUser, id string, number int) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, id, number))
}

func (_m *MockStoryboardService) SetFrameStyle(ctx context.Context, user models.CurrentUser, id string, number int, style string) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, id, number, style))
}

func (_m *MockStoryboardService) MergeCharacters(ctx context.Context, user models.CurrentUser, id string, defs []models.CharacterDefinition) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, id, defs))
}

func (_m *MockStoryboardService) RegenerateFrame(ctx context.Context, user models.CurrentUser, id string, number int) (*models.Project, error) {
	return projectResult(_m.Called(ctx, user, id, number))
}

func (_m *MockStoryboardService) GenerateAllFrames(ctx context.Context, user models.CurrentUser, id string) (*models.Project, *batch.Report, error) {
	ret := _m.Called(ctx, user, id)

	var r0 *models.Project
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Project)
	}
	var r1 *batch.Report
	if ret.Get(1) != nil {
		r1 = ret.Get(1).(*batch.Report)
	}
	return r0, r1, ret.Error(2)
}

func (_m *MockStoryboardService) StartGenerateAllFrames(ctx context.Context, user models.CurrentUser, id string) error {
	return _m.Called(ctx, user, id).Error(0)
}
