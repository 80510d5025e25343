package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyboard-server/internal/batch"
	"storyboard-server/internal/messaging"
	"storyboard-server/internal/models"
	"storyboard-server/internal/planner"
	"storyboard-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const eventPublishTimeout = 5 * time.Second

// ShotPlanner turns scripts into shot lists and revises single shots. *planner.Planner
// implements it.
type ShotPlanner interface {
	PlanDetailed(ctx context.Context, userID string, req planner.PlanRequest) ([]models.Shot, error)
	QuickStoryboard(ctx context.Context, userID, script, style string, aspect models.AspectRatio) (*planner.QuickPlan, error)
	ReviseShot(ctx context.Context, userID string, shot models.Shot, instruction string) (models.ShotPatch, error)
}

// FrameGenerator renders frames through the shared pacer. *batch.Runner implements it.
type FrameGenerator interface {
	Run(ctx context.Context, projectID string, hook batch.FrameHook) (*batch.Report, error)
	Start(ctx context.Context, projectID string, hook batch.FrameHook, done func(*batch.Report, error)) error
	RenderOne(ctx context.Context, projectID string, number int) (models.Frame, error)
}

// CreateStoryboardRequest starts a project through the detailed breakdown.
type CreateStoryboardRequest struct {
	Title          string                       `json:"title"`
	Script         string                       `json:"script"`
	Genre          string                       `json:"genre"`
	Tone           string                       `json:"tone"`
	Style          string                       `json:"style"`
	AspectRatio    models.AspectRatio           `json:"aspect_ratio"`
	StyleReference string                       `json:"style_reference"`
	Characters     []models.CharacterDefinition `json:"characters"`
}

// QuickStoryboardRequest starts a project through the fused plan-and-render call.
type QuickStoryboardRequest struct {
	Title          string                       `json:"title"`
	Script         string                       `json:"script"`
	Style          string                       `json:"style"`
	AspectRatio    models.AspectRatio           `json:"aspect_ratio"`
	StyleReference string                       `json:"style_reference"`
	Characters     []models.CharacterDefinition `json:"characters"`
}

// StoryboardService is the controller for storyboard projects. Every operation acts on behalf
// of an explicit user; projects of other users are reported as not found.
type StoryboardService interface {
	CreateStoryboard(ctx context.Context, user models.CurrentUser, req CreateStoryboardRequest) (*models.Project, error)
	CreateQuickStoryboard(ctx context.Context, user models.CurrentUser, req QuickStoryboardRequest) (*models.Project, error)
	GetProject(ctx context.Context, user models.CurrentUser, id string) (*models.Project, error)
	ListProjects(ctx context.Context, user models.CurrentUser) ([]models.ProjectSummary, error)
	DeleteProject(ctx context.Context, user models.CurrentUser, id string) error

	UpdateScript(ctx context.Context, user models.CurrentUser, id string, upd models.ScriptUpdate) (*models.Project, error)
	UpdateShot(ctx context.Context, user models.CurrentUser, id string, number int, patch models.ShotPatch) (*models.Project, error)
	EditShotWithPrompt(ctx context.Context, user models.CurrentUser, id string, number int, instruction string) (*models.Project, error)
	InsertShot(ctx context.Context, user models.CurrentUser, id string, after int) (*models.Project, error)
	DeleteShot(ctx context.Context, user models.CurrentUser, id string, number int) (*models.Project, error)
	SetFrameStyle(ctx context.Context, user models.CurrentUser, id string, number int, style string) (*models.Project, error)
	MergeCharacters(ctx context.Context, user models.CurrentUser, id string, defs []models.CharacterDefinition) (*models.Project, error)

	RegenerateFrame(ctx context.Context, user models.CurrentUser, id string, number int) (*models.Project, error)
	GenerateAllFrames(ctx context.Context, user models.CurrentUser, id string) (*models.Project, *batch.Report, error)
	StartGenerateAllFrames(ctx context.Context, user models.CurrentUser, id string) error
}

type storyboardServiceImpl struct {
	repo      repository.ProjectRepository
	planner   ShotPlanner
	frames    FrameGenerator
	publisher messaging.EventPublisher
	logger    *zap.Logger
	newID     func() string
}

// NewStoryboardService creates a new instance of StoryboardService.
func NewStoryboardService(
	repo repository.ProjectRepository,
	planner ShotPlanner,
	frames FrameGenerator,
	publisher messaging.EventPublisher,
	logger *zap.Logger,
) StoryboardService {
	return &storyboardServiceImpl{
		repo:      repo,
		planner:   planner,
		frames:    frames,
		publisher: publisher,
		logger:    logger.Named("StoryboardService"),
		newID:     uuid.NewString,
	}
}

func (s *storyboardServiceImpl) CreateStoryboard(ctx context.Context, user models.CurrentUser, req CreateStoryboardRequest) (*models.Project, error) {
	if user.IsZero() {
		return nil, models.ErrUnauthorized
	}
	log := s.logger.With(zap.String("userID", user.ID))
	aspect, err := normalizeAspect(req.AspectRatio)
	if err != nil {
		return nil, err
	}

	// nothing is persisted until the plan has been validated
	shots, err := s.planner.PlanDetailed(ctx, user.ID, planner.PlanRequest{Script: req.Script, Genre: req.Genre, Tone: req.Tone})
	if err != nil {
		log.Warn("Detailed planning failed", zap.Error(err))
		return nil, err
	}

	p := &models.Project{
		ID:             s.newID(),
		OwnerID:        user.ID,
		Title:          strings.TrimSpace(req.Title),
		Script:         req.Script,
		Genre:          req.Genre,
		Tone:           req.Tone,
		Style:          req.Style,
		AspectRatio:    aspect,
		StyleReference: req.StyleReference,
		Shots:          shots,
		Frames:         models.InitialFrames(shots),
	}
	if err := models.MergeCharacters(p, req.Characters); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		log.Error("Failed to store new storyboard", zap.Error(err))
		return nil, fmt.Errorf("error creating storyboard: %w", err)
	}
	log.Info("Storyboard created", zap.String("projectID", p.ID), zap.Int("shots", len(shots)))

	s.publish(ctx, messaging.Event{
		Type:      messaging.EventStoryboardCreated,
		ProjectID: p.ID,
		OwnerID:   p.OwnerID,
		ShotCount: len(p.Shots),
	})
	return s.repo.GetByID(ctx, p.ID)
}

func (s *storyboardServiceImpl) CreateQuickStoryboard(ctx context.Context, user models.CurrentUser, req QuickStoryboardRequest) (*models.Project, error) {
	if user.IsZero() {
		return nil, models.ErrUnauthorized
	}
	log := s.logger.With(zap.String("userID", user.ID))
	aspect, err := normalizeAspect(req.AspectRatio)
	if err != nil {
		return nil, err
	}

	plan, err := s.planner.QuickStoryboard(ctx, user.ID, req.Script, req.Style, aspect)
	if err != nil {
		log.Warn("Quick storyboard failed", zap.Error(err))
		return nil, err
	}

	p := &models.Project{
		ID:             s.newID(),
		OwnerID:        user.ID,
		Title:          strings.TrimSpace(req.Title),
		Script:         req.Script,
		Style:          req.Style,
		AspectRatio:    aspect,
		StyleReference: req.StyleReference,
		Shots:          plan.Shots,
		Frames:         plan.Frames,
	}
	if err := models.MergeCharacters(p, req.Characters); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		log.Error("Failed to store quick storyboard", zap.Error(err))
		return nil, fmt.Errorf("error creating storyboard: %w", err)
	}
	log.Info("Quick storyboard created", zap.String("projectID", p.ID), zap.Int("shots", len(p.Shots)))

	s.publish(ctx, messaging.Event{
		Type:      messaging.EventStoryboardCreated,
		ProjectID: p.ID,
		OwnerID:   p.OwnerID,
		ShotCount: len(p.Shots),
	})
	return s.repo.GetByID(ctx, p.ID)
}

func (s *storyboardServiceImpl) GetProject(ctx context.Context, user models.CurrentUser, id string) (*models.Project, error) {
	return s.owned(ctx, user, id)
}

func (s *storyboardServiceImpl) ListProjects(ctx context.Context, user models.CurrentUser) ([]models.ProjectSummary, error) {
	if user.IsZero() {
		return nil, models.ErrUnauthorized
	}
	return s.repo.ListByOwner(ctx, user.ID)
}

func (s *storyboardServiceImpl) DeleteProject(ctx context.Context, user models.CurrentUser, id string) error {
	if _, err := s.owned(ctx, user, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Storyboard deleted", zap.String("projectID", id), zap.String("userID", user.ID))
	return nil
}

func (s *storyboardServiceImpl) UpdateScript(ctx context.Context, user models.CurrentUser, id string, upd models.ScriptUpdate) (*models.Project, error) {
	if _, err := s.owned(ctx, user, id); err != nil {
		return nil, err
	}
	if upd.Script != nil && strings.TrimSpace(*upd.Script) == "" {
		return nil, models.ErrEmptyScript
	}
	return s.repo.UpdateScript(ctx, id, upd)
}

func (s *storyboardServiceImpl) UpdateShot(ctx context.Context, user models.CurrentUser, id string, number int, patch models.ShotPatch) (*models.Project, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: shot patch changes nothing", models.ErrInvalidInput)
	}
	if _, err := s.owned(ctx, user, id); err != nil {
		return nil, err
	}
	return s.repo.UpdateShot(ctx, id, models.ShotRef{Number: number}, patch)
}

// EditShotWithPrompt revises one shot through the model. The patch is applied to the shot by
// its ID, so edits that land while the model is thinking are kept and a renumbered shot is
// still the one patched.
func (s *storyboardServiceImpl) EditShotWithPrompt(ctx context.Context, user models.CurrentUser, id string, number int, instruction string) (*models.Project, error) {
	p, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	shot, ok := p.Shot(number)
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrShotNotFound, number)
	}

	patch, err := s.planner.ReviseShot(ctx, user.ID, shot, instruction)
	if err != nil {
		s.logger.Warn("Shot revision failed", zap.String("projectID", id), zap.Int("shot", number), zap.Error(err))
		return nil, err
	}
	if patch.IsEmpty() {
		return p, nil
	}
	return s.repo.UpdateShot(ctx, id, models.ShotRef{ID: shot.ID, Number: number}, patch)
}

func (s *storyboardServiceImpl) InsertShot(ctx context.Context, user models.CurrentUser, id string, after int) (*models.Project, error) {
	if _, err := s.owned(ctx, user, id); err != nil {
		return nil, err
	}
	return s.repo.InsertShot(ctx, id, after)
}

func (s *storyboardServiceImpl) DeleteShot(ctx context.Context, user models.CurrentUser, id string, number int) (*models.Project, error) {
	if _, err := s.owned(ctx, user, id); err != nil {
		return nil, err
	}
	return s.repo.DeleteShot(ctx, id, number)
}

func (s *storyboardServiceImpl) SetFrameStyle(ctx context.Context, user models.CurrentUser, id string, number int, style string) (*models.Project, error) {
	if _, err := s.owned(ctx, user, id); err != nil {
		return nil, err
	}
	return s.repo.SetFrameStyle(ctx, id, number, style)
}

func (s *storyboardServiceImpl) MergeCharacters(ctx context.Context, user models.CurrentUser, id string, defs []models.CharacterDefinition) (*models.Project, error) {
	if _, err := s.owned(ctx, user, id); err != nil {
		return nil, err
	}
	return s.repo.MergeCharacters(ctx, id, defs)
}

// RegenerateFrame renders one frame regardless of its current state. A render failure is stored
// on the frame and also returned.
func (s *storyboardServiceImpl) RegenerateFrame(ctx context.Context, user models.CurrentUser, id string, number int) (*models.Project, error) {
	p, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if _, ok := p.Shot(number); !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrShotNotFound, number)
	}

	frame, renderErr := s.frames.RenderOne(ctx, id, number)
	if renderErr != nil && frame.Status != models.FrameErrored {
		// nothing was recorded: store failure or cancellation before the render
		return nil, renderErr
	}
	s.publishFrame(ctx, p.OwnerID, id, frame)

	latest, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return latest, renderErr
}

// GenerateAllFrames runs the batch to completion and returns the re-fetched project.
func (s *storyboardServiceImpl) GenerateAllFrames(ctx context.Context, user models.CurrentUser, id string) (*models.Project, *batch.Report, error) {
	p, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.frames.Run(ctx, id, s.frameHook(p.OwnerID))
	if err != nil {
		return nil, report, err
	}
	s.publishBatch(ctx, p.OwnerID, report)

	latest, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, report, err
	}
	return latest, report, nil
}

// StartGenerateAllFrames claims the project and runs the batch in the background, detached from
// the caller's cancellation.
func (s *storyboardServiceImpl) StartGenerateAllFrames(ctx context.Context, user models.CurrentUser, id string) error {
	p, err := s.owned(ctx, user, id)
	if err != nil {
		return err
	}
	log := s.logger.With(zap.String("projectID", id))
	bg := context.WithoutCancel(ctx)
	err = s.frames.Start(bg, id, s.frameHook(p.OwnerID), func(report *batch.Report, err error) {
		if err != nil {
			log.Error("Background batch failed", zap.Error(err))
			return
		}
		s.publishBatch(bg, p.OwnerID, report)
	})
	if err != nil {
		return err
	}
	log.Info("Background batch started")
	return nil
}

func (s *storyboardServiceImpl) frameHook(ownerID string) batch.FrameHook {
	return func(ctx context.Context, projectID string, frame models.Frame) {
		s.publishFrame(ctx, ownerID, projectID, frame)
	}
}

func (s *storyboardServiceImpl) publishFrame(ctx context.Context, ownerID, projectID string, frame models.Frame) {
	event := messaging.Event{
		Type:       messaging.EventFrameRendered,
		ProjectID:  projectID,
		OwnerID:    ownerID,
		ShotNumber: frame.ShotNumber,
		Fallback:   frame.Fallback,
		Error:      frame.Error,
	}
	if frame.Status == models.FrameErrored {
		event.Type = messaging.EventFrameErrored
	}
	s.publish(ctx, event)
}

func (s *storyboardServiceImpl) publishBatch(ctx context.Context, ownerID string, report *batch.Report) {
	if report == nil {
		return
	}
	s.publish(ctx, messaging.Event{
		Type:      messaging.EventBatchCompleted,
		ProjectID: report.ProjectID,
		OwnerID:   ownerID,
		Rendered:  report.Rendered,
		Errored:   report.Errored,
		Skipped:   report.Skipped,
	})
}

// publish never fails the caller; the event is best effort once the write has happened.
func (s *storyboardServiceImpl) publish(ctx context.Context, event messaging.Event) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("type", string(event.Type)), zap.String("projectID", event.ProjectID), zap.Error(err))
	}
}

// owned loads a project and hides projects of other users behind ErrNotFound.
func (s *storyboardServiceImpl) owned(ctx context.Context, user models.CurrentUser, id string) (*models.Project, error) {
	if user.IsZero() {
		return nil, models.ErrUnauthorized
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("Failed to load project", zap.String("projectID", id), zap.Error(err))
		}
		return nil, err
	}
	if p.OwnerID != user.ID {
		s.logger.Warn("Project requested by another user", zap.String("projectID", id), zap.String("userID", user.ID))
		return nil, fmt.Errorf("%w: project %s", models.ErrNotFound, id)
	}
	return p, nil
}

func normalizeAspect(a models.AspectRatio) (models.AspectRatio, error) {
	if a == "" {
		return models.AspectWide, nil
	}
	if !a.Valid() {
		return "", fmt.Errorf("%w: aspect ratio %q must be %q or %q", models.ErrInvalidInput, a, models.AspectWide, models.AspectTall)
	}
	return a, nil
}
