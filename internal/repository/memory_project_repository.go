package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storyboard-server/internal/models"

	"go.uber.org/zap"
)

var _ ProjectRepository = (*memoryProjectRepository)(nil)

// memoryProjectRepository keeps projects in process memory. Callers always get deep copies.
// The map lock only guards membership; each project is read and updated under its own lock.
type memoryProjectRepository struct {
	mu       sync.RWMutex
	projects map[string]*memoryEntry
	logger   *zap.Logger
	now      func() time.Time
}

// memoryEntry holds one project. A nil project marks an entry deleted while a writer waited.
type memoryEntry struct {
	mu      sync.RWMutex
	project *models.Project
}

// NewMemoryProjectRepository creates an in-memory project store.
func NewMemoryProjectRepository(logger *zap.Logger) ProjectRepository {
	return &memoryProjectRepository{
		projects: make(map[string]*memoryEntry),
		logger:   logger.Named("MemoryProjectRepo"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if err := validateNew(project); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.projects[project.ID]; exists {
		return fmt.Errorf("%w: project %s", models.ErrAlreadyExists, project.ID)
	}
	stored := project.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}
	stored.UpdatedAt = stored.CreatedAt
	r.projects[stored.ID] = &memoryEntry{project: stored}
	r.logger.Debug("Project created", zap.String("projectID", stored.ID), zap.Int("shots", len(stored.Shots)))
	return nil
}

func (r *memoryProjectRepository) entry(id string) (*memoryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.projects[id]
	return e, ok
}

func (r *memoryProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, notFound(id)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.project == nil {
		return nil, notFound(id)
	}
	return e.project.Clone(), nil
}

func (r *memoryProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ProjectSummary, error) {
	r.mu.RLock()
	entries := make([]*memoryEntry, 0, len(r.projects))
	for _, e := range r.projects {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]models.ProjectSummary, 0)
	for _, e := range entries {
		e.mu.RLock()
		if e.project != nil && e.project.OwnerID == ownerID {
			out = append(out, e.project.Summary())
		}
		e.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memoryProjectRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.projects[id]
	delete(r.projects, id)
	r.mu.Unlock()
	if !ok {
		return notFound(id)
	}

	e.mu.Lock()
	e.project = nil
	e.mu.Unlock()
	r.logger.Debug("Project deleted", zap.String("projectID", id))
	return nil
}

func (r *memoryProjectRepository) UpdateScript(ctx context.Context, id string, upd models.ScriptUpdate) (*models.Project, error) {
	return r.update(id, scriptMutation(upd))
}

func (r *memoryProjectRepository) ReplaceShots(ctx context.Context, id string, shots []models.Shot) (*models.Project, error) {
	return r.update(id, shotsMutation(shots))
}

func (r *memoryProjectRepository) UpdateShot(ctx context.Context, id string, ref models.ShotRef, patch models.ShotPatch) (*models.Project, error) {
	return r.update(id, shotPatchMutation(ref, patch))
}

func (r *memoryProjectRepository) InsertShot(ctx context.Context, id string, after int) (*models.Project, error) {
	return r.update(id, shotInsertMutation(after))
}

func (r *memoryProjectRepository) DeleteShot(ctx context.Context, id string, number int) (*models.Project, error) {
	return r.update(id, shotDeleteMutation(number))
}

func (r *memoryProjectRepository) ReplaceFrames(ctx context.Context, id string, frames []models.Frame) (*models.Project, error) {
	return r.update(id, framesMutation(frames))
}

func (r *memoryProjectRepository) MergeFrame(ctx context.Context, id string, frame models.Frame) (*models.Project, error) {
	return r.update(id, frameMergeMutation(frame))
}

func (r *memoryProjectRepository) MergeShotFrame(ctx context.Context, id, shotID string, frame models.Frame) (*models.Project, error) {
	return r.update(id, shotFrameMutation(shotID, frame))
}

func (r *memoryProjectRepository) SetFrameStyle(ctx context.Context, id string, number int, style string) (*models.Project, error) {
	return r.update(id, frameStyleMutation(number, style))
}

func (r *memoryProjectRepository) MergeCharacters(ctx context.Context, id string, defs []models.CharacterDefinition) (*models.Project, error) {
	return r.update(id, charactersMutation(defs))
}

// update applies fn to a copy of the stored project and swaps it in only when fn succeeds.
func (r *memoryProjectRepository) update(id string, fn mutation) (*models.Project, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.project == nil {
		return nil, notFound(id)
	}

	next := e.project.Clone()
	if err := apply(next, fn); err != nil {
		return nil, err
	}
	touch(next, r.now())
	e.project = next
	return next.Clone(), nil
}
