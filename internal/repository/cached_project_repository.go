package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storyboard-server/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const projectCacheKeyPrefix = "storyboard:project:"

var _ ProjectRepository = (*cachedProjectRepository)(nil)

// cachedProjectRepository is a read-through Redis cache in front of another store.
// Updates go to the inner store first and then drop the cached copy; re-caching the result
// would let two concurrent writers leave the older snapshot behind. Cache failures are logged
// and ignored.
type cachedProjectRepository struct {
	inner  ProjectRepository
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProjectRepository wraps inner with a Redis cache for GetByID.
func NewCachedProjectRepository(inner ProjectRepository, client redis.Cmdable, ttl time.Duration, logger *zap.Logger) ProjectRepository {
	return &cachedProjectRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.Named("CachedProjectRepo"),
	}
}

func projectCacheKey(id string) string {
	return projectCacheKeyPrefix + id
}

func (r *cachedProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if err := r.inner.Create(ctx, project); err != nil {
		return err
	}
	r.invalidate(ctx, project.ID)
	return nil
}

func (r *cachedProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	data, err := r.client.Get(ctx, projectCacheKey(id)).Bytes()
	switch {
	case err == nil:
		var p models.Project
		if uerr := json.Unmarshal(data, &p); uerr == nil {
			return &p, nil
		}
		r.logger.Warn("Dropping undecodable cache entry", zap.String("projectID", id))
		r.invalidate(ctx, id)
	case errors.Is(err, redis.Nil):
	default:
		r.logger.Warn("Project cache read failed", zap.String("projectID", id), zap.Error(err))
	}

	p, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, p)
	return p, nil
}

func (r *cachedProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ProjectSummary, error) {
	return r.inner.ListByOwner(ctx, ownerID)
}

func (r *cachedProjectRepository) Delete(ctx context.Context, id string) error {
	err := r.inner.Delete(ctx, id)
	r.invalidate(ctx, id)
	return err
}

func (r *cachedProjectRepository) UpdateScript(ctx context.Context, id string, upd models.ScriptUpdate) (*models.Project, error) {
	return r.evict(ctx, id)(r.inner.UpdateScript(ctx, id, upd))
}

func (r *cachedProjectRepository) ReplaceShots(ctx context.Context, id string, shots []models.Shot) (*models.Project, error) {
	return r.evict(ctx, id)(r.inner.ReplaceShots(ctx, id, shots))
}

func (r *cachedProjectRepository) UpdateShot(ctx context.Context, id string, ref models.ShotRef, patch models.ShotPatch) (*models.Project, error) {
	return r.evict(ctx, id)(r.inner.UpdateShot(ctx, id, ref, patch))
}

func (r *cachedProjectRepository) InsertShot(ctx context.Context, id string, after int) (*models.Project, error) {
	return r.evict(ctx, id)(r.inner.InsertShot(ctx, id, after))
}

func (r *cachedProjectRepository) DeleteShot(ctx context.Context, id string, number int) (*models.Project, error) {
	return r.evict(ctx, id)(r.inner.DeleteShot(ctx, id, number))
}

func (r *cachedProjectRepository) ReplaceFrames(ctx context.Context, id string, frames []models.Frame) (*models.Project, error) {
	return r.evict(ctx, id)(r.inner.ReplaceFrames(ctx, id, frames))
}

func (r *cachedProjectRepository) MergeFrame(ctx context.Context, id string, frame models.Frame) (*models.Project, error) {
	return r.evict(ctx, id)(r.inner.MergeFrame(ctx, id, frame))
}

func (r *cachedProjectRepository) MergeShotFrame(ctx context.Context, id, shotID string, frame models.Frame) (*models.Project, error) {
	return r.evict(ctx, id)(r.inner.MergeShotFrame(ctx, id, shotID, frame))
}

func (r *cachedProjectRepository) SetFrameStyle(ctx context.Context, id string, number int, style string) (*models.Project, error) {
	return r.evict(ctx, id)(r.inner.SetFrameStyle(ctx, id, number, style))
}

func (r *cachedProjectRepository) MergeCharacters(ctx context.Context, id string, defs []models.CharacterDefinition) (*models.Project, error) {
	return r.evict(ctx, id)(r.inner.MergeCharacters(ctx, id, defs))
}

// evict returns a pass-through for an inner update result that drops the cache entry.
func (r *cachedProjectRepository) evict(ctx context.Context, id string) func(*models.Project, error) (*models.Project, error) {
	return func(p *models.Project, err error) (*models.Project, error) {
		r.invalidate(ctx, id)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (r *cachedProjectRepository) store(ctx context.Context, p *models.Project) {
	data, err := json.Marshal(p)
	if err != nil {
		r.logger.Warn("Failed to encode project for cache", zap.String("projectID", p.ID), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, projectCacheKey(p.ID), data, r.ttl).Err(); err != nil {
		r.logger.Warn("Project cache write failed", zap.String("projectID", p.ID), zap.Error(err))
	}
}

func (r *cachedProjectRepository) invalidate(ctx context.Context, id string) {
	if err := r.client.Del(ctx, projectCacheKey(id)).Err(); err != nil {
		r.logger.Warn("Project cache invalidation failed", zap.String("projectID", id), zap.Error(fmt.Errorf("del: %w", err)))
	}
}
