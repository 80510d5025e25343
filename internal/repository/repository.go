package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storyboard-server/internal/models"
)

// ProjectRepository is the project state store.
//
// Every update is a read-modify-write against the latest stored state inside a per-project
// critical section, so an update touching one part of a project never discards another part.
// Concurrent writers are not versioned: the last write wins. Shots carry a stable ID that the
// store assigns on Create and on any update that meets a shot without one.
type ProjectRepository interface {
	// Create fills in missing shot IDs on project before storing it.
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.ProjectSummary, error)
	Delete(ctx context.Context, id string) error

	UpdateScript(ctx context.Context, id string, upd models.ScriptUpdate) (*models.Project, error)
	// ReplaceShots renumbers shots 1..N. An incoming shot's Number is its number before the edit
	// (0 for a new shot); frames follow their shots and frames of removed shots are dropped.
	ReplaceShots(ctx context.Context, id string, shots []models.Shot) (*models.Project, error)
	// UpdateShot patches one shot in place. ref.ID, when set, wins over ref.Number.
	UpdateShot(ctx context.Context, id string, ref models.ShotRef, patch models.ShotPatch) (*models.Project, error)
	// InsertShot places an empty shot after shot number after (0 for the front) and renumbers.
	InsertShot(ctx context.Context, id string, after int) (*models.Project, error)
	// DeleteShot removes one shot with its frame and renumbers.
	DeleteShot(ctx context.Context, id string, number int) (*models.Project, error)
	// ReplaceFrames rejects frames that reference unknown shots.
	ReplaceFrames(ctx context.Context, id string, frames []models.Frame) (*models.Project, error)
	// MergeFrame upserts one frame by shot number.
	MergeFrame(ctx context.Context, id string, frame models.Frame) (*models.Project, error)
	// MergeShotFrame upserts the frame of the shot with the given ID under the shot's current
	// number. It fails with ErrShotNotFound once the shot is gone.
	MergeShotFrame(ctx context.Context, id, shotID string, frame models.Frame) (*models.Project, error)
	// SetFrameStyle sets or clears the per-frame style override of one shot.
	SetFrameStyle(ctx context.Context, id string, number int, style string) (*models.Project, error)
	// MergeCharacters upserts definitions by case-insensitive name.
	MergeCharacters(ctx context.Context, id string, defs []models.CharacterDefinition) (*models.Project, error)
}

// mutation is one partial update applied to the latest stored project.
type mutation func(p *models.Project) error

func scriptMutation(upd models.ScriptUpdate) mutation {
	return func(p *models.Project) error {
		if upd.AspectRatio != nil && !upd.AspectRatio.Valid() {
			return fmt.Errorf("%w: aspect ratio %q", models.ErrInvalidInput, *upd.AspectRatio)
		}
		upd.Apply(p)
		return nil
	}
}

func shotsMutation(shots []models.Shot) mutation {
	return func(p *models.Project) error {
		models.ApplyShotList(p, shots)
		return nil
	}
}

func shotPatchMutation(ref models.ShotRef, patch models.ShotPatch) mutation {
	return func(p *models.Project) error {
		idx := ref.Index(p.Shots)
		if idx < 0 {
			return fmt.Errorf("%w: %s", models.ErrShotNotFound, ref)
		}
		patch.Apply(&p.Shots[idx])
		return nil
	}
}

func shotInsertMutation(after int) mutation {
	return func(p *models.Project) error {
		shots, err := models.InsertShotAfter(p.Shots, after)
		if err != nil {
			return err
		}
		models.ApplyShotList(p, shots)
		return nil
	}
}

func shotDeleteMutation(number int) mutation {
	return func(p *models.Project) error {
		shots, err := models.RemoveShot(p.Shots, number)
		if err != nil {
			return err
		}
		models.ApplyShotList(p, shots)
		return nil
	}
}

func framesMutation(frames []models.Frame) mutation {
	return func(p *models.Project) error {
		if err := models.CheckFrames(p.Shots, frames); err != nil {
			return err
		}
		next := make([]models.Frame, len(frames))
		copy(next, frames)
		models.SortFrames(next)
		p.Frames = next
		return nil
	}
}

func frameMergeMutation(frame models.Frame) mutation {
	return func(p *models.Project) error {
		return models.MergeFrame(p, frame)
	}
}

func shotFrameMutation(shotID string, frame models.Frame) mutation {
	return func(p *models.Project) error {
		_, err := models.MergeShotFrame(p, shotID, frame)
		return err
	}
}

func frameStyleMutation(number int, style string) mutation {
	return func(p *models.Project) error {
		return models.SetFrameStyle(p, number, style)
	}
}

func charactersMutation(defs []models.CharacterDefinition) mutation {
	return func(p *models.Project) error {
		return models.MergeCharacters(p, defs)
	}
}

// apply runs fn on the latest stored state. Shots stored before IDs existed get one here.
func apply(p *models.Project, fn mutation) error {
	models.EnsureShotIDs(p.Shots)
	return fn(p)
}

// validateNew checks a project before it is first stored and fills in missing shot IDs.
func validateNew(p *models.Project) error {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: project id is required", models.ErrInvalidInput)
	}
	if strings.TrimSpace(p.OwnerID) == "" {
		return fmt.Errorf("%w: owner id is required", models.ErrInvalidInput)
	}
	if !p.AspectRatio.Valid() {
		return fmt.Errorf("%w: aspect ratio %q", models.ErrInvalidInput, p.AspectRatio)
	}
	for i, s := range p.Shots {
		if s.Number != i+1 {
			return fmt.Errorf("%w: shot numbers must run 1..N, got %d at position %d", models.ErrInvalidInput, s.Number, i+1)
		}
	}
	if err := models.CheckFrames(p.Shots, p.Frames); err != nil {
		return err
	}
	models.EnsureShotIDs(p.Shots)
	return nil
}

// touch stamps UpdatedAt, keeping it monotonic for the project.
func touch(p *models.Project, now time.Time) {
	if !now.After(p.UpdatedAt) {
		now = p.UpdatedAt.Add(time.Microsecond)
	}
	p.UpdatedAt = now
}

func notFound(id string) error {
	return fmt.Errorf("%w: project %s", models.ErrNotFound, id)
}
