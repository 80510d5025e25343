package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storyboard-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxStarter is a DBTX that can open transactions, such as *pgxpool.Pool.
type TxStarter interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

const pgUniqueViolation = "23505"

const (
	pgProjectColumns = `id, owner_id, title, script, genre, tone, style, aspect_ratio, style_reference,
        characters, shots, frames, created_at, updated_at`

	createProjectQuery = `
        INSERT INTO projects (` + pgProjectColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	getProjectQuery = `SELECT ` + pgProjectColumns + ` FROM projects WHERE id = $1`

	getProjectForUpdateQuery = getProjectQuery + ` FOR UPDATE`

	saveProjectQuery = `
        UPDATE projects SET
            title = $2, script = $3, genre = $4, tone = $5, style = $6, aspect_ratio = $7,
            style_reference = $8, characters = $9, shots = $10, frames = $11, updated_at = $12
        WHERE id = $1`

	listProjectsByOwnerQuery = `
        SELECT id, title, genre, tone, aspect_ratio, jsonb_array_length(shots) AS shot_count,
               created_at, updated_at
        FROM projects
        WHERE owner_id = $1
        ORDER BY updated_at DESC`

	deleteProjectQuery = `DELETE FROM projects WHERE id = $1`
)

var _ ProjectRepository = (*pgProjectRepository)(nil)

type pgProjectRepository struct {
	db     TxStarter
	logger *zap.Logger
	now    func() time.Time
}

// NewPgProjectRepository creates a PostgreSQL-backed project store.
func NewPgProjectRepository(db TxStarter, logger *zap.Logger) ProjectRepository {
	return &pgProjectRepository{
		db:     db,
		logger: logger.Named("PgProjectRepo"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *pgProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if err := validateNew(project); err != nil {
		return err
	}
	logFields := []zap.Field{zap.String("projectID", project.ID), zap.String("ownerID", project.OwnerID)}

	created := project.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	characters, shots, frames, err := marshalProjectParts(project)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, createProjectQuery,
		project.ID, project.OwnerID, project.Title, project.Script, project.Genre, project.Tone,
		project.Style, string(project.AspectRatio), project.StyleReference,
		characters, shots, frames, created, created,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: project %s", models.ErrAlreadyExists, project.ID)
		}
		r.logger.Error("Failed to create project", append(logFields, zap.Error(err))...)
		return fmt.Errorf("error creating project: %w", err)
	}
	r.logger.Info("Project created", logFields...)
	return nil
}

func (r *pgProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, getProjectQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		r.logger.Error("Failed to get project", zap.String("projectID", id), zap.Error(err))
		return nil, fmt.Errorf("error getting project %s: %w", id, err)
	}
	return p, nil
}

func (r *pgProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ProjectSummary, error) {
	out := make([]models.ProjectSummary, 0)
	if err := pgxscan.Select(ctx, r.db, &out, listProjectsByOwnerQuery, ownerID); err != nil {
		r.logger.Error("Failed to list projects", zap.String("ownerID", ownerID), zap.Error(err))
		return nil, fmt.Errorf("error listing projects: %w", err)
	}
	return out, nil
}

func (r *pgProjectRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteProjectQuery, id)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.String("projectID", id), zap.Error(err))
		return fmt.Errorf("error deleting project %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (r *pgProjectRepository) UpdateScript(ctx context.Context, id string, upd models.ScriptUpdate) (*models.Project, error) {
	return r.update(ctx, id, scriptMutation(upd))
}

func (r *pgProjectRepository) ReplaceShots(ctx context.Context, id string, shots []models.Shot) (*models.Project, error) {
	return r.update(ctx, id, shotsMutation(shots))
}

func (r *pgProjectRepository) UpdateShot(ctx context.Context, id string, ref models.ShotRef, patch models.ShotPatch) (*models.Project, error) {
	return r.update(ctx, id, shotPatchMutation(ref, patch))
}

func (r *pgProjectRepository) InsertShot(ctx context.Context, id string, after int) (*models.Project, error) {
	return r.update(ctx, id, shotInsertMutation(after))
}

func (r *pgProjectRepository) DeleteShot(ctx context.Context, id string, number int) (*models.Project, error) {
	return r.update(ctx, id, shotDeleteMutation(number))
}

func (r *pgProjectRepository) ReplaceFrames(ctx context.Context, id string, frames []models.Frame) (*models.Project, error) {
	return r.update(ctx, id, framesMutation(frames))
}

func (r *pgProjectRepository) MergeFrame(ctx context.Context, id string, frame models.Frame) (*models.Project, error) {
	return r.update(ctx, id, frameMergeMutation(frame))
}

func (r *pgProjectRepository) MergeShotFrame(ctx context.Context, id, shotID string, frame models.Frame) (*models.Project, error) {
	return r.update(ctx, id, shotFrameMutation(shotID, frame))
}

func (r *pgProjectRepository) SetFrameStyle(ctx context.Context, id string, number int, style string) (*models.Project, error) {
	return r.update(ctx, id, frameStyleMutation(number, style))
}

func (r *pgProjectRepository) MergeCharacters(ctx context.Context, id string, defs []models.CharacterDefinition) (*models.Project, error) {
	return r.update(ctx, id, charactersMutation(defs))
}

// update locks the row, applies fn to the latest state and writes it back in one transaction.
func (r *pgProjectRepository) update(ctx context.Context, id string, fn mutation) (*models.Project, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanProject(tx.QueryRow(ctx, getProjectForUpdateQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("error locking project %s: %w", id, err)
	}
	if err := apply(p, fn); err != nil {
		return nil, err
	}
	touch(p, r.now())

	characters, shots, frames, err := marshalProjectParts(p)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, saveProjectQuery,
		p.ID, p.Title, p.Script, p.Genre, p.Tone, p.Style, string(p.AspectRatio), p.StyleReference,
		characters, shots, frames, p.UpdatedAt,
	); err != nil {
		r.logger.Error("Failed to save project", zap.String("projectID", id), zap.Error(err))
		return nil, fmt.Errorf("error saving project %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("error committing project %s: %w", id, err)
	}
	return p, nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var (
		p                         models.Project
		aspect                    string
		characters, shots, frames []byte
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Script, &p.Genre, &p.Tone, &p.Style, &aspect,
		&p.StyleReference, &characters, &shots, &frames, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.AspectRatio = models.AspectRatio(aspect)
	if err := unmarshalProjectParts(&p, characters, shots, frames); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func marshalProjectParts(p *models.Project) (characters, shots, frames []byte, err error) {
	if characters, err = json.Marshal(nonNil(p.Characters)); err != nil {
		return nil, nil, nil, fmt.Errorf("error marshalling characters: %w", err)
	}
	if shots, err = json.Marshal(nonNil(p.Shots)); err != nil {
		return nil, nil, nil, fmt.Errorf("error marshalling shots: %w", err)
	}
	if frames, err = json.Marshal(nonNil(p.Frames)); err != nil {
		return nil, nil, nil, fmt.Errorf("error marshalling frames: %w", err)
	}
	return characters, shots, frames, nil
}

func unmarshalProjectParts(p *models.Project, characters, shots, frames []byte) error {
	if err := json.Unmarshal(characters, &p.Characters); err != nil {
		return fmt.Errorf("error decoding characters of project %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(shots, &p.Shots); err != nil {
		return fmt.Errorf("error decoding shots of project %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(frames, &p.Frames); err != nil {
		return fmt.Errorf("error decoding frames of project %s: %w", p.ID, err)
	}
	return nil
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
