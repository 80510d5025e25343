package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyboard-server/internal/models"

	"go.uber.org/zap"
)

// sqliteTimeLayout sorts lexicographically in UTC.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	sqliteProjectColumns = `id, owner_id, title, script, genre, tone, style, aspect_ratio, style_reference,
        characters, shots, frames, created_at, updated_at`

	sqliteCreateProjectQuery = `
        INSERT INTO projects (` + sqliteProjectColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteGetProjectQuery = `SELECT ` + sqliteProjectColumns + ` FROM projects WHERE id = ?`

	sqliteSaveProjectQuery = `
        UPDATE projects SET
            title = ?, script = ?, genre = ?, tone = ?, style = ?, aspect_ratio = ?,
            style_reference = ?, characters = ?, shots = ?, frames = ?, updated_at = ?
        WHERE id = ?`

	sqliteListProjectsByOwnerQuery = `
        SELECT id, title, genre, tone, aspect_ratio, json_array_length(shots), created_at, updated_at
        FROM projects
        WHERE owner_id = ?
        ORDER BY updated_at DESC`

	sqliteDeleteProjectQuery = `DELETE FROM projects WHERE id = ?`
)

var _ ProjectRepository = (*sqliteProjectRepository)(nil)

type sqliteProjectRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLiteProjectRepository creates a project store on an sqlite database opened with
// database.OpenSQLite and migrated with database.ApplySQLiteMigrations.
func NewSQLiteProjectRepository(db *sql.DB, logger *zap.Logger) ProjectRepository {
	return &sqliteProjectRepository{
		db:     db,
		logger: logger.Named("SQLiteProjectRepo"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *sqliteProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if err := validateNew(project); err != nil {
		return err
	}
	created := project.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	characters, shots, frames, err := marshalProjectParts(project)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, sqliteCreateProjectQuery,
		project.ID, project.OwnerID, project.Title, project.Script, project.Genre, project.Tone,
		project.Style, string(project.AspectRatio), project.StyleReference,
		string(characters), string(shots), string(frames),
		formatSQLiteTime(created), formatSQLiteTime(created),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: project %s", models.ErrAlreadyExists, project.ID)
		}
		r.logger.Error("Failed to create project", zap.String("projectID", project.ID), zap.Error(err))
		return fmt.Errorf("error creating project: %w", err)
	}
	r.logger.Debug("Project created", zap.String("projectID", project.ID))
	return nil
}

func (r *sqliteProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanSQLiteProject(r.db.QueryRowContext(ctx, sqliteGetProjectQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		r.logger.Error("Failed to get project", zap.String("projectID", id), zap.Error(err))
		return nil, fmt.Errorf("error getting project %s: %w", id, err)
	}
	return p, nil
}

func (r *sqliteProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ProjectSummary, error) {
	rows, err := r.db.QueryContext(ctx, sqliteListProjectsByOwnerQuery, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing projects: %w", err)
	}
	defer rows.Close()

	out := make([]models.ProjectSummary, 0)
	for rows.Next() {
		var (
			s                models.ProjectSummary
			aspect           string
			created, updated string
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.Genre, &s.Tone, &aspect, &s.ShotCount, &created, &updated); err != nil {
			return nil, fmt.Errorf("error scanning project summary: %w", err)
		}
		s.AspectRatio = models.AspectRatio(aspect)
		if s.CreatedAt, err = parseSQLiteTime(created); err != nil {
			return nil, err
		}
		if s.UpdatedAt, err = parseSQLiteTime(updated); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sqliteProjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, sqliteDeleteProjectQuery, id)
	if err != nil {
		return fmt.Errorf("error deleting project %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

func (r *sqliteProjectRepository) UpdateScript(ctx context.Context, id string, upd models.ScriptUpdate) (*models.Project, error) {
	return r.update(ctx, id, scriptMutation(upd))
}

func (r *sqliteProjectRepository) ReplaceShots(ctx context.Context, id string, shots []models.Shot) (*models.Project, error) {
	return r.update(ctx, id, shotsMutation(shots))
}

func (r *sqliteProjectRepository) UpdateShot(ctx context.Context, id string, ref models.ShotRef, patch models.ShotPatch) (*models.Project, error) {
	return r.update(ctx, id, shotPatchMutation(ref, patch))
}

func (r *sqliteProjectRepository) InsertShot(ctx context.Context, id string, after int) (*models.Project, error) {
	return r.update(ctx, id, shotInsertMutation(after))
}

func (r *sqliteProjectRepository) DeleteShot(ctx context.Context, id string, number int) (*models.Project, error) {
	return r.update(ctx, id, shotDeleteMutation(number))
}

func (r *sqliteProjectRepository) ReplaceFrames(ctx context.Context, id string, frames []models.Frame) (*models.Project, error) {
	return r.update(ctx, id, framesMutation(frames))
}

func (r *sqliteProjectRepository) MergeFrame(ctx context.Context, id string, frame models.Frame) (*models.Project, error) {
	return r.update(ctx, id, frameMergeMutation(frame))
}

func (r *sqliteProjectRepository) MergeShotFrame(ctx context.Context, id, shotID string, frame models.Frame) (*models.Project, error) {
	return r.update(ctx, id, shotFrameMutation(shotID, frame))
}

func (r *sqliteProjectRepository) SetFrameStyle(ctx context.Context, id string, number int, style string) (*models.Project, error) {
	return r.update(ctx, id, frameStyleMutation(number, style))
}

func (r *sqliteProjectRepository) MergeCharacters(ctx context.Context, id string, defs []models.CharacterDefinition) (*models.Project, error) {
	return r.update(ctx, id, charactersMutation(defs))
}

// update runs the read-modify-write in one transaction; sqlite serialises writers.
func (r *sqliteProjectRepository) update(ctx context.Context, id string, fn mutation) (*models.Project, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := scanSQLiteProject(tx.QueryRowContext(ctx, sqliteGetProjectQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("error reading project %s: %w", id, err)
	}
	if err := apply(p, fn); err != nil {
		return nil, err
	}
	touch(p, r.now())

	characters, shots, frames, err := marshalProjectParts(p)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, sqliteSaveProjectQuery,
		p.Title, p.Script, p.Genre, p.Tone, p.Style, string(p.AspectRatio), p.StyleReference,
		string(characters), string(shots), string(frames), formatSQLiteTime(p.UpdatedAt), p.ID,
	); err != nil {
		r.logger.Error("Failed to save project", zap.String("projectID", id), zap.Error(err))
		return nil, fmt.Errorf("error saving project %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing project %s: %w", id, err)
	}
	return p, nil
}

func scanSQLiteProject(row *sql.Row) (*models.Project, error) {
	var (
		p                         models.Project
		aspect                    string
		characters, shots, frames string
		created, updated          string
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Script, &p.Genre, &p.Tone, &p.Style, &aspect,
		&p.StyleReference, &characters, &shots, &frames, &created, &updated)
	if err != nil {
		return nil, err
	}
	p.AspectRatio = models.AspectRatio(aspect)
	if err := unmarshalProjectParts(&p, []byte(characters), []byte(shots), []byte(frames)); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseSQLiteTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseSQLiteTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}
