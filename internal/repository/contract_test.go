package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"storyboard-server/internal/models"
	"storyboard-server/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newProject builds a valid project with n pending shots.
func newProject(id, owner string, n int) *models.Project {
	p := &models.Project{
		ID:          id,
		OwnerID:     owner,
		Title:       "Title " + id,
		Script:      "INT. ROOF - NIGHT",
		Genre:       "thriller",
		Tone:        "tense",
		AspectRatio: models.AspectWide,
	}
	for i := 1; i <= n; i++ {
		p.Shots = append(p.Shots, models.Shot{Number: i, Description: fmt.Sprintf("shot %d", i), CameraAngle: "wide", Characters: []string{}})
	}
	p.Frames = models.InitialFrames(p.Shots)
	return p
}

func rendered(n int, image string) models.Frame {
	at := time.Now().UTC()
	return models.Frame{ShotNumber: n, Status: models.FrameRendered, Image: image, GeneratedAt: &at}
}

// runProjectRepositoryContract exercises behaviour every ProjectRepository backend shares.
// newRepo must return an empty store.
func runProjectRepositoryContract(t *testing.T, newRepo func(t *testing.T) repository.ProjectRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("p1", "u1", 3)))

		p, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "u1", p.OwnerID)
		assert.Len(t, p.Shots, 3)
		assert.Len(t, p.Frames, 3)
		assert.False(t, p.CreatedAt.IsZero())

		p.Shots[0].Description = "changed by caller"
		again, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "shot 1", again.Shots[0].Description)

		assert.ErrorIs(t, repo.Create(ctx, newProject("p1", "u1", 1)), models.ErrAlreadyExists)

		_, err = repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("create validates", func(t *testing.T) {
		repo := newRepo(t)
		bad := newProject("p2", "u1", 2)
		bad.Shots[1].Number = 5
		bad.Frames = nil
		assert.ErrorIs(t, repo.Create(ctx, bad), models.ErrInvalidInput)

		orphan := newProject("p3", "u1", 1)
		orphan.Frames = append(orphan.Frames, models.Frame{ShotNumber: 2, Status: models.FramePending})
		assert.ErrorIs(t, repo.Create(ctx, orphan), models.ErrOrphanFrame)

		noOwner := newProject("p4", "", 1)
		assert.ErrorIs(t, repo.Create(ctx, noOwner), models.ErrInvalidInput)
	})

	t.Run("list by owner", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("a", "u1", 2)))
		require.NoError(t, repo.Create(ctx, newProject("b", "u1", 4)))
		require.NoError(t, repo.Create(ctx, newProject("c", "u2", 1)))
		title := "touched"
		_, err := repo.UpdateScript(ctx, "a", models.ScriptUpdate{Title: &title})
		require.NoError(t, err)

		list, err := repo.ListByOwner(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].ID)
		assert.Equal(t, 2, list[0].ShotCount)
		assert.Equal(t, "b", list[1].ID)
		assert.Equal(t, 4, list[1].ShotCount)

		none, err := repo.ListByOwner(ctx, "u3")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("script update leaves shots alone", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("p1", "u1", 2)))
		_, err := repo.MergeFrame(ctx, "p1", rendered(1, "img-1"))
		require.NoError(t, err)

		script := "EXT. BEACH - DAY"
		tall := models.AspectTall
		p, err := repo.UpdateScript(ctx, "p1", models.ScriptUpdate{Script: &script, AspectRatio: &tall})
		require.NoError(t, err)
		assert.Equal(t, script, p.Script)
		assert.Equal(t, models.AspectTall, p.AspectRatio)
		assert.Len(t, p.Shots, 2)
		assert.Equal(t, "img-1", p.FrameFor(1).Image)

		square := models.AspectRatio("square")
		_, err = repo.UpdateScript(ctx, "p1", models.ScriptUpdate{AspectRatio: &square})
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		_, err = repo.UpdateScript(ctx, "missing", models.ScriptUpdate{Script: &script})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("replace shots moves frames", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("p1", "u1", 3)))
		for n := 1; n <= 3; n++ {
			_, err := repo.MergeFrame(ctx, "p1", rendered(n, fmt.Sprintf("img-%d", n)))
			require.NoError(t, err)
		}
		current, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)

		shots, err := models.InsertShotAfter(current.Shots, 1)
		require.NoError(t, err)
		p, err := repo.ReplaceShots(ctx, "p1", shots)
		require.NoError(t, err)
		require.Len(t, p.Shots, 4)
		assert.Equal(t, "img-1", p.FrameFor(1).Image)
		assert.Equal(t, models.FramePending, p.FrameFor(2).Status)
		assert.Equal(t, "img-2", p.FrameFor(3).Image)
		assert.Equal(t, "img-3", p.FrameFor(4).Image)

		shots, err = models.RemoveShot(p.Shots, 3)
		require.NoError(t, err)
		p, err = repo.ReplaceShots(ctx, "p1", shots)
		require.NoError(t, err)
		require.Len(t, p.Frames, 3)
		assert.Equal(t, "img-3", p.FrameFor(3).Image)
		require.NoError(t, models.CheckFrames(p.Shots, p.Frames))

		stored, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, stored.Frames, 3)
		for i, f := range stored.Frames {
			assert.Equal(t, p.Frames[i].ShotNumber, f.ShotNumber)
			assert.Equal(t, p.Frames[i].Image, f.Image)
		}
	})

	t.Run("shots get stable ids", func(t *testing.T) {
		repo := newRepo(t)
		created := newProject("p1", "u1", 3)
		require.NoError(t, repo.Create(ctx, created))

		p, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		ids := map[string]bool{}
		for _, s := range p.Shots {
			require.NotEmpty(t, s.ID)
			ids[s.ID] = true
		}
		assert.Len(t, ids, 3)
		assert.Equal(t, p.Shots[0].ID, created.Shots[0].ID, "Create reports assigned ids on the caller's project")

		p, err = repo.InsertShot(ctx, "p1", 0)
		require.NoError(t, err)
		require.Len(t, p.Shots, 4)
		assert.NotEmpty(t, p.Shots[0].ID)
		assert.False(t, ids[p.Shots[0].ID])
		assert.Equal(t, created.Shots[0].ID, p.Shots[1].ID)
		assert.Equal(t, 2, p.Shots[1].Number)
	})

	t.Run("shot edits run against the latest state", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("p1", "u1", 3)))
		_, err := repo.MergeFrame(ctx, "p1", rendered(3, "img-3"))
		require.NoError(t, err)
		before, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		third := before.Shots[2].ID

		p, err := repo.InsertShot(ctx, "p1", 1)
		require.NoError(t, err)
		require.Len(t, p.Shots, 4)
		assert.Equal(t, models.FramePending, p.FrameFor(2).Status)
		assert.Equal(t, "img-3", p.FrameFor(4).Image)

		angle := "overhead"
		p, err = repo.UpdateShot(ctx, "p1", models.ShotRef{ID: third}, models.ShotPatch{CameraAngle: &angle})
		require.NoError(t, err)
		assert.Equal(t, "overhead", p.Shots[3].CameraAngle)
		assert.Equal(t, "wide", p.Shots[2].CameraAngle)

		p, err = repo.UpdateShot(ctx, "p1", models.ShotRef{Number: 1}, models.ShotPatch{CameraAngle: &angle})
		require.NoError(t, err)
		assert.Equal(t, "overhead", p.Shots[0].CameraAngle)

		p, err = repo.DeleteShot(ctx, "p1", 1)
		require.NoError(t, err)
		require.Len(t, p.Shots, 3)
		assert.Equal(t, third, p.Shots[2].ID)
		assert.Equal(t, "img-3", p.FrameFor(3).Image)
		require.NoError(t, models.CheckFrames(p.Shots, p.Frames))

		_, err = repo.DeleteShot(ctx, "p1", 7)
		assert.ErrorIs(t, err, models.ErrShotNotFound)
		_, err = repo.InsertShot(ctx, "p1", 4)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
		_, err = repo.UpdateShot(ctx, "p1", models.ShotRef{ID: "gone"}, models.ShotPatch{CameraAngle: &angle})
		assert.ErrorIs(t, err, models.ErrShotNotFound)
		_, err = repo.InsertShot(ctx, "missing", 0)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("frame merge by shot id follows renumbering", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("p1", "u1", 3)))
		before, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		second := before.Shots[1].ID

		_, err = repo.DeleteShot(ctx, "p1", 1)
		require.NoError(t, err)

		p, err := repo.MergeShotFrame(ctx, "p1", second, rendered(2, "img-of-second"))
		require.NoError(t, err)
		assert.Equal(t, "img-of-second", p.FrameFor(1).Image)
		assert.Equal(t, models.FramePending, p.FrameFor(2).Status)

		_, err = repo.DeleteShot(ctx, "p1", 1)
		require.NoError(t, err)
		_, err = repo.MergeShotFrame(ctx, "p1", second, rendered(1, "late"))
		assert.ErrorIs(t, err, models.ErrShotNotFound)
	})

	t.Run("concurrent inserts are all kept", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("p1", "u1", 2)))

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.InsertShot(ctx, "p1", 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		p, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, p.Shots, 7)
		assert.Equal(t, "shot 1", p.Shots[0].Description)
		assert.Equal(t, "shot 2", p.Shots[6].Description)
		require.NoError(t, models.CheckFrames(p.Shots, p.Frames))
	})

	t.Run("frames must reference shots", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("p1", "u1", 2)))

		_, err := repo.ReplaceFrames(ctx, "p1", []models.Frame{rendered(1, "x"), rendered(3, "y")})
		assert.ErrorIs(t, err, models.ErrOrphanFrame)
		_, err = repo.MergeFrame(ctx, "p1", rendered(3, "y"))
		assert.ErrorIs(t, err, models.ErrOrphanFrame)

		p, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, models.FramePending, p.FrameFor(1).Status)

		p, err = repo.ReplaceFrames(ctx, "p1", []models.Frame{rendered(2, "b"), rendered(1, "a")})
		require.NoError(t, err)
		assert.Equal(t, 1, p.Frames[0].ShotNumber)
		assert.Equal(t, "b", p.FrameFor(2).Image)
	})

	t.Run("partial updates compose", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("p1", "u1", 2)))

		first, err := repo.SetFrameStyle(ctx, "p1", 2, "noir")
		require.NoError(t, err)
		second, err := repo.MergeCharacters(ctx, "p1", []models.CharacterDefinition{{Name: "Ada", Description: "engineer"}})
		require.NoError(t, err)
		third, err := repo.MergeFrame(ctx, "p1", rendered(2, "img-2"))
		require.NoError(t, err)

		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.True(t, third.UpdatedAt.After(second.UpdatedAt))

		p, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "noir", p.FrameFor(2).StyleOverride)
		assert.Equal(t, "img-2", p.FrameFor(2).Image)
		require.Len(t, p.Characters, 1)

		_, err = repo.SetFrameStyle(ctx, "p1", 9, "noir")
		assert.ErrorIs(t, err, models.ErrShotNotFound)
	})

	t.Run("concurrent frame merges are all kept", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("p1", "u1", 6)))

		var wg sync.WaitGroup
		for n := 1; n <= 6; n++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, err := repo.MergeFrame(ctx, "p1", rendered(n, fmt.Sprintf("img-%d", n)))
				assert.NoError(t, err)
			}(n)
		}
		wg.Wait()

		p, err := repo.GetByID(ctx, "p1")
		require.NoError(t, err)
		for n := 1; n <= 6; n++ {
			assert.Equal(t, fmt.Sprintf("img-%d", n), p.FrameFor(n).Image)
		}
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, newProject("p1", "u1", 1)))
		require.NoError(t, repo.Delete(ctx, "p1"))
		_, err := repo.GetByID(ctx, "p1")
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "p1"), models.ErrNotFound)
	})
}
