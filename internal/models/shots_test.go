package models_test

import (
	"errors"
	"testing"
	"time"

	"storyboard-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shot(n int, desc string) models.Shot {
	return models.Shot{Number: n, Description: desc, CameraAngle: "wide", Characters: []string{}}
}

func renderedFrame(n int, image string) models.Frame {
	at := time.Date(2024, 5, 1, 12, 0, n, 0, time.UTC)
	return models.Frame{ShotNumber: n, Status: models.FrameRendered, Image: image, GeneratedAt: &at}
}

func threeShotProject() *models.Project {
	return &models.Project{
		ID:      "p1",
		OwnerID: "u1",
		Shots:   []models.Shot{shot(1, "one"), shot(2, "two"), shot(3, "three")},
		Frames: []models.Frame{
			renderedFrame(1, "img-1"),
			renderedFrame(2, "img-2"),
			renderedFrame(3, "img-3"),
		},
	}
}

func TestInsertShotRenumbersAndMovesFrames(t *testing.T) {
	p := threeShotProject()

	shots, err := models.InsertShotAfter(p.Shots, 1)
	require.NoError(t, err)
	models.ApplyShotList(p, shots)

	require.Len(t, p.Shots, 4)
	for i, s := range p.Shots {
		assert.Equal(t, i+1, s.Number)
	}
	assert.Equal(t, "one", p.Shots[0].Description)
	assert.Equal(t, "", p.Shots[1].Description)
	assert.Equal(t, "two", p.Shots[2].Description)
	assert.Equal(t, "three", p.Shots[3].Description)

	require.Len(t, p.Frames, 4)
	assert.Equal(t, "img-1", p.FrameFor(1).Image)
	assert.Equal(t, models.FramePending, p.FrameFor(2).Status)
	assert.Empty(t, p.FrameFor(2).Image)
	assert.Equal(t, "img-2", p.FrameFor(3).Image)
	assert.Equal(t, "img-3", p.FrameFor(4).Image)
	require.NoError(t, models.CheckFrames(p.Shots, p.Frames))
}

func TestInsertShotAtFront(t *testing.T) {
	p := threeShotProject()

	shots, err := models.InsertShotAfter(p.Shots, 0)
	require.NoError(t, err)
	models.ApplyShotList(p, shots)

	assert.Equal(t, models.FramePending, p.FrameFor(1).Status)
	assert.Equal(t, "img-1", p.FrameFor(2).Image)
	assert.Equal(t, "img-3", p.FrameFor(4).Image)
}

func TestInsertShotOutOfRange(t *testing.T) {
	p := threeShotProject()

	_, err := models.InsertShotAfter(p.Shots, 4)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = models.InsertShotAfter(p.Shots, -1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestDeleteShotCascadesFrame(t *testing.T) {
	p := threeShotProject()

	shots, err := models.RemoveShot(p.Shots, 2)
	require.NoError(t, err)
	models.ApplyShotList(p, shots)

	require.Len(t, p.Shots, 2)
	assert.Equal(t, "one", p.Shots[0].Description)
	assert.Equal(t, "three", p.Shots[1].Description)
	assert.Equal(t, 2, p.Shots[1].Number)

	require.Len(t, p.Frames, 2)
	assert.Equal(t, "img-1", p.FrameFor(1).Image)
	assert.Equal(t, "img-3", p.FrameFor(2).Image)
	require.NoError(t, models.CheckFrames(p.Shots, p.Frames))
}

func TestDeleteUnknownShot(t *testing.T) {
	_, err := models.RemoveShot(threeShotProject().Shots, 9)
	assert.ErrorIs(t, err, models.ErrShotNotFound)
}

func TestCheckFramesRejectsOrphansAndDuplicates(t *testing.T) {
	p := threeShotProject()

	err := models.CheckFrames(p.Shots, []models.Frame{{ShotNumber: 4, Status: models.FramePending}})
	assert.ErrorIs(t, err, models.ErrOrphanFrame)

	err = models.CheckFrames(p.Shots, []models.Frame{
		{ShotNumber: 1, Status: models.FramePending},
		{ShotNumber: 1, Status: models.FrameRendered},
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestMergeFrameRejectsOrphan(t *testing.T) {
	p := threeShotProject()
	err := models.MergeFrame(p, models.Frame{ShotNumber: 7, Status: models.FrameRendered})
	assert.True(t, errors.Is(err, models.ErrOrphanFrame))
	assert.Len(t, p.Frames, 3)
}

func TestMergeFrameKeepsStyleOverrideAndOrdersTimestamps(t *testing.T) {
	p := threeShotProject()
	p.Frames[1].StyleOverride = "noir"
	previous := *p.Frames[1].GeneratedAt

	// same timestamp as the stored frame: it must still land strictly later
	sameTime := previous
	err := models.MergeFrame(p, models.Frame{ShotNumber: 2, Status: models.FrameRendered, Image: "img-2b", GeneratedAt: &sameTime})
	require.NoError(t, err)

	f := p.FrameFor(2)
	assert.Equal(t, "img-2b", f.Image)
	assert.Equal(t, "noir", f.StyleOverride)
	require.NotNil(t, f.GeneratedAt)
	assert.True(t, f.GeneratedAt.After(previous))
}

func TestMergeFrameAppendsMissingFrameInOrder(t *testing.T) {
	p := threeShotProject()
	p.Frames = []models.Frame{p.Frames[0], p.Frames[2]}

	require.NoError(t, models.MergeFrame(p, models.Frame{ShotNumber: 2, Status: models.FrameErrored, Error: "boom"}))

	require.Len(t, p.Frames, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{p.Frames[0].ShotNumber, p.Frames[1].ShotNumber, p.Frames[2].ShotNumber})
	assert.Equal(t, models.FrameErrored, p.FrameFor(2).Status)
}

func TestSetFrameStyle(t *testing.T) {
	p := threeShotProject()

	require.NoError(t, models.SetFrameStyle(p, 3, "  anime "))
	assert.Equal(t, "anime", p.FrameFor(3).StyleOverride)
	assert.Equal(t, "img-3", p.FrameFor(3).Image)

	require.NoError(t, models.SetFrameStyle(p, 3, ""))
	assert.Empty(t, p.FrameFor(3).StyleOverride)

	assert.ErrorIs(t, models.SetFrameStyle(p, 4, "anime"), models.ErrShotNotFound)
}

func TestSetFrameStyleCreatesPendingFrame(t *testing.T) {
	p := threeShotProject()
	p.Frames = p.Frames[:1]

	require.NoError(t, models.SetFrameStyle(p, 2, "sketch"))
	f := p.FrameFor(2)
	assert.Equal(t, models.FramePending, f.Status)
	assert.Equal(t, "sketch", f.StyleOverride)
}

func TestMergeCharactersCaseInsensitive(t *testing.T) {
	p := threeShotProject()
	p.Characters = []models.CharacterDefinition{{Name: "Ada", Description: "engineer"}}

	err := models.MergeCharacters(p, []models.CharacterDefinition{
		{Name: "ADA", Description: "lead engineer", Traits: []string{"red scarf"}},
		{Name: "Bo", Description: "pilot"},
	})
	require.NoError(t, err)

	require.Len(t, p.Characters, 2)
	assert.Equal(t, "lead engineer", p.Characters[0].Description)
	assert.Equal(t, []string{"red scarf"}, p.Characters[0].Traits)
	assert.Equal(t, "Bo", p.Characters[1].Name)

	assert.NotNil(t, models.FindCharacter(p.Characters, " bo "))
	assert.Nil(t, models.FindCharacter(p.Characters, "Cy"))
}

func TestMergeCharactersRejectsEmptyName(t *testing.T) {
	p := threeShotProject()
	err := models.MergeCharacters(p, []models.CharacterDefinition{{Name: "Ada"}, {Name: "  "}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Empty(t, p.Characters)
}

func TestShotPatchApply(t *testing.T) {
	s := shot(2, "old")
	desc := "new description"
	chars := []string{"Ada"}
	patch := models.ShotPatch{Description: &desc, Characters: &chars}
	require.False(t, patch.IsEmpty())
	assert.True(t, models.ShotPatch{}.IsEmpty())

	patch.Apply(&s)
	assert.Equal(t, 2, s.Number)
	assert.Equal(t, "new description", s.Description)
	assert.Equal(t, "wide", s.CameraAngle)
	assert.Equal(t, []string{"Ada"}, s.Characters)
}

func TestCloneIsDeep(t *testing.T) {
	p := threeShotProject()
	p.Shots[0].Characters = []string{"Ada"}
	c := p.Clone()

	c.Shots[0].Characters[0] = "Bo"
	*c.Frames[0].GeneratedAt = c.Frames[0].GeneratedAt.Add(time.Hour)

	assert.Equal(t, "Ada", p.Shots[0].Characters[0])
	assert.NotEqual(t, *p.Frames[0].GeneratedAt, *c.Frames[0].GeneratedAt)
}

func TestEnsureShotIDs(t *testing.T) {
	shots := []models.Shot{{ID: "keep"}, {}, {ID: "keep"}}
	models.EnsureShotIDs(shots)

	assert.Equal(t, "keep", shots[0].ID)
	assert.NotEmpty(t, shots[1].ID)
	assert.NotEqual(t, "keep", shots[2].ID, "a repeated id is replaced")
	assert.NotEqual(t, shots[1].ID, shots[2].ID)
}

func TestApplyShotListKeepsIDs(t *testing.T) {
	p := threeShotProject()
	models.EnsureShotIDs(p.Shots)
	first := p.Shots[0].ID

	shots, err := models.InsertShotAfter(p.Shots, 0)
	require.NoError(t, err)
	models.ApplyShotList(p, shots)

	require.Len(t, p.Shots, 4)
	assert.NotEmpty(t, p.Shots[0].ID)
	assert.Equal(t, first, p.Shots[1].ID)
	assert.Equal(t, 1, models.ShotIndexByID(p.Shots, first))
	assert.Equal(t, -1, models.ShotIndexByID(p.Shots, ""))
}

func TestMergeShotFrameResolvesCurrentNumber(t *testing.T) {
	p := threeShotProject()
	models.EnsureShotIDs(p.Shots)
	third := p.Shots[2].ID

	shots, err := models.RemoveShot(p.Shots, 1)
	require.NoError(t, err)
	models.ApplyShotList(p, shots)

	stored, err := models.MergeShotFrame(p, third, renderedFrame(3, "fresh"))
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ShotNumber)
	assert.Equal(t, "fresh", p.FrameFor(2).Image)
	assert.Equal(t, "img-2", p.FrameFor(1).Image)

	_, err = models.MergeShotFrame(p, "unknown", renderedFrame(1, "x"))
	assert.ErrorIs(t, err, models.ErrShotNotFound)
}

func TestShotRef(t *testing.T) {
	shots := []models.Shot{{ID: "a", Number: 1}, {ID: "b", Number: 2}}

	assert.Equal(t, 1, models.ShotRef{ID: "b", Number: 1}.Index(shots), "id wins over number")
	assert.Equal(t, 0, models.ShotRef{Number: 1}.Index(shots))
	assert.Equal(t, -1, models.ShotRef{ID: "c", Number: 1}.Index(shots))
	assert.Equal(t, "id b", models.ShotRef{ID: "b"}.String())
	assert.Equal(t, "2", models.ShotRef{Number: 2}.String())
}
