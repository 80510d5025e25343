package repository

import (
	"context"
	"testing"
	"time"

	"storyboard-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryUpdateHoldsOnlyItsProject(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProjectRepository(zap.NewNop()).(*memoryProjectRepository)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, repo.Create(ctx, &models.Project{ID: id, OwnerID: "u1", AspectRatio: models.AspectWide}))
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	held := make(chan error, 1)
	go func() {
		_, err := repo.update("a", func(p *models.Project) error {
			close(entered)
			<-release
			p.Title = "slow"
			return nil
		})
		held <- err
	}()
	<-entered

	other := make(chan error, 1)
	go func() {
		title := "fast"
		_, err := repo.UpdateScript(ctx, "b", models.ScriptUpdate{Title: &title})
		other <- err
	}()
	select {
	case err := <-other:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("update of another project waited for a held project")
	}
	b, err := repo.GetByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "fast", b.Title)

	same := make(chan error, 1)
	go func() {
		title := "queued"
		_, err := repo.UpdateScript(ctx, "a", models.ScriptUpdate{Title: &title})
		same <- err
	}()
	select {
	case <-same:
		t.Fatal("update of the same project ran while it was held")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-held)
	require.NoError(t, <-same)

	a, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "queued", a.Title)
}

func TestMemoryDeleteWhileUpdateWaits(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProjectRepository(zap.NewNop()).(*memoryProjectRepository)
	require.NoError(t, repo.Create(ctx, &models.Project{ID: "a", OwnerID: "u1", AspectRatio: models.AspectWide}))
	e, ok := repo.entry("a")
	require.True(t, ok)

	e.mu.Lock()
	waiting := make(chan error, 1)
	go func() {
		title := "late"
		_, err := repo.UpdateScript(ctx, "a", models.ScriptUpdate{Title: &title})
		waiting <- err
	}()
	time.Sleep(20 * time.Millisecond)
	e.project = nil
	repo.mu.Lock()
	delete(repo.projects, "a")
	repo.mu.Unlock()
	e.mu.Unlock()

	assert.ErrorIs(t, <-waiting, models.ErrNotFound)
}
