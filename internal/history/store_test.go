package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.OpenPath(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycleCompleted(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := &history.Run{ID: "run-1", Topic: "Digital Marketing", TemplateID: "modern-business", SlideCount: 6, Format: "mp4"}
	require.NoError(t, store.Start(ctx, run))
	require.NoError(t, store.UpdateProgress(ctx, "run-1", "creating_slides", 48, "Rendered 3 of 6 slides"))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, history.StatusRunning, got.Status)
	assert.Equal(t, "creating_slides", got.Stage)
	assert.InDelta(t, 48, got.ProgressPercent, 0.001)
	assert.Equal(t, 6, got.SlideCount)

	require.NoError(t, store.Complete(ctx, "run-1", history.Artifact{
		URL:             "https://cdn.example.com/final.mp4",
		DurationSeconds: 3600,
		SizeBytes:       1 << 20,
		Provenance:      "encoded",
		NarrationGaps:   1,
	}))

	got, err = store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, history.StatusCompleted, got.Status)
	assert.Equal(t, "complete", got.Stage)
	assert.InDelta(t, 100, got.ProgressPercent, 0.001)
	assert.Equal(t, "https://cdn.example.com/final.mp4", got.ArtifactURL)
	assert.Equal(t, int64(1<<20), got.SizeBytes)
	assert.Equal(t, 1, got.NarrationGaps)
	require.NotNil(t, got.CompletedAt)

	// Progress after completion is ignored.
	require.NoError(t, store.UpdateProgress(ctx, "run-1", "finalizing", 95, "late"))
	got, err = store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "complete", got.Stage)
}

func TestRunLifecycleFailed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Start(ctx, &history.Run{ID: "run-2", Topic: "Security"}))
	require.NoError(t, store.Fail(ctx, "run-2", history.Failure{Stage: "preparing", Message: "at least one slide is required", Category: "invalid_input"}))

	got, err := store.Get(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, got.Status)
	assert.Equal(t, "preparing", got.Stage)
	assert.Equal(t, "invalid_input", got.ErrorCategory)
}

func TestInlineArtifactURLNotStored(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Start(ctx, &history.Run{ID: "run-3", Topic: "Inline"}))
	require.NoError(t, store.Complete(ctx, "run-3", history.Artifact{URL: "data:application/json;base64,e30="}))

	got, err := store.Get(ctx, "run-3")
	require.NoError(t, err)
	assert.Equal(t, "data:(inline)", got.ArtifactURL)
}

func TestGetMissingAndCompleteMissing(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Error(t, store.Complete(ctx, "absent", history.Artifact{}))
	assert.Error(t, store.Start(ctx, &history.Run{}))
}

func TestListSummarizeAndMaintenance(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Now().Add(-72 * time.Hour)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Start(ctx, &history.Run{ID: id, Topic: id, CreatedAt: base.Add(time.Duration(i) * 24 * time.Hour)}))
	}
	require.NoError(t, store.Complete(ctx, "a", history.Artifact{URL: "https://x/a.mp4"}))
	require.NoError(t, store.Fail(ctx, "b", history.Failure{Message: "boom"}))

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)

	limited, err := store.List(ctx, 1, history.StatusCompleted, history.StatusFailed)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b", limited[0].ID)

	summary, err := store.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, history.Summary{Total: 3, Running: 1, Completed: 1, Failed: 1}, summary)

	reset, err := store.ResetInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	pruned, err := store.Prune(ctx, base.Add(36*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	remaining, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "c", remaining[0].ID)
	assert.Equal(t, history.StatusFailed, remaining[0].Status)
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenPath(path)
	require.NoError(t, err)
	require.NoError(t, store.Start(context.Background(), &history.Run{ID: "persist", Topic: "t"}))
	require.NoError(t, store.Close())

	reopened, err := history.OpenPath(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), "persist")
	require.NoError(t, err)
	require.NotNil(t, got)
}
