package library

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChadR23/sentry-six/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fd(rel string) models.FileDescriptor {
	return models.FileDescriptor{Path: "/footage/" + rel, RelPath: rel, Size: 1}
}

func TestBuildIndex_Grouping(t *testing.T) {
	ix := NewIndexer(500, testLogger())

	files := []models.FileDescriptor{
		fd("RecentClips/2023-06-14_21-18-47-front.mp4"),
		fd("RecentClips/2023-06-14_21-18-47-back.mp4"),
		fd("RecentClips/2023-06-14_21-19-47-front.mp4"),
		fd("RecentClips/notes.txt"),
		fd("SentryClips/evt1/2023-06-14_21-18-47-front.mp4"),
	}

	idx, err := ix.BuildIndex(context.Background(), files, nil)
	require.NoError(t, err)

	require.Len(t, idx.Groups, 3)

	var recentFirst *models.ClipGroup
	for _, g := range idx.Groups {
		if g.ClipType == models.ClipRecent && g.TimestampKey == "2023-06-14_21-18-47" {
			recentFirst = g
		}
	}
	require.NotNil(t, recentFirst)
	assert.Len(t, recentFirst.FilesByCamera, 2)
	assert.NotNil(t, recentFirst.File(models.CameraFront))
	assert.NotNil(t, recentFirst.File(models.CameraBack))
	assert.Nil(t, recentFirst.File(models.CameraLeftRepeater))
}

func TestBuildIndex_DayCollections(t *testing.T) {
	ix := NewIndexer(500, testLogger())

	files := []models.FileDescriptor{
		// Two days of recent footage.
		fd("RecentClips/2023-06-14_21-18-47-front.mp4"),
		fd("RecentClips/2023-06-14_21-19-47-front.mp4"),
		fd("RecentClips/2023-06-15_08-00-00-front.mp4"),
		// Two sentry events on the same day stay separate collections.
		fd("SentryClips/evtA/2023-06-14_10-00-00-front.mp4"),
		fd("SentryClips/evtB/2023-06-14_11-00-00-front.mp4"),
	}

	idx, err := ix.BuildIndex(context.Background(), files, nil)
	require.NoError(t, err)
	require.Len(t, idx.Collections, 4)

	byID := make(map[string]*models.DayCollection)
	for _, c := range idx.Collections {
		byID[c.ID] = c
	}
	assert.Contains(t, byID, "recent::2023-06-14")
	assert.Contains(t, byID, "recent::2023-06-15")
	assert.Contains(t, byID, "sentry:evtA")
	assert.Contains(t, byID, "sentry:evtB")

	day1 := byID["recent::2023-06-14"]
	require.Len(t, day1.Groups, 2)
	assert.Equal(t, []int64{0, 60_000}, day1.SegmentStartsMs)
	assert.Equal(t, int64(120_000), day1.DurationMs)
}

func TestBuildIndex_SegmentStartsStrictlyIncreasing(t *testing.T) {
	ix := NewIndexer(500, testLogger())

	files := []models.FileDescriptor{
		fd("RecentClips/2023-06-14_21-18-47-front.mp4"),
		fd("RecentClips/2023-06-14_21-19-02-front.mp4"),
		fd("RecentClips/2023-06-14_21-20-47-front.mp4"),
	}

	idx, err := ix.BuildIndex(context.Background(), files, nil)
	require.NoError(t, err)
	require.Len(t, idx.Collections, 1)

	starts := idx.Collections[0].SegmentStartsMs
	require.NotEmpty(t, starts)
	assert.Equal(t, int64(0), starts[0])
	for i := 1; i < len(starts); i++ {
		assert.Greater(t, starts[i], starts[i-1])
	}
	assert.GreaterOrEqual(t, idx.Collections[0].DurationMs, starts[len(starts)-1]+models.NominalSegmentMs)
}

func TestBuildIndex_EventSidecars(t *testing.T) {
	dir := t.TempDir()
	evtDir := filepath.Join(dir, "SentryClips", "evt1")
	require.NoError(t, os.MkdirAll(evtDir, 0o755))
	eventJSON := filepath.Join(evtDir, "event.json")
	require.NoError(t, os.WriteFile(eventJSON,
		[]byte(`{"timestamp":"2023-06-14T21:19:30","city":"Austin","reason":"sentry_aware_object_detection"}`), 0o644))

	files := []models.FileDescriptor{
		{Path: filepath.Join(evtDir, "2023-06-14_21-18-47-front.mp4"), RelPath: "SentryClips/evt1/2023-06-14_21-18-47-front.mp4", Size: 1},
		{Path: filepath.Join(evtDir, "2023-06-14_21-19-47-front.mp4"), RelPath: "SentryClips/evt1/2023-06-14_21-19-47-front.mp4", Size: 1},
		{Path: eventJSON, RelPath: "SentryClips/evt1/event.json", Size: 1},
	}

	ix := NewIndexer(500, testLogger())
	idx, err := ix.BuildIndex(context.Background(), files, nil)
	require.NoError(t, err)

	for _, g := range idx.Groups {
		require.NotNil(t, g.EventJSON, "sidecar attached to every group of the event")
		require.NotNil(t, g.EventMeta)
		assert.Equal(t, "Austin", g.EventMeta.City)
	}

	require.Len(t, idx.Collections, 1)
	c := idx.Collections[0]
	require.NotNil(t, c.AnchorMs)
	// 21:19:30 is 43s after the first segment's 21:18:47.
	assert.Equal(t, int64(43_000), *c.AnchorMs)
	assert.Equal(t, c.Groups[0].ID, c.AnchorGroupID)
}

func TestBuildIndex_Determinism(t *testing.T) {
	ix := NewIndexer(500, testLogger())

	files := []models.FileDescriptor{
		fd("SentryClips/evt1/2023-06-14_21-18-47-front.mp4"),
		fd("RecentClips/2023-06-14_21-18-47-front.mp4"),
		fd("RecentClips/2023-06-14_21-19-47-back.mp4"),
	}
	reversed := []models.FileDescriptor{files[2], files[1], files[0]}

	a, err := ix.BuildIndex(context.Background(), files, nil)
	require.NoError(t, err)
	b, err := ix.BuildIndex(context.Background(), reversed, nil)
	require.NoError(t, err)

	require.Len(t, b.Groups, len(a.Groups))
	for i := range a.Groups {
		assert.Equal(t, a.Groups[i].ID, b.Groups[i].ID)
	}
	require.Len(t, b.Collections, len(a.Collections))
	for i := range a.Collections {
		assert.Equal(t, a.Collections[i].ID, b.Collections[i].ID)
	}
}

func TestBuildIndex_ProgressAndCancellation(t *testing.T) {
	ix := NewIndexer(2, testLogger())

	var files []models.FileDescriptor
	for i := 0; i < 10; i++ {
		files = append(files, fd("RecentClips/notes.txt"))
	}

	t.Run("progress is reported", func(t *testing.T) {
		var calls []IndexProgress
		_, err := ix.BuildIndex(context.Background(), files, func(p IndexProgress) {
			calls = append(calls, p)
		})
		require.NoError(t, err)
		require.NotEmpty(t, calls)
		last := calls[len(calls)-1]
		assert.Equal(t, 10, last.Processed)
		assert.Equal(t, 10, last.Total)
	})

	t.Run("cancellation is observed between batches", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ix.BuildIndex(ctx, files, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
