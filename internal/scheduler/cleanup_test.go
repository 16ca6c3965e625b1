package scheduler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	got    time.Time
	pruned int64
}

func (f *fakePruner) DeleteFinishedBefore(_ context.Context, before time.Time) (int64, error) {
	f.got = before
	return f.pruned, nil
}

func makeDir(t *testing.T, parent, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if age > 0 {
		old := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(dir, old, old))
	}
	return dir
}

func TestCleanerRunOnce(t *testing.T) {
	temp := t.TempDir()
	stale := makeDir(t, temp, "job-01HSTALE", 48*time.Hour)
	fresh := makeDir(t, temp, "job-01HFRESH", 0)
	other := makeDir(t, temp, "not-a-job", 48*time.Hour)

	pruner := &fakePruner{pruned: 3}
	c := NewCleaner(temp, 24*time.Hour, pruner, slog.New(slog.DiscardHandler))
	require.NoError(t, c.RunOnce(context.Background()))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale work dir removed")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "fresh work dir kept")
	_, err = os.Stat(other)
	assert.NoError(t, err, "unrelated dir kept")

	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), pruner.got, time.Minute)
}

func TestCleanerRunOnce_NilPruner(t *testing.T) {
	temp := t.TempDir()
	makeDir(t, temp, "job-01HSTALE", 48*time.Hour)

	c := NewCleaner(temp, 24*time.Hour, nil, slog.New(slog.DiscardHandler))
	assert.NoError(t, c.RunOnce(context.Background()))
}

func TestCleanerRunOnce_MissingTempDir(t *testing.T) {
	c := NewCleaner(filepath.Join(t.TempDir(), "missing"), time.Hour, nil, slog.New(slog.DiscardHandler))
	assert.NoError(t, c.RunOnce(context.Background()))
}

func TestCleanerStartRejectsBadCron(t *testing.T) {
	c := NewCleaner(t.TempDir(), time.Hour, nil, slog.New(slog.DiscardHandler))
	assert.Error(t, c.Start("not a cron spec"))
}

func TestCleanerStartAndStop(t *testing.T) {
	c := NewCleaner(t.TempDir(), time.Hour, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, c.Start("@every 1h"))
	c.Stop()
}
