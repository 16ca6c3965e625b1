package export

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChadR23/sentry-six/internal/ffmpeg"
	"github.com/ChadR23/sentry-six/internal/i18n"
	"github.com/ChadR23/sentry-six/internal/models"
	"github.com/ChadR23/sentry-six/internal/service/progress"
	"github.com/ChadR23/sentry-six/internal/telemetry"
)

// fakeRunner stands in for the ffmpeg supervisor. Each Run is recorded;
// errs are returned in call order, then nil. When block is set, Run
// waits for ctx cancellation and reports it.
type fakeRunner struct {
	mu    sync.Mutex
	calls []ffmpeg.RunOptions
	errs  []error
	block bool
}

func (f *fakeRunner) Run(ctx context.Context, opts ffmpeg.RunOptions) error {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	n := len(f.calls)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return models.ErrCancelled
	}
	if opts.OnProgress != nil {
		opts.OnProgress(ffmpeg.Progress{Frame: 100, TimeMs: opts.TotalDurationMs / 2, Percent: 50})
	}
	if n <= len(f.errs) {
		return f.errs[n-1]
	}
	return nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeStore struct {
	mu      sync.Mutex
	created []*models.ExportJobRecord
	updated []*models.ExportJobRecord
}

func (f *fakeStore) Create(_ context.Context, rec *models.ExportJobRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, rec)
	return nil
}

func (f *fakeStore) Update(_ context.Context, rec *models.ExportJobRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, rec)
	return nil
}

func testManager(t *testing.T, runner Runner, store RecordStore) (*Manager, *progress.Hub) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	bundle, err := i18n.Load()
	require.NoError(t, err)

	planner := NewPlanner(t.TempDir(), nil, bundle, logger)
	extractor := telemetry.NewExtractor(telemetry.NewMP4Decoder(), logger)
	hub := progress.NewHub(logger)
	return NewManager(planner, extractor, runner, hub, store, logger), hub
}

func TestManagerRun_Success(t *testing.T) {
	runner := &fakeRunner{}
	store := &fakeStore{}
	m, hub := testManager(t, runner, store)

	req := baseRequest(filepath.Join(t.TempDir(), "out.mp4"))
	job, err := m.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.JobSucceeded, job.State())

	// One filler for the missing back camera, then the main render.
	require.Equal(t, 2, runner.callCount())
	assert.NotEmpty(t, runner.calls[0].Output, "filler render has an output path")
	assert.Equal(t, req.OutputPath, runner.calls[1].Output)
	assert.Equal(t, int64(120_000), runner.calls[1].TotalDurationMs)

	last := hub.Stream(job.ID).Last()
	require.NotNil(t, last)
	assert.True(t, last.Terminal())
	assert.Equal(t, models.KindNone, last.Error)
	assert.Equal(t, float64(100), last.Percent)
	assert.Equal(t, "progress.complete", last.Message.Key)

	require.Len(t, store.created, 1)
	require.Len(t, store.updated, 1)
	rec := store.updated[0]
	assert.Equal(t, models.JobSucceeded, rec.State)
	assert.Equal(t, float64(100), rec.ProgressPct)
	assert.Equal(t, models.KindNone, rec.ErrorKind)
	require.NotNil(t, rec.CompletedAt)
}

func TestManagerRun_RendererFailure(t *testing.T) {
	runner := &fakeRunner{errs: []error{models.ErrFFmpegRuntime}}
	store := &fakeStore{}
	m, hub := testManager(t, runner, store)

	job, err := m.Run(context.Background(), baseRequest(filepath.Join(t.TempDir(), "out.mp4")))
	require.ErrorIs(t, err, models.ErrFFmpegRuntime)
	assert.Equal(t, models.JobFailed, job.State())

	last := hub.Stream(job.ID).Last()
	require.NotNil(t, last)
	assert.True(t, last.Terminal())
	assert.Equal(t, models.KindFFmpegRuntime, last.Error)
	assert.Equal(t, "error.ffmpeg_runtime", last.Message.Key)
	assert.NotEmpty(t, last.Message.Params["detail"])

	require.Len(t, store.updated, 1)
	assert.Equal(t, models.JobFailed, store.updated[0].State)
	assert.Equal(t, models.KindFFmpegRuntime, store.updated[0].ErrorKind)
}

func TestManagerRun_PlanningFailure(t *testing.T) {
	runner := &fakeRunner{}
	m, hub := testManager(t, runner, nil)

	req := baseRequest(filepath.Join(t.TempDir(), "out.mp4"))
	req.Cameras = []models.Camera{models.CameraLeftPillar}

	job, err := m.Run(context.Background(), req)
	require.ErrorIs(t, err, models.ErrEmptySelection)
	assert.Equal(t, models.JobFailed, job.State())
	assert.Zero(t, runner.callCount(), "no render starts on a planning failure")

	last := hub.Stream(job.ID).Last()
	require.NotNil(t, last)
	assert.Equal(t, models.KindEmptySelection, last.Error)
}

func TestManagerRun_InvalidRequest(t *testing.T) {
	m, _ := testManager(t, &fakeRunner{}, nil)

	req := baseRequest("")
	_, err := m.Run(context.Background(), req)
	assert.Error(t, err)
}

func TestManagerStartAndCancel(t *testing.T) {
	runner := &fakeRunner{block: true}
	m, hub := testManager(t, runner, nil)

	job, err := m.Start(context.Background(), baseRequest(filepath.Join(t.TempDir(), "out.mp4")))
	require.NoError(t, err)

	got, ok := m.Job(job.ID)
	require.True(t, ok)
	assert.Same(t, job, got)

	// Wait for the render to begin so cancellation interrupts it.
	require.Eventually(t, func() bool {
		return runner.callCount() > 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, m.Cancel(job.ID))
	require.Eventually(t, func() bool {
		return job.State() == models.JobCancelled
	}, 2*time.Second, 5*time.Millisecond)

	last := hub.Stream(job.ID).Last()
	require.NotNil(t, last)
	assert.True(t, last.Terminal())
	assert.Equal(t, models.KindCancelled, last.Error)
	assert.Equal(t, "progress.cancelled", last.Message.Key)

	// A terminal job cannot be cancelled again.
	assert.False(t, m.Cancel(job.ID))
	assert.False(t, m.Cancel("no-such-job"))
}

func TestManagerRenderProgressForwarded(t *testing.T) {
	runner := &fakeRunner{}
	m, hub := testManager(t, runner, nil)

	req := baseRequest(filepath.Join(t.TempDir(), "out.mp4"))
	req.Cameras = []models.Camera{models.CameraFront}

	job, err := m.Run(context.Background(), req)
	require.NoError(t, err)

	// The fake runner reported 50% mid-render; the terminal event then
	// supersedes it as the stream's last entry.
	require.Equal(t, 1, runner.callCount())
	require.NotNil(t, runner.calls[0].OnProgress)

	last := hub.Stream(job.ID).Last()
	require.NotNil(t, last)
	assert.True(t, last.Terminal())

	// A subscriber joining after completion still learns the outcome.
	ch, cancel := hub.Stream(job.ID).Subscribe()
	defer cancel()
	ev, ok := <-ch
	require.True(t, ok)
	assert.True(t, ev.Terminal())
	assert.Equal(t, job.ID, ev.JobID)
}
