package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChadR23/sentry-six/internal/export"
	"github.com/ChadR23/sentry-six/internal/ffmpeg"
	"github.com/ChadR23/sentry-six/internal/i18n"
	"github.com/ChadR23/sentry-six/internal/models"
	"github.com/ChadR23/sentry-six/internal/service/progress"
	"github.com/ChadR23/sentry-six/internal/telemetry"
)

// instantRunner completes every render immediately. When block is set it
// waits for cancellation instead.
type instantRunner struct {
	block bool
}

func (r *instantRunner) Run(ctx context.Context, _ ffmpeg.RunOptions) error {
	if r.block {
		<-ctx.Done()
		return models.ErrCancelled
	}
	return nil
}

func exportFixture(t *testing.T, runner export.Runner) (*ExportHandler, *export.Manager, *progress.Hub) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	bundle, err := i18n.Load()
	require.NoError(t, err)

	planner := export.NewPlanner(t.TempDir(), nil, bundle, logger)
	extractor := telemetry.NewExtractor(telemetry.NewMP4Decoder(), logger)
	hub := progress.NewHub(logger)
	mgr := export.NewManager(planner, extractor, runner, hub, nil, logger)

	lib := &fakeLibrary{collections: []*models.DayCollection{testCollection()}}
	h := NewExportHandler(mgr, lib, hub, nil, nil, logger)
	h.SetHeartbeatInterval(time.Hour)
	return h, mgr, hub
}

func startBody(t *testing.T) ExportStartBody {
	return ExportStartBody{
		CollectionID: "recent::2023-06-14",
		StartMs:      0,
		EndMs:        120_000,
		Cameras:      []models.Camera{models.CameraFront},
		Quality:      models.QualityMedium,
		OutputPath:   filepath.Join(t.TempDir(), "out.mp4"),
	}
}

func TestExportHandlerStart(t *testing.T) {
	h, mgr, _ := exportFixture(t, &instantRunner{})

	out, err := h.StartExport(context.Background(), &StartExportInput{Body: startBody(t)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, out.Status)
	require.NotEmpty(t, out.Body.JobID)

	job, ok := mgr.Job(out.Body.JobID)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return job.State() == models.JobSucceeded
	}, 2*time.Second, 5*time.Millisecond)
}

func TestExportHandlerStart_UnknownCollection(t *testing.T) {
	h, _, _ := exportFixture(t, &instantRunner{})

	body := startBody(t)
	body.CollectionID = "nope"
	_, err := h.StartExport(context.Background(), &StartExportInput{Body: body})
	require.Error(t, err)
	assert.Equal(t, 404, statusOf(t, err))
}

func TestExportHandlerStart_InvalidRequest(t *testing.T) {
	h, _, _ := exportFixture(t, &instantRunner{})

	body := startBody(t)
	body.EndMs = 0
	_, err := h.StartExport(context.Background(), &StartExportInput{Body: body})
	require.Error(t, err)
	assert.Equal(t, 422, statusOf(t, err))
}

func TestExportHandlerGetAndCancel(t *testing.T) {
	h, _, _ := exportFixture(t, &instantRunner{block: true})

	out, err := h.StartExport(context.Background(), &StartExportInput{Body: startBody(t)})
	require.NoError(t, err)
	jobID := out.Body.JobID

	status, err := h.GetExport(context.Background(), &JobStatusInput{ID: jobID})
	require.NoError(t, err)
	assert.Equal(t, jobID, status.Body.JobID)
	assert.False(t, status.Body.State.IsTerminal())

	cancelled, err := h.CancelExport(context.Background(), &JobStatusInput{ID: jobID})
	require.NoError(t, err)
	assert.True(t, cancelled.Body.Cancelled)

	_, err = h.GetExport(context.Background(), &JobStatusInput{ID: "nope"})
	require.Error(t, err)
	assert.Equal(t, 404, statusOf(t, err))
}

func TestExportHandlerCancel_FinishedJob(t *testing.T) {
	h, mgr, _ := exportFixture(t, &instantRunner{})

	req := &models.ExportRequest{
		Collection: testCollection(),
		StartMs:    0, EndMs: 120_000,
		Cameras:    []models.Camera{models.CameraFront},
		Quality:    models.QualityMedium,
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
	}
	job, err := mgr.Run(context.Background(), req)
	require.NoError(t, err)

	_, err = h.CancelExport(context.Background(), &JobStatusInput{ID: job.ID})
	require.Error(t, err)
	assert.Equal(t, 409, statusOf(t, err))
}

func TestExportHandlerEvents(t *testing.T) {
	h, mgr, _ := exportFixture(t, &instantRunner{})

	req := &models.ExportRequest{
		Collection: testCollection(),
		StartMs:    0, EndMs: 120_000,
		Cameras:    []models.Camera{models.CameraFront},
		Quality:    models.QualityMedium,
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
	}
	job, err := mgr.Run(context.Background(), req)
	require.NoError(t, err)

	router := chi.NewRouter()
	h.RegisterSSE(router)

	// The job is terminal, so the stream delivers one event and closes;
	// the handler returns and the recorder holds the full transcript.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/exports/"+job.ID+"/events", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, ":connected\n\n"))
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, `"kind":"complete"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/exports/nope/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
