package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/ChadR23/sentry-six/internal/export"
	"github.com/ChadR23/sentry-six/internal/models"
	"github.com/ChadR23/sentry-six/internal/observability"
	"github.com/ChadR23/sentry-six/internal/service/progress"
)

// ExportManager is the job surface the handlers need.
type ExportManager interface {
	Start(ctx context.Context, req *models.ExportRequest) (*export.Job, error)
	Job(id string) (*export.Job, bool)
	Cancel(id string) bool
}

// HistoryStore lists persisted job records. Nil disables the endpoint.
type HistoryStore interface {
	List(ctx context.Context, offset, limit int) ([]*models.ExportJobRecord, int64, error)
}

// ExportHandler serves export job control and history.
type ExportHandler struct {
	mgr       ExportManager
	resolver  LibraryService
	hub       *progress.Hub
	history   HistoryStore
	metrics   *observability.Metrics
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewExportHandler creates an export handler. history and metrics may be
// nil.
func NewExportHandler(mgr ExportManager, resolver LibraryService, hub *progress.Hub, history HistoryStore, metrics *observability.Metrics, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		mgr:       mgr,
		resolver:  resolver,
		hub:       hub,
		history:   history,
		metrics:   metrics,
		logger:    logger.With("component", "http"),
		heartbeat: 30 * time.Second,
	}
}

// SetHeartbeatInterval overrides the SSE heartbeat, for tests.
func (h *ExportHandler) SetHeartbeatInterval(d time.Duration) {
	h.heartbeat = d
}

// ExportStartBody describes an export to launch. It mirrors the export
// request, addressing the collection by ID.
type ExportStartBody struct {
	CollectionID string          `json:"collection_id" doc:"Collection to export from"`
	StartMs      int64           `json:"start_ms"`
	EndMs        int64           `json:"end_ms"`
	Cameras      []models.Camera `json:"cameras"`
	Quality      models.Quality  `json:"quality"`
	OutputPath   string          `json:"output_path"`

	MirrorCameras bool   `json:"mirror_cameras,omitempty"`
	UseMetric     bool   `json:"use_metric,omitempty"`
	Language      string `json:"language,omitempty"`

	IncludeDashboard  bool                   `json:"include_dashboard,omitempty"`
	DashboardStyle    models.DashboardStyle  `json:"dashboard_style,omitempty"`
	DashboardPosition models.OverlayPosition `json:"dashboard_position,omitempty"`
	DashboardSize     models.OverlaySize     `json:"dashboard_size,omitempty"`

	IncludeMinimap  bool                   `json:"include_minimap,omitempty"`
	MinimapPosition models.OverlayPosition `json:"minimap_position,omitempty"`
	MinimapSize     models.OverlaySize     `json:"minimap_size,omitempty"`
	MinimapDarkMode bool                   `json:"minimap_dark_mode,omitempty"`

	IncludeTimestamp    bool                   `json:"include_timestamp,omitempty"`
	TimestampPosition   models.OverlayPosition `json:"timestamp_position,omitempty"`
	TimestampDateFormat models.DateFormat      `json:"timestamp_date_format,omitempty"`
	TimestampTimeFormat models.TimeFormat      `json:"timestamp_time_format,omitempty"`

	BlurZones []models.BlurZone `json:"blur_zones,omitempty"`

	EnableTimelapse bool    `json:"enable_timelapse,omitempty"`
	TimelapseSpeed  float64 `json:"timelapse_speed,omitempty"`
}

// StartExportInput is the input for starting an export.
type StartExportInput struct {
	Body ExportStartBody
}

// StartExportOutput acknowledges a launched job.
type StartExportOutput struct {
	Status int
	Body   struct {
		JobID string          `json:"job_id"`
		State models.JobState `json:"state"`
	}
}

// JobStatusInput selects a job by ID.
type JobStatusInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// JobStatusOutput reports a job's current state and latest progress.
type JobStatusOutput struct {
	Body struct {
		JobID   string          `json:"job_id"`
		State   models.JobState `json:"state"`
		Percent float64         `json:"percent"`
	}
}

// CancelExportOutput acknowledges a cancellation request.
type CancelExportOutput struct {
	Body struct {
		Cancelled bool `json:"cancelled"`
	}
}

// ListExportsInput pages through the job history.
type ListExportsInput struct {
	Offset int `query:"offset" minimum:"0"`
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50"`
}

// ListExportsOutput is the job history response.
type ListExportsOutput struct {
	Body struct {
		Jobs  []*models.ExportJobRecord `json:"jobs"`
		Total int64                     `json:"total"`
	}
}

// Register registers the export routes with the API.
func (h *ExportHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "startExport",
		Method:        "POST",
		Path:          "/api/v1/exports",
		Summary:       "Start an export job",
		Tags:          []string{"Export"},
		DefaultStatus: http.StatusAccepted,
	}, h.StartExport)

	huma.Register(api, huma.Operation{
		OperationID: "getExport",
		Method:      "GET",
		Path:        "/api/v1/exports/{id}",
		Summary:     "Get export job status",
		Tags:        []string{"Export"},
	}, h.GetExport)

	huma.Register(api, huma.Operation{
		OperationID: "cancelExport",
		Method:      "DELETE",
		Path:        "/api/v1/exports/{id}",
		Summary:     "Cancel a running export job",
		Tags:        []string{"Export"},
	}, h.CancelExport)

	if h.history != nil {
		huma.Register(api, huma.Operation{
			OperationID: "listExports",
			Method:      "GET",
			Path:        "/api/v1/exports",
			Summary:     "List export job history",
			Tags:        []string{"Export"},
		}, h.ListExports)
	}
}

// RegisterSSE registers the raw progress stream route. SSE cannot go
// through the typed API because it needs per-event flushing.
func (h *ExportHandler) RegisterSSE(router chi.Router) {
	router.Get("/api/v1/exports/{id}/events", h.handleEvents)
}

// StartExport resolves the collection and launches the job.
func (h *ExportHandler) StartExport(ctx context.Context, input *StartExportInput) (*StartExportOutput, error) {
	body := &input.Body
	col, ok := h.resolver.Collection(body.CollectionID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("collection %q not found", body.CollectionID))
	}

	req := &models.ExportRequest{
		Collection:          col,
		StartMs:             body.StartMs,
		EndMs:               body.EndMs,
		Cameras:             body.Cameras,
		Quality:             body.Quality,
		OutputPath:          body.OutputPath,
		MirrorCameras:       body.MirrorCameras,
		UseMetric:           body.UseMetric,
		Language:            body.Language,
		IncludeDashboard:    body.IncludeDashboard,
		DashboardStyle:      body.DashboardStyle,
		DashboardPosition:   body.DashboardPosition,
		DashboardSize:       body.DashboardSize,
		IncludeMinimap:      body.IncludeMinimap,
		MinimapPosition:     body.MinimapPosition,
		MinimapSize:         body.MinimapSize,
		MinimapDarkMode:     body.MinimapDarkMode,
		IncludeTimestamp:    body.IncludeTimestamp,
		TimestampPosition:   body.TimestampPosition,
		TimestampDateFormat: body.TimestampDateFormat,
		TimestampTimeFormat: body.TimestampTimeFormat,
		BlurZones:           body.BlurZones,
		EnableTimelapse:     body.EnableTimelapse,
		TimelapseSpeed:      body.TimelapseSpeed,
	}

	job, err := h.mgr.Start(ctx, req)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	h.watchOutcome(job.ID)

	out := &StartExportOutput{Status: http.StatusAccepted}
	out.Body.JobID = job.ID
	out.Body.State = job.State()
	return out, nil
}

// watchOutcome keeps the job gauges current until the job terminates.
func (h *ExportHandler) watchOutcome(jobID string) {
	if h.metrics == nil {
		return
	}
	h.metrics.ActiveJobs.Inc()
	ch, cancel := h.hub.Stream(jobID).Subscribe()
	go func() {
		defer cancel()
		defer h.metrics.ActiveJobs.Dec()
		for ev := range ch {
			if !ev.Terminal() {
				continue
			}
			outcome := "succeeded"
			switch ev.Error {
			case models.KindNone:
			case models.KindCancelled:
				outcome = "cancelled"
			default:
				outcome = "failed"
			}
			h.metrics.ExportJobs.WithLabelValues(outcome).Inc()
		}
	}()
}

// GetExport reports a job's state and most recent progress.
func (h *ExportHandler) GetExport(_ context.Context, input *JobStatusInput) (*JobStatusOutput, error) {
	job, ok := h.mgr.Job(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("job not found")
	}

	out := &JobStatusOutput{}
	out.Body.JobID = job.ID
	out.Body.State = job.State()
	if last := h.hub.Stream(job.ID).Last(); last != nil {
		out.Body.Percent = last.Percent
	}
	return out, nil
}

// CancelExport requests cancellation of a running job.
func (h *ExportHandler) CancelExport(_ context.Context, input *JobStatusInput) (*CancelExportOutput, error) {
	job, ok := h.mgr.Job(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("job not found")
	}
	if job.State().IsTerminal() {
		return nil, huma.Error409Conflict("job already finished")
	}

	out := &CancelExportOutput{}
	out.Body.Cancelled = h.mgr.Cancel(input.ID)
	return out, nil
}

// ListExports pages through persisted job history, newest first.
func (h *ExportHandler) ListExports(ctx context.Context, input *ListExportsInput) (*ListExportsOutput, error) {
	jobs, total, err := h.history.List(ctx, input.Offset, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing job history", err)
	}
	out := &ListExportsOutput{}
	out.Body.Jobs = jobs
	out.Body.Total = total
	return out, nil
}

// handleEvents streams a job's progress events as SSE until the stream
// terminates or the client disconnects.
func (h *ExportHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if _, ok := h.mgr.Job(jobID); !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, cancel := h.hub.Stream(jobID).Subscribe()
	defer cancel()

	rc := http.NewResponseController(w)
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				h.logger.Debug("sse write failed, client gone", "job_id", jobID, "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// writeSSEEvent writes one event in SSE wire format.
func writeSSEEvent(w http.ResponseWriter, ev progress.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
