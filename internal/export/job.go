package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ChadR23/sentry-six/internal/ffmpeg"
	"github.com/ChadR23/sentry-six/internal/models"
	"github.com/ChadR23/sentry-six/internal/service/progress"
	"github.com/ChadR23/sentry-six/internal/telemetry"
)

// RecordStore persists job history. A nil store disables persistence.
type RecordStore interface {
	Create(ctx context.Context, rec *models.ExportJobRecord) error
	Update(ctx context.Context, rec *models.ExportJobRecord) error
}

// Runner executes one supervised ffmpeg invocation.
type Runner interface {
	Run(ctx context.Context, opts ffmpeg.RunOptions) error
}

// Job is one running or finished export.
type Job struct {
	ID  string
	Req *models.ExportRequest

	mu     sync.Mutex
	state  models.JobState
	cancel context.CancelFunc
	record *models.ExportJobRecord
}

// State returns the current lifecycle state.
func (j *Job) State() models.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// transition moves the job forward if the state machine allows it.
func (j *Job) transition(next models.JobState) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.state.CanTransition(next) {
		return false
	}
	j.state = next
	return true
}

// Manager owns export jobs end to end: planning, telemetry extraction,
// filler and main renders, progress publication, and teardown.
type Manager struct {
	planner    *Planner
	extractor  *telemetry.Extractor
	supervisor Runner
	hub        *progress.Hub
	store      RecordStore
	logger     *slog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewManager wires the export pipeline. store may be nil.
func NewManager(planner *Planner, extractor *telemetry.Extractor, supervisor Runner, hub *progress.Hub, store RecordStore, logger *slog.Logger) *Manager {
	return &Manager{
		planner:    planner,
		extractor:  extractor,
		supervisor: supervisor,
		hub:        hub,
		store:      store,
		logger:     logger.With("component", "export"),
		jobs:       make(map[string]*Job),
	}
}

// Start validates the request and launches the job in the background.
func (m *Manager) Start(ctx context.Context, req *models.ExportRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := &Job{
		ID:     models.NewULID().String(),
		Req:    req,
		state:  models.JobPlanning,
		cancel: cancel,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	go m.run(runCtx, job)
	return job, nil
}

// Run executes an export synchronously, for CLI use. The returned error
// carries the job's terminal condition.
func (m *Manager) Run(ctx context.Context, req *models.ExportRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:     models.NewULID().String(),
		Req:    req,
		state:  models.JobPlanning,
		cancel: cancel,
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	err := m.run(runCtx, job)
	return job, err
}

// Job returns a job by ID.
func (m *Manager) Job(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok
}

// Cancel requests cancellation. It is idempotent and a no-op for
// unknown or already terminal jobs.
func (m *Manager) Cancel(id string) bool {
	j, ok := m.Job(id)
	if !ok {
		return false
	}
	j.mu.Lock()
	terminal := j.state.IsTerminal()
	cancel := j.cancel
	j.mu.Unlock()
	if terminal {
		return false
	}
	cancel()
	return true
}

// run drives the job through its stages and always publishes a terminal
// event.
func (m *Manager) run(ctx context.Context, job *Job) error {
	stream := m.hub.Stream(job.ID)
	m.persistStart(ctx, job)

	err := m.execute(ctx, job, stream)

	switch {
	case err == nil:
		job.transition(models.JobSucceeded)
		stream.Publish(progress.KindComplete, 100, progress.Message{Key: "progress.complete"}, models.KindNone)
	case errors.Is(err, models.ErrCancelled) || errors.Is(err, context.Canceled):
		err = models.ErrCancelled
		job.transition(models.JobCancelled)
		m.removePartialOutput(job)
		stream.Publish(progress.KindComplete, 0, progress.Message{Key: "progress.cancelled"}, models.KindCancelled)
	default:
		job.transition(models.JobFailed)
		kind := models.KindOf(err)
		m.logger.Error("export failed", "job_id", job.ID, "kind", string(kind), "error", err)
		stream.Publish(progress.KindComplete, 0, progress.Message{Key: "error." + string(kind), Params: map[string]string{"detail": err.Error()}}, kind)
	}

	m.persistEnd(context.WithoutCancel(ctx), job, err)
	return err
}

// execute runs the pipeline stages, returning the first failure.
func (m *Manager) execute(ctx context.Context, job *Job, stream *progress.Stream) error {
	req := job.Req
	stream.Publish(progress.KindProgress, 0, progress.Message{Key: "progress.planning"}, models.KindNone)

	// Telemetry feeds overlays; skip extraction when nothing uses it.
	var tel *telemetry.Result
	if req.IncludeDashboard || req.IncludeMinimap {
		if !job.transition(models.JobExtracting) {
			return models.ErrCancelled
		}
		stream.Publish(progress.KindProgress, 2, progress.Message{Key: "progress.extracting_telemetry"}, models.KindNone)

		var err error
		tel, err = m.extractor.Extract(ctx, req.Collection, req.StartMs, req.EndMs)
		if err != nil {
			return err
		}
		if tel.Cancelled {
			return models.ErrCancelled
		}

		if req.IncludeDashboard {
			stream.Publish(progress.KindDashboardProgress, 50, progress.Message{Key: "progress.rendering_dashboard"}, models.KindNone)
		}
		if req.IncludeMinimap {
			stream.Publish(progress.KindMinimapProgress, 50, progress.Message{Key: "progress.rendering_minimap"}, models.KindNone)
		}
	} else if !job.transition(models.JobExtracting) {
		return models.ErrCancelled
	}

	plan, err := m.planner.Build(req, tel, job.ID)
	if err != nil {
		return err
	}
	defer m.cleanupWorkDir(plan)

	// Overlay documents were written during planning; report those
	// stages complete before the encode starts.
	if req.IncludeDashboard {
		stream.Publish(progress.KindDashboardProgress, 100, progress.Message{Key: "progress.rendering_dashboard"}, models.KindNone)
	}
	if req.IncludeMinimap {
		stream.Publish(progress.KindMinimapProgress, 100, progress.Message{Key: "progress.rendering_minimap"}, models.KindNone)
	}
	for _, notice := range plan.Notices {
		stream.Publish(progress.KindProgress, 5, progress.Message{Key: notice}, models.KindNone)
	}

	if !job.transition(models.JobRendering) {
		return models.ErrCancelled
	}

	for _, filler := range plan.Fillers {
		if err := m.supervisor.Run(ctx, ffmpeg.RunOptions{Args: filler.Args, Output: filler.Path}); err != nil {
			return fmt.Errorf("rendering filler segment: %w", err)
		}
	}

	return m.supervisor.Run(ctx, ffmpeg.RunOptions{
		Args:            plan.Args,
		TotalDurationMs: plan.TotalDurationMs,
		Output:          plan.OutputPath,
		OnProgress: func(p ffmpeg.Progress) {
			stream.Publish(progress.KindProgress, p.Percent, progress.Message{Key: "progress.rendering"}, models.KindNone)
			m.updateProgress(job, p.Percent)
		},
	})
}

// cleanupWorkDir removes the job's temporary artifacts.
func (m *Manager) cleanupWorkDir(plan *Plan) {
	if plan.WorkDir == "" {
		return
	}
	if err := os.RemoveAll(plan.WorkDir); err != nil {
		m.logger.Warn("removing work dir failed", "dir", plan.WorkDir, "error", err)
	}
}

// removePartialOutput deletes the output of a cancelled job. The
// supervisor removes it when the render itself is interrupted; this
// covers cancellation between stages.
func (m *Manager) removePartialOutput(job *Job) {
	if err := os.Remove(job.Req.OutputPath); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("removing cancelled output failed", "path", job.Req.OutputPath, "error", err)
	}
}

func (m *Manager) persistStart(ctx context.Context, job *Job) {
	if m.store == nil {
		return
	}
	rec := &models.ExportJobRecord{
		CollectionID: job.Req.Collection.ID,
		ClipType:     job.Req.Collection.ClipType,
		StartMs:      job.Req.StartMs,
		EndMs:        job.Req.EndMs,
		CameraCount:  len(job.Req.Cameras),
		Quality:      job.Req.Quality,
		OutputPath:   job.Req.OutputPath,
		State:        models.JobPlanning,
		StartedAt:    time.Now(),
	}
	if err := m.store.Create(ctx, rec); err != nil {
		m.logger.Warn("persisting job record failed", "job_id", job.ID, "error", err)
		return
	}
	job.mu.Lock()
	job.record = rec
	job.mu.Unlock()
}

func (m *Manager) updateProgress(job *Job, pct float64) {
	job.mu.Lock()
	if job.record != nil {
		job.record.ProgressPct = pct
		job.record.State = job.state
	}
	job.mu.Unlock()
}

func (m *Manager) persistEnd(ctx context.Context, job *Job, err error) {
	if m.store == nil {
		return
	}
	job.mu.Lock()
	rec := job.record
	state := job.state
	job.mu.Unlock()
	if rec == nil {
		return
	}

	now := time.Now()
	rec.State = state
	rec.CompletedAt = &now
	if err != nil {
		rec.ErrorKind = models.KindOf(err)
		rec.ErrorDetail = err.Error()
	} else {
		rec.ProgressPct = 100
	}
	if uerr := m.store.Update(ctx, rec); uerr != nil {
		m.logger.Warn("updating job record failed", "job_id", job.ID, "error", uerr)
	}
}
