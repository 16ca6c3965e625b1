package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ChadR23/sentry-six/internal/ffmpeg"
	"github.com/ChadR23/sentry-six/internal/i18n"
	"github.com/ChadR23/sentry-six/internal/models"
	"github.com/ChadR23/sentry-six/internal/overlay"
	"github.com/ChadR23/sentry-six/internal/telemetry"
)

// Plan is a fully resolved export: the main render argv, any filler
// renders that must run first, and the sidecar files written for the
// job. Everything under WorkDir is deleted when the job terminates.
type Plan struct {
	Tile    TileSize `json:"tile"`
	Grid    Grid     `json:"grid"`
	Canvas  Canvas   `json:"canvas"`
	Encoder string   `json:"encoder"`
	Bitrate string   `json:"bitrate"`

	// Args is the main render argv, excluding the binary.
	Args []string `json:"args"`

	// Fillers are black padding segments rendered before the main pass,
	// standing in for cameras missing from individual clip groups.
	Fillers []FillerRender `json:"fillers"`

	WorkDir    string `json:"work_dir"`
	OutputPath string `json:"output_path"`

	// TotalDurationMs is the output duration used for progress scaling.
	TotalDurationMs int64 `json:"total_duration_ms"`

	// Notices are translation keys for non-fatal conditions surfaced to
	// the caller, such as disabled overlays.
	Notices []string `json:"notices,omitempty"`
}

// FillerRender is one pre-rendered black segment.
type FillerRender struct {
	Path       string   `json:"path"`
	DurationMs int64    `json:"duration_ms"`
	Args       []string `json:"args"`
}

// Planner assembles export plans. It owns no processes; the job runner
// executes what the planner writes.
type Planner struct {
	tempDir string
	caps    *ffmpeg.Capabilities
	bundle  *i18n.Bundle
	logger  *slog.Logger
}

// NewPlanner creates a planner writing job artifacts under tempDir.
func NewPlanner(tempDir string, caps *ffmpeg.Capabilities, bundle *i18n.Bundle, logger *slog.Logger) *Planner {
	return &Planner{
		tempDir: tempDir,
		caps:    caps,
		bundle:  bundle,
		logger:  logger.With("component", "planner"),
	}
}

// mirrored reports whether the camera is horizontally flipped when
// mirroring is on. Pillar and front cameras never mirror.
func mirrored(c models.Camera) bool {
	switch c {
	case models.CameraBack, models.CameraLeftRepeater, models.CameraRightRepeater:
		return true
	}
	return false
}

// Build resolves the request into a Plan. tel may be nil or empty; a
// requested dashboard or minimap is then disabled with a notice.
func (p *Planner) Build(req *models.ExportRequest, tel *telemetry.Result, jobID string) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	col := req.Collection
	segs := col.SegmentsInRange(req.StartMs, req.EndMs)
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: no segments in [%d,%d]ms", models.ErrEmptySelection, req.StartMs, req.EndMs)
	}

	tile := TileFor(req.Cameras, req.Quality)
	grid := GridFor(len(req.Cameras))
	if req.LayoutData != nil {
		grid = Grid{Rows: req.LayoutData.Rows, Cols: req.LayoutData.Cols}
	}
	canvas := CanvasFor(tile, grid)

	var hwH264, hwHEVC string
	if p.caps != nil && p.caps.HWAccelerated {
		if !strings.HasPrefix(p.caps.H264Encoder, "lib") {
			hwH264 = p.caps.H264Encoder
		}
		if !strings.HasPrefix(p.caps.HEVCEncoder, "lib") {
			hwHEVC = p.caps.HEVCEncoder
		}
	}
	encoder, err := SelectEncoder(canvas, hwH264, hwHEVC)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Tile:            tile,
		Grid:            grid,
		Canvas:          canvas,
		Encoder:         encoder,
		Bitrate:         Bitrate(canvas, req.Quality),
		OutputPath:      req.OutputPath,
		TotalDurationMs: req.OutputDurationMs(),
		WorkDir:         filepath.Join(p.tempDir, "job-"+jobID),
	}
	if err := os.MkdirAll(plan.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}

	b := ffmpeg.NewCommandBuilder().Overwrite().Stats()

	if err := p.addCameraInputs(b, plan, req, segs); err != nil {
		return nil, err
	}
	graph, err := p.buildFilterGraph(b, plan, req, tel)
	if err != nil {
		return nil, err
	}

	b.FilterComplex(graph).
		Map("[vout]").
		VideoCodec(encoder).
		VideoBitrate(plan.Bitrate).
		PixelFormat("yuv420p").
		NoAudio().
		MovFlags("+faststart").
		Duration(float64(plan.TotalDurationMs) / 1000).
		Output(req.OutputPath)

	plan.Args = b.Build()
	p.logger.Debug("export planned",
		"canvas", fmt.Sprintf("%dx%d", canvas.W, canvas.H),
		"encoder", encoder, "fillers", len(plan.Fillers), "segments", len(segs))
	return plan, nil
}

// segDurationMs returns group idx's nominal duration, bounded by the
// next segment start.
func segDurationMs(col *models.DayCollection, idx int) int64 {
	d := models.NominalSegmentMs
	if idx+1 < len(col.SegmentStartsMs) {
		if gap := col.SegmentStartsMs[idx+1] - col.SegmentStartsMs[idx]; gap < d {
			d = gap
		}
	}
	return d
}

// addCameraInputs writes one concat list per camera and registers the
// inputs, planning black fillers for groups where a camera is absent.
// The window start becomes a uniform input seek.
func (p *Planner) addCameraInputs(b *ffmpeg.CommandBuilder, plan *Plan, req *models.ExportRequest, segs []int) error {
	col := req.Collection
	offsetMs := req.StartMs - col.SegmentStartsMs[segs[0]]
	if offsetMs < 0 {
		offsetMs = 0
	}
	seek := strconv.FormatFloat(float64(offsetMs)/1000, 'f', 3, 64)

	realFiles := 0
	for _, cam := range req.Cameras {
		var list strings.Builder
		for _, idx := range segs {
			g := col.Groups[idx]
			if f := g.File(cam); f != nil {
				fmt.Fprintf(&list, "file '%s'\n", concatEscape(f.File.Path))
				realFiles++
				continue
			}

			// The concat demuxer cannot inline synthetic sources, so
			// missing cameras get a pre-rendered black segment.
			durMs := segDurationMs(col, idx)
			filler := filepath.Join(plan.WorkDir, fmt.Sprintf("filler-%s-%d.mp4", cam, idx))
			plan.Fillers = append(plan.Fillers, FillerRender{
				Path:       filler,
				DurationMs: durMs,
				Args: ffmpeg.NewCommandBuilder().Overwrite().
					LavfiInput(fmt.Sprintf("color=c=black:s=%dx%d:r=36:d=%s",
						plan.Tile.W, plan.Tile.H, strconv.FormatFloat(float64(durMs)/1000, 'f', 3, 64))).
					VideoCodec("libx264").
					OutputArgs("-preset", "ultrafast").
					PixelFormat("yuv420p").
					Output(filler).
					Build(),
			})
			fmt.Fprintf(&list, "file '%s'\n", concatEscape(filler))
		}

		listPath := filepath.Join(plan.WorkDir, fmt.Sprintf("concat-%s.txt", cam))
		if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
			return fmt.Errorf("writing concat list: %w", err)
		}
		b.Input(listPath, "-f", "concat", "-safe", "0", "-ss", seek)
	}

	if realFiles == 0 {
		return fmt.Errorf("%w: no selected camera has footage in range", models.ErrEmptySelection)
	}
	return nil
}

// buildFilterGraph emits the scale/mirror/blur chains, the mosaic, the
// optional timelapse, and the subtitle burns, ending at [vout].
func (p *Planner) buildFilterGraph(b *ffmpeg.CommandBuilder, plan *Plan, req *models.ExportRequest, tel *telemetry.Result) (string, error) {
	var parts []string
	nCams := len(req.Cameras)
	maskInput := nCams

	labels := make([]string, nCams)
	for i, cam := range req.Cameras {
		chain := fmt.Sprintf("[%d:v]scale=%d:%d,setsar=1", i, plan.Tile.W, plan.Tile.H)
		if req.MirrorCameras && mirrored(cam) {
			chain += ",hflip"
		}
		cur := fmt.Sprintf("t%d", i)
		parts = append(parts, fmt.Sprintf("%s[%s]", chain, cur))

		for zi := range req.BlurZones {
			zone := &req.BlurZones[zi]
			if zone.Camera != cam {
				continue
			}

			mask, err := overlay.RenderBlurMask(zone, plan.Tile.W, plan.Tile.H)
			if err != nil {
				return "", err
			}
			maskPath := filepath.Join(plan.WorkDir, fmt.Sprintf("mask-%s-%d.png", cam, zi))
			if err := os.WriteFile(maskPath, mask, 0o644); err != nil {
				return "", fmt.Errorf("writing blur mask: %w", err)
			}
			b.Input(maskPath, "-loop", "1")

			m := fmt.Sprintf("m%d", maskInput)
			next := fmt.Sprintf("%sz%d", cur, zi)
			parts = append(parts,
				fmt.Sprintf("[%d:v]scale=%d:%d,format=gray[%s]", maskInput, plan.Tile.W, plan.Tile.H, m),
				fmt.Sprintf("[%s]split[%sa][%sb]", cur, cur, cur),
				fmt.Sprintf("[%sb]boxblur=luma_radius=20:luma_power=2[%sblur]", cur, cur),
				fmt.Sprintf("[%sblur][%s]alphamerge[%sov]", cur, m, cur),
				fmt.Sprintf("[%sa][%sov]overlay[%s]", cur, cur, next),
			)
			cur = next
			maskInput++
		}
		labels[i] = cur
	}

	p.warnIgnoredZones(req, plan)

	comp := labels[0]
	if nCams > 1 {
		var in strings.Builder
		layout := make([]string, nCams)
		for i, cam := range req.Cameras {
			in.WriteString("[" + labels[i] + "]")
			row, colIdx := i/plan.Grid.Cols, i%plan.Grid.Cols
			if req.LayoutData != nil {
				if cell, ok := req.LayoutData.Cells[cam]; ok {
					row, colIdx = cell[0], cell[1]
				}
			}
			layout[i] = fmt.Sprintf("%d_%d", colIdx*plan.Tile.W, row*plan.Tile.H)
		}
		parts = append(parts, fmt.Sprintf("%sxstack=inputs=%d:layout=%s:fill=black[stack]",
			in.String(), nCams, strings.Join(layout, "|")))
		comp = "stack"
	}

	if req.EnableTimelapse {
		parts = append(parts, fmt.Sprintf("[%s]setpts=PTS/%s,fps=36[tl]",
			comp, strconv.FormatFloat(req.TimelapseSpeed, 'f', -1, 64)))
		comp = "tl"
	}

	overlayFiles, err := p.writeOverlays(plan, req, tel)
	if err != nil {
		return "", err
	}
	for i, path := range overlayFiles {
		next := fmt.Sprintf("o%d", i)
		parts = append(parts, fmt.Sprintf("[%s]ass='%s'[%s]", comp, filterEscape(path), next))
		comp = next
	}

	parts = append(parts, fmt.Sprintf("[%s]null[vout]", comp))
	return strings.Join(parts, ";"), nil
}

// warnIgnoredZones surfaces blur zones whose camera is not selected.
func (p *Planner) warnIgnoredZones(req *models.ExportRequest, plan *Plan) {
	for i := range req.BlurZones {
		if !req.HasCamera(req.BlurZones[i].Camera) {
			p.logger.Warn("blur zone ignored, camera not selected", "camera", req.BlurZones[i].Camera)
			plan.Notices = append(plan.Notices, "error.invalid_blur_zone_camera")
		}
	}
}

// writeOverlays renders and writes the requested ASS documents, in burn
// order: dashboard or timestamp first, minimap on top.
func (p *Planner) writeOverlays(plan *Plan, req *models.ExportRequest, tel *telemetry.Result) ([]string, error) {
	timeline := overlay.Timeline{
		StartMs:    req.StartMs,
		DurationMs: plan.TotalDurationMs,
		Speed:      1,
	}
	if req.EnableTimelapse && req.TimelapseSpeed > 0 {
		timeline.Speed = req.TimelapseSpeed
	}

	wallClock := p.wallClockStart(req)
	hasTelemetry := tel != nil && len(tel.Samples) > 0

	var files []string
	write := func(name string, doc *overlay.Document) error {
		path := filepath.Join(plan.WorkDir, name)
		if err := os.WriteFile(path, []byte(doc.String()), 0o644); err != nil {
			return fmt.Errorf("writing overlay %s: %w", name, err)
		}
		files = append(files, path)
		return nil
	}

	if req.IncludeDashboard {
		if !hasTelemetry {
			plan.Notices = append(plan.Notices, "error.no_telemetry")
		} else {
			doc := overlay.RenderDashboard(tel.Samples, overlay.DashboardOptions{
				CanvasW: plan.Canvas.W, CanvasH: plan.Canvas.H,
				Position: req.DashboardPosition, Size: req.DashboardSize, Style: req.DashboardStyle,
				UseMetric: req.UseMetric, Locale: p.bundle.Locale(req.Language),
				DateFormat: req.TimestampDateFormat, TimeFormat: req.TimestampTimeFormat,
				WallClockStart: wallClock, Timeline: timeline,
			})
			if err := write("dashboard.ass", doc); err != nil {
				return nil, err
			}
		}
	}

	if req.IncludeTimestamp && !req.IncludeDashboard {
		doc := overlay.RenderTimestamp(overlay.TimestampOptions{
			CanvasW: plan.Canvas.W, CanvasH: plan.Canvas.H,
			Position:   req.TimestampPosition,
			DateFormat: req.TimestampDateFormat, TimeFormat: req.TimestampTimeFormat,
			WallClockStart: wallClock, Timeline: timeline,
		})
		if err := write("timestamp.ass", doc); err != nil {
			return nil, err
		}
	}

	if req.IncludeMinimap {
		if !hasTelemetry || len(tel.GpsPath) == 0 {
			plan.Notices = append(plan.Notices, "error.no_telemetry")
		} else {
			doc := overlay.RenderMinimap(tel.GpsPath, tel.Samples, overlay.MinimapOptions{
				CanvasW: plan.Canvas.W, CanvasH: plan.Canvas.H,
				Position: req.MinimapPosition, Size: req.MinimapSize,
				DarkMode: req.MinimapDarkMode, Timeline: timeline,
			})
			if err := write("minimap.ass", doc); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}

// wallClockStart derives the vehicle wall-clock at the window start
// from the first group's timestamp key.
func (p *Planner) wallClockStart(req *models.ExportRequest) time.Time {
	col := req.Collection
	if len(col.Groups) > 0 {
		if t, err := models.ParseTimestampKey(col.Groups[0].TimestampKey); err == nil {
			return t.Add(time.Duration(req.StartMs) * time.Millisecond)
		}
	}
	return time.Unix(0, 0)
}

// concatEscape escapes single quotes for concat list entries.
func concatEscape(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// filterEscape makes a path safe inside a quoted filter option value.
// Backslashes become forward slashes so Windows paths survive the
// filter parser.
func filterEscape(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	path = strings.ReplaceAll(path, ":", `\:`)
	return strings.ReplaceAll(path, "'", `\'`)
}
