package models

import (
	"fmt"
	"sort"
)

// Quality selects the per-tile resolution tier for an export.
type Quality string

const (
	QualityMobile Quality = "mobile"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityMax    Quality = "max"
)

// DashboardStyle selects the telemetry dashboard rendering style.
type DashboardStyle string

const (
	DashboardStandard DashboardStyle = "standard"
	DashboardCompact  DashboardStyle = "compact"
)

// OverlaySize is the size tier shared by dashboard and minimap overlays.
type OverlaySize string

const (
	OverlaySmall  OverlaySize = "small"
	OverlayMedium OverlaySize = "medium"
	OverlayLarge  OverlaySize = "large"
	OverlayXLarge OverlaySize = "xlarge"
)

// OverlayPosition anchors an overlay to a canvas corner or edge.
type OverlayPosition string

const (
	PositionTopLeft     OverlayPosition = "top_left"
	PositionTopRight    OverlayPosition = "top_right"
	PositionBottomLeft  OverlayPosition = "bottom_left"
	PositionBottomRight OverlayPosition = "bottom_right"
	PositionTopCenter   OverlayPosition = "top_center"
	PositionBottomCenter OverlayPosition = "bottom_center"
)

// MinimapRenderMode selects between vector route drawing and external map
// tile imagery.
type MinimapRenderMode string

const (
	MinimapVector    MinimapRenderMode = "vector"
	MinimapTileImage MinimapRenderMode = "tile_image"
)

// DateFormat orders the date components of timestamp overlays.
type DateFormat string

const (
	DateMDY DateFormat = "mdy"
	DateDMY DateFormat = "dmy"
	DateYMD DateFormat = "ymd"
)

// TimeFormat selects 12- or 24-hour clock for timestamp overlays.
type TimeFormat string

const (
	Time12H TimeFormat = "h12"
	Time24H TimeFormat = "h24"
)

// TimelapseSpeeds are the recognized speed multipliers.
var TimelapseSpeeds = []float64{0.5, 2, 4, 8, 16, 32, 64}

// Point is a 2D point in normalized [0,1] tile coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BlurZone obscures a polygonal region of one camera's tile.
type BlurZone struct {
	Camera Camera `json:"camera"`
	// Polygon has at least 3 vertices in [0,1]^2 tile space; the interior
	// is the region to obscure.
	Polygon []Point `json:"polygon"`
	// MaskPNG, when set, is a precomputed alpha mask used as-is.
	MaskPNG    []byte `json:"-"`
	MaskWidth  int    `json:"mask_width,omitempty"`
	MaskHeight int    `json:"mask_height,omitempty"`
}

/// Validate rejects degenerate blur polygons: fewer than three vertices,
// out-of-range coordinates, or zero enclosed area (collinear points).
func (z *BlurZone) Validate() error {
	if len(z.MaskPNG) > 0 {
		if z.MaskWidth <= 0 || z.MaskHeight <= 0 {
			return fmt.Errorf("%w: mask dimensions missing", ErrInvalidBlurZone)
		}
		return nil
	}
	if len(z.Polygon) < 3 {
		return fmt.Errorf("%w: polygon needs at least 3 points", ErrInvalidBlurZone)
	}
	for _, p := range z.Polygon {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			return fmt.Errorf("%w: point (%g,%g) outside [0,1]", ErrInvalidBlurZone, p.X, p.Y)
		}
	}
	// Shoelace area; collinear vertices enclose nothing.
	var area float64
	n := len(z.Polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += z.Polygon[i].X*z.Polygon[j].Y - z.Polygon[j].X*z.Polygon[i].Y
	}
	if area == 0 {
		return fmt.Errorf("%w: polygon has zero area", ErrInvalidBlurZone)
	}
	return nil
}

// TileLayout places camera tiles on an explicit grid. Cell (0,0) is the
// top-left tile.
type TileLayout struct {
	Rows  int                  `json:"rows"`
	Cols  int                  `json:"cols"`
	Cells map[Camera][2]int    `json:"cells"` // camera -> (row, col)
}

// ExportRequest is the complete, immutable description of one export.
type ExportRequest struct {
	Collection *DayCollection `json:"collection"`

	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`

	Cameras    []Camera    `json:"cameras"`
	LayoutData *TileLayout `json:"layout_data,omitempty"`
	Quality    Quality     `json:"quality"`
	OutputPath string      `json:"output_path"`

	MirrorCameras bool   `json:"mirror_cameras"`
	UseMetric     bool   `json:"use_metric"`
	Language      string `json:"language"`

	IncludeDashboard  bool            `json:"include_dashboard"`
	DashboardStyle    DashboardStyle  `json:"dashboard_style"`
	DashboardPosition OverlayPosition `json:"dashboard_position"`
	DashboardSize     OverlaySize     `json:"dashboard_size"`

	IncludeMinimap    bool              `json:"include_minimap"`
	MinimapPosition   OverlayPosition   `json:"minimap_position"`
	MinimapSize       OverlaySize       `json:"minimap_size"`
	MinimapRenderMode MinimapRenderMode `json:"minimap_render_mode"`
	MinimapDarkMode   bool              `json:"minimap_dark_mode"`

	IncludeTimestamp    bool            `json:"include_timestamp"`
	TimestampPosition   OverlayPosition `json:"timestamp_position"`
	TimestampDateFormat DateFormat      `json:"timestamp_date_format"`
	TimestampTimeFormat TimeFormat      `json:"timestamp_time_format"`

	BlurZones []BlurZone `json:"blur_zones,omitempty"`

	EnableTimelapse bool    `json:"enable_timelapse"`
	TimelapseSpeed  float64 `json:"timelapse_speed,omitempty"`
}

// HasCamera reports whether the camera is in the selected set.
func (r *ExportRequest) HasCamera(c Camera) bool {
	for _, cam := range r.Cameras {
		if cam == c {
			return true
		}
	}
	return false
}

// WindowMs is the length of the requested export range.
func (r *ExportRequest) WindowMs() int64 {
	return r.EndMs - r.StartMs
}

// OutputDurationMs is the duration of the rendered file, after any
// timelapse compression.
func (r *ExportRequest) OutputDurationMs() int64 {
	if r.EnableTimelapse && r.TimelapseSpeed > 0 {
		return int64(float64(r.WindowMs()) / r.TimelapseSpeed)
	}
	return r.WindowMs()
}

// Validate checks the request against the collection bounds and the
// recognized option values.
func (r *ExportRequest) Validate() error {
	if r.Collection == nil {
		return fmt.Errorf("collection is required")
	}
	if r.StartMs >= r.EndMs {
		return fmt.Errorf("%w: start %dms >= end %dms", ErrEmptySelection, r.StartMs, r.EndMs)
	}
	if r.StartMs < 0 || r.EndMs > r.Collection.DurationMs {
		return fmt.Errorf("range [%d,%d]ms outside collection bounds [0,%d]ms",
			r.StartMs, r.EndMs, r.Collection.DurationMs)
	}
	if len(r.Cameras) == 0 {
		return fmt.Errorf("at least one camera is required")
	}
	for _, c := range r.Cameras {
		if !c.IsKnown() {
			return fmt.Errorf("unknown camera %q", c)
		}
	}
	switch r.Quality {
	case QualityMobile, QualityMedium, QualityHigh, QualityMax:
	default:
		return fmt.Errorf("unknown quality %q", r.Quality)
	}
	if r.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if r.EnableTimelapse {
		i := sort.SearchFloat64s(TimelapseSpeeds, r.TimelapseSpeed)
		if i >= len(TimelapseSpeeds) || TimelapseSpeeds[i] != r.TimelapseSpeed {
			return fmt.Errorf("unsupported timelapse speed %g", r.TimelapseSpeed)
		}
	}
	for i := range r.BlurZones {
		if err := r.BlurZones[i].Validate(); err != nil {
			return fmt.Errorf("blur zone %d: %w", i, err)
		}
	}
	return nil
}
