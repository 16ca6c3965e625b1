package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChadR23/sentry-six/internal/models"
)

// fakeDecoder maps file contents to canned frame streams.
type fakeDecoder struct {
	frames map[string][]Frame
	errOn  string
}

func (d *fakeDecoder) DecodeFrames(data []byte) ([]Frame, error) {
	key := string(data)
	if key == d.errOn {
		return nil, errors.New("corrupt bitstream")
	}
	return d.frames[key], nil
}

func sei(speed float64, lat, lon float64) *models.TelemetrySample {
	return &models.TelemetrySample{
		SpeedMps:     speed,
		Gear:         models.GearDrive,
		Autopilot:    models.AutopilotManual,
		LatitudeDeg:  lat,
		LongitudeDeg: lon,
	}
}

func writeSegment(t *testing.T, dir, name, content string) *models.ClipFile {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return &models.ClipFile{
		Camera: models.CameraFront,
		File:   &models.FileDescriptor{Path: path, RelPath: name, Size: int64(len(content))},
	}
}

func testCollection(groups []*models.ClipGroup, starts []int64) *models.DayCollection {
	return &models.DayCollection{
		ID:              "recent::2023-06-14",
		Day:             "2023-06-14",
		ClipType:        models.ClipRecent,
		Groups:          groups,
		SegmentStartsMs: starts,
		DurationMs:      starts[len(starts)-1] + models.NominalSegmentMs,
	}
}

func TestExtract_TimelinePlacement(t *testing.T) {
	dir := t.TempDir()

	// Two 25 ms frames before the second SEI frame: sample lands at 50 ms.
	dec := &fakeDecoder{frames: map[string][]Frame{
		"seg0": {
			{DurationMs: 25, SEI: sei(10, 30.0, -97.0)},
			{DurationMs: 25},
			{DurationMs: 25, SEI: sei(11, 30.001, -97.001)},
		},
		"seg1": {
			{DurationMs: 25, SEI: sei(12, 0, 0)},
		},
	}}

	g0 := &models.ClipGroup{FilesByCamera: map[models.Camera]*models.ClipFile{
		models.CameraFront: writeSegment(t, dir, "a.mp4", "seg0"),
	}}
	g1 := &models.ClipGroup{FilesByCamera: map[models.Camera]*models.ClipFile{
		models.CameraFront: writeSegment(t, dir, "b.mp4", "seg1"),
	}}
	c := testCollection([]*models.ClipGroup{g0, g1}, []int64{0, 60_000})

	ex := NewExtractor(dec, slog.New(slog.DiscardHandler))
	res, err := ex.Extract(context.Background(), c, 0, c.DurationMs)
	require.NoError(t, err)
	assert.False(t, res.Cancelled)

	require.Len(t, res.Samples, 3)
	assert.Equal(t, int64(0), res.Samples[0].TimestampMs)
	assert.Equal(t, int64(50), res.Samples[1].TimestampMs)
	assert.Equal(t, int64(60_000), res.Samples[2].TimestampMs)

	// The (0,0) fix in seg1 is excluded from the polyline.
	require.Len(t, res.GpsPath, 2)
	assert.Equal(t, int64(0), res.GpsPath[0].TimestampMs)
	assert.Equal(t, int64(50), res.GpsPath[1].TimestampMs)
}

func TestExtract_WindowSelectsSegments(t *testing.T) {
	dir := t.TempDir()
	dec := &fakeDecoder{frames: map[string][]Frame{
		"seg0": {{DurationMs: 25, SEI: sei(1, 30, -97)}},
		"seg1": {{DurationMs: 25, SEI: sei(2, 30, -97)}},
	}}

	g0 := &models.ClipGroup{FilesByCamera: map[models.Camera]*models.ClipFile{
		models.CameraFront: writeSegment(t, dir, "a.mp4", "seg0"),
	}}
	g1 := &models.ClipGroup{FilesByCamera: map[models.Camera]*models.ClipFile{
		models.CameraFront: writeSegment(t, dir, "b.mp4", "seg1"),
	}}
	c := testCollection([]*models.ClipGroup{g0, g1}, []int64{0, 60_000})

	ex := NewExtractor(dec, slog.New(slog.DiscardHandler))
	res, err := ex.Extract(context.Background(), c, 60_000, 120_000)
	require.NoError(t, err)
	require.Len(t, res.Samples, 1)
	assert.Equal(t, float64(2), res.Samples[0].SpeedMps)
}

func TestExtract_FallsBackWhenFrontMissing(t *testing.T) {
	dir := t.TempDir()
	dec := &fakeDecoder{frames: map[string][]Frame{
		"segX": {{DurationMs: 25, SEI: sei(5, 30, -97)}},
	}}

	clip := writeSegment(t, dir, "a.mp4", "segX")
	clip.Camera = models.CameraLeftRepeater
	g := &models.ClipGroup{FilesByCamera: map[models.Camera]*models.ClipFile{
		models.CameraLeftRepeater: clip,
	}}
	c := testCollection([]*models.ClipGroup{g}, []int64{0})

	ex := NewExtractor(dec, slog.New(slog.DiscardHandler))
	res, err := ex.Extract(context.Background(), c, 0, c.DurationMs)
	require.NoError(t, err)
	require.Len(t, res.Samples, 1)
}

func TestExtract_SkipsUndecodableSegments(t *testing.T) {
	dir := t.TempDir()
	dec := &fakeDecoder{
		frames: map[string][]Frame{
			"good": {{DurationMs: 25, SEI: sei(7, 30, -97)}},
		},
		errOn: "bad",
	}

	g0 := &models.ClipGroup{FilesByCamera: map[models.Camera]*models.ClipFile{
		models.CameraFront: writeSegment(t, dir, "a.mp4", "bad"),
	}}
	g1 := &models.ClipGroup{FilesByCamera: map[models.Camera]*models.ClipFile{
		models.CameraFront: writeSegment(t, dir, "b.mp4", "good"),
	}}
	c := testCollection([]*models.ClipGroup{g0, g1}, []int64{0, 60_000})

	ex := NewExtractor(dec, slog.New(slog.DiscardHandler))
	res, err := ex.Extract(context.Background(), c, 0, c.DurationMs)
	require.NoError(t, err)
	require.Len(t, res.Samples, 1)
	assert.Equal(t, int64(60_000), res.Samples[0].TimestampMs)
}

func TestExtract_CancellationYieldsPartialResult(t *testing.T) {
	dir := t.TempDir()
	dec := &fakeDecoder{frames: map[string][]Frame{
		"seg0": {{DurationMs: 25, SEI: sei(1, 30, -97)}},
	}}

	g := &models.ClipGroup{FilesByCamera: map[models.Camera]*models.ClipFile{
		models.CameraFront: writeSegment(t, dir, "a.mp4", "seg0"),
	}}
	c := testCollection([]*models.ClipGroup{g}, []int64{0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := NewExtractor(dec, slog.New(slog.DiscardHandler))
	res, err := ex.Extract(ctx, c, 0, c.DurationMs)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Empty(t, res.Samples)
}

func TestNearestSample(t *testing.T) {
	samples := []models.TelemetrySample{
		{TimestampMs: 0},
		{TimestampMs: 100},
		{TimestampMs: 200},
	}

	tests := []struct {
		name string
		ms   int64
		want int
	}{
		{"before first", -50, 0},
		{"exact", 100, 1},
		{"closer to earlier", 130, 1},
		{"closer to later", 170, 2},
		{"midpoint ties earlier", 150, 1},
		{"after last", 999, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NearestSample(samples, tt.ms))
		})
	}

	assert.Equal(t, -1, NearestSample(nil, 0))
}
