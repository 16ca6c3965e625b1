package overlay

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChadR23/sentry-six/internal/models"
)

func testWallClock() time.Time {
	return time.Date(2023, 6, 14, 21, 18, 47, 0, time.Local)
}

func mapOpts(durationMs int64) MinimapOptions {
	return MinimapOptions{
		CanvasW:  1448,
		CanvasH:  938,
		Position: models.PositionTopRight,
		Size:     models.OverlayMedium,
		Timeline: Timeline{StartMs: 0, DurationMs: durationMs, Speed: 1},
	}
}

func gpsSample(ms int64, lat, lon, heading float64) models.TelemetrySample {
	return models.TelemetrySample{TimestampMs: ms, LatitudeDeg: lat, LongitudeDeg: lon, HeadingDeg: heading}
}

func TestRenderMinimap(t *testing.T) {
	path := models.GpsPath{
		{LatitudeDeg: 30.0, LongitudeDeg: -97.0, TimestampMs: 0},
		{LatitudeDeg: 30.001, LongitudeDeg: -97.0, TimestampMs: 1000},
		{LatitudeDeg: 30.001, LongitudeDeg: -96.999, TimestampMs: 2000},
	}
	samples := []models.TelemetrySample{
		gpsSample(0, 30.0, -97.0, 0),
		gpsSample(1000, 30.001, -97.0, 0),
		gpsSample(2000, 30.001, -96.999, 90),
	}

	doc := RenderMinimap(path, samples, mapOpts(3000))
	out := doc.String()

	// Background and route are single full-duration events.
	assert.Contains(t, out, ColourMapDay)
	assert.Contains(t, out, ColourRouteDay)
	assert.GreaterOrEqual(t, strings.Count(out, "0:00:03.00"), 2)

	// The marker re-emits as position and heading change, far fewer
	// times than the 108 overlay frames.
	markers := strings.Count(out, `\frz`)
	assert.GreaterOrEqual(t, markers, 2)
	assert.Less(t, markers, 60)
	assert.Contains(t, out, `\frz-90`)
}

func TestRenderMinimap_DarkMode(t *testing.T) {
	opts := mapOpts(1000)
	opts.DarkMode = true
	doc := RenderMinimap(nil, nil, opts)
	assert.Contains(t, doc.String(), ColourMapNight)
}

func TestRenderMinimap_StationaryVehicle(t *testing.T) {
	path := models.GpsPath{{LatitudeDeg: 30, LongitudeDeg: -97, TimestampMs: 0}}
	samples := []models.TelemetrySample{gpsSample(0, 30, -97, 45)}

	doc := RenderMinimap(path, samples, mapOpts(1000))
	// One background, one route dot, one marker event.
	assert.Equal(t, 3, doc.EventCount())
}

func TestProjectorPadding(t *testing.T) {
	path := models.GpsPath{
		{LatitudeDeg: 0, LongitudeDeg: 0, TimestampMs: 0},
		{LatitudeDeg: 1, LongitudeDeg: 1, TimestampMs: 1000},
	}
	p := newProjector(path, 0, 0, 100)

	// Extremes land 15/130 of the way in from each edge.
	x0, y0 := p.point(0, 0)
	x1, y1 := p.point(1, 1)
	assert.InDelta(t, 100.0*0.15/1.3, x0, 0.01)
	assert.InDelta(t, 100-100.0*0.15/1.3, y0, 0.01, "min latitude is at the bottom")
	assert.InDelta(t, 100-100.0*0.15/1.3, x1, 0.01)
	assert.InDelta(t, 100.0*0.15/1.3, y1, 0.01)
}

func TestRenderTimestamp(t *testing.T) {
	opts := TimestampOptions{
		CanvasW:        724,
		CanvasH:        469,
		Position:       models.PositionBottomLeft,
		DateFormat:     models.DateYMD,
		TimeFormat:     models.Time24H,
		WallClockStart: testWallClock(),
		Timeline:       Timeline{StartMs: 0, DurationMs: 3000, Speed: 1},
	}
	doc := RenderTimestamp(opts)

	// One event per displayed second.
	assert.Equal(t, 3, doc.EventCount())
	out := doc.String()
	assert.Contains(t, out, "2023-06-14  21:18:47")
	assert.Contains(t, out, "2023-06-14  21:18:49")
}

func TestRenderTimestamp_12Hour(t *testing.T) {
	opts := TimestampOptions{
		CanvasW:        724,
		CanvasH:        469,
		Position:       models.PositionTopLeft,
		DateFormat:     models.DateMDY,
		TimeFormat:     models.Time12H,
		WallClockStart: testWallClock(),
		Timeline:       Timeline{StartMs: 0, DurationMs: 1000, Speed: 1},
	}
	out := RenderTimestamp(opts).String()
	assert.Contains(t, out, "06/14/2023  9:18:47 PM")
}

func TestRenderBlurMask(t *testing.T) {
	t.Run("rasterizes polygon", func(t *testing.T) {
		zone := &models.BlurZone{
			Camera: models.CameraFront,
			Polygon: []models.Point{
				{X: 0.25, Y: 0.25}, {X: 0.75, Y: 0.25}, {X: 0.75, Y: 0.75}, {X: 0.25, Y: 0.75},
			},
		}
		data, err := RenderBlurMask(zone, 100, 80)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 100, img.Bounds().Dx())
		assert.Equal(t, 80, img.Bounds().Dy())

		inside, _, _, _ := img.At(50, 40).RGBA()
		outside, _, _, _ := img.At(5, 5).RGBA()
		assert.Equal(t, uint32(0xFFFF), inside, "interior is opaque white")
		assert.Equal(t, uint32(0), outside, "exterior is black")
	})

	t.Run("precomputed mask passes through", func(t *testing.T) {
		zone := &models.BlurZone{
			Camera: models.CameraBack,
			MaskPNG: []byte{1, 2, 3}, MaskWidth: 10, MaskHeight: 10,
		}
		data, err := RenderBlurMask(zone, 100, 80)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, data)
	})

	t.Run("degenerate polygon rejected", func(t *testing.T) {
		zone := &models.BlurZone{
			Camera:  models.CameraFront,
			Polygon: []models.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
		}
		_, err := RenderBlurMask(zone, 100, 80)
		assert.ErrorIs(t, err, models.ErrInvalidBlurZone)
	})
}
