package overlay

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChadR23/sentry-six/internal/i18n"
	"github.com/ChadR23/sentry-six/internal/models"
)

func testLocale(t *testing.T) *i18n.Locale {
	t.Helper()
	b, err := i18n.Load()
	require.NoError(t, err)
	return b.Locale("en")
}

func dashOpts(t *testing.T, durationMs int64) DashboardOptions {
	return DashboardOptions{
		CanvasW:        1448,
		CanvasH:        938,
		Position:       models.PositionBottomCenter,
		Size:           models.OverlayMedium,
		Style:          models.DashboardCompact,
		Locale:         testLocale(t),
		DateFormat:     models.DateMDY,
		TimeFormat:     models.Time24H,
		WallClockStart: time.Date(2023, 6, 14, 21, 18, 47, 0, time.Local),
		Timeline:       Timeline{StartMs: 0, DurationMs: durationMs, Speed: 1},
	}
}

func steadySample(ms int64) models.TelemetrySample {
	return models.TelemetrySample{
		TimestampMs: ms,
		SpeedMps:    10,
		Gear:        models.GearDrive,
		Autopilot:   models.AutopilotManual,
	}
}

func TestRenderDashboard_EventMinimization(t *testing.T) {
	// Constant telemetry within one wall-clock second: every element
	// should collapse to a single event.
	samples := []models.TelemetrySample{steadySample(0), steadySample(500), steadySample(900)}
	doc := RenderDashboard(samples, dashOpts(t, 1000))

	out := doc.String()
	assert.Contains(t, out, "PlayResX: 1448")
	// Background, pedals, clock, speed, gear stack, wheel. No blinker
	// events because no blinker is on.
	assert.LessOrEqual(t, doc.EventCount(), 8)
	assert.Contains(t, out, "22 {") // 10 m/s ~ 22 mph numeral
	assert.Contains(t, out, "MPH")
	assert.Contains(t, out, "DRIVE")
}

func TestRenderDashboard_SpeedChangeSplitsEvents(t *testing.T) {
	a := steadySample(0)
	b := steadySample(600)
	b.SpeedMps = 20
	doc1 := RenderDashboard([]models.TelemetrySample{steadySample(0), steadySample(600)}, dashOpts(t, 1000))
	doc2 := RenderDashboard([]models.TelemetrySample{a, b}, dashOpts(t, 1000))
	assert.Greater(t, doc2.EventCount(), doc1.EventCount())
	assert.Contains(t, doc2.String(), "45 {") // 20 m/s ~ 45 mph
}

func TestRenderDashboard_BlinkerCycle(t *testing.T) {
	s := steadySample(0)
	s.BlinkerLeft = true
	s2 := steadySample(2900)
	s2.BlinkerLeft = true

	doc := RenderDashboard([]models.TelemetrySample{s, s2}, dashOpts(t, 3000))
	out := doc.String()

	// 3 s at a 0.8 s cycle yields several distinct on phases.
	green := strings.Count(out, ColourGreen)
	assert.GreaterOrEqual(t, green, 3)
	assert.LessOrEqual(t, green, 5)
}

func TestRenderDashboard_MetricUnits(t *testing.T) {
	opts := dashOpts(t, 1000)
	opts.UseMetric = true
	doc := RenderDashboard([]models.TelemetrySample{steadySample(0)}, opts)
	out := doc.String()
	assert.Contains(t, out, "36 {") // 10 m/s = 36 km/h
	assert.Contains(t, out, "km/h")
}

func TestRenderDashboard_SteeringRotation(t *testing.T) {
	s := steadySample(0)
	s.SteeringAngleDeg = 90
	doc := RenderDashboard([]models.TelemetrySample{s}, dashOpts(t, 500))
	assert.Contains(t, doc.String(), `\frz-90`)
}

func TestRenderDashboard_ActiveStates(t *testing.T) {
	s := steadySample(0)
	s.Brake = true
	s.Autopilot = models.AutopilotAutosteer
	doc := RenderDashboard([]models.TelemetrySample{s}, dashOpts(t, 500))
	out := doc.String()
	assert.Contains(t, out, ColourRed)
	assert.Contains(t, out, ColourBlue)
	assert.Contains(t, out, "AUTOSTEER")
}

func TestRenderDashboard_TimelapseCompressesClock(t *testing.T) {
	// 8x timelapse over an 8 s source window: output lasts 1 s but the
	// clock still advances 8 wall seconds.
	opts := dashOpts(t, 1000)
	opts.Timeline = Timeline{StartMs: 0, DurationMs: 1000, Speed: 8}
	doc := RenderDashboard([]models.TelemetrySample{steadySample(0), steadySample(7900)}, opts)
	out := doc.String()
	assert.Contains(t, out, "21:18:47")
	assert.Contains(t, out, "21:18:54")
}

func TestTimelineSourceMs(t *testing.T) {
	tl := Timeline{StartMs: 5000, DurationMs: 1000, Speed: 4}
	assert.Equal(t, int64(5000), tl.SourceMs(0))
	assert.Equal(t, int64(9000), tl.SourceMs(1000))

	// Zero speed behaves as 1.
	tl = Timeline{StartMs: 0, DurationMs: 1000}
	assert.Equal(t, int64(250), tl.SourceMs(250))
	assert.Equal(t, 36, tl.Frames())
}
