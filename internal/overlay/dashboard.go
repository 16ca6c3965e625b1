package overlay

import (
	"fmt"
	"math"
	"time"

	"github.com/ChadR23/sentry-six/internal/i18n"
	"github.com/ChadR23/sentry-six/internal/models"
	"github.com/ChadR23/sentry-six/internal/telemetry"
)

// OverlayFPS is the synthetic frame rate the overlay timelines are
// sampled at. Events are minimized afterwards, so the rate only bounds
// how fast a state change can appear.
const OverlayFPS = 36

// blinkerCycleFrames is one full blink period at OverlayFPS: the even
// frame count nearest 0.8 s, so the half-on/half-off split lands on
// whole frames (29 would be nearer but splits 15/14).
const blinkerCycleFrames = 28

// Timeline maps output (post-timelapse) milliseconds to source
// collection milliseconds.
type Timeline struct {
	// StartMs is the source window start.
	StartMs int64
	// DurationMs is the output duration after timelapse compression.
	DurationMs int64
	// Speed is source ms per output ms, 1 for normal exports.
	Speed float64
}

// SourceMs converts an output timestamp to the source timeline.
func (t Timeline) SourceMs(outputMs int64) int64 {
	speed := t.Speed
	if speed <= 0 {
		speed = 1
	}
	return t.StartMs + int64(float64(outputMs)*speed)
}

// Frames returns the number of overlay frames covering the output.
func (t Timeline) Frames() int {
	return int(math.Ceil(float64(t.DurationMs) * OverlayFPS / 1000))
}

// frameMs returns the output timestamp of frame i.
func frameMs(i int) int64 {
	return int64(i) * 1000 / OverlayFPS
}

// DashboardOptions configures the dashboard compiler.
type DashboardOptions struct {
	CanvasW  int
	CanvasH  int
	Position models.OverlayPosition
	Size     models.OverlaySize
	Style    models.DashboardStyle

	UseMetric  bool
	Locale     *i18n.Locale
	DateFormat models.DateFormat
	TimeFormat models.TimeFormat

	// WallClockStart is the vehicle wall-clock at Timeline.StartMs.
	WallClockStart time.Time
	Timeline       Timeline
}

// sizeScale maps the size tier to a panel height fraction of the canvas.
func sizeScale(s models.OverlaySize) float64 {
	switch s {
	case models.OverlaySmall:
		return 0.055
	case models.OverlayLarge:
		return 0.085
	case models.OverlayXLarge:
		return 0.105
	default:
		return 0.07
	}
}

// anchorBox places a w*h box at the requested canvas position with a
// margin proportional to the canvas.
func anchorBox(pos models.OverlayPosition, canvasW, canvasH int, w, h float64) (x, y float64) {
	margin := float64(canvasH) * 0.02
	switch pos {
	case models.PositionTopLeft:
		return margin, margin
	case models.PositionTopRight:
		return float64(canvasW) - w - margin, margin
	case models.PositionTopCenter:
		return (float64(canvasW) - w) / 2, margin
	case models.PositionBottomLeft:
		return margin, float64(canvasH) - h - margin
	case models.PositionBottomRight:
		return float64(canvasW) - w - margin, float64(canvasH) - h - margin
	default:
		return (float64(canvasW) - w) / 2, float64(canvasH) - h - margin
	}
}

// dashState is the per-frame visual state of every dashboard element.
// Two frames with equal states render identically.
type dashState struct {
	speed     int
	gear      models.Gear
	autopilot models.AutopilotState
	leftBlink bool
	rightBlink bool
	brake     bool
	accelOn   bool
	steering  int // degrees, rounded
	clock     string
	hasData   bool
}

// RenderDashboard compiles the telemetry dashboard into an ASS document.
// Samples must be sorted by TimestampMs.
func RenderDashboard(samples []models.TelemetrySample, opts DashboardOptions) *Document {
	doc := NewDocument(opts.CanvasW, opts.CanvasH)

	panelH := float64(opts.CanvasH) * sizeScale(opts.Size)
	panelW := panelH * 9.2
	if panelW > float64(opts.CanvasW)*0.96 {
		panelW = float64(opts.CanvasW) * 0.96
		panelH = panelW / 9.2
	}
	px, py := anchorBox(opts.Position, opts.CanvasW, opts.CanvasH, panelW, panelH)

	textSize := int(panelH * 0.34)
	doc.AddStyle(Style{Name: "Dash", FontName: "Arial", FontSize: textSize, Colour: ColourWhite, Bold: true})
	doc.AddStyle(Style{Name: "DashSmall", FontName: "Arial", FontSize: int(panelH * 0.24), Colour: ColourWhite})

	// Background panel spans the whole export.
	doc.AddEvent(Event{
		Layer:   0,
		StartMs: 0,
		EndMs:   opts.Timeline.DurationMs,
		Style:   "Dash",
		Text: fmt.Sprintf(`{\pos(0,0)\c%s\p1}%s{\p0}`,
			ColourPanel, RoundedRect(px, py, panelW, panelH, panelH*0.18)),
	})

	states := make([]dashState, opts.Timeline.Frames())
	for i := range states {
		states[i] = stateAt(samples, i, opts)
	}

	emitDashboardRuns(doc, states, opts, px, py, panelW, panelH)
	return doc
}

// stateAt computes the dashboard state for one overlay frame.
func stateAt(samples []models.TelemetrySample, frame int, opts DashboardOptions) dashState {
	outMs := frameMs(frame)
	srcMs := opts.Timeline.SourceMs(outMs)

	st := dashState{
		clock: formatClock(opts.WallClockStart.Add(time.Duration(srcMs-opts.Timeline.StartMs)*time.Millisecond), opts.DateFormat, opts.TimeFormat),
	}

	i := telemetry.NearestSample(samples, srcMs)
	if i < 0 {
		return st
	}
	s := samples[i]
	st.hasData = true

	speed := s.SpeedMps * 2.23694 // mph
	if opts.UseMetric {
		speed = s.SpeedMps * 3.6
	}
	st.speed = int(math.Round(speed))
	st.gear = s.Gear
	st.autopilot = s.Autopilot
	st.brake = s.Brake
	st.accelOn = s.AcceleratorPct > 2
	st.steering = int(math.Round(s.SteeringAngleDeg))

	// Blink phase alternates on a fixed frame cycle while the signal
	// is on.
	phase := frame%blinkerCycleFrames < blinkerCycleFrames/2
	st.leftBlink = s.BlinkerLeft && phase
	st.rightBlink = s.BlinkerRight && phase
	return st
}

// formatClock renders the stacked date and time text.
func formatClock(t time.Time, df models.DateFormat, tf models.TimeFormat) string {
	var date string
	switch df {
	case models.DateDMY:
		date = t.Format("02/01/2006")
	case models.DateYMD:
		date = t.Format("2006-01-02")
	default:
		date = t.Format("01/02/2006")
	}
	clock := t.Format("15:04:05")
	if tf == models.Time12H {
		clock = t.Format("3:04:05 PM")
	}
	return date + `\N` + clock
}

// emitDashboardRuns walks the per-frame states and emits one event per
// unchanged run of each element.
func emitDashboardRuns(doc *Document, states []dashState, opts DashboardOptions, px, py, panelW, panelH float64) {
	if len(states) == 0 {
		return
	}
	cy := py + panelH/2
	slotX := func(frac float64) float64 { return px + panelW*frac }

	type element struct {
		key  func(dashState) string
		emit func(dashState, int64, int64)
	}

	iconH := panelH * 0.52
	elements := []element{
		{ // brake pedal
			key: func(s dashState) string { return fmt.Sprint(s.brake) },
			emit: func(s dashState, start, end int64) {
				colour := ColourGrey
				if s.brake {
					colour = ColourRed
				}
				doc.AddEvent(Event{Layer: 1, StartMs: start, EndMs: end, Style: "Dash",
					Text: fmt.Sprintf(`{\pos(0,0)\c%s\p1}%s{\p0}`, colour, Pedal(slotX(0.06), cy, iconH*0.55, iconH))})
			},
		},
		{ // stacked date and time
			key: func(s dashState) string { return s.clock },
			emit: func(s dashState, start, end int64) {
				doc.AddEvent(Event{Layer: 1, StartMs: start, EndMs: end, Style: "DashSmall",
					Text: fmt.Sprintf(`{\pos(%s,%s)\an4}%s`, fmtCoord(slotX(0.11)), fmtCoord(cy), s.clock)})
			},
		},
		{ // left blinker
			key: func(s dashState) string { return fmt.Sprint(s.leftBlink) },
			emit: func(s dashState, start, end int64) {
				if !s.leftBlink {
					return
				}
				doc.AddEvent(Event{Layer: 1, StartMs: start, EndMs: end, Style: "Dash",
					Text: fmt.Sprintf(`{\pos(0,0)\c%s\p1}%s{\p0}`, ColourGreen, BlinkerArrow(slotX(0.3), cy, iconH*0.9, -1))})
			},
		},
		{ // speed numeral + unit
			key: func(s dashState) string { return fmt.Sprintf("%d|%v", s.speed, s.hasData) },
			emit: func(s dashState, start, end int64) {
				if !s.hasData {
					return
				}
				doc.AddEvent(Event{Layer: 1, StartMs: start, EndMs: end, Style: "Dash",
					Text: fmt.Sprintf(`{\pos(%s,%s)\an5}%d {\fscx70\fscy70}%s`,
						fmtCoord(slotX(0.43)), fmtCoord(cy), s.speed, opts.Locale.SpeedUnit(opts.UseMetric))})
			},
		},
		{ // stacked gear + autopilot
			key: func(s dashState) string { return string(s.gear) + "|" + string(s.autopilot) + fmt.Sprint(s.hasData) },
			emit: func(s dashState, start, end int64) {
				if !s.hasData {
					return
				}
				colour := ColourWhite
				if s.autopilot != models.AutopilotManual {
					colour = ColourBlue
				}
				doc.AddEvent(Event{Layer: 1, StartMs: start, EndMs: end, Style: "DashSmall",
					Text: fmt.Sprintf(`{\pos(%s,%s)\an5}%s\N{\c%s}%s`,
						fmtCoord(slotX(0.60)), fmtCoord(cy),
						opts.Locale.Gear(s.gear), colour, opts.Locale.Autopilot(s.autopilot))})
			},
		},
		{ // right blinker
			key: func(s dashState) string { return fmt.Sprint(s.rightBlink) },
			emit: func(s dashState, start, end int64) {
				if !s.rightBlink {
					return
				}
				doc.AddEvent(Event{Layer: 1, StartMs: start, EndMs: end, Style: "Dash",
					Text: fmt.Sprintf(`{\pos(0,0)\c%s\p1}%s{\p0}`, ColourGreen, BlinkerArrow(slotX(0.73), cy, iconH*0.9, 1))})
			},
		},
		{ // steering wheel, rotated opposite the reported angle
			key: func(s dashState) string { return fmt.Sprint(s.steering) },
			emit: func(s dashState, start, end int64) {
				doc.AddEvent(Event{Layer: 1, StartMs: start, EndMs: end, Style: "Dash",
					Text: fmt.Sprintf(`{\pos(%s,%s)\frz%d\c%s\p1}%s{\p0}`,
						fmtCoord(slotX(0.84)), fmtCoord(cy), -s.steering, ColourWhite, SteeringWheel(iconH/2))})
			},
		},
		{ // accelerator pedal
			key: func(s dashState) string { return fmt.Sprint(s.accelOn) },
			emit: func(s dashState, start, end int64) {
				colour := ColourGrey
				if s.accelOn {
					colour = ColourBlue
				}
				doc.AddEvent(Event{Layer: 1, StartMs: start, EndMs: end, Style: "Dash",
					Text: fmt.Sprintf(`{\pos(0,0)\c%s\p1}%s{\p0}`, colour, Pedal(slotX(0.94), cy, iconH*0.55, iconH))})
			},
		},
	}

	for _, el := range elements {
		runStart := 0
		for i := 1; i <= len(states); i++ {
			if i < len(states) && el.key(states[i]) == el.key(states[runStart]) {
				continue
			}
			start := frameMs(runStart)
			end := opts.Timeline.DurationMs
			if i < len(states) {
				end = frameMs(i)
			}
			el.emit(states[runStart], start, end)
			runStart = i
		}
	}
}
