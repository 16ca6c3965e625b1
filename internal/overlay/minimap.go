package overlay

import (
	"fmt"
	"math"
	"strings"

	"github.com/ChadR23/sentry-six/internal/models"
	"github.com/ChadR23/sentry-six/internal/telemetry"
)

// MinimapOptions configures the vector minimap compiler.
type MinimapOptions struct {
	CanvasW  int
	CanvasH  int
	Position models.OverlayPosition
	Size     models.OverlaySize
	DarkMode bool
	Timeline Timeline
}

// headingQuantDeg is the heading granularity of the position marker.
// Finer steps multiply events without visible benefit at minimap scale.
const headingQuantDeg = 5

func minimapSide(s models.OverlaySize, canvasH int) float64 {
	frac := 0.22
	switch s {
	case models.OverlaySmall:
		frac = 0.16
	case models.OverlayLarge:
		frac = 0.28
	case models.OverlayXLarge:
		frac = 0.34
	}
	return float64(canvasH) * frac
}

// projector maps GPS coordinates into a square minimap box with the
// route bounding box padded 15% per side.
type projector struct {
	minLat, minLon float64
	spanLat, spanLon float64
	x, y, side     float64
}

func newProjector(path models.GpsPath, x, y, side float64) projector {
	minLat, minLon, maxLat, maxLon, ok := path.Bounds()
	if !ok {
		return projector{x: x, y: y, side: side, spanLat: 1, spanLon: 1}
	}

	spanLat := maxLat - minLat
	spanLon := maxLon - minLon
	// A stationary vehicle produces a degenerate box; give it real span
	// so the point lands in the center.
	if spanLat < 1e-6 {
		spanLat = 1e-6
	}
	if spanLon < 1e-6 {
		spanLon = 1e-6
	}
	minLat -= spanLat * 0.15
	minLon -= spanLon * 0.15
	spanLat *= 1.3
	spanLon *= 1.3

	return projector{minLat: minLat, minLon: minLon, spanLat: spanLat, spanLon: spanLon, x: x, y: y, side: side}
}

func (p projector) point(lat, lon float64) (float64, float64) {
	px := p.x + (lon-p.minLon)/p.spanLon*p.side
	// Latitude grows north, pixel rows grow south.
	py := p.y + p.side - (lat-p.minLat)/p.spanLat*p.side
	return px, py
}

// RenderMinimap compiles the route and a moving heading marker into an
// ASS document. Samples supply the marker heading; path supplies the
// static route. Both must be sorted by TimestampMs.
func RenderMinimap(path models.GpsPath, samples []models.TelemetrySample, opts MinimapOptions) *Document {
	doc := NewDocument(opts.CanvasW, opts.CanvasH)
	doc.AddStyle(Style{Name: "Map", FontName: "Arial", FontSize: 20, Colour: ColourWhite})

	side := minimapSide(opts.Size, opts.CanvasH)
	bx, by := anchorBox(opts.Position, opts.CanvasW, opts.CanvasH, side, side)
	proj := newProjector(path, bx, by, side)

	background := ColourMapDay
	if opts.DarkMode {
		background = ColourMapNight
	}
	doc.AddEvent(Event{
		Layer: 0, StartMs: 0, EndMs: opts.Timeline.DurationMs, Style: "Map",
		Text: fmt.Sprintf(`{\pos(0,0)\c%s\p1}%s{\p0}`, background, RoundedRect(bx, by, side, side, side*0.08)),
	})

	if route := routeDrawing(path, proj, side); route != "" {
		doc.AddEvent(Event{
			Layer: 1, StartMs: 0, EndMs: opts.Timeline.DurationMs, Style: "Map",
			Text: fmt.Sprintf(`{\pos(0,0)\c%s\p1}%s{\p0}`, ColourRouteDay, route),
		})
	}

	emitMarkerRuns(doc, samples, proj, side, opts)
	return doc
}

// routeDrawing strokes the polyline as filled quads with circular caps
// at every vertex.
func routeDrawing(path models.GpsPath, proj projector, side float64) string {
	if len(path) == 0 {
		return ""
	}
	width := math.Max(side*0.012, 1.5)

	var b strings.Builder
	prevX, prevY := proj.point(path[0].LatitudeDeg, path[0].LongitudeDeg)
	b.WriteString(Circle(prevX, prevY, width/2))
	for _, pt := range path[1:] {
		x, y := proj.point(pt.LatitudeDeg, pt.LongitudeDeg)
		// Skip sub-pixel moves to bound the drawing size.
		if math.Hypot(x-prevX, y-prevY) < 1 {
			continue
		}
		b.WriteString(" " + StrokeQuad(prevX, prevY, x, y, width))
		b.WriteString(" " + Circle(x, y, width/2))
		prevX, prevY = x, y
	}
	return b.String()
}

// markerState is the quantized (position, heading) of the vehicle
// marker for one overlay frame.
type markerState struct {
	x, y    int
	heading int
	visible bool
}

// emitMarkerRuns emits one marker event per (position, heading) change.
func emitMarkerRuns(doc *Document, samples []models.TelemetrySample, proj projector, side float64, opts MinimapOptions) {
	frames := opts.Timeline.Frames()
	if frames == 0 || len(samples) == 0 {
		return
	}

	stateFor := func(frame int) markerState {
		srcMs := opts.Timeline.SourceMs(frameMs(frame))
		i := telemetry.NearestSample(samples, srcMs)
		if i < 0 {
			return markerState{}
		}
		s := samples[i]
		if !s.HasGPS() {
			return markerState{}
		}
		x, y := proj.point(s.LatitudeDeg, s.LongitudeDeg)
		heading := int(math.Round(s.HeadingDeg/headingQuantDeg)) * headingQuantDeg
		return markerState{x: int(math.Round(x)), y: int(math.Round(y)), heading: heading % 360, visible: true}
	}

	arrow := HeadingArrow(math.Max(side*0.08, 8))
	prev := stateFor(0)
	runStart := 0
	for i := 1; i <= frames; i++ {
		if i < frames {
			if cur := stateFor(i); cur == prev {
				continue
			}
		}
		if prev.visible {
			end := opts.Timeline.DurationMs
			if i < frames {
				end = frameMs(i)
			}
			doc.AddEvent(Event{
				Layer: 2, StartMs: frameMs(runStart), EndMs: end, Style: "Map",
				Text: fmt.Sprintf(`{\pos(%d,%d)\frz%d\c%s\p1}%s{\p0}`,
					prev.x, prev.y, -prev.heading, ColourBlue, arrow),
			})
		}
		if i < frames {
			prev = stateFor(i)
			runStart = i
		}
	}
}
