package overlay

import (
	"fmt"
	"time"

	"github.com/ChadR23/sentry-six/internal/models"
)

// TimestampOptions configures the standalone timestamp burn-in, used
// when the dashboard (which carries its own clock) is disabled.
type TimestampOptions struct {
	CanvasW  int
	CanvasH  int
	Position models.OverlayPosition

	DateFormat models.DateFormat
	TimeFormat models.TimeFormat

	// WallClockStart is the vehicle wall-clock at Timeline.StartMs.
	WallClockStart time.Time
	Timeline       Timeline
}

// RenderTimestamp compiles a date and wall-clock caption. One event per
// displayed second keeps the file small regardless of frame rate.
func RenderTimestamp(opts TimestampOptions) *Document {
	doc := NewDocument(opts.CanvasW, opts.CanvasH)
	fontSize := int(float64(opts.CanvasH) * 0.03)
	if fontSize < 16 {
		fontSize = 16
	}
	doc.AddStyle(Style{Name: "Stamp", FontName: "Arial", FontSize: fontSize, Colour: ColourWhite, Bold: true})

	boxW := float64(fontSize) * 11
	boxH := float64(fontSize) * 1.6
	x, y := anchorBox(opts.Position, opts.CanvasW, opts.CanvasH, boxW, boxH)

	frames := opts.Timeline.Frames()
	if frames == 0 {
		return doc
	}

	text := func(frame int) string {
		srcMs := opts.Timeline.SourceMs(frameMs(frame))
		t := opts.WallClockStart.Add(time.Duration(srcMs-opts.Timeline.StartMs) * time.Millisecond)
		return formatClockLine(t, opts.DateFormat, opts.TimeFormat)
	}

	runStart := 0
	prev := text(0)
	for i := 1; i <= frames; i++ {
		if i < frames {
			if cur := text(i); cur == prev {
				continue
			}
		}
		end := opts.Timeline.DurationMs
		if i < frames {
			end = frameMs(i)
		}
		doc.AddEvent(Event{
			Layer: 0, StartMs: frameMs(runStart), EndMs: end, Style: "Stamp",
			Text: fmt.Sprintf(`{\pos(%s,%s)\an4\bord2\shad0}%s`, fmtCoord(x), fmtCoord(y+boxH/2), prev),
		})
		if i < frames {
			prev = text(i)
			runStart = i
		}
	}
	return doc
}

// formatClockLine renders date and time on one line.
func formatClockLine(t time.Time, df models.DateFormat, tf models.TimeFormat) string {
	var date string
	switch df {
	case models.DateDMY:
		date = t.Format("02/01/2006")
	case models.DateYMD:
		date = t.Format("2006-01-02")
	default:
		date = t.Format("01/02/2006")
	}
	if tf == models.Time12H {
		return date + "  " + t.Format("3:04:05 PM")
	}
	return date + "  " + t.Format("15:04:05")
}
