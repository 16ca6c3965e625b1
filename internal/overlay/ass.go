// Package overlay compiles telemetry into burn-in artifacts: ASS
// subtitle-drawing documents for the dashboard, minimap, and timestamp,
// and PNG alpha masks for privacy blur zones.
package overlay

import (
	"fmt"
	"strings"
)

// Document is one ASS v4.00+ subtitle file. PlayRes matches the final
// canvas so event positions are absolute canvas pixels.
type Document struct {
	PlayResX int
	PlayResY int
	styles   []Style
	events   []Event
}

// Style is one entry of the V4+ Styles section. Colours are ASS
// &HAABBGGRR form.
type Style struct {
	Name     string
	FontName string
	FontSize int
	Colour   string
	Bold     bool
}

// Event is one Dialogue line. Text carries override tags and drawing
// commands verbatim.
type Event struct {
	Layer   int
	StartMs int64
	EndMs   int64
	Style   string
	Text    string
}

// NewDocument creates a document for the given canvas resolution.
func NewDocument(playResX, playResY int) *Document {
	return &Document{PlayResX: playResX, PlayResY: playResY}
}

// AddStyle registers a style. The first style added is the default.
func (d *Document) AddStyle(s Style) {
	d.styles = append(d.styles, s)
}

// AddEvent appends a dialogue event. Zero-length events are dropped.
func (d *Document) AddEvent(e Event) {
	if e.EndMs <= e.StartMs {
		return
	}
	d.events = append(d.events, e)
}

// EventCount returns the number of dialogue events.
func (d *Document) EventCount() int {
	return len(d.events)
}

// String renders the complete ASS document.
func (d *Document) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[Script Info]\n")
	fmt.Fprintf(&b, "ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", d.PlayResX)
	fmt.Fprintf(&b, "PlayResY: %d\n", d.PlayResY)
	fmt.Fprintf(&b, "WrapStyle: 2\n")
	fmt.Fprintf(&b, "ScaledBorderAndShadow: yes\n\n")

	fmt.Fprintf(&b, "[V4+ Styles]\n")
	fmt.Fprintf(&b, "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	styles := d.styles
	if len(styles) == 0 {
		styles = []Style{{Name: "Default", FontName: "Arial", FontSize: 24, Colour: ColourWhite}}
	}
	for _, s := range styles {
		bold := 0
		if s.Bold {
			bold = -1
		}
		fmt.Fprintf(&b, "Style: %s,%s,%d,%s,%s,&H00000000,&H80000000,%d,0,0,0,100,100,0,0,1,0,0,7,0,0,0,1\n",
			s.Name, s.FontName, s.FontSize, s.Colour, s.Colour, bold)
	}

	fmt.Fprintf(&b, "\n[Events]\n")
	fmt.Fprintf(&b, "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, e := range d.events {
		style := e.Style
		if style == "" {
			style = styles[0].Name
		}
		fmt.Fprintf(&b, "Dialogue: %d,%s,%s,%s,,0,0,0,,%s\n",
			e.Layer, FormatTime(e.StartMs), FormatTime(e.EndMs), style, e.Text)
	}
	return b.String()
}

// FormatTime renders milliseconds as the ASS H:MM:SS.CC timestamp.
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	cs := (ms / 10) % 100
	s := (ms / 1000) % 60
	m := (ms / 60000) % 60
	h := ms / 3600000
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// ASS colours, &HAABBGGRR. Alpha 00 is opaque.
const (
	ColourWhite     = "&H00FFFFFF"
	ColourPanel     = "&HA0101010" // dark translucent background
	ColourBlue      = "&H00E8A33D" // autopilot / accelerator active
	ColourGreen     = "&H0050C878" // blinker active
	ColourRed       = "&H003643F4" // brake active
	ColourGrey      = "&H00707070" // inactive icon
	ColourRouteDay  = "&H00D86E3A" // route stroke, light map
	ColourMapDay    = "&H20F5F0EA"
	ColourMapNight  = "&H202A2420"
)
