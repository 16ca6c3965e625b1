package overlay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0:00:00.00"},
		{10, "0:00:00.01"},
		{999, "0:00:00.99"},
		{61_230, "0:01:01.23"},
		{3_723_450, "1:02:03.45"},
		{-5, "0:00:00.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTime(tt.ms))
	}
}

func TestDocumentString(t *testing.T) {
	doc := NewDocument(1448, 938)
	doc.AddStyle(Style{Name: "Dash", FontName: "Arial", FontSize: 24, Colour: ColourWhite, Bold: true})
	doc.AddEvent(Event{Layer: 1, StartMs: 0, EndMs: 2000, Style: "Dash", Text: "hello"})
	doc.AddEvent(Event{Layer: 0, StartMs: 500, EndMs: 500, Text: "dropped"})

	out := doc.String()
	assert.Contains(t, out, "ScriptType: v4.00+")
	assert.Contains(t, out, "PlayResX: 1448")
	assert.Contains(t, out, "PlayResY: 938")
	assert.Contains(t, out, "Style: Dash,Arial,24,")
	assert.Contains(t, out, "Dialogue: 1,0:00:00.00,0:00:02.00,Dash,,0,0,0,,hello")
	assert.NotContains(t, out, "dropped", "zero length events are discarded")
	assert.Equal(t, 1, doc.EventCount())
}

func TestDrawing(t *testing.T) {
	t.Run("polygon", func(t *testing.T) {
		got := Polygon([][2]float64{{0, 0}, {10, 0}, {10, 5.5}})
		assert.Equal(t, "m 0 0 l 10 0 l 10 5.5", got)
	})

	t.Run("rounded rect degrades to rect", func(t *testing.T) {
		assert.Equal(t, Rect(0, 0, 10, 10), RoundedRect(0, 0, 10, 10, 0))
	})

	t.Run("stroke quad zero length is a cap", func(t *testing.T) {
		assert.Equal(t, Circle(5, 5, 2), StrokeQuad(5, 5, 5, 5, 4))
	})

	t.Run("steering wheel has rim hub and spokes", func(t *testing.T) {
		wheel := SteeringWheel(20)
		assert.GreaterOrEqual(t, strings.Count(wheel, "m "), 5)
	})
}
