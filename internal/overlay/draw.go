package overlay

import (
	"fmt"
	"math"
	"strings"
)

// Drawing helpers produce ASS vector drawing command strings ("m x y
// l x y ..."). Coordinates are canvas pixels; callers wrap them in
// {\p1}...{\p0} with position and rotation override tags.

// fmtCoord renders a coordinate with sub-pixel precision. ASS accepts
// decimals; two places keeps files small.
func fmtCoord(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// Polygon draws a closed polygon through the points.
func Polygon(pts [][2]float64) string {
	if len(pts) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "m %s %s", fmtCoord(pts[0][0]), fmtCoord(pts[0][1]))
	for _, p := range pts[1:] {
		fmt.Fprintf(&b, " l %s %s", fmtCoord(p[0]), fmtCoord(p[1]))
	}
	return b.String()
}

// Rect draws an axis-aligned rectangle.
func Rect(x, y, w, h float64) string {
	return Polygon([][2]float64{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}})
}

// RoundedRect draws a rectangle with quarter-circle corners of radius r.
func RoundedRect(x, y, w, h, r float64) string {
	if r <= 0 {
		return Rect(x, y, w, h)
	}
	r = math.Min(r, math.Min(w, h)/2)
	k := r * 0.5523 // cubic bezier circle constant

	var b strings.Builder
	fmt.Fprintf(&b, "m %s %s", fmtCoord(x+r), fmtCoord(y))
	fmt.Fprintf(&b, " l %s %s", fmtCoord(x+w-r), fmtCoord(y))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(x+w-r+k), fmtCoord(y), fmtCoord(x+w), fmtCoord(y+r-k), fmtCoord(x+w), fmtCoord(y+r))
	fmt.Fprintf(&b, " l %s %s", fmtCoord(x+w), fmtCoord(y+h-r))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(x+w), fmtCoord(y+h-r+k), fmtCoord(x+w-r+k), fmtCoord(y+h), fmtCoord(x+w-r), fmtCoord(y+h))
	fmt.Fprintf(&b, " l %s %s", fmtCoord(x+r), fmtCoord(y+h))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(x+r-k), fmtCoord(y+h), fmtCoord(x), fmtCoord(y+h-r+k), fmtCoord(x), fmtCoord(y+h-r))
	fmt.Fprintf(&b, " l %s %s", fmtCoord(x), fmtCoord(y+r))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(x), fmtCoord(y+r-k), fmtCoord(x+r-k), fmtCoord(y), fmtCoord(x+r), fmtCoord(y))
	return b.String()
}

// Circle draws a circle as four cubic bezier arcs.
func Circle(cx, cy, r float64) string {
	k := r * 0.5523
	var b strings.Builder
	fmt.Fprintf(&b, "m %s %s", fmtCoord(cx), fmtCoord(cy-r))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(cx+k), fmtCoord(cy-r), fmtCoord(cx+r), fmtCoord(cy-k), fmtCoord(cx+r), fmtCoord(cy))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(cx+r), fmtCoord(cy+k), fmtCoord(cx+k), fmtCoord(cy+r), fmtCoord(cx), fmtCoord(cy+r))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(cx-k), fmtCoord(cy+r), fmtCoord(cx-r), fmtCoord(cy+k), fmtCoord(cx-r), fmtCoord(cy))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(cx-r), fmtCoord(cy-k), fmtCoord(cx-k), fmtCoord(cy-r), fmtCoord(cx), fmtCoord(cy-r))
	return b.String()
}

// Ring draws an annulus: an outer circle with an inner counter-wound
// circle, which ASS fills even-odd.
func Ring(cx, cy, outer, inner float64) string {
	k := inner * 0.5523
	var b strings.Builder
	b.WriteString(Circle(cx, cy, outer))
	// Inner circle wound the opposite way punches the hole.
	fmt.Fprintf(&b, " m %s %s", fmtCoord(cx), fmtCoord(cy-inner))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(cx-k), fmtCoord(cy-inner), fmtCoord(cx-inner), fmtCoord(cy-k), fmtCoord(cx-inner), fmtCoord(cy))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(cx-inner), fmtCoord(cy+k), fmtCoord(cx-k), fmtCoord(cy+inner), fmtCoord(cx), fmtCoord(cy+inner))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(cx+k), fmtCoord(cy+inner), fmtCoord(cx+inner), fmtCoord(cy+k), fmtCoord(cx+inner), fmtCoord(cy))
	fmt.Fprintf(&b, " b %s %s %s %s %s %s", fmtCoord(cx+inner), fmtCoord(cy-k), fmtCoord(cx+k), fmtCoord(cy-inner), fmtCoord(cx), fmtCoord(cy-inner))
	return b.String()
}

// BlinkerArrow draws a horizontal arrow of the given span centered at
// (cx, cy). dir +1 points right, -1 points left.
func BlinkerArrow(cx, cy, span float64, dir float64) string {
	half := span / 2
	head := span * 0.45
	shaft := span * 0.22
	return Polygon([][2]float64{
		{cx + dir*half, cy},
		{cx + dir*(half-head), cy - half*0.8},
		{cx + dir*(half-head), cy - shaft/2},
		{cx - dir*half, cy - shaft/2},
		{cx - dir*half, cy + shaft/2},
		{cx + dir*(half-head), cy + shaft/2},
		{cx + dir*(half-head), cy + half*0.8},
	})
}

// SteeringWheel draws a wheel of radius r centered at the origin: an
// outer rim, a hub, and three spokes. Drawing at the origin lets the
// caller rotate it with \frz and place it with \pos.
func SteeringWheel(r float64) string {
	rim := Ring(0, 0, r, r*0.78)
	hub := Circle(0, 0, r*0.28)

	spoke := func(angleDeg float64) string {
		a := angleDeg * math.Pi / 180
		dx, dy := math.Cos(a), math.Sin(a)
		// Perpendicular half-width of the spoke.
		px, py := -dy*r*0.09, dx*r*0.09
		inner, outer := r*0.2, r*0.8
		return Polygon([][2]float64{
			{dx*inner + px, dy*inner + py},
			{dx*outer + px, dy*outer + py},
			{dx*outer - px, dy*outer - py},
			{dx*inner - px, dy*inner - py},
		})
	}

	// Spokes at 9, 3, and 6 o'clock.
	return rim + " " + hub + " " + spoke(180) + " " + spoke(0) + " " + spoke(90)
}

// Pedal draws a rounded pedal plate of the given size centered at
// (cx, cy), with tread slots punched out.
func Pedal(cx, cy, w, h float64) string {
	plate := RoundedRect(cx-w/2, cy-h/2, w, h, w*0.2)
	var slots strings.Builder
	slotH := h * 0.12
	for i := 0; i < 3; i++ {
		y := cy - h*0.28 + float64(i)*h*0.28 - slotH/2
		// Counter-wound rectangle reads as a cutout.
		slots.WriteString(" " + Polygon([][2]float64{
			{cx - w*0.3, y},
			{cx - w*0.3, y + slotH},
			{cx + w*0.3, y + slotH},
			{cx + w*0.3, y},
		}))
	}
	return plate + slots.String()
}

// HeadingArrow draws an upward-pointing location arrow of the given
// size centered at the origin, for rotation with \frz.
func HeadingArrow(size float64) string {
	h := size / 2
	return Polygon([][2]float64{
		{0, -h},
		{h * 0.7, h},
		{0, h * 0.45},
		{-h * 0.7, h},
	})
}

// StrokeQuad draws one line segment of the given width as a filled
// quadrilateral.
func StrokeQuad(x1, y1, x2, y2, width float64) string {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 {
		return Circle(x1, y1, width/2)
	}
	px, py := -dy/length*width/2, dx/length*width/2
	return Polygon([][2]float64{
		{x1 + px, y1 + py},
		{x2 + px, y2 + py},
		{x2 - px, y2 - py},
		{x1 - px, y1 - py},
	})
}
