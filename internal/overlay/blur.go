package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/vector"

	"github.com/ChadR23/sentry-six/internal/models"
)

// RenderBlurMask rasterizes a blur polygon into a grayscale PNG mask at
// the camera's tile resolution. White marks the region to obscure. A
// caller-supplied mask PNG is returned as-is.
func RenderBlurMask(zone *models.BlurZone, tileW, tileH int) ([]byte, error) {
	if err := zone.Validate(); err != nil {
		return nil, err
	}
	if len(zone.MaskPNG) > 0 {
		return zone.MaskPNG, nil
	}
	if tileW <= 0 || tileH <= 0 {
		return nil, fmt.Errorf("%w: tile %dx%d", models.ErrInvalidBlurZone, tileW, tileH)
	}

	r := vector.NewRasterizer(tileW, tileH)
	r.MoveTo(float32(zone.Polygon[0].X*float64(tileW)), float32(zone.Polygon[0].Y*float64(tileH)))
	for _, p := range zone.Polygon[1:] {
		r.LineTo(float32(p.X*float64(tileW)), float32(p.Y*float64(tileH)))
	}
	r.ClosePath()

	alpha := image.NewAlpha(image.Rect(0, 0, tileW, tileH))
	r.Draw(alpha, alpha.Bounds(), image.Opaque, image.Point{})

	// ffmpeg's alphamerge wants a luma mask; antialiased polygon edges
	// carry over as partial blur.
	gray := &image.Gray{Pix: alpha.Pix, Stride: alpha.Stride, Rect: alpha.Rect}

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encoding blur mask: %w", err)
	}
	return buf.Bytes(), nil
}
