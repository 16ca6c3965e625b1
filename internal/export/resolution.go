// Package export plans and executes composited video exports: resolution
// and grid selection, concat input assembly, filter graph construction,
// encoder selection, and job orchestration.
package export

import (
	"fmt"

	"github.com/ChadR23/sentry-six/internal/models"
)

// TileSize is one camera tile's output resolution.
type TileSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Per-tile resolution tables. The front-only table applies when the
// selection is exactly the front camera; it trades grid capacity for
// native 4:2.59 detail.
var (
	frontOnlyTiles = map[models.Quality]TileSize{
		models.QualityMobile: {724, 469},
		models.QualityMedium: {1448, 938},
		models.QualityHigh:   {2172, 1407},
		models.QualityMax:    {2896, 1876},
	}
	multiTiles = map[models.Quality]TileSize{
		models.QualityMobile: {484, 314},
		models.QualityMedium: {724, 469},
		models.QualityHigh:   {1086, 704},
		models.QualityMax:    {1448, 938},
	}
)

// TileFor returns the per-tile resolution for the camera selection.
// Table values are returned verbatim; downstream canvas math depends on
// them exactly.
func TileFor(cameras []models.Camera, q models.Quality) TileSize {
	table := multiTiles
	if len(cameras) == 1 && cameras[0] == models.CameraFront {
		table = frontOnlyTiles
	}
	return table[q]
}

// Grid is the tile arrangement of the mosaic.
type Grid struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// GridFor returns the default arrangement for n cameras.
func GridFor(n int) Grid {
	switch {
	case n <= 1:
		return Grid{1, 1}
	case n == 2:
		return Grid{1, 2}
	case n == 3:
		return Grid{1, 3}
	case n == 4:
		return Grid{2, 2}
	default:
		return Grid{2, 3}
	}
}

// Canvas is the final output resolution.
type Canvas struct {
	W int `json:"w"`
	H int `json:"h"`
}

// CanvasFor multiplies the tile size across the grid.
func CanvasFor(tile TileSize, grid Grid) Canvas {
	return Canvas{W: tile.W * grid.Cols, H: tile.H * grid.Rows}
}

// Bitrate derives a deterministic target bitrate from pixel throughput
// and quality tier. The constant is tuned for dashcam content, which
// compresses well.
func Bitrate(c Canvas, q models.Quality) string {
	bpp := map[models.Quality]float64{
		models.QualityMobile: 0.085,
		models.QualityMedium: 0.10,
		models.QualityHigh:   0.115,
		models.QualityMax:    0.13,
	}[q]

	const fps = 36.0
	kbps := int(float64(c.W) * float64(c.H) * fps * bpp / 1000)
	// Round to the nearest 100 kbps so neighboring canvases share rates.
	kbps = (kbps + 50) / 100 * 100
	if kbps < 1000 {
		kbps = 1000
	}
	return fmt.Sprintf("%dk", kbps)
}

// h264CanvasLimit is the conservative consumer-GPU H.264 frame limit.
const h264CanvasLimit = 4096

// SelectEncoder picks the output encoder for the canvas. Hardware H.264
// is preferred; a canvas over the H.264 limit promotes to hardware HEVC;
// with no usable hardware the software encoder runs at any size.
func SelectEncoder(c Canvas, hwH264, hwHEVC string) (encoder string, err error) {
	withinH264 := c.W <= h264CanvasLimit && c.H <= h264CanvasLimit
	switch {
	case withinH264 && hwH264 != "":
		return hwH264, nil
	case !withinH264 && hwHEVC != "":
		return hwHEVC, nil
	case withinH264:
		return "libx264", nil
	default:
		// Software x264 handles large frames; only a canvas beyond the
		// codec level ceiling is rejected outright.
		if c.W <= 8192 && c.H <= 8192 {
			return "libx264", nil
		}
		return "", fmt.Errorf("%w: %dx%d", models.ErrCanvasExceedsLimit, c.W, c.H)
	}
}
