package export

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChadR23/sentry-six/internal/models"
)

func TestTileFor(t *testing.T) {
	front := []models.Camera{models.CameraFront}
	multi := []models.Camera{models.CameraFront, models.CameraBack}

	tests := []struct {
		name    string
		cameras []models.Camera
		quality models.Quality
		want    TileSize
	}{
		{"front only mobile", front, models.QualityMobile, TileSize{724, 469}},
		{"front only medium", front, models.QualityMedium, TileSize{1448, 938}},
		{"front only high", front, models.QualityHigh, TileSize{2172, 1407}},
		{"front only max", front, models.QualityMax, TileSize{2896, 1876}},
		{"multi mobile", multi, models.QualityMobile, TileSize{484, 314}},
		{"multi medium", multi, models.QualityMedium, TileSize{724, 469}},
		{"multi high", multi, models.QualityHigh, TileSize{1086, 704}},
		{"multi max", multi, models.QualityMax, TileSize{1448, 938}},
		{"single non front camera uses multi table", []models.Camera{models.CameraBack}, models.QualityMedium, TileSize{724, 469}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TileFor(tt.cameras, tt.quality))
		})
	}
}

func TestGridFor(t *testing.T) {
	assert.Equal(t, Grid{1, 1}, GridFor(1))
	assert.Equal(t, Grid{1, 2}, GridFor(2))
	assert.Equal(t, Grid{1, 3}, GridFor(3))
	assert.Equal(t, Grid{2, 2}, GridFor(4))
	assert.Equal(t, Grid{2, 3}, GridFor(5))
	assert.Equal(t, Grid{2, 3}, GridFor(6))
}

func TestCanvasFor(t *testing.T) {
	c := CanvasFor(TileSize{724, 469}, Grid{2, 3})
	assert.Equal(t, Canvas{2172, 938}, c)
}

func TestCanvasMatchesQualityTable(t *testing.T) {
	sixCams := []models.Camera{
		models.CameraFront, models.CameraBack,
		models.CameraLeftRepeater, models.CameraRightRepeater,
		models.CameraLeftPillar, models.CameraRightPillar,
	}

	t.Run("six camera sentry at medium", func(t *testing.T) {
		c := CanvasFor(TileFor(sixCams, models.QualityMedium), GridFor(len(sixCams)))
		assert.Equal(t, Canvas{2172, 938}, c)
	})

	t.Run("front only at high", func(t *testing.T) {
		front := []models.Camera{models.CameraFront}
		c := CanvasFor(TileFor(front, models.QualityHigh), GridFor(1))
		assert.Equal(t, Canvas{2172, 1407}, c)
	})
}

func TestBitrate(t *testing.T) {
	c := Canvas{1448, 938}

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Bitrate(c, models.QualityMedium), Bitrate(c, models.QualityMedium))
	})
	t.Run("scales with quality", func(t *testing.T) {
		assert.NotEqual(t, Bitrate(c, models.QualityMobile), Bitrate(c, models.QualityMax))
	})
	t.Run("floor", func(t *testing.T) {
		assert.Equal(t, "1000k", Bitrate(Canvas{160, 120}, models.QualityMobile))
	})
}

func TestSelectEncoder(t *testing.T) {
	t.Run("hardware h264 within limit", func(t *testing.T) {
		enc, err := SelectEncoder(Canvas{2896, 1876}, "h264_nvenc", "hevc_nvenc")
		assert.NoError(t, err)
		assert.Equal(t, "h264_nvenc", enc)
	})

	t.Run("oversize canvas promotes to hevc", func(t *testing.T) {
		enc, err := SelectEncoder(Canvas{4344, 2814}, "h264_nvenc", "hevc_nvenc")
		assert.NoError(t, err)
		assert.Equal(t, "hevc_nvenc", enc)
	})

	t.Run("no hardware falls back to cpu", func(t *testing.T) {
		enc, err := SelectEncoder(Canvas{1448, 938}, "", "")
		assert.NoError(t, err)
		assert.Equal(t, "libx264", enc)
	})

	t.Run("oversize without hevc uses cpu", func(t *testing.T) {
		enc, err := SelectEncoder(Canvas{4344, 2814}, "h264_nvenc", "")
		assert.NoError(t, err)
		assert.Equal(t, "libx264", enc)
	})

	t.Run("beyond codec ceiling fails", func(t *testing.T) {
		_, err := SelectEncoder(Canvas{8688, 5628}, "", "")
		assert.ErrorIs(t, err, models.ErrCanvasExceedsLimit)
	})
}
