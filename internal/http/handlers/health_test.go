package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChadR23/sentry-six/internal/ffmpeg"
	"github.com/ChadR23/sentry-six/internal/models"
)

func TestHealthHandlerGetHealth(t *testing.T) {
	lib := &fakeLibrary{collections: []*models.DayCollection{testCollection()}}
	h := NewHealthHandler("1.2.3", t.TempDir(), lib)

	out, err := h.GetHealth(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "healthy", out.Body.Status)
	assert.Equal(t, "1.2.3", out.Body.Version)
	assert.Greater(t, out.Body.CPUCores, 0)
	require.NotNil(t, out.Body.Library)
	assert.Equal(t, 1, out.Body.Library.Collections)
	assert.Nil(t, out.Body.Library.RefreshedAt, "no refresh has happened")
}

func TestHealthHandlerWithoutLibrary(t *testing.T) {
	h := NewHealthHandler("dev", "", nil)

	out, err := h.GetHealth(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "healthy", out.Body.Status)
	assert.Nil(t, out.Body.Library)
	assert.Nil(t, out.Body.Footage)
}

type fakeProber struct {
	caps *ffmpeg.Capabilities
}

func (f *fakeProber) Probe(context.Context) *ffmpeg.Capabilities { return f.caps }

func TestFFmpegHandlerGetCapabilities(t *testing.T) {
	caps := &ffmpeg.Capabilities{
		H264Encoder:   "h264_nvenc",
		HEVCEncoder:   "hevc_nvenc",
		HWAccelerated: true,
		GPUName:       "NVIDIA GeForce RTX 3080",
	}
	h := NewFFmpegHandler("/usr/bin/ffmpeg", &fakeProber{caps: caps})

	out, err := h.GetCapabilities(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/ffmpeg", out.Body.Binary)
	assert.Same(t, caps, out.Body.Capabilities)
}
