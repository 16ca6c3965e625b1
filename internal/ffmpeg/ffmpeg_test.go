package ffmpeg

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuilder(t *testing.T) {
	t.Run("argument group ordering", func(t *testing.T) {
		args := NewCommandBuilder().
			Overwrite().
			ConcatInput("/tmp/front.txt").
			LavfiInput("color=c=black:s=484x314").
			FilterComplex("[0:v][1:v]xstack=inputs=2:layout=0_0|w0_0[v]").
			Map("[v]").
			VideoCodec("libx264").
			VideoBitrate("12M").
			PixelFormat("yuv420p").
			NoAudio().
			MovFlags("+faststart").
			Output("/tmp/out.mp4").
			Build()

		want := []string{
			"-hide_banner", "-loglevel", "error", "-y",
			"-f", "concat", "-safe", "0", "-i", "/tmp/front.txt",
			"-f", "lavfi", "-i", "color=c=black:s=484x314",
			"-filter_complex", "[0:v][1:v]xstack=inputs=2:layout=0_0|w0_0[v]",
			"-map", "[v]",
			"-c:v", "libx264", "-b:v", "12M", "-pix_fmt", "yuv420p",
			"-an", "-movflags", "+faststart",
			"/tmp/out.mp4",
		}
		assert.Equal(t, want, args)
	})

	t.Run("duration formatting", func(t *testing.T) {
		args := NewCommandBuilder().Input("in.mp4").Duration(12.3456).Output("o.mp4").Build()
		assert.Contains(t, args, "12.346")
	})
}

func TestParseEncoderList(t *testing.T) {
	out := `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder
 A....D aac                  AAC (Advanced Audio Coding)
 V....D libx265              libx265 H.265 / HEVC
`
	encoders := parseEncoderList(out)
	assert.True(t, encoders["libx264"])
	assert.True(t, encoders["h264_nvenc"])
	assert.True(t, encoders["libx265"])
	assert.False(t, encoders["aac"], "audio encoders excluded")
}

func TestHardwareCandidates(t *testing.T) {
	// Ordering is platform-dependent; every platform prefers hardware
	// names that match the codec family.
	for _, codec := range []Codec{CodecH264, CodecHEVC} {
		for _, name := range hardwareCandidates(codec) {
			assert.Contains(t, name, string(codec))
		}
	}
}

func TestTestSourceSize(t *testing.T) {
	assert.Equal(t, "320x240", testSourceSize(CodecH264))
	assert.Equal(t, "640x480", testSourceSize(CodecHEVC))
}

func TestSupervisorParseProgress(t *testing.T) {
	s := NewSupervisor("ffmpeg", time.Second, slog.New(slog.DiscardHandler))

	t.Run("time based percent", func(t *testing.T) {
		line := "frame=  360 fps= 36 q=28.0 size=    1024KiB time=00:00:30.00 bitrate= 279.6kbits/s speed=1.52x"
		p, ok := s.parseProgress(line, RunOptions{TotalDurationMs: 60_000})
		require.True(t, ok)
		assert.Equal(t, int64(360), p.Frame)
		assert.Equal(t, int64(30_000), p.TimeMs)
		assert.InDelta(t, 50.0, p.Percent, 0.001)
		assert.InDelta(t, 1.52, p.Speed, 0.001)
	})

	t.Run("frame based percent", func(t *testing.T) {
		line := "frame=   90 fps= 36 q=-0.0 size=N/A time=N/A bitrate=N/A speed=  12x"
		p, ok := s.parseProgress(line, RunOptions{TotalFrames: 360})
		require.True(t, ok)
		assert.InDelta(t, 25.0, p.Percent, 0.001)
	})

	t.Run("percent clamps at 100", func(t *testing.T) {
		line := "frame=  500 time=00:01:10.00 speed=1.0x"
		p, ok := s.parseProgress(line, RunOptions{TotalDurationMs: 60_000})
		require.True(t, ok)
		assert.Equal(t, 100.0, p.Percent)
	})

	t.Run("non progress line rejected", func(t *testing.T) {
		_, ok := s.parseProgress("Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'a.mp4':", RunOptions{})
		assert.False(t, ok)
	})
}

func TestScanCRorLF(t *testing.T) {
	adv, token, err := scanCRorLF([]byte("abc\rdef\n"), false)
	require.NoError(t, err)
	assert.Equal(t, 4, adv)
	assert.Equal(t, "abc", string(token))

	adv, token, err = scanCRorLF([]byte("tail"), true)
	require.NoError(t, err)
	assert.Equal(t, 4, adv)
	assert.Equal(t, "tail", string(token))
}
