package ffmpeg

import (
	"context"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Codec is a target video codec family.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecHEVC Codec = "hevc"
)

// Capabilities is the probed encoder capability set for one ffmpeg
// binary on this machine.
type Capabilities struct {
	// H264Encoder and HEVCEncoder are the best working encoder names per
	// codec, hardware preferred. Software fallbacks are always present.
	H264Encoder string `json:"h264_encoder"`
	HEVCEncoder string `json:"hevc_encoder"`

	// HWAccelerated is true when at least one hardware encoder passed a
	// test encode.
	HWAccelerated bool `json:"hw_accelerated"`

	// GPUName is a best-effort device description, empty when unknown.
	GPUName string `json:"gpu_name,omitempty"`
}

// Encoder returns the selected encoder for the codec.
func (c *Capabilities) Encoder(codec Codec) string {
	if codec == CodecHEVC {
		return c.HEVCEncoder
	}
	return c.H264Encoder
}

// Prober detects working encoders. Probing is expensive (one subprocess
// per candidate) so results are cached for the process lifetime.
type Prober struct {
	binary        string
	queryTimeout  time.Duration
	encodeTimeout time.Duration
	logger        *slog.Logger

	once sync.Once
	caps *Capabilities
}

// NewProber creates a prober for the given ffmpeg binary.
func NewProber(binary string, queryTimeout, encodeTimeout time.Duration, logger *slog.Logger) *Prober {
	return &Prober{
		binary:        binary,
		queryTimeout:  queryTimeout,
		encodeTimeout: encodeTimeout,
		logger:        logger.With("component", "probe"),
	}
}

// Probe returns the capability set, running detection on first call.
func (p *Prober) Probe(ctx context.Context) *Capabilities {
	p.once.Do(func() {
		p.caps = p.detect(ctx)
	})
	return p.caps
}

// hardwareCandidates returns encoder names to try per codec, most
// preferred first, for the current platform.
func hardwareCandidates(codec Codec) []string {
	switch runtime.GOOS {
	case "darwin":
		if codec == CodecHEVC {
			return []string{"hevc_videotoolbox"}
		}
		return []string{"h264_videotoolbox"}
	case "windows":
		if codec == CodecHEVC {
			return []string{"hevc_nvenc", "hevc_amf", "hevc_qsv"}
		}
		return []string{"h264_nvenc", "h264_amf", "h264_qsv"}
	default:
		if codec == CodecHEVC {
			return []string{"hevc_nvenc", "hevc_qsv"}
		}
		return []string{"h264_nvenc", "h264_qsv"}
	}
}

func softwareEncoder(codec Codec) string {
	if codec == CodecHEVC {
		return "libx265"
	}
	return "libx264"
}

func (p *Prober) detect(ctx context.Context) *Capabilities {
	caps := &Capabilities{
		H264Encoder: softwareEncoder(CodecH264),
		HEVCEncoder: softwareEncoder(CodecHEVC),
	}

	available := p.listEncoders(ctx)

	for _, codec := range []Codec{CodecH264, CodecHEVC} {
		for _, name := range hardwareCandidates(codec) {
			if !available[name] {
				continue
			}
			if !p.testEncode(ctx, codec, name) {
				p.logger.Debug("encoder listed but test encode failed", "encoder", name)
				continue
			}
			p.logger.Info("hardware encoder selected", "codec", string(codec), "encoder", name)
			if codec == CodecHEVC {
				caps.HEVCEncoder = name
			} else {
				caps.H264Encoder = name
			}
			caps.HWAccelerated = true
			break
		}
	}

	if caps.HWAccelerated {
		caps.GPUName = detectGPUName(ctx)
	}
	return caps
}

// listEncoders parses ffmpeg -encoders into a name set.
func (p *Prober) listEncoders(ctx context.Context) map[string]bool {
	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.binary, "-hide_banner", "-encoders").Output()
	if err != nil {
		p.logger.Warn("listing encoders failed", "error", err)
		return nil
	}
	return parseEncoderList(string(out))
}

// parseEncoderList extracts video encoder names from ffmpeg -encoders
// output.
func parseEncoderList(out string) map[string]bool {
	encoders := make(map[string]bool)
	inList := false
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.HasPrefix(fields[0], "V") {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

// failureMarkers are stderr fragments that mean the encoder is listed
// but cannot actually run on this machine. A test encode printing any of
// these fails even when the process exits zero.
var failureMarkers = []string{
	"No such device",
	"No capable devices found",
	"Device creation failed",
	"Task finished with error",
}

// testSourceSize returns the synthetic frame size per codec. HEVC gets
// a larger frame because some hardware encoders reject tiny inputs that
// H.264 accepts.
func testSourceSize(codec Codec) string {
	if codec == CodecHEVC {
		return "640x480"
	}
	return "320x240"
}

// testEncode runs a one-frame synthetic encode to the null muxer.
func (p *Prober) testEncode(ctx context.Context, codec Codec, encoder string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.encodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary,
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=c=black:s="+testSourceSize(codec)+":d=0.1",
		"-frames:v", "1",
		"-c:v", encoder,
		"-f", "null", "-",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return false
	}
	text := string(out)
	for _, marker := range failureMarkers {
		if strings.Contains(text, marker) {
			return false
		}
	}
	return true
}

// detectGPUName queries the OS for a GPU description. Failures return
// an empty string; the name is informational only.
func detectGPUName(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "wmic", "path", "win32_VideoController", "get", "name")
	case "darwin":
		cmd = exec.CommandContext(ctx, "system_profiler", "SPDisplaysDataType")
	default:
		cmd = exec.CommandContext(ctx, "lspci")
	}

	out, err := cmd.Output()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "windows":
		for _, line := range strings.Split(string(out), "\n")[1:] {
			if name := strings.TrimSpace(line); name != "" {
				return name
			}
		}
	case "darwin":
		for _, line := range strings.Split(string(out), "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "Chipset Model:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "Chipset Model:"))
			}
		}
	default:
		for _, line := range strings.Split(string(out), "\n") {
			if strings.Contains(line, "VGA compatible controller") || strings.Contains(line, "3D controller") {
				if i := strings.Index(line, ": "); i >= 0 {
					return strings.TrimSpace(line[i+2:])
				}
			}
		}
	}
	return ""
}
