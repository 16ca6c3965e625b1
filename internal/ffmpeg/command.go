package ffmpeg

import (
	"fmt"
	"strconv"
)

// CommandBuilder assembles an ffmpeg argv with a fluent API. Argument
// groups keep their relative order: global flags, then per-input flags
// and inputs, then the filter graph, then output flags and the output.
type CommandBuilder struct {
	globalArgs    []string
	inputs        []input
	filterComplex string
	maps          []string
	outputArgs    []string
	output        string
	logLevel      string
	overwrite     bool
}

type input struct {
	args []string
	url  string
}

// NewCommandBuilder creates a builder with quiet defaults.
func NewCommandBuilder() *CommandBuilder {
	return &CommandBuilder{logLevel: "error"}
}

// LogLevel sets the ffmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// Overwrite allows replacing an existing output file.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// Stats enables the stderr progress line the supervisor parses.
func (b *CommandBuilder) Stats() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-stats")
	return b
}

// GlobalArgs adds arbitrary pre-input arguments.
func (b *CommandBuilder) GlobalArgs(args ...string) *CommandBuilder {
	b.globalArgs = append(b.globalArgs, args...)
	return b
}

// Input adds a plain input.
func (b *CommandBuilder) Input(url string, args ...string) *CommandBuilder {
	b.inputs = append(b.inputs, input{args: args, url: url})
	return b
}

// ConcatInput adds a concat-demuxer input reading a list file. unsafe
// permits absolute paths in the list, which the planner always writes.
func (b *CommandBuilder) ConcatInput(listPath string) *CommandBuilder {
	return b.Input(listPath, "-f", "concat", "-safe", "0")
}

// LavfiInput adds a synthetic lavfi source.
func (b *CommandBuilder) LavfiInput(graph string) *CommandBuilder {
	return b.Input(graph, "-f", "lavfi")
}

// FilterComplex sets the filter graph. Only one graph is supported per
// command.
func (b *CommandBuilder) FilterComplex(graph string) *CommandBuilder {
	b.filterComplex = graph
	return b
}

// Map selects a stream or filter graph label for the output.
func (b *CommandBuilder) Map(label string) *CommandBuilder {
	b.maps = append(b.maps, label)
	return b
}

// VideoCodec sets the output video encoder.
func (b *CommandBuilder) VideoCodec(encoder string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", encoder)
	return b
}

// VideoBitrate sets the output video bitrate.
func (b *CommandBuilder) VideoBitrate(bitrate string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:v", bitrate)
	return b
}

// PixelFormat sets the output pixel format.
func (b *CommandBuilder) PixelFormat(format string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-pix_fmt", format)
	return b
}

// FrameRate sets the output frame rate.
func (b *CommandBuilder) FrameRate(fps int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-r", strconv.Itoa(fps))
	return b
}

// Duration limits the output duration in seconds.
func (b *CommandBuilder) Duration(seconds float64) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-t", formatSeconds(seconds))
	return b
}

// NoAudio drops all audio streams.
func (b *CommandBuilder) NoAudio() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-an")
	return b
}

// MovFlags sets mp4 muxer flags.
func (b *CommandBuilder) MovFlags(flags string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-movflags", flags)
	return b
}

// OutputArgs adds arbitrary output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output path.
func (b *CommandBuilder) Output(path string) *CommandBuilder {
	b.output = path
	return b
}

// Build produces the final argv, excluding the binary itself.
func (b *CommandBuilder) Build() []string {
	args := []string{"-hide_banner", "-loglevel", b.logLevel}
	if b.overwrite {
		args = append(args, "-y")
	}
	args = append(args, b.globalArgs...)

	for _, in := range b.inputs {
		args = append(args, in.args...)
		args = append(args, "-i", in.url)
	}

	if b.filterComplex != "" {
		args = append(args, "-filter_complex", b.filterComplex)
	}
	for _, m := range b.maps {
		args = append(args, "-map", m)
	}

	args = append(args, b.outputArgs...)
	if b.output != "" {
		args = append(args, b.output)
	}
	return args
}

// formatSeconds renders a duration without trailing zeros beyond
// millisecond precision.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// FilterLabel renders a numbered graph label like [v3].
func FilterLabel(prefix string, i int) string {
	return fmt.Sprintf("[%s%d]", prefix, i)
}
