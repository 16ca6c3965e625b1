// Package telemetry extracts per-frame SEI telemetry from Tesla MP4
// segments and assembles it into a collection-relative timeline.
package telemetry

import "github.com/ChadR23/sentry-six/internal/models"

// Frame is one decoded video frame: its presentation duration and, when
// the bitstream carried one, the telemetry record attached to it.
type Frame struct {
	// DurationMs is the frame's duration in milliseconds. Durations
	// accumulate to form the segment-local clock.
	DurationMs float64

	// SEI is the telemetry record for this frame, nil when absent. Its
	// TimestampMs field is unset; the extractor assigns it.
	SEI *models.TelemetrySample
}

// FrameDecoder turns a segment's bytes into an ordered frame stream. It
// is a pure function over bytes and never blocks on I/O, which keeps the
// extractor's memory bounded to one segment buffer at a time.
//
// The default implementation parses the Tesla H.264 SEI wire format; the
// interface exists so a different decoder can be substituted without
// touching the extractor.
type FrameDecoder interface {
	DecodeFrames(data []byte) ([]Frame, error)
}
