package models

import "errors"

// Sentinel errors shared across the engine. Recoverable conditions are
// absorbed locally with a logged warning; anything that changes the
// user-visible outcome of an export surfaces as a terminal progress event
// carrying one of these, categorized via KindOf.
var (
	// ErrNotATeslaClip marks a file that is not a recognizable clip. The
	// indexer skips such files silently.
	ErrNotATeslaClip = errors.New("not a tesla clip")

	// ErrNoTelemetry indicates the selected range produced zero samples.
	// Dashboard and minimap are disabled with a notice.
	ErrNoTelemetry = errors.New("no telemetry available")

	// ErrFFmpegMissing indicates the ffmpeg binary could not be located.
	ErrFFmpegMissing = errors.New("ffmpeg not found")

	// ErrNoUsableEncoder indicates no GPU encoder passed probing; the
	// planner falls back to CPU encoding.
	ErrNoUsableEncoder = errors.New("no usable hardware encoder")

	// ErrCanvasExceedsLimit indicates the mosaic exceeds the encoder's
	// maximum resolution even after promotion to HEVC.
	ErrCanvasExceedsLimit = errors.New("canvas exceeds encoder resolution limit")

	// ErrEmptySelection indicates no segments overlap the requested range
	// for any selected camera.
	ErrEmptySelection = errors.New("empty selection")

	// ErrInvalidBlurZone indicates a degenerate blur polygon.
	ErrInvalidBlurZone = errors.New("invalid blur zone")

	// ErrFFmpegRuntime indicates a non-zero ffmpeg exit.
	ErrFFmpegRuntime = errors.New("ffmpeg failed")

	// ErrCancelled indicates the job was cancelled by the caller.
	ErrCancelled = errors.New("cancelled")
)

// ErrorKind is the stable error category carried on terminal progress
// events and job records.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindNoTelemetry       ErrorKind = "no_telemetry"
	KindFFmpegMissing     ErrorKind = "ffmpeg_missing"
	KindNoUsableEncoder   ErrorKind = "no_usable_encoder"
	KindCanvasLimit       ErrorKind = "canvas_exceeds_limit"
	KindEmptySelection    ErrorKind = "empty_selection"
	KindInvalidBlurZone   ErrorKind = "invalid_blur_zone"
	KindFFmpegRuntime     ErrorKind = "ffmpeg_runtime"
	KindCancelled         ErrorKind = "cancelled"
	KindIO                ErrorKind = "io_error"
	KindInvalidArguments  ErrorKind = "invalid_arguments"
)

// KindOf maps an error to its stable category. Unrecognized errors are
// treated as I/O failures, the broadest fatal category.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrNoTelemetry):
		return KindNoTelemetry
	case errors.Is(err, ErrFFmpegMissing):
		return KindFFmpegMissing
	case errors.Is(err, ErrNoUsableEncoder):
		return KindNoUsableEncoder
	case errors.Is(err, ErrCanvasExceedsLimit):
		return KindCanvasLimit
	case errors.Is(err, ErrEmptySelection):
		return KindEmptySelection
	case errors.Is(err, ErrInvalidBlurZone):
		return KindInvalidBlurZone
	case errors.Is(err, ErrFFmpegRuntime):
		return KindFFmpegRuntime
	default:
		return KindIO
	}
}

// ExitCode maps an error kind to the CLI exit code contract.
func (k ErrorKind) ExitCode() int {
	switch k {
	case KindNone:
		return 0
	case KindInvalidArguments, KindInvalidBlurZone:
		return 1
	case KindFFmpegMissing:
		return 2
	case KindEmptySelection, KindNoTelemetry:
		return 3
	case KindCancelled:
		return 4
	case KindNoUsableEncoder, KindCanvasLimit, KindFFmpegRuntime:
		return 5
	default:
		return 6
	}
}
