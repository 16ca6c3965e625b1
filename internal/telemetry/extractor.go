package telemetry

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/ChadR23/sentry-six/internal/models"
)

// Result is the outcome of an extraction pass over a collection window.
type Result struct {
	// Samples is sorted by TimestampMs, stable with respect to decode order.
	Samples []models.TelemetrySample `json:"samples"`

	// GpsPath holds only samples with a plausible fix, in timeline order.
	GpsPath models.GpsPath `json:"gps_path"`

	// Cancelled is true when extraction stopped early; Samples and GpsPath
	// then cover the segments completed before the stop.
	Cancelled bool `json:"cancelled"`
}

// Extractor reads telemetry from a collection one segment at a time,
// keeping at most one segment's bytes in memory.
type Extractor struct {
	decoder FrameDecoder
	logger  *slog.Logger
}

// NewExtractor creates an extractor using the given frame decoder.
func NewExtractor(decoder FrameDecoder, logger *slog.Logger) *Extractor {
	return &Extractor{
		decoder: decoder,
		logger:  logger.With("component", "telemetry"),
	}
}

// Extract decodes telemetry for the window [startMs, endMs) of the
// collection. The front camera is preferred per segment, falling back to
// any present camera. Segments that fail to decode are logged and
// skipped. Cancellation is observed between segments and yields a
// partial Result rather than an error.
func (e *Extractor) Extract(ctx context.Context, c *models.DayCollection, startMs, endMs int64) (*Result, error) {
	res := &Result{}

	for _, idx := range c.SegmentsInRange(startMs, endMs) {
		select {
		case <-ctx.Done():
			res.Cancelled = true
			e.finish(res)
			return res, nil
		default:
		}

		group := c.Groups[idx]
		segStart := c.SegmentStartsMs[idx]

		clip := group.File(models.CameraFront)
		if clip == nil {
			clip = group.AnyFile()
		}
		if clip == nil || clip.File == nil {
			continue
		}

		samples, err := e.extractSegment(clip.File.Path, segStart)
		if err != nil {
			e.logger.Warn("segment telemetry decode failed, skipping",
				"path", clip.File.Path, "error", err)
			continue
		}
		res.Samples = append(res.Samples, samples...)
	}

	e.finish(res)
	return res, nil
}

// extractSegment reads one file, decodes its frames, and places each SEI
// record on the collection timeline at the segment start plus the sum of
// preceding frame durations.
func (e *Extractor) extractSegment(path string, segStartMs int64) ([]models.TelemetrySample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	frames, err := e.decoder.DecodeFrames(data)
	if err != nil {
		return nil, err
	}

	var out []models.TelemetrySample
	elapsed := 0.0
	for _, f := range frames {
		if f.SEI != nil {
			s := *f.SEI
			s.TimestampMs = segStartMs + int64(elapsed)
			out = append(out, s)
		}
		elapsed += f.DurationMs
	}
	return out, nil
}

// finish sorts the accumulated samples and derives the GPS polyline.
func (e *Extractor) finish(res *Result) {
	sort.SliceStable(res.Samples, func(i, j int) bool {
		return res.Samples[i].TimestampMs < res.Samples[j].TimestampMs
	})
	for _, s := range res.Samples {
		if s.HasGPS() {
			res.GpsPath = append(res.GpsPath, models.GpsPoint{
				LatitudeDeg:  s.LatitudeDeg,
				LongitudeDeg: s.LongitudeDeg,
				TimestampMs:  s.TimestampMs,
			})
		}
	}
}

// NearestSample returns the index of the sample closest in time to the
// given collection-relative millisecond, breaking ties toward the
// earlier sample. Returns -1 for an empty slice.
func NearestSample(samples []models.TelemetrySample, ms int64) int {
	if len(samples) == 0 {
		return -1
	}
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].TimestampMs >= ms
	})
	if i == 0 {
		return 0
	}
	if i == len(samples) {
		return len(samples) - 1
	}
	// samples[i-1] < ms <= samples[i]; the earlier one wins a tie.
	if ms-samples[i-1].TimestampMs <= samples[i].TimestampMs-ms {
		return i - 1
	}
	return i
}
