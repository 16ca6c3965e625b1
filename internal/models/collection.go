package models

// NominalSegmentMs is the nominal duration of a Tesla segment. Real footage
// can deviate slightly; a per-file probed duration preempts this value when
// available.
const NominalSegmentMs int64 = 60_000

// DayCollection is a playable roll-up of clip groups: all Recent/Custom
// groups of one calendar day, or all groups of one Sentry/Saved event.
type DayCollection struct {
	ID       string   `json:"id"`
	Day      string   `json:"day"` // YYYY-MM-DD
	ClipType ClipType `json:"clip_type"`
	EventID  string   `json:"event_id,omitempty"`

	// Groups is ordered by ascending timestamp key.
	Groups []*ClipGroup `json:"groups"`

	// SegmentStartsMs is parallel to Groups: Groups[i] starts at
	// SegmentStartsMs[i] in collection-relative milliseconds. The first
	// entry is always 0 and the sequence is strictly increasing.
	SegmentStartsMs []int64 `json:"segment_starts_ms"`

	// DurationMs covers through the end of the last nominal segment.
	DurationMs int64 `json:"duration_ms"`

	// AnchorMs marks the event moment within the collection (Sentry/Saved),
	// derived from the event.json timestamp. Nil when unknown.
	AnchorMs      *int64 `json:"anchor_ms,omitempty"`
	AnchorGroupID string `json:"anchor_group_id,omitempty"`
}

// SegmentAt returns the index of the group whose nominal segment window
// contains the given collection-relative millisecond, or -1.
func (c *DayCollection) SegmentAt(ms int64) int {
	for i := len(c.SegmentStartsMs) - 1; i >= 0; i-- {
		if ms >= c.SegmentStartsMs[i] {
			if ms < c.SegmentStartsMs[i]+NominalSegmentMs {
				return i
			}
			return -1
		}
	}
	return -1
}

// SegmentsInRange returns the indexes of groups whose nominal segment
// window [start, start+NominalSegmentMs) intersects [startMs, endMs).
func (c *DayCollection) SegmentsInRange(startMs, endMs int64) []int {
	var out []int
	for i, segStart := range c.SegmentStartsMs {
		segEnd := segStart + NominalSegmentMs
		if segEnd > startMs && segStart < endMs {
			out = append(out, i)
		}
	}
	return out
}

// Cameras returns the set of cameras present in at least one group.
func (c *DayCollection) Cameras() []Camera {
	seen := make(map[Camera]bool)
	for _, g := range c.Groups {
		for cam := range g.FilesByCamera {
			seen[cam] = true
		}
	}
	var out []Camera
	for _, cam := range AllCameras {
		if seen[cam] {
			out = append(out, cam)
		}
	}
	return out
}
