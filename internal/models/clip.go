package models

import (
	"fmt"
	"time"
)

// Camera identifies one of the Tesla camera positions.
type Camera string

const (
	CameraFront         Camera = "front"
	CameraBack          Camera = "back"
	CameraLeftRepeater  Camera = "left_repeater"
	CameraRightRepeater Camera = "right_repeater"
	CameraLeftPillar    Camera = "left_pillar"
	CameraRightPillar   Camera = "right_pillar"
	CameraUnknown       Camera = "unknown"
)

// AllCameras lists the known camera positions in canonical display order.
var AllCameras = []Camera{
	CameraFront,
	CameraBack,
	CameraLeftRepeater,
	CameraRightRepeater,
	CameraLeftPillar,
	CameraRightPillar,
}

// IsKnown returns true if the camera is one of the recognized positions.
func (c Camera) IsKnown() bool {
	for _, k := range AllCameras {
		if c == k {
			return true
		}
	}
	return false
}

// ClipType categorizes where in the Tesla folder layout a clip was found.
type ClipType string

const (
	// ClipRecent is rolling dashcam footage from RecentClips.
	ClipRecent ClipType = "recent"
	// ClipSentry is a Sentry Mode event from SentryClips/<event>.
	ClipSentry ClipType = "sentry"
	// ClipSaved is a manually saved event from SavedClips/<event>.
	ClipSaved ClipType = "saved"
	// ClipCustom is footage found under an unrecognized top-level folder.
	ClipCustom ClipType = "custom"
)

// FileDescriptor identifies a file discovered by the folder scanner.
// It is immutable once created.
type FileDescriptor struct {
	// Path is the absolute path on disk.
	Path string `json:"path"`
	// RelPath is the forward-slash path relative to the scanned root.
	RelPath string `json:"rel_path"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
}

// ClipFile is a single per-camera video segment with its parsed identity.
type ClipFile struct {
	ClipType     ClipType        `json:"clip_type"`
	EventID      string          `json:"event_id,omitempty"`
	TimestampKey string          `json:"timestamp_key"`
	Camera       Camera          `json:"camera"`
	File         *FileDescriptor `json:"file"`
}

// EventMeta is the parsed contents of a Tesla event.json sidecar.
type EventMeta struct {
	Timestamp string `json:"timestamp"`
	City      string `json:"city"`
	EstLat    string `json:"est_lat"`
	EstLon    string `json:"est_lon"`
	Reason    string `json:"reason"`
	Camera    string `json:"camera"`
}

// ClipGroup is one recording moment: the set of per-camera files sharing a
// second-granularity timestamp key within the same clip type and event.
type ClipGroup struct {
	ID           string               `json:"id"`
	ClipType     ClipType             `json:"clip_type"`
	EventID      string               `json:"event_id,omitempty"`
	TimestampKey string               `json:"timestamp_key"`
	FilesByCamera map[Camera]*ClipFile `json:"files_by_camera"`

	// Event sidecar assets shared by all groups of the same event folder.
	EventMeta *EventMeta      `json:"event_meta,omitempty"`
	EventJSON *FileDescriptor `json:"event_json,omitempty"`
	EventPNG  *FileDescriptor `json:"event_png,omitempty"`
	EventMP4  *FileDescriptor `json:"event_mp4,omitempty"`
}

// File returns the clip file for the given camera, or nil if absent.
func (g *ClipGroup) File(camera Camera) *ClipFile {
	return g.FilesByCamera[camera]
}

// AnyFile returns an arbitrary clip file from the group, preferring the
// front camera. Returns nil only for an empty group.
func (g *ClipGroup) AnyFile() *ClipFile {
	if f := g.FilesByCamera[CameraFront]; f != nil {
		return f
	}
	for _, cam := range AllCameras {
		if f := g.FilesByCamera[cam]; f != nil {
			return f
		}
	}
	return nil
}

// TimestampKeyLayout is the wall-clock layout used in Tesla clip filenames.
const TimestampKeyLayout = "2006-01-02_15-04-05"

// ParseTimestampKey interprets a timestamp key as vehicle-local civil time.
// The filenames embed no timezone, so the local zone is assumed.
func ParseTimestampKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampKeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp key %q: %w", key, err)
	}
	return t, nil
}

// FormatTimestampKey renders a wall-clock time back into the filename form.
func FormatTimestampKey(t time.Time) string {
	return t.Format(TimestampKeyLayout)
}
