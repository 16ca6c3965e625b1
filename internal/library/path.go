// Package library indexes a Tesla footage tree into clip groups and
// day-level collections.
package library

import (
	"path"
	"regexp"
	"strings"

	"github.com/ChadR23/sentry-six/internal/models"
)

// Canonical Tesla folder names. Matching is case-insensitive but rendering
// always uses these.
const (
	FolderRecent = "RecentClips"
	FolderSentry = "SentryClips"
	FolderSaved  = "SavedClips"
)

// Event sidecar filenames.
const (
	EventJSONName = "event.json"
	EventPNGName  = "event.png"
	EventMP4Name  = "event.mp4"
)

// clipNameRe matches `YYYY-MM-DD_HH-MM-SS-<cameraRaw>.mp4`. The camera
// suffix is normalized separately so unrecognized cameras still index.
var clipNameRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})-([A-Za-z_]+)\.mp4$`)

// PathKind classifies what a parsed path points at.
type PathKind int

const (
	// KindNotAClip marks files that are neither clips nor event assets.
	// The indexer skips them silently.
	KindNotAClip PathKind = iota
	// KindClip is a per-camera video segment.
	KindClip
	// KindEventAsset is an event.json / event.png / event.mp4 sidecar.
	KindEventAsset
)

// ParsedPath is the structured decoding of a relative footage path.
type ParsedPath struct {
	Kind         PathKind
	ClipType     models.ClipType
	EventID      string
	TimestampKey string
	Camera       models.Camera
	// AssetName is set for KindEventAsset (the sidecar filename).
	AssetName string
}

// ParsePath decodes a forward-slash relative path within a footage root.
// Files that cannot be a clip or event asset come back as KindNotAClip;
// that is a normal outcome, not an error.
func ParsePath(relPath string) ParsedPath {
	relPath = strings.Trim(relPath, "/")
	if relPath == "" {
		return ParsedPath{Kind: KindNotAClip}
	}
	segs := strings.Split(relPath, "/")
	name := segs[len(segs)-1]
	dirs := segs[:len(segs)-1]

	clipType := models.ClipCustom
	eventID := ""
	rest := dirs
	for i, d := range dirs {
		switch strings.ToLower(d) {
		case strings.ToLower(FolderRecent):
			clipType = models.ClipRecent
			rest = dirs[i+1:]
		case strings.ToLower(FolderSentry):
			clipType = models.ClipSentry
			rest = dirs[i+1:]
		case strings.ToLower(FolderSaved):
			clipType = models.ClipSaved
			rest = dirs[i+1:]
		default:
			continue
		}
		break
	}

	switch clipType {
	case models.ClipSentry, models.ClipSaved:
		if len(rest) == 0 {
			// Event clips must live inside an event folder.
			return ParsedPath{Kind: KindNotAClip}
		}
		eventID = rest[0]
	case models.ClipCustom:
		if len(dirs) == 0 {
			// Loose files at the root are not footage.
			return ParsedPath{Kind: KindNotAClip}
		}
		// The first directory component acts as a custom tag.
		eventID = dirs[0]
	}

	switch name {
	case EventJSONName, EventPNGName, EventMP4Name:
		return ParsedPath{
			Kind:      KindEventAsset,
			ClipType:  clipType,
			EventID:   eventID,
			AssetName: name,
		}
	}

	m := clipNameRe.FindStringSubmatch(name)
	if m == nil {
		return ParsedPath{Kind: KindNotAClip}
	}
	if _, err := models.ParseTimestampKey(m[1]); err != nil {
		return ParsedPath{Kind: KindNotAClip}
	}

	return ParsedPath{
		Kind:         KindClip,
		ClipType:     clipType,
		EventID:      eventID,
		TimestampKey: m[1],
		Camera:       NormalizeCamera(m[2]),
	}
}

// NormalizeCamera maps a raw filename camera suffix to a canonical camera.
func NormalizeCamera(raw string) models.Camera {
	switch strings.ToLower(raw) {
	case "front":
		return models.CameraFront
	case "back":
		return models.CameraBack
	case "left_repeater", "left":
		return models.CameraLeftRepeater
	case "right_repeater", "right":
		return models.CameraRightRepeater
	case "left_pillar":
		return models.CameraLeftPillar
	case "right_pillar":
		return models.CameraRightPillar
	default:
		return models.CameraUnknown
	}
}

// RenderPath is the inverse of ParsePath for clip files: it rebuilds the
// canonical relative path from the parsed identity.
func RenderPath(p ParsedPath) string {
	file := p.TimestampKey + "-" + string(p.Camera) + ".mp4"
	switch p.ClipType {
	case models.ClipRecent:
		return path.Join(FolderRecent, file)
	case models.ClipSentry:
		return path.Join(FolderSentry, p.EventID, file)
	case models.ClipSaved:
		return path.Join(FolderSaved, p.EventID, file)
	default:
		return path.Join(p.EventID, file)
	}
}
