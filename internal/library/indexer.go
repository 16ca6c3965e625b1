package library

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/ChadR23/sentry-six/internal/models"
)

// IndexProgress reports incremental indexing progress.
type IndexProgress struct {
	Processed int
	Total     int
}

// ProgressFunc receives progress updates during indexing. It is invoked
// from the indexing goroutine; implementations must be fast.
type ProgressFunc func(IndexProgress)

// Index is the queryable result of a library scan.
type Index struct {
	Groups      []*models.ClipGroup
	Collections []*models.DayCollection
}

// Indexer builds library indexes from scanned file descriptors.
type Indexer struct {
	batchSize int
	logger    *slog.Logger
}

// NewIndexer creates an indexer. batchSize controls how many files are
// processed between progress publications and cancellation checks.
func NewIndexer(batchSize int, logger *slog.Logger) *Indexer {
	if batchSize < 1 {
		batchSize = 500
	}
	return &Indexer{
		batchSize: batchSize,
		logger:    logger.With("component", "indexer"),
	}
}

// groupKey uniquely identifies a clip group within an index.
func groupKey(clipType models.ClipType, eventID, timestampKey string) string {
	return string(clipType) + "|" + eventID + "|" + timestampKey
}

// eventKey identifies an event folder for sidecar attachment.
func eventKey(clipType models.ClipType, eventID string) string {
	return string(clipType) + "|" + eventID
}

// BuildIndex groups the scanned files into clip groups and rolls them up
// into day collections. Individual unparseable files are skipped, never
// fatal. Cancellation is observed between batches; a cancelled build
// returns ctx.Err().
func (ix *Indexer) BuildIndex(ctx context.Context, files []models.FileDescriptor, onProgress ProgressFunc) (*Index, error) {
	groups := make(map[string]*models.ClipGroup)
	type eventAssets struct {
		meta *models.EventMeta
		json *models.FileDescriptor
		png  *models.FileDescriptor
		mp4  *models.FileDescriptor
	}
	events := make(map[string]*eventAssets)

	skipped := 0
	for i := range files {
		if i%ix.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if onProgress != nil {
				onProgress(IndexProgress{Processed: i, Total: len(files)})
			}
		}

		fd := files[i]
		parsed := ParsePath(fd.RelPath)
		switch parsed.Kind {
		case KindClip:
			key := groupKey(parsed.ClipType, parsed.EventID, parsed.TimestampKey)
			g, ok := groups[key]
			if !ok {
				g = &models.ClipGroup{
					ID:            key,
					ClipType:      parsed.ClipType,
					EventID:       parsed.EventID,
					TimestampKey:  parsed.TimestampKey,
					FilesByCamera: make(map[models.Camera]*models.ClipFile),
				}
				groups[key] = g
			}
			if _, dup := g.FilesByCamera[parsed.Camera]; dup {
				// One file per (group, camera); keep the first seen.
				continue
			}
			f := fd
			g.FilesByCamera[parsed.Camera] = &models.ClipFile{
				ClipType:     parsed.ClipType,
				EventID:      parsed.EventID,
				TimestampKey: parsed.TimestampKey,
				Camera:       parsed.Camera,
				File:         &f,
			}

		case KindEventAsset:
			ek := eventKey(parsed.ClipType, parsed.EventID)
			ea, ok := events[ek]
			if !ok {
				ea = &eventAssets{}
				events[ek] = ea
			}
			f := fd
			switch parsed.AssetName {
			case EventJSONName:
				ea.json = &f
				ea.meta = parseEventMeta(f.Path, ix.logger)
			case EventPNGName:
				ea.png = &f
			case EventMP4Name:
				ea.mp4 = &f
			}

		default:
			skipped++
		}
	}

	if onProgress != nil {
		onProgress(IndexProgress{Processed: len(files), Total: len(files)})
	}
	if skipped > 0 {
		ix.logger.Debug("skipped non-clip files", "count", skipped)
	}

	// Attach event sidecars to every group of the same event folder.
	for _, g := range groups {
		if ea, ok := events[eventKey(g.ClipType, g.EventID)]; ok {
			g.EventMeta = ea.meta
			g.EventJSON = ea.json
			g.EventPNG = ea.png
			g.EventMP4 = ea.mp4
		}
	}

	sorted := make([]*models.ClipGroup, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	collections := buildCollections(sorted)

	ix.logger.Info("library indexed",
		"files", len(files),
		"groups", len(sorted),
		"collections", len(collections),
	)

	return &Index{Groups: sorted, Collections: collections}, nil
}

// parseEventMeta reads an event.json sidecar. A malformed sidecar is a
// warning, never fatal.
func parseEventMeta(path string, logger *slog.Logger) *models.EventMeta {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("reading event.json", "path", path, "error", err)
		return nil
	}
	var meta models.EventMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		logger.Warn("parsing event.json", "path", path, "error", err)
		return nil
	}
	return &meta
}

// buildCollections rolls sorted groups up into day collections:
// Recent and Custom are bucketed per calendar day, Sentry and Saved per
// event folder.
func buildCollections(groups []*models.ClipGroup) []*models.DayCollection {
	buckets := make(map[string][]*models.ClipGroup)
	for _, g := range groups {
		day := dayOf(g.TimestampKey)
		var key string
		switch g.ClipType {
		case models.ClipSentry, models.ClipSaved:
			key = string(g.ClipType) + "|" + g.EventID
		default:
			key = string(g.ClipType) + "|" + g.EventID + "|" + day
		}
		buckets[key] = append(buckets[key], g)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*models.DayCollection
	for _, k := range keys {
		gs := buckets[k]
		sort.Slice(gs, func(i, j int) bool { return gs[i].TimestampKey < gs[j].TimestampKey })
		out = append(out, newCollection(gs))
	}
	return out
}

// newCollection assembles one collection from its time-sorted groups,
// computing the collection-relative segment timeline and the event anchor.
func newCollection(groups []*models.ClipGroup) *models.DayCollection {
	first := groups[0]
	c := &models.DayCollection{
		Day:      dayOf(first.TimestampKey),
		ClipType: first.ClipType,
		EventID:  first.EventID,
		Groups:   groups,
	}
	if c.ClipType == models.ClipSentry || c.ClipType == models.ClipSaved {
		c.ID = fmt.Sprintf("%s:%s", c.ClipType, c.EventID)
	} else {
		c.ID = fmt.Sprintf("%s:%s:%s", c.ClipType, c.EventID, c.Day)
	}

	var baseMs int64
	if t, err := models.ParseTimestampKey(first.TimestampKey); err == nil {
		baseMs = t.UnixMilli()
	}

	starts := make([]int64, len(groups))
	for i, g := range groups {
		var ms int64
		if t, err := models.ParseTimestampKey(g.TimestampKey); err == nil && baseMs > 0 {
			ms = t.UnixMilli() - baseMs
		}
		if ms < 0 {
			ms = 0
		}
		// Degenerate or unparseable keys would stall the timeline; keep it
		// strictly increasing.
		if i > 0 && ms <= starts[i-1] {
			ms = starts[i-1] + 1
		}
		starts[i] = ms
	}
	c.SegmentStartsMs = starts
	c.DurationMs = starts[len(starts)-1] + models.NominalSegmentMs

	if meta := first.EventMeta; meta != nil && baseMs > 0 {
		if anchor := parseEventTimestamp(meta.Timestamp); anchor > 0 {
			ms := anchor - baseMs
			if ms < 0 {
				ms = 0
			}
			if ms > c.DurationMs {
				ms = c.DurationMs
			}
			c.AnchorMs = &ms
			if idx := c.SegmentAt(ms); idx >= 0 {
				c.AnchorGroupID = c.Groups[idx].ID
			}
		}
	}

	return c
}

// parseEventTimestamp handles the `2023-06-14T21:18:47` form used by
// event.json. Returns 0 when unparseable.
func parseEventTimestamp(s string) int64 {
	if s == "" {
		return 0
	}
	s = strings.Replace(s, "T", "_", 1)
	s = strings.ReplaceAll(s, ":", "-")
	t, err := models.ParseTimestampKey(s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// dayOf extracts the YYYY-MM-DD prefix of a timestamp key.
func dayOf(timestampKey string) string {
	if len(timestampKey) < 10 {
		return timestampKey
	}
	return timestampKey[:10]
}
