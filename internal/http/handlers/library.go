// Package handlers provides the HTTP API handlers for sentry-six.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ChadR23/sentry-six/internal/library"
	"github.com/ChadR23/sentry-six/internal/models"
	"github.com/ChadR23/sentry-six/internal/observability"
)

// LibraryService is the index surface the handlers need.
type LibraryService interface {
	Refresh(ctx context.Context, onProgress library.ProgressFunc) (*library.Index, error)
	Collections() []*models.DayCollection
	Collection(id string) (*models.DayCollection, bool)
	RefreshedAt() time.Time
}

// LibraryHandler serves index refresh and collection queries.
type LibraryHandler struct {
	svc     LibraryService
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewLibraryHandler creates a library handler. metrics may be nil.
func NewLibraryHandler(svc LibraryService, metrics *observability.Metrics, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{svc: svc, metrics: metrics, logger: logger.With("component", "http")}
}

// CollectionSummary is the list-view projection of a collection.
type CollectionSummary struct {
	ID         string          `json:"id"`
	Day        string          `json:"day"`
	ClipType   models.ClipType `json:"clip_type"`
	EventID    string          `json:"event_id,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Groups     int             `json:"groups"`
	Cameras    []models.Camera `json:"cameras"`
	AnchorMs   *int64          `json:"anchor_ms,omitempty"`
}

func summarize(c *models.DayCollection) CollectionSummary {
	return CollectionSummary{
		ID:         c.ID,
		Day:        c.Day,
		ClipType:   c.ClipType,
		EventID:    c.EventID,
		DurationMs: c.DurationMs,
		Groups:     len(c.Groups),
		Cameras:    c.Cameras(),
		AnchorMs:   c.AnchorMs,
	}
}

// RefreshInput is the input for the refresh endpoint.
type RefreshInput struct{}

// RefreshOutput reports the result of an index rebuild.
type RefreshOutput struct {
	Body struct {
		Groups      int       `json:"groups"`
		Collections int       `json:"collections"`
		RefreshedAt time.Time `json:"refreshed_at"`
	}
}

// ListCollectionsOutput is the collection list response.
type ListCollectionsOutput struct {
	Body struct {
		Collections []CollectionSummary `json:"collections"`
	}
}

// GetCollectionInput selects one collection by ID.
type GetCollectionInput struct {
	ID string `path:"id" doc:"Collection ID"`
}

// GetCollectionOutput carries the full collection.
type GetCollectionOutput struct {
	Body *models.DayCollection
}

// Register registers the library routes with the API.
func (h *LibraryHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "refreshLibrary",
		Method:      "POST",
		Path:        "/api/v1/library/refresh",
		Summary:     "Rescan the footage root",
		Tags:        []string{"Library"},
	}, h.RefreshLibrary)

	huma.Register(api, huma.Operation{
		OperationID: "listCollections",
		Method:      "GET",
		Path:        "/api/v1/collections",
		Summary:     "List indexed collections",
		Tags:        []string{"Library"},
	}, h.ListCollections)

	huma.Register(api, huma.Operation{
		OperationID: "getCollection",
		Method:      "GET",
		Path:        "/api/v1/collections/{id}",
		Summary:     "Get one collection",
		Tags:        []string{"Library"},
	}, h.GetCollection)
}

// RefreshLibrary rebuilds the index from disk.
func (h *LibraryHandler) RefreshLibrary(ctx context.Context, _ *RefreshInput) (*RefreshOutput, error) {
	idx, err := h.svc.Refresh(ctx, nil)
	if err != nil {
		h.logger.Error("library refresh failed", "error", err)
		return nil, huma.Error500InternalServerError("refreshing library", err)
	}

	if h.metrics != nil {
		h.metrics.Collections.Set(float64(len(idx.Collections)))
		files := 0
		for _, g := range idx.Groups {
			files += len(g.FilesByCamera)
		}
		h.metrics.LibraryFiles.Set(float64(files))
	}

	out := &RefreshOutput{}
	out.Body.Groups = len(idx.Groups)
	out.Body.Collections = len(idx.Collections)
	out.Body.RefreshedAt = h.svc.RefreshedAt()
	return out, nil
}

// ListCollections returns summaries of every indexed collection.
func (h *LibraryHandler) ListCollections(_ context.Context, _ *struct{}) (*ListCollectionsOutput, error) {
	cols := h.svc.Collections()
	out := &ListCollectionsOutput{}
	out.Body.Collections = make([]CollectionSummary, 0, len(cols))
	for _, c := range cols {
		out.Body.Collections = append(out.Body.Collections, summarize(c))
	}
	return out, nil
}

// GetCollection returns one collection with its full group timeline.
func (h *LibraryHandler) GetCollection(_ context.Context, input *GetCollectionInput) (*GetCollectionOutput, error) {
	c, ok := h.svc.Collection(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("collection not found")
	}
	return &GetCollectionOutput{Body: c}, nil
}
