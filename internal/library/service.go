package library

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ChadR23/sentry-six/internal/models"
)

// Service owns the library index lifecycle: scanning the footage root,
// building the index, and refreshing it when the watcher reports new
// footage. All accessors are safe for concurrent use.
type Service struct {
	root    string
	scanner *Scanner
	indexer *Indexer
	logger  *slog.Logger

	mu        sync.RWMutex
	index     *Index
	refreshed time.Time
}

// NewService creates a library service for the footage root.
func NewService(root string, scanner *Scanner, indexer *Indexer, logger *slog.Logger) *Service {
	return &Service{
		root:    root,
		scanner: scanner,
		indexer: indexer,
		logger:  logger.With("component", "library"),
	}
}

// Refresh rescans the footage root and swaps in the new index.
func (s *Service) Refresh(ctx context.Context, onProgress ProgressFunc) (*Index, error) {
	files, err := s.scanner.Scan(ctx, s.root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.root, err)
	}
	idx, err := s.indexer.BuildIndex(ctx, files, onProgress)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.index = idx
	s.refreshed = time.Now()
	s.mu.Unlock()
	return idx, nil
}

// Index returns the current index, or nil before the first refresh.
func (s *Service) Index() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// RefreshedAt returns when the index was last rebuilt.
func (s *Service) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshed
}

// Collections returns the indexed collections, newest day first.
func (s *Service) Collections() []*models.DayCollection {
	idx := s.Index()
	if idx == nil {
		return nil
	}
	return idx.Collections
}

// Collection returns one collection by ID.
func (s *Service) Collection(id string) (*models.DayCollection, bool) {
	idx := s.Index()
	if idx == nil {
		return nil, false
	}
	for _, c := range idx.Collections {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Watch runs the footage watcher until ctx is done, refreshing the index
// on change. Refresh failures are logged and the watch continues.
func (s *Service) Watch(ctx context.Context) error {
	w := NewWatcher(s.root, func() {
		if _, err := s.Refresh(ctx, nil); err != nil {
			s.logger.Warn("refresh after footage change failed", "error", err)
		}
	}, s.logger)
	return w.Run(ctx)
}
