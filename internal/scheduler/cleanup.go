// Package scheduler runs the periodic maintenance of serve mode: it
// removes stale export work directories and prunes old job history.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// HistoryPruner deletes terminal job records completed before a cutoff.
// A nil pruner disables history pruning.
type HistoryPruner interface {
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Cleaner removes leftover job artifacts. Work directories are normally
// deleted when their job terminates; the cleaner catches what crashes
// and kills leave behind.
type Cleaner struct {
	tempDir   string
	retention time.Duration
	pruner    HistoryPruner
	logger    *slog.Logger

	cron *cron.Cron
}

// NewCleaner creates a cleaner for tempDir. Artifacts older than
// retention are removed on each run.
func NewCleaner(tempDir string, retention time.Duration, pruner HistoryPruner, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		tempDir:   tempDir,
		retention: retention,
		pruner:    pruner,
		logger:    logger.With("component", "cleaner"),
	}
}

// Start schedules RunOnce on the cron expression and begins running.
func (c *Cleaner) Start(spec string) error {
	cr := cron.New()
	_, err := cr.AddFunc(spec, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.logger.Warn("scheduled cleanup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup cron %q: %w", spec, err)
	}
	cr.Start()
	c.cron = cr
	c.logger.Info("cleanup scheduled", "cron", spec, "retention", c.retention)
	return nil
}

// Stop halts the schedule and waits for a running cleanup to finish.
func (c *Cleaner) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
}

// RunOnce performs a single cleanup pass.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-c.retention)

	removed, err := c.sweepWorkDirs(cutoff)
	if err != nil {
		return err
	}

	var pruned int64
	if c.pruner != nil {
		pruned, err = c.pruner.DeleteFinishedBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pruning job history: %w", err)
		}
	}

	if removed > 0 || pruned > 0 {
		c.logger.Info("cleanup pass complete", "dirs_removed", removed, "records_pruned", pruned)
	}
	return nil
}

// sweepWorkDirs removes job work directories last modified before the
// cutoff. Only `job-` prefixed directories are touched.
func (c *Cleaner) sweepWorkDirs(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(c.tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading temp dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "job-") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(c.tempDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			c.logger.Warn("removing stale work dir failed", "dir", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
