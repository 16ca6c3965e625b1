package library

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ChadR23/sentry-six/internal/models"
)

// Scanner walks a footage root and produces file descriptors for indexing.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a scanner.
func NewScanner(logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger.With("component", "scanner")}
}

// Scan walks root and returns descriptors for every regular file found.
// Hidden files and directories are skipped. Unreadable subtrees produce a
// warning and are skipped; only a failure at the root itself is fatal.
func (s *Scanner) Scan(ctx context.Context, root string) ([]models.FileDescriptor, error) {
	var out []models.FileDescriptor
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(rootAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == rootAbs {
				return err
			}
			s.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != rootAbs {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			s.logger.Warn("stat failed", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(rootAbs, path)
		if err != nil {
			return nil
		}
		out = append(out, models.FileDescriptor{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("scan complete", "root", rootAbs, "files", len(out))
	return out, nil
}
