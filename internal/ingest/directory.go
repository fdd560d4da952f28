// Package ingest finds receipt images on disk and feeds them to the batch queue.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/async"
)

type DirStats struct {
	Scanned  uint32
	Matched  uint32
	Enqueued uint32
	Failed   uint32
}

// ScanImages walks root and returns image files in lexical order, skipping
// hidden files and directories if requested. Unreadable entries are counted
// as failures and the walk continues.
func ScanImages(ctx context.Context, root string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var (
		paths []string
		stats DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.IsImageExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}

// IngestDirectory enqueues every image under root on q.
func IngestDirectory(ctx context.Context, q async.Queue, root string, skipHidden bool) (DirStats, error) {
	paths, stats, err := ScanImages(ctx, root, skipHidden)
	if err != nil {
		return stats, err
	}
	for _, p := range paths {
		if err := q.Enqueue(ctx, async.Job{Path: p}); err != nil {
			stats.Failed++
			return stats, fmt.Errorf("enqueue %s: %w", p, err)
		}
		stats.Enqueued++
	}
	return stats, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
