package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/theirongolddev/plotlog/internal/plot"
	"github.com/theirongolddev/plotlog/internal/source"
	"github.com/theirongolddev/plotlog/internal/store"
)

// CachedLoadResult extends LoadResult with cache metadata.
type CachedLoadResult struct {
	LoadResult
	CacheHits int
	Resumed   int
	Reparsed  int
	Removed   int
}

type pending struct {
	file   source.DiscoveredFile
	resume bool
}

// LoadWithCache discovers plot logs, diffs them against the cache and only
// reads what changed. A log that grew since it was cached, and had not yet
// finished, is resumed from its stored snapshot rather than reparsed.
func LoadWithCache(ctx context.Context, dir string, cache *store.Cache, opts []plot.Option, progressFn ProgressFunc) (*CachedLoadResult, error) {
	files, err := source.ScanDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	tracked, err := cache.GetTrackedFiles()
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	result := &CachedLoadResult{LoadResult: LoadResult{TotalFiles: len(files)}}

	// Drop cache entries for logs that disappeared from this directory
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		seen[f.Path] = struct{}{}
	}
	for path := range tracked {
		if _, ok := seen[path]; ok || !within(dir, path) {
			continue
		}
		if err := cache.DeletePlot(path); err != nil {
			return nil, fmt.Errorf("pruning cache: %w", err)
		}
		result.Removed++
	}

	// Diff: partition into unchanged and changed
	var work []pending
	unchanged := make(map[string]struct{})
	for _, f := range files {
		cached, ok := tracked[f.Path]
		switch {
		case ok && cached.MtimeNs == f.ModTime.UnixNano() && cached.SizeBytes == f.Size:
			unchanged[f.Path] = struct{}{}
		case ok && f.Size > cached.SizeBytes:
			work = append(work, pending{file: f, resume: true})
		default:
			work = append(work, pending{file: f})
		}
	}
	result.CacheHits = len(unchanged)

	if len(unchanged) > 0 {
		cached, err := cache.LoadAllPlots()
		if err != nil {
			return nil, fmt.Errorf("loading cached plots: %w", err)
		}
		for _, p := range cached {
			if _, ok := unchanged[p.FilePath]; ok {
				result.Plots = append(result.Plots, p)
				result.ParsedFiles++
			}
		}
	}

	if len(work) == 0 {
		sortPlots(result.Plots)
		return result, nil
	}

	results := make([]parseResult, len(work))
	resumed := make([]bool, len(work))
	forEach(len(work), func(idx int) {
		w := work[idx]
		if w.resume {
			if snap, ok := ResumableSnapshot(cache, w.file.Path); ok {
				results[idx] = resumeFile(ctx, w.file.Path, snap, opts)
				resumed[idx] = true
				return
			}
		}
		results[idx] = parseFile(ctx, w.file.Path, opts)
	}, func(n int) {
		if progressFn != nil {
			progressFn(n+result.CacheHits, result.TotalFiles)
		}
	})

	// Collect and cache results
	for i, pr := range results {
		if resumed[i] {
			result.Resumed++
		} else {
			result.Reparsed++
		}
		if pr.Err != nil {
			result.FileErrors++
		} else {
			result.ParsedFiles++
		}
		result.Plots = append(result.Plots, pr.Stats)

		var snap []byte
		if pr.HasSnapshot {
			if snap, err = pr.Snapshot.Encode(); err != nil {
				slog.Warn("encoding plot snapshot", "path", pr.Stats.FilePath, "err", err)
			}
		}
		f := work[i].file
		if err := cache.SavePlot(pr.Stats, snap, f.ModTime.UnixNano(), f.Size); err != nil {
			slog.Warn("caching plot", "path", f.Path, "err", err)
		}
	}

	sortPlots(result.Plots)
	return result, nil
}

// ResumableSnapshot returns a resumable snapshot, or false if the cached state
// cannot be continued and the log must be read from the start.
func ResumableSnapshot(cache *store.Cache, path string) (plot.Snapshot, bool) {
	data, err := cache.LoadSnapshot(path)
	if err != nil || len(data) == 0 {
		return plot.Snapshot{}, false
	}
	snap, err := plot.DecodeSnapshot(data)
	if err != nil {
		slog.Debug("discarding cached snapshot", "path", path, "err", err)
		return plot.Snapshot{}, false
	}
	if snap.State.Errored || snap.State.Finished {
		return plot.Snapshot{}, false
	}
	return snap, true
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "plotlog")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "plotlog")
}

// CachePath returns the full path to the cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "plots.db")
}
