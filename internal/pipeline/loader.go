package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/theirongolddev/plotlog/internal/engine"
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/plot"
	"github.com/theirongolddev/plotlog/internal/source"
)

// LoadResult holds the output of the full data loading pipeline.
type LoadResult struct {
	Plots       []model.PlotStats
	TotalFiles  int
	ParsedFiles int
	FileErrors  int
}

// ProgressFunc is called during loading to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// parseResult is the outcome of parsing one plot log.
type parseResult struct {
	Stats       model.PlotStats
	Snapshot    plot.Snapshot
	HasSnapshot bool
	Err         error
}

// Load discovers and parses all plot logs in dir.
// It uses a bounded worker pool for parallel parsing.
func Load(ctx context.Context, dir string, opts []plot.Option, progressFn ProgressFunc) (*LoadResult, error) {
	files, err := source.ScanDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	result := &LoadResult{TotalFiles: len(files)}
	if len(files) == 0 {
		return result, nil
	}

	results := make([]parseResult, len(files))
	forEach(len(files), func(idx int) {
		results[idx] = parseFile(ctx, files[idx].Path, opts)
	}, func(n int) {
		if progressFn != nil {
			progressFn(n, len(files))
		}
	})

	for _, pr := range results {
		if pr.Err != nil {
			result.FileErrors++
		} else {
			result.ParsedFiles++
		}
		result.Plots = append(result.Plots, pr.Stats)
	}

	sortPlots(result.Plots)
	return result, nil
}

// parseFile runs a full one-shot parse. A failed parse still reports the
// stats gathered up to the failure, in the errored state.
func parseFile(ctx context.Context, path string, opts []plot.Option) parseResult {
	p := plot.New(path, opts...)
	return finish(ctx, p, func() (*engine.Completion[model.Record], error) { return p.Parse(ctx) })
}

// resumeFile restores snap and reads only what was appended since.
func resumeFile(ctx context.Context, path string, snap plot.Snapshot, opts []plot.Option) parseResult {
	p := plot.New(path, opts...)
	if err := p.Restore(snap); err != nil {
		return parseResult{Stats: p.Stats(), Err: err}
	}
	return finish(ctx, p, func() (*engine.Completion[model.Record], error) { return p.Continue(ctx) })
}

func finish(ctx context.Context, p *plot.Parser, run func() (*engine.Completion[model.Record], error)) parseResult {
	c, err := run()
	if err == nil {
		_, err = c.Wait(ctx)
	}
	pr := parseResult{Stats: p.Stats(), Err: err}
	pr.Snapshot, pr.HasSnapshot = p.Snapshot()
	return pr
}

// forEach runs fn for 0..n-1 on a bounded worker pool. done is called
// after each item with the number completed so far.
func forEach(n int, fn func(idx int), done func(completed int)) {
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers < 1 {
		numWorkers = 4
	}
	if numWorkers > n {
		numWorkers = n
	}

	work := make(chan int, n)
	for i := range n {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	var processed atomic.Int64
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				fn(idx)
				done(int(processed.Add(1)))
			}
		}()
	}
	wg.Wait()
}
