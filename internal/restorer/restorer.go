package restorer

import (
	"context"
	"time"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/fs"
	"github.com/fdl66/chongshan/internal/ui/progress"
	restoreui "github.com/fdl66/chongshan/internal/ui/restore"

	"golang.org/x/sync/errgroup"
)

// Restorer restores backup versions from a recipe store and a container
// store.
type Restorer struct {
	recipes dedup.RecipeStore
	store   dedup.ContainerStore
	opts    Options

	// Progress is updated periodically while a restore runs, if set.
	Progress restoreui.ProgressPrinter
	// Printer receives notices, if set.
	Printer progress.Printer
}

// New returns a restorer reading from recipes and store.
func New(recipes dedup.RecipeStore, store dedup.ContainerStore, opts Options) *Restorer {
	return &Restorer{
		recipes: recipes,
		store:   store,
		opts:    opts,
		Printer: &progress.NoopPrinter{},
	}
}

var strategyNotices = map[string]string{
	StrategyLRU:         "restore cache is LRU",
	StrategyOptimal:     "restore cache is OPTIMAL",
	StrategyAssembly:    "restore cache is ASSEMBLY",
	StrategyPattern:     "restore cache is PATTERN",
	StrategyPatternPlus: "restore cache is PATTERN PLUS",
}

// Restore restores the backup version to target. The returned job holds the
// statistics of the run, also when an error is returned after the pipeline
// started.
func (r *Restorer) Restore(ctx context.Context, version int, target string) (*Job, error) {
	if err := r.opts.Check(); err != nil {
		return nil, err
	}
	if target == "" && r.opts.Simulation != SimulationAll {
		return nil, errors.Fatal("no restore target given")
	}

	bv, err := r.recipes.OpenVersion(ctx, version)
	if err != nil {
		return nil, errors.Wrapf(err, "open backup version %d", version)
	}
	defer func() {
		if err := bv.Close(); err != nil {
			debug.Log("closing version %d failed: %v", version, err)
		}
	}()

	job := newJob(bv.ID(), bv.Path(), target, r.opts.Strategy, r.opts.Simulation)
	strategy, err := NewStrategy(r.opts.Strategy, r.opts, r.store, job)
	if err != nil {
		return nil, err
	}
	r.Printer.V("%v", strategyNotices[strategy.Name()])

	if r.opts.Simulation != SimulationAll {
		if err := fs.MkdirAll(target, dirMode); err != nil {
			return nil, errors.Wrapf(err, "create restore target %v", target)
		}
	}

	debug.Log("restore version %d (%v, %d files) to %v", job.ID, job.BackupPath, bv.FileCount(), target)

	recipeQueue := make(chan *dedup.Chunk, r.opts.QueueSize)
	chunkQueue := make(chan *dedup.Chunk, r.opts.QueueSize)
	writer := newFilesWriter(target, r.opts.Simulation, job)

	start := time.Now()
	job.setRunning()

	wg, wctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		defer close(recipeQueue)
		return readRecipe(wctx, bv, recipeQueue, job)
	})
	wg.Go(func() error {
		defer close(chunkQueue)
		return strategy.Run(wctx, recipeQueue, chunkQueue)
	})
	wg.Go(func() error {
		return writer.Run(wctx, chunkQueue)
	})

	r.monitor(job)

	err = wg.Wait()
	job.TotalTime = time.Since(start)
	if err != nil {
		return job, err
	}

	if len(recipeQueue) != 0 || len(chunkQueue) != 0 {
		return job, errors.Consistency("restore finished with %d recipe and %d chunk queue entries left", len(recipeQueue), len(chunkQueue))
	}

	if r.opts.StatsLog != "" {
		if err := appendStatsLog(r.opts.StatsLog, job); err != nil {
			return job, err
		}
	}
	return job, nil
}

// monitor reports progress until the writer marks job done.
func (r *Restorer) monitor(job *Job) {
	updater := progress.NewUpdater(r.opts.ProgressInterval, func(runtime time.Duration, final bool) {
		s := state(job.Progress())
		switch {
		case r.Progress == nil:
			debug.Log("%d bytes, %d chunks, %d files processed", s.BytesWritten, s.ChunksWritten, s.FilesFinished)
		case final:
			r.Progress.Finish(s, runtime)
		default:
			r.Progress.Update(s, runtime)
		}
	})

	<-job.Done()
	updater.Done()
}

func state(p Progress) restoreui.State {
	return restoreui.State{
		BytesWritten:   uint64(p.DataSize),
		ChunksWritten:  uint64(p.ChunkCount),
		FilesFinished:  uint64(p.FileCount),
		ContainerReads: uint64(p.ContainerReads),
		RangeReads:     uint64(p.RangeReads),
		CacheHits:      uint64(p.CacheHits),
	}
}
