package restorer

import (
	"context"
	"sort"
	"time"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/segment"
)

// Strategy names.
const (
	StrategyLRU         = "lru"
	StrategyOptimal     = "optimal"
	StrategyAssembly    = "assembly"
	StrategyPattern     = "pattern"
	StrategyPatternPlus = "pattern-plus"
)

// A Strategy is the fetch stage of a restore. Run resolves the data chunks
// received on in and sends every chunk on out, in the order received, with
// file markers passed through unchanged. Run returns once in is closed and
// all chunks have been forwarded; the caller closes out.
type Strategy interface {
	Name() string
	Run(ctx context.Context, in <-chan *dedup.Chunk, out chan<- *dedup.Chunk) error
}

// fetcher holds what all strategies share.
type fetcher struct {
	store        dedup.ContainerStore
	job          *Job
	opts         Options
	metadataOnly bool
}

type strategyFactory func(f fetcher) (Strategy, error)

var strategies = map[string]strategyFactory{
	StrategyLRU:         newLRUStrategy,
	StrategyOptimal:     newOptimalStrategy,
	StrategyAssembly:    newAssemblyStrategy,
	StrategyPattern:     newPatternStrategy,
	StrategyPatternPlus: newPatternPlusStrategy,
}

// StrategyNames returns the names of all strategies.
func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStrategy returns the strategy called name. Container reads are accounted
// in job.
func NewStrategy(name string, opts Options, store dedup.ContainerStore, job *Job) (Strategy, error) {
	factory, ok := strategies[name]
	if !ok {
		return nil, errors.Fatalf("invalid restore strategy %q, valid strategies are %v", name, StrategyNames())
	}

	debug.Log("using strategy %v, simulation %v", name, opts.Simulation)
	return factory(fetcher{
		store:        store,
		job:          job,
		opts:         opts,
		metadataOnly: opts.Simulation.MetadataOnly(),
	})
}

// send hands c over to the next stage.
func send(ctx context.Context, out chan<- *dedup.Chunk, c *dedup.Chunk) error {
	select {
	case out <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// receive returns the next chunk from in; ok is false once in is closed.
func receive(ctx context.Context, in <-chan *dedup.Chunk) (c *dedup.Chunk, ok bool, err error) {
	select {
	case c, ok = <-in:
		return c, ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// fetchUnit loads container id; in metadata-only mode just its metadata.
// Every call is accounted as a container read.
func (f *fetcher) fetchUnit(ctx context.Context, id dedup.ContainerID) (*dedup.Container, error) {
	f.job.ContainerReads.Inc()

	if f.metadataOnly {
		meta, err := f.store.FetchContainerMeta(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch metadata of container %d", id)
		}
		return &dedup.Container{Meta: meta}, nil
	}

	con, err := f.store.FetchContainer(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch container %d", id)
	}
	f.job.BytesRead.Add(int64(len(con.Data)))
	return con, nil
}

// resolveFrom sets the data of c from con. It fails if con does not hold c or
// the stored length differs from the recipe.
func (f *fetcher) resolveFrom(c *dedup.Chunk, con *dedup.Container) error {
	e, _, ok := con.Meta.Lookup(c.Fingerprint)
	if !ok {
		return errors.Consistency("chunk %v not found in container %d", c.Fingerprint.Str(), con.ID())
	}
	if e.Length != c.Size {
		return errors.Consistency("chunk %v has %d bytes in container %d, recipe says %d", c.Fingerprint.Str(), e.Length, con.ID(), c.Size)
	}
	if f.metadataOnly {
		return nil
	}

	data, ok := con.Chunk(c.Fingerprint)
	if !ok {
		return errors.Consistency("chunk %v outside the data of container %d", c.Fingerprint.Str(), con.ID())
	}
	c.Data = data
	return nil
}

// passThrough runs fn for every data chunk received on in and forwards every
// chunk to out.
func (f *fetcher) passThrough(ctx context.Context, in <-chan *dedup.Chunk, out chan<- *dedup.Chunk, fn func(*dedup.Chunk) error) error {
	for {
		c, ok, err := receive(ctx, in)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if c.IsData() {
			start := time.Now()
			err := fn(c)
			f.job.ReadChunkTime.Since(start)
			if err != nil {
				return err
			}
		}

		if err := send(ctx, out, c); err != nil {
			return err
		}
	}
}

func newSegmenter(opts Options) (dedup.Segmenter, error) {
	return segment.New(opts.Segment)
}
