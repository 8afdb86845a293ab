package restorer

import (
	"context"
	"math"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
)

// optimalStrategy caches containers and, when the cache is full, evicts the
// container whose next reference lies farthest ahead. The future is known up
// to a window of chunk references read ahead from the recipe queue.
type optimalStrategy struct {
	fetcher

	cache map[dedup.ContainerID]*dedup.Container

	// window holds the chunks read ahead, file markers included.
	window []*dedup.Chunk
	// refs is the number of data chunks in window.
	refs int
	// future lists the window positions referencing each container, in
	// increasing order.
	future map[dedup.ContainerID][]int64
	// seq is the position assigned to the next data chunk entering the
	// window.
	seq int64

	eof bool
}

func newOptimalStrategy(f fetcher) (Strategy, error) {
	if f.opts.CacheSize <= 0 || f.opts.OptimalWindow <= 0 {
		return nil, errors.Fatalf("invalid optimal cache size %d or window %d", f.opts.CacheSize, f.opts.OptimalWindow)
	}
	return &optimalStrategy{
		fetcher: f,
		cache:   make(map[dedup.ContainerID]*dedup.Container),
		future:  make(map[dedup.ContainerID][]int64),
	}, nil
}

func (s *optimalStrategy) Name() string { return StrategyOptimal }

// fill reads ahead until the window holds the configured number of chunk
// references or the recipe queue is exhausted.
func (s *optimalStrategy) fill(ctx context.Context, in <-chan *dedup.Chunk) error {
	for !s.eof && s.refs < s.opts.OptimalWindow {
		c, ok, err := receive(ctx, in)
		if err != nil {
			return err
		}
		if !ok {
			s.eof = true
			return nil
		}

		s.window = append(s.window, c)
		if c.IsData() {
			s.future[c.ContainerID] = append(s.future[c.ContainerID], s.seq)
			s.seq++
			s.refs++
		}
	}
	return nil
}

// pop removes the first chunk from the window.
func (s *optimalStrategy) pop() *dedup.Chunk {
	c := s.window[0]
	s.window[0] = nil
	s.window = s.window[1:]

	if c.IsData() {
		s.refs--
		refs := s.future[c.ContainerID][1:]
		if len(refs) == 0 {
			delete(s.future, c.ContainerID)
		} else {
			s.future[c.ContainerID] = refs
		}
	}
	return c
}

// victim returns the cached container referenced farthest in the future.
func (s *optimalStrategy) victim() dedup.ContainerID {
	var (
		victim   dedup.ContainerID
		farthest int64 = -1
	)
	for id := range s.cache {
		next := int64(math.MaxInt64)
		if refs, ok := s.future[id]; ok {
			next = refs[0]
		}
		// ties are broken by container id for reproducible eviction
		if next > farthest || (next == farthest && id < victim) {
			victim, farthest = id, next
		}
	}
	return victim
}

func (s *optimalStrategy) resolve(ctx context.Context, c *dedup.Chunk) error {
	con, ok := s.cache[c.ContainerID]
	if !ok {
		if len(s.cache) >= s.opts.CacheSize {
			id := s.victim()
			debug.Log("evict container %v", id)
			delete(s.cache, id)
		}

		var err error
		con, err = s.fetchUnit(ctx, c.ContainerID)
		if err != nil {
			return err
		}
		s.cache[c.ContainerID] = con
	}
	return s.resolveFrom(c, con)
}

func (s *optimalStrategy) Run(ctx context.Context, in <-chan *dedup.Chunk, out chan<- *dedup.Chunk) error {
	defer clear(s.cache)

	for {
		if err := s.fill(ctx, in); err != nil {
			return err
		}
		if len(s.window) == 0 {
			return nil
		}

		c := s.pop()
		if c.IsData() {
			if err := s.resolve(ctx, c); err != nil {
				return err
			}
		}

		if err := send(ctx, out, c); err != nil {
			return err
		}
	}
}
