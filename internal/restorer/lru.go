package restorer

import (
	"context"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
)

// lruStrategy keeps the most recently used containers. It is the baseline the
// other strategies are measured against.
type lruStrategy struct {
	fetcher
	cache *containerCache
}

func newLRUStrategy(f fetcher) (Strategy, error) {
	cache, err := newContainerCache(f.opts.CacheSize)
	if err != nil {
		return nil, errors.Fatalf("lru cache: %v", err)
	}
	return &lruStrategy{fetcher: f, cache: cache}, nil
}

func (s *lruStrategy) Name() string { return StrategyLRU }

func (s *lruStrategy) Run(ctx context.Context, in <-chan *dedup.Chunk, out chan<- *dedup.Chunk) error {
	defer s.cache.purge()
	return s.passThrough(ctx, in, out, func(c *dedup.Chunk) error {
		return s.resolve(ctx, c)
	})
}

func (s *lruStrategy) resolve(ctx context.Context, c *dedup.Chunk) error {
	con, ok := s.cache.lookup(c.Fingerprint)
	if !ok {
		// the fingerprint may be indexed to another container that was evicted
		con, ok = s.cache.get(c.ContainerID)
	}
	if !ok {
		debug.Log("restore cache: container %v is missed", c.ContainerID)

		var err error
		con, err = s.fetchUnit(ctx, c.ContainerID)
		if err != nil {
			return err
		}
		if !con.Meta.Contains(c.Fingerprint) {
			return errors.Consistency("chunk %v not found in container %d", c.Fingerprint.Str(), c.ContainerID)
		}
		s.cache.insert(con)
	}

	return s.resolveFrom(c, con)
}
