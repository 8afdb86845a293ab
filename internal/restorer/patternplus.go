package restorer

import (
	"context"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
)

// shouldPrefetch reports whether a container with marked of total positions
// wanted is fetched as a whole. It requires the container content cache.
func (s *patternStrategy) shouldPrefetch(marked, total int) bool {
	if s.containers == nil {
		return false
	}
	return marked*100 > s.opts.PrefetchPercent*total
}

// prefetch fetches the complete container described by meta, adds it to the
// content cache and resolves all chunks of lists stored in it. In
// metadata-only mode the cached container carries the metadata already
// loaded.
func (s *patternStrategy) prefetch(ctx context.Context, meta *dedup.ContainerMeta, lists []*unreadList) error {
	debug.Log("prefetch container %d", meta.ID)

	var con *dedup.Container
	if s.metadataOnly {
		s.job.ContainerReads.Inc()
		con = &dedup.Container{Meta: meta}
	} else {
		var err error
		con, err = s.fetchUnit(ctx, meta.ID)
		if err != nil {
			return err
		}
	}
	s.containers.insert(con)

	for _, u := range lists {
		err := u.each(func(c *dedup.Chunk) (bool, error) {
			if c.ContainerID != con.ID() || !con.Meta.Contains(c.Fingerprint) {
				return false, nil
			}
			if err := s.resolveFrom(c, con); err != nil {
				return false, err
			}
			return true, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
