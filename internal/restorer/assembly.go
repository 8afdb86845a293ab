package restorer

import (
	"context"
	"time"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
)

// assemblyStrategy restores the chunk stream area by area. An area collects
// chunks until their data reaches the configured size; each container needed
// by the area is then read once and all chunks of the area found in it are
// resolved.
type assemblyStrategy struct {
	fetcher

	area     []*dedup.Chunk
	areaSize int64
	eof      bool
}

func newAssemblyStrategy(f fetcher) (Strategy, error) {
	if f.opts.AssemblyArea <= 0 {
		return nil, errors.Fatalf("invalid assembly area size %d", f.opts.AssemblyArea)
	}
	return &assemblyStrategy{fetcher: f}, nil
}

func (s *assemblyStrategy) Name() string { return StrategyAssembly }

// fill reads chunks from in until the area is full or in is exhausted.
func (s *assemblyStrategy) fill(ctx context.Context, in <-chan *dedup.Chunk) error {
	for !s.eof && s.areaSize < s.opts.AssemblyArea {
		c, ok, err := receive(ctx, in)
		if err != nil {
			return err
		}
		if !ok {
			s.eof = true
			return nil
		}

		s.area = append(s.area, c)
		if c.IsData() {
			s.areaSize += int64(c.Size)
		}
	}
	return nil
}

// assemble resolves all data chunks of the area.
func (s *assemblyStrategy) assemble(ctx context.Context) error {
	unread := make([]*dedup.Chunk, 0, len(s.area))
	for _, c := range s.area {
		if c.IsData() {
			unread = append(unread, c)
		}
	}

	for len(unread) > 0 {
		head := unread[0]
		con, err := s.fetchUnit(ctx, head.ContainerID)
		if err != nil {
			return err
		}
		if !con.Meta.Contains(head.Fingerprint) {
			return errors.Consistency("chunk %v not found in container %d", head.Fingerprint.Str(), head.ContainerID)
		}

		rest := unread[:0]
		for _, c := range unread {
			if !con.Meta.Contains(c.Fingerprint) {
				rest = append(rest, c)
				continue
			}
			if err := s.resolveFrom(c, con); err != nil {
				return err
			}
		}
		debug.Log("container %d resolved %d chunks of the area", con.ID(), len(unread)-len(rest))

		// clear the tail so resolved chunks are not kept alive by the slice
		clear(unread[len(rest):])
		unread = rest
	}
	return nil
}

func (s *assemblyStrategy) Run(ctx context.Context, in <-chan *dedup.Chunk, out chan<- *dedup.Chunk) error {
	for {
		if err := s.fill(ctx, in); err != nil {
			return err
		}
		if len(s.area) == 0 {
			return nil
		}

		start := time.Now()
		err := s.assemble(ctx)
		s.job.ReadChunkTime.Since(start)
		if err != nil {
			return err
		}

		for _, c := range s.area {
			if err := send(ctx, out, c); err != nil {
				return err
			}
		}
		clear(s.area)
		s.area = s.area[:0]
		s.areaSize = 0
	}
}
