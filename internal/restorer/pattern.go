package restorer

import (
	"context"
	"time"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/lru"
)

// A mark decides whether a position of a container listing is read.
type mark uint8

const (
	markSkip mark = iota
	// markNear is a chunk wanted by the current segment.
	markNear
	// markFar is a chunk wanted by the lookahead segment, or a gap read
	// through in single-segment mode.
	markFar
	// markMergedGap is a gap read through in merged mode.
	markMergedGap
)

// generatePattern marks every position of listing whose fingerprint is wanted
// by near or, if non-nil, far. Chunks wanted by both are marked near. Gaps of
// at most wildcard positions between marked positions are then marked as
// well.
func generatePattern(listing []dedup.MetaEntry, near, far *unreadList, wildcard int) []mark {
	pattern := make([]mark, len(listing))

	wanted := make(map[dedup.Fingerprint]mark)
	gap := markFar
	if far != nil {
		gap = markMergedGap
		for fp := range far.fingerprints() {
			wanted[fp] = markFar
		}
	}
	// near overwrites far
	for fp := range near.fingerprints() {
		wanted[fp] = markNear
	}

	for i, e := range listing {
		pattern[i] = wanted[e.Fingerprint]
	}

	fillWildcard(pattern, wildcard, gap)
	return pattern
}

// fillWildcard marks runs of unmarked positions no longer than threshold that
// have marked positions on both sides.
func fillWildcard(pattern []mark, threshold int, fill mark) {
	i := 0
	// leading gap is not bounded on the left
	for i < len(pattern) && pattern[i] == markSkip {
		i++
	}

	for i < len(pattern) {
		if pattern[i] != markSkip {
			i++
			continue
		}

		start := i
		for i < len(pattern) && pattern[i] == markSkip {
			i++
		}
		if i == len(pattern) {
			// trailing gap
			return
		}
		if i-start <= threshold {
			for j := start; j < i; j++ {
				pattern[j] = fill
			}
		}
	}
}

// countMarked returns the number of marked positions.
func countMarked(pattern []mark) int {
	n := 0
	for _, m := range pattern {
		if m != markSkip {
			n++
		}
	}
	return n
}

// allocateBuffer returns one buffer large enough for all marked positions.
func allocateBuffer(listing []dedup.MetaEntry, pattern []mark) []byte {
	size := 0
	for i, e := range listing {
		if pattern[i] != markSkip {
			size += e.Length
		}
	}
	return make([]byte, size)
}

// readRun is one contiguous range of marked positions.
type readRun struct {
	offset int64
	length int
	first  int
	last   int // exclusive
}

// readRuns splits the marked positions into runs that are contiguous both in
// the listing and in the container data.
func readRuns(listing []dedup.MetaEntry, pattern []mark) []readRun {
	var runs []readRun
	var cur *readRun
	for i, e := range listing {
		if pattern[i] == markSkip {
			cur = nil
			continue
		}
		if cur != nil && cur.offset+int64(cur.length) == e.Offset {
			cur.length += e.Length
			cur.last = i + 1
			continue
		}
		runs = append(runs, readRun{offset: e.Offset, length: e.Length, first: i, last: i + 1})
		cur = &runs[len(runs)-1]
	}
	return runs
}

// readChunk is a chunk read by a patterned read. data is nil in
// metadata-only mode.
type readChunk struct {
	entry dedup.MetaEntry
	data  []byte
}

// cachedChunk is an entry of the chunk content cache.
type cachedChunk struct {
	size int
	data []byte
}

// patternStrategy slides a window of two segments over the chunk stream. For
// the first unresolved chunk of the current segment it reads all chunks of
// that chunk's container wanted by the window, coalescing them into as few
// ranged reads as the wildcard allows.
type patternStrategy struct {
	fetcher
	segmenter dedup.Segmenter

	meta *lru.Cache[dedup.ContainerID, *dedup.ContainerMeta]

	// chunks is the content cache of the pattern strategy.
	chunks *lru.Cache[dedup.Fingerprint, cachedChunk]
	// containers is the content cache of the pattern-plus strategy.
	containers *containerCache
	plus       bool

	// read indexes the chunks of the last patterned read.
	read map[dedup.Fingerprint]readChunk

	eof bool
}

func newPatternStrategy(f fetcher) (Strategy, error) {
	return newPatternWindow(f, false)
}

func newPatternPlusStrategy(f fetcher) (Strategy, error) {
	return newPatternWindow(f, true)
}

func newPatternWindow(f fetcher, plus bool) (*patternStrategy, error) {
	seg, err := newSegmenter(f.opts)
	if err != nil {
		return nil, err
	}

	meta, err := lru.New[dedup.ContainerID, *dedup.ContainerMeta](f.opts.MetaCacheSize, nil)
	if err != nil {
		return nil, errors.Fatalf("metadata cache: %v", err)
	}

	s := &patternStrategy{
		fetcher:   f,
		segmenter: seg,
		meta:      meta,
		plus:      plus,
		read:      make(map[dedup.Fingerprint]readChunk),
	}

	if f.opts.ContentCacheSize > 0 {
		if plus {
			s.containers, err = newContainerCache(f.opts.ContentCacheSize)
		} else {
			s.chunks, err = lru.New[dedup.Fingerprint, cachedChunk](f.opts.ContentCacheSize, nil)
		}
		if err != nil {
			return nil, errors.Fatalf("content cache: %v", err)
		}
	}
	return s, nil
}

func (s *patternStrategy) Name() string {
	if s.plus {
		return StrategyPatternPlus
	}
	return StrategyPattern
}

// nextSegment collects chunks from in until the segmenter emits a segment.
// It returns nil once in is exhausted and no chunks are left.
func (s *patternStrategy) nextSegment(ctx context.Context, in <-chan *dedup.Chunk) (*dedup.Segment, error) {
	for !s.eof {
		c, ok, err := receive(ctx, in)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.eof = true
			break
		}
		if seg := s.segmenter.Add(c); seg != nil {
			return seg, nil
		}
	}
	return s.segmenter.Flush(), nil
}

func (s *patternStrategy) Run(ctx context.Context, in <-chan *dedup.Chunk, out chan<- *dedup.Chunk) error {
	defer func() {
		s.meta.Purge()
		if s.chunks != nil {
			s.chunks.Purge()
		}
		if s.containers != nil {
			s.containers.purge()
		}
	}()

	s1, err := s.nextSegment(ctx, in)
	if err != nil {
		return err
	}
	u1 := newUnreadList(s1)

	for s1 != nil {
		s2, err := s.nextSegment(ctx, in)
		if err != nil {
			return err
		}
		u2 := newUnreadList(s2)

		start := time.Now()
		if err := s.resolveWindow(ctx, s1, u1, u2); err != nil {
			return err
		}
		s.job.ReadChunkTime.Since(start)

		debug.Log("send segment %d with %d chunks", s1.ID, s1.ChunkCount)
		for _, c := range s1.Chunks {
			if err := send(ctx, out, c); err != nil {
				return err
			}
		}

		s1, u1 = s2, u2
	}

	return nil
}

// resolveWindow resolves every chunk of the current segment s1, given its
// unread list u1 and the unread list u2 of the lookahead segment.
func (s *patternStrategy) resolveWindow(ctx context.Context, s1 *dedup.Segment, u1, u2 *unreadList) error {
	if err := s.resolveCached(u1); err != nil {
		return err
	}
	if err := s.resolveCached(u2); err != nil {
		return err
	}

	debug.Log("segment %d: %d of %d chunks to read, lookahead %d", s1.ID, u1.Len(), s1.ChunkCount, u2.Len())

	for u1.Len() > 0 {
		head := u1.head()
		if err := s.fetchFor(ctx, head, s1, u1, u2); err != nil {
			return err
		}
		if u1.Len() > 0 && u1.head() == head {
			return errors.Consistency("chunk %v of container %d not resolved by its container", head.Fingerprint.Str(), head.ContainerID)
		}
	}
	return nil
}

// containerMeta returns the metadata of container id from the metadata cache,
// loading it on a miss.
func (s *patternStrategy) containerMeta(ctx context.Context, id dedup.ContainerID, fp dedup.Fingerprint) (*dedup.ContainerMeta, error) {
	if meta, ok := s.meta.Get(id); ok {
		return meta, nil
	}

	debug.Log("meta cache: container %v is missed", id)
	s.job.MetaReads.Inc()
	meta, err := s.store.FetchContainerMeta(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch metadata of container %d", id)
	}
	if !meta.Contains(fp) {
		return nil, errors.Consistency("chunk %v not found in container %d", fp.Str(), id)
	}
	s.meta.Add(id, meta, nil)
	return meta, nil
}

// useMerged reports whether the lookahead segment joins the decision. The
// current segment alone decides while at least half of it is unresolved.
func useMerged(s1 *dedup.Segment, u1, u2 *unreadList) bool {
	return !(2*u1.Len() >= s1.ChunkCount || u2.Len() == 0)
}

// fetchFor reads the container of head and resolves the chunks of the window
// found in it.
func (s *patternStrategy) fetchFor(ctx context.Context, head *dedup.Chunk, s1 *dedup.Segment, u1, u2 *unreadList) error {
	meta, err := s.containerMeta(ctx, head.ContainerID, head.Fingerprint)
	if err != nil {
		return err
	}
	if !meta.Contains(head.Fingerprint) {
		return errors.Consistency("chunk %v not found in container %d", head.Fingerprint.Str(), head.ContainerID)
	}

	merged := useMerged(s1, u1, u2)
	var far *unreadList
	if merged {
		far = u2
	}
	pattern := generatePattern(meta.Entries, u1, far, s.opts.Wildcard)

	marked := countMarked(pattern)
	if marked == 0 {
		return errors.Consistency("empty pattern for chunk %v in container %d", head.Fingerprint.Str(), head.ContainerID)
	}

	lists := []*unreadList{u1}
	if merged {
		lists = append(lists, u2)
	}

	if s.plus && s.shouldPrefetch(marked, meta.ChunkCount()) {
		return s.prefetch(ctx, meta, lists)
	}

	if err := s.readByPattern(ctx, meta, pattern); err != nil {
		return err
	}
	return s.assign(lists)
}

// readByPattern reads all marked chunks of the container with one ranged
// read per run and indexes them in s.read.
func (s *patternStrategy) readByPattern(ctx context.Context, meta *dedup.ContainerMeta, pattern []mark) error {
	clear(s.read)
	s.job.ContainerReads.Inc()

	var buf []byte
	if !s.metadataOnly {
		buf = allocateBuffer(meta.Entries, pattern)
	}

	bufOffset := 0
	for _, run := range readRuns(meta.Entries, pattern) {
		var data []byte
		if !s.metadataOnly {
			data = buf[bufOffset : bufOffset+run.length]
			debug.Log("read %d bytes at offset %d of container %d", run.length, run.offset, meta.ID)
			if err := s.store.ReadRange(ctx, meta.ID, run.offset, data); err != nil {
				return errors.Wrapf(err, "read container %d", meta.ID)
			}
			s.job.BytesRead.Add(int64(run.length))
		}
		s.job.RangeReads.Inc()

		pos := 0
		for i := run.first; i < run.last; i++ {
			e := meta.Entries[i]
			rc := readChunk{entry: e}
			if data != nil {
				rc.data = data[pos : pos+e.Length]
			}
			s.read[e.Fingerprint] = rc
			pos += e.Length
		}
		bufOffset += run.length
	}
	return nil
}

// assign resolves every chunk in lists that was read by the last patterned
// read. Resolved chunks get a copy of their data and are added to the content
// cache.
func (s *patternStrategy) assign(lists []*unreadList) error {
	for _, u := range lists {
		err := u.each(func(c *dedup.Chunk) (bool, error) {
			rc, ok := s.read[c.Fingerprint]
			if !ok {
				return false, nil
			}
			if rc.entry.Length != c.Size {
				return false, errors.Consistency("chunk %v has %d bytes in container %d, recipe says %d",
					c.Fingerprint.Str(), rc.entry.Length, c.ContainerID, c.Size)
			}
			if rc.data != nil {
				c.Data = append([]byte(nil), rc.data...)
			}
			s.cacheChunk(c)
			return true, nil
		})
		if err != nil {
			return err
		}
	}
	clear(s.read)
	return nil
}

func (s *patternStrategy) cacheChunk(c *dedup.Chunk) {
	if s.chunks == nil || s.chunks.Contains(c.Fingerprint) {
		return
	}
	var data []byte
	if c.Data != nil {
		data = append([]byte(nil), c.Data...)
	}
	s.chunks.Add(c.Fingerprint, cachedChunk{size: c.Size, data: data}, nil)
}

// resolveCached resolves the chunks of u held by the content cache. The
// cached bytes are copied, cache entries stay owned by the cache.
func (s *patternStrategy) resolveCached(u *unreadList) error {
	if s.chunks == nil && s.containers == nil {
		return nil
	}

	return u.each(func(c *dedup.Chunk) (bool, error) {
		if s.chunks != nil {
			cc, ok := s.chunks.Get(c.Fingerprint)
			if !ok {
				return false, nil
			}
			if cc.size != c.Size {
				return false, errors.Consistency("cached chunk %v has %d bytes, recipe says %d", c.Fingerprint.Str(), cc.size, c.Size)
			}
			if cc.data != nil {
				c.Data = append([]byte(nil), cc.data...)
			}
			s.job.CacheHits.Inc()
			return true, nil
		}

		con, ok := s.containers.lookup(c.Fingerprint)
		if !ok {
			return false, nil
		}
		if err := s.resolveFrom(c, con); err != nil {
			return false, err
		}
		s.job.CacheHits.Inc()
		return true, nil
	})
}
