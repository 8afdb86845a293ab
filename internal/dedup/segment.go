package dedup

// Segment is a run of consecutive chunks of the restore stream, file markers
// included. It is the lookahead unit of the pattern strategies.
type Segment struct {
	ID     int64
	Chunks []*Chunk

	// ChunkCount is the number of data chunks in Chunks.
	ChunkCount int
}

// NewSegment returns an empty segment with the given id.
func NewSegment(id int64) *Segment {
	return &Segment{ID: id}
}

// Append adds c to the end of the segment.
func (s *Segment) Append(c *Chunk) {
	s.Chunks = append(s.Chunks, c)
	if c.IsData() {
		s.ChunkCount++
	}
}

// Len returns the number of chunks in the segment, file markers included.
func (s *Segment) Len() int {
	return len(s.Chunks)
}
