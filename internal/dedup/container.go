package dedup

import "fmt"

// MetaEntry locates one chunk inside a container's data section.
type MetaEntry struct {
	Fingerprint Fingerprint
	Offset      int64
	Length      int
}

// ContainerMeta describes the chunks of a container in container order.
type ContainerMeta struct {
	ID      ContainerID
	Entries []MetaEntry

	index map[Fingerprint]int
}

// NewContainerMeta builds the lookup index for entries.
func NewContainerMeta(id ContainerID, entries []MetaEntry) *ContainerMeta {
	m := &ContainerMeta{
		ID:      id,
		Entries: entries,
		index:   make(map[Fingerprint]int, len(entries)),
	}
	for i, e := range entries {
		// the first occurrence wins, later duplicates are unreachable
		if _, ok := m.index[e.Fingerprint]; !ok {
			m.index[e.Fingerprint] = i
		}
	}
	return m
}

// Lookup returns the entry for fp and its position in the container.
func (m *ContainerMeta) Lookup(fp Fingerprint) (MetaEntry, int, bool) {
	pos, ok := m.index[fp]
	if !ok {
		return MetaEntry{}, -1, false
	}
	return m.Entries[pos], pos, true
}

// Contains reports whether fp is stored in the container.
func (m *ContainerMeta) Contains(fp Fingerprint) bool {
	_, ok := m.index[fp]
	return ok
}

// ChunkCount returns the number of chunks in the container.
func (m *ContainerMeta) ChunkCount() int {
	return len(m.Entries)
}

// DataSize returns the size of the data section.
func (m *ContainerMeta) DataSize() int64 {
	var size int64
	for _, e := range m.Entries {
		if end := e.Offset + int64(e.Length); end > size {
			size = end
		}
	}
	return size
}

func (m *ContainerMeta) String() string {
	return fmt.Sprintf("<ContainerMeta %d, %d chunks>", m.ID, len(m.Entries))
}

// Container is a container's metadata plus its data section. Data is nil for
// containers loaded in metadata-only mode.
type Container struct {
	Meta *ContainerMeta
	Data []byte
}

// ID returns the container id.
func (c *Container) ID() ContainerID {
	return c.Meta.ID
}

// Chunk returns a copy of the content of fp. The copy keeps the returned slice
// independent of the container, which may stay cached.
func (c *Container) Chunk(fp Fingerprint) ([]byte, bool) {
	e, _, ok := c.Meta.Lookup(fp)
	if !ok || c.Data == nil {
		return nil, false
	}
	end := e.Offset + int64(e.Length)
	if e.Offset < 0 || end > int64(len(c.Data)) {
		return nil, false
	}
	buf := make([]byte, e.Length)
	copy(buf, c.Data[e.Offset:end])
	return buf, true
}
