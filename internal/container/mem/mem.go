// Package mem implements a container store that holds all containers in
// memory. It is used by tests and fixtures.
package mem

import (
	"context"
	"sync"

	"github.com/fdl66/chongshan/internal/container"
	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
)

// Stats counts the calls made to a Store.
type Stats struct {
	FetchContainer int
	FetchMeta      int
	ReadRange      int
	BytesRead      int64
}

// make sure that Store implements dedup.ContainerStore
var _ dedup.ContainerStore = &Store{}

// Store is a container store backed by a map of encoded containers.
type Store struct {
	m     sync.Mutex
	data  map[dedup.ContainerID]*dedup.Container
	stats Stats
}

// New returns an empty store.
func New() *Store {
	debug.Log("created new memory container store")
	return &Store{data: make(map[dedup.ContainerID]*dedup.Container)}
}

// Save decodes and stores the container file buf under id.
func (s *Store) Save(id dedup.ContainerID, buf []byte) error {
	con, err := container.Decode(id, append([]byte(nil), buf...))
	if err != nil {
		return err
	}

	s.m.Lock()
	defer s.m.Unlock()

	if _, ok := s.data[id]; ok {
		return errors.Errorf("container %d already exists", id)
	}
	s.data[id] = con
	return nil
}

// Remove deletes the container id.
func (s *Store) Remove(id dedup.ContainerID) {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.data, id)
}

// Len returns the number of stored containers.
func (s *Store) Len() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.data)
}

func (s *Store) get(id dedup.ContainerID) (*dedup.Container, error) {
	con, ok := s.data[id]
	if !ok {
		return nil, errors.Wrapf(container.ErrNotFound, "container %d", id)
	}
	return con, nil
}

// FetchContainer returns a copy of the container id.
func (s *Store) FetchContainer(ctx context.Context, id dedup.ContainerID) (*dedup.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.m.Lock()
	defer s.m.Unlock()

	s.stats.FetchContainer++
	con, err := s.get(id)
	if err != nil {
		return nil, err
	}
	s.stats.BytesRead += int64(len(con.Data))

	return &dedup.Container{
		Meta: con.Meta,
		Data: append([]byte(nil), con.Data...),
	}, nil
}

// FetchContainerMeta returns the metadata of container id.
func (s *Store) FetchContainerMeta(ctx context.Context, id dedup.ContainerID) (*dedup.ContainerMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.m.Lock()
	defer s.m.Unlock()

	s.stats.FetchMeta++
	con, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return con.Meta, nil
}

// ReadRange copies len(buf) bytes of the data section of container id,
// starting at offset, into buf.
func (s *Store) ReadRange(ctx context.Context, id dedup.ContainerID, offset int64, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.m.Lock()
	defer s.m.Unlock()

	s.stats.ReadRange++
	con, err := s.get(id)
	if err != nil {
		return err
	}

	if err := container.CheckRange(offset, len(buf), int64(len(con.Data))); err != nil {
		return errors.Wrapf(err, "container %d", id)
	}

	copy(buf, con.Data[offset:])
	s.stats.BytesRead += int64(len(buf))
	return nil
}

// Stats returns the call counters.
func (s *Store) Stats() Stats {
	s.m.Lock()
	defer s.m.Unlock()
	return s.stats
}

// ResetStats zeroes the call counters.
func (s *Store) ResetStats() {
	s.m.Lock()
	defer s.m.Unlock()
	s.stats = Stats{}
}

// Close releases nothing; the store stays usable.
func (s *Store) Close() error {
	return nil
}
