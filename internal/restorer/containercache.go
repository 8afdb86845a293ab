package restorer

import (
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/lru"
)

// containerCache is an LRU cache of containers that is looked up by chunk
// fingerprint. The fingerprint index is kept in sync with the cache by the
// eviction callback, so it never yields an evicted container.
type containerCache struct {
	c     *lru.Cache[dedup.ContainerID, *dedup.Container]
	index map[dedup.Fingerprint]dedup.ContainerID
}

func newContainerCache(capacity int) (*containerCache, error) {
	cc := &containerCache{index: make(map[dedup.Fingerprint]dedup.ContainerID)}

	c, err := lru.New[dedup.ContainerID, *dedup.Container](capacity, cc.evicted)
	if err != nil {
		return nil, err
	}
	cc.c = c
	return cc, nil
}

func (cc *containerCache) evicted(id dedup.ContainerID, con *dedup.Container) {
	for _, e := range con.Meta.Entries {
		if cc.index[e.Fingerprint] == id {
			delete(cc.index, e.Fingerprint)
		}
	}
}

// lookup returns a cached container holding fp.
func (cc *containerCache) lookup(fp dedup.Fingerprint) (*dedup.Container, bool) {
	id, ok := cc.index[fp]
	if !ok {
		return nil, false
	}
	return cc.c.Get(id)
}

// get returns container id and marks it most recently used.
func (cc *containerCache) get(id dedup.ContainerID) (*dedup.Container, bool) {
	return cc.c.Get(id)
}

// insert adds con as the most recently used container, evicting the least
// recently used one if the cache is full.
func (cc *containerCache) insert(con *dedup.Container) {
	cc.c.Add(con.ID(), con, nil)
	for _, e := range con.Meta.Entries {
		cc.index[e.Fingerprint] = con.ID()
	}
}

func (cc *containerCache) len() int {
	return cc.c.Len()
}

// purge drops all containers.
func (cc *containerCache) purge() {
	cc.c.Purge()
}
