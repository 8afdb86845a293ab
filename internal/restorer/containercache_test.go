package restorer

import (
	"testing"

	"github.com/fdl66/chongshan/internal/dedup"
	rtest "github.com/fdl66/chongshan/internal/test"
)

func testContainer(id dedup.ContainerID, positions ...int) *dedup.Container {
	entries := make([]dedup.MetaEntry, 0, len(positions))
	for i, p := range positions {
		entries = append(entries, dedup.MetaEntry{Fingerprint: testFingerprint(p), Offset: int64(10 * i), Length: 10})
	}
	return &dedup.Container{Meta: dedup.NewContainerMeta(id, entries), Data: make([]byte, 10*len(positions))}
}

func TestContainerCacheEvictedFingerprintsMiss(t *testing.T) {
	cc, err := newContainerCache(2)
	rtest.OK(t, err)

	cc.insert(testContainer(1, 0, 1, 2))
	cc.insert(testContainer(2, 3, 4))
	cc.insert(testContainer(3, 5))
	rtest.Equals(t, 2, cc.len())

	for _, p := range []int{0, 1, 2} {
		_, ok := cc.lookup(testFingerprint(p))
		rtest.Assert(t, !ok, "fingerprint of evicted container found at position %d", p)
	}
	for p, id := range map[int]dedup.ContainerID{3: 2, 4: 2, 5: 3} {
		con, ok := cc.lookup(testFingerprint(p))
		rtest.Assert(t, ok, "fingerprint at position %d not found", p)
		rtest.Equals(t, id, con.ID())
	}
}

func TestContainerCacheSharedFingerprint(t *testing.T) {
	cc, err := newContainerCache(1)
	rtest.OK(t, err)

	// both containers hold position 7, evicting the first must not drop the
	// index entry of the second
	cc.insert(testContainer(1, 7))
	cc.insert(testContainer(2, 7, 8))

	con, ok := cc.lookup(testFingerprint(7))
	rtest.Assert(t, ok, "shared fingerprint not found")
	rtest.Equals(t, dedup.ContainerID(2), con.ID())

	cc.purge()
	_, ok = cc.lookup(testFingerprint(8))
	rtest.Assert(t, !ok, "fingerprint found after purge")
	rtest.Equals(t, 0, cc.len())
}
