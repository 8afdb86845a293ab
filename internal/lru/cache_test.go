package lru

import (
	"testing"

	rtest "github.com/fdl66/chongshan/internal/test"

	"github.com/google/go-cmp/cmp"
)

func TestCacheEviction(t *testing.T) {
	var evicted []int
	c, err := New[int, string](2, func(k int, _ string) {
		evicted = append(evicted, k)
	})
	rtest.OK(t, err)

	rtest.Assert(t, !c.Add(1, "one", nil), "unexpected eviction")
	rtest.Assert(t, !c.Add(2, "two", nil), "unexpected eviction")

	// touch 1, so 2 becomes the oldest entry
	v, ok := c.Get(1)
	rtest.Assert(t, ok, "entry 1 missing")
	rtest.Equals(t, "one", v)

	rtest.Assert(t, c.Add(3, "three", nil), "no eviction on full cache")
	rtest.Assert(t, !c.Contains(2), "entry 2 should have been evicted")
	rtest.Equals(t, []int{2}, evicted)
	rtest.Equals(t, 2, c.Len())
	rtest.Equals(t, 2, c.Cap())

	if diff := cmp.Diff([]int{1, 3}, c.Keys()); diff != "" {
		t.Errorf("wrong key order (-want +got):\n%s", diff)
	}
}

func TestCachePerEntryCallback(t *testing.T) {
	var global, local []int
	c, err := New[int, int](1, func(k int, _ int) { global = append(global, k) })
	rtest.OK(t, err)

	c.Add(1, 10, func(k int, v int) { local = append(local, v) })
	c.Add(2, 20, nil)
	c.Purge()

	rtest.Equals(t, []int{10}, local)
	rtest.Equals(t, []int{2}, global)
	rtest.Equals(t, 0, c.Len())
	rtest.Equals(t, 2, c.Evictions())
}

func TestCacheReplaceExisting(t *testing.T) {
	var evicted []string
	c, err := New[int, string](2, func(_ int, v string) { evicted = append(evicted, v) })
	rtest.OK(t, err)

	c.Add(1, "old", nil)
	c.Add(1, "new", nil)

	v, ok := c.Peek(1)
	rtest.Assert(t, ok, "entry missing")
	rtest.Equals(t, "new", v)
	rtest.Equals(t, []string{"old"}, evicted)
	rtest.Equals(t, 1, c.Len())
}

func TestCacheInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := New[int, int](capacity, nil)
		rtest.Assert(t, err != nil, "capacity %d accepted", capacity)
	}
}

// An entry evicted to make room is never returned afterwards, no matter how
// the remaining entries are accessed.
func TestCacheEvictedNeverFound(t *testing.T) {
	const capacity = 4
	gone := make(map[int]bool)
	c, err := New[int, int](capacity, func(k int, _ int) { gone[k] = true })
	rtest.OK(t, err)

	for i := 0; i < 100; i++ {
		c.Add(i, i, nil)
		c.Get(i / 2)
		delete(gone, i)
		for k := range gone {
			_, ok := c.Get(k)
			rtest.Assert(t, !ok, "evicted key %d still cached", k)
		}
	}
	rtest.Equals(t, capacity, c.Len())
}

func BenchmarkAdd(b *testing.B) {
	c, err := New[int, []byte](64, nil)
	rtest.OK(b, err)
	buf := make([]byte, 1024)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		c.Add(i%128, buf, nil)
	}
}
