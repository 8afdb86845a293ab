package restorer

import (
	"fmt"
	"testing"

	"github.com/fdl66/chongshan/internal/dedup"
	rtest "github.com/fdl66/chongshan/internal/test"

	"github.com/google/go-cmp/cmp"
)

func testFingerprint(i int) dedup.Fingerprint {
	return dedup.Hash([]byte(fmt.Sprintf("chunk %d", i)))
}

// testListing returns a container listing of n chunks of 10 bytes each.
func testListing(n int) []dedup.MetaEntry {
	listing := make([]dedup.MetaEntry, n)
	for i := range listing {
		listing[i] = dedup.MetaEntry{Fingerprint: testFingerprint(i), Offset: int64(10 * i), Length: 10}
	}
	return listing
}

// testUnread returns an unread list of the chunks at the given listing
// positions.
func testUnread(positions ...int) *unreadList {
	seg := dedup.NewSegment(0)
	for _, p := range positions {
		seg.Append(dedup.NewChunkRef(dedup.ChunkPointer{Fingerprint: testFingerprint(p), Size: 10, ContainerID: 1}))
	}
	return newUnreadList(seg)
}

func TestGeneratePattern(t *testing.T) {
	const (
		s = markSkip
		n = markNear
		f = markFar
		g = markMergedGap
	)

	var tests = []struct {
		name     string
		near     []int
		far      []int
		wildcard int
		want     []mark
	}{
		{"single", []int{1, 2, 6}, nil, 0, []mark{s, n, n, s, s, s, n, s}},
		{"single gap filled", []int{1, 2, 6}, nil, 3, []mark{s, n, n, f, f, f, n, s}},
		{"single gap too long", []int{1, 2, 6}, nil, 2, []mark{s, n, n, s, s, s, n, s}},
		{"merged", []int{0, 3}, []int{3, 5}, 0, []mark{n, s, s, n, s, f, s, s}},
		{"merged gap filled", []int{0, 3}, []int{5}, 1, []mark{n, s, s, n, g, f, s, s}},
		{"merged all gaps", []int{0}, []int{7}, 8, []mark{n, g, g, g, g, g, g, f}},
		{"leading and trailing gaps", []int{3, 4}, nil, 10, []mark{s, s, s, n, n, s, s, s}},
	}

	listing := testListing(8)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var far *unreadList
			if test.far != nil {
				far = testUnread(test.far...)
			}
			got := generatePattern(listing, testUnread(test.near...), far, test.wildcard)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("wrong pattern (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGeneratePatternIdempotent(t *testing.T) {
	listing := testListing(64)
	near := testUnread(1, 5, 6, 20, 40)
	far := testUnread(2, 30, 41, 63)

	for _, wildcard := range []int{0, 1, 4, 30} {
		first := generatePattern(listing, near, far, wildcard)
		second := generatePattern(listing, near, far, wildcard)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("wildcard %d: patterns differ (-first +second):\n%s", wildcard, diff)
		}
	}
	rtest.Equals(t, 5, near.Len())
	rtest.Equals(t, 4, far.Len())
}

func TestFillWildcard(t *testing.T) {
	for gap := 0; gap < 8; gap++ {
		for threshold := 0; threshold < 8; threshold++ {
			pattern := make([]mark, gap+4)
			pattern[1] = markNear
			pattern[gap+2] = markNear

			fillWildcard(pattern, threshold, markFar)

			for i := 2; i < gap+2; i++ {
				filled := pattern[i] == markFar
				if filled != (gap <= threshold) {
					t.Errorf("gap %d threshold %d: position %d filled %v", gap, threshold, i, filled)
				}
			}
			rtest.Assert(t, pattern[0] == markSkip, "gap %d threshold %d: leading gap filled", gap, threshold)
			rtest.Assert(t, pattern[gap+3] == markSkip, "gap %d threshold %d: trailing gap filled", gap, threshold)
		}
	}
}

func TestReadRuns(t *testing.T) {
	listing := testListing(8)

	var tests = []struct {
		wildcard int
		want     []readRun
	}{
		{0, []readRun{
			{offset: 10, length: 20, first: 1, last: 3},
			{offset: 50, length: 10, first: 5, last: 6},
		}},
		{2, []readRun{
			{offset: 10, length: 50, first: 1, last: 6},
		}},
	}

	for _, test := range tests {
		pattern := generatePattern(listing, testUnread(1, 2, 5), nil, test.wildcard)
		got := readRuns(listing, pattern)
		if diff := cmp.Diff(test.want, got, cmp.AllowUnexported(readRun{})); diff != "" {
			t.Errorf("wildcard %d: wrong runs (-want +got):\n%s", test.wildcard, diff)
		}
		rtest.Equals(t, sumRuns(got), len(allocateBuffer(listing, pattern)))
	}
}

func TestReadRunsNonContiguousOffsets(t *testing.T) {
	listing := testListing(3)
	listing[2].Offset = 100

	pattern := []mark{markNear, markNear, markNear}
	rtest.Equals(t, 2, len(readRuns(listing, pattern)))
}

func sumRuns(runs []readRun) int {
	n := 0
	for _, r := range runs {
		n += r.length
	}
	return n
}

func TestUseMerged(t *testing.T) {
	seg := dedup.NewSegment(0)
	for i := 0; i < 10; i++ {
		seg.Append(dedup.NewChunkRef(dedup.ChunkPointer{Fingerprint: testFingerprint(i), Size: 10, ContainerID: 1}))
	}

	var tests = []struct {
		unread, lookahead int
		merged            bool
	}{
		{10, 3, false},
		{5, 3, false},
		{4, 3, true},
		{1, 3, true},
		{4, 0, false},
	}

	for _, test := range tests {
		u1 := testUnread(make([]int, test.unread)...)
		u2 := testUnread(make([]int, test.lookahead)...)
		if got := useMerged(seg, u1, u2); got != test.merged {
			t.Errorf("unread %d lookahead %d: want merged %v, got %v", test.unread, test.lookahead, test.merged, got)
		}
	}
}

func TestUnreadListRemoveWhileIterating(t *testing.T) {
	u := testUnread(0, 1, 2, 3, 4)
	i := 0
	rtest.OK(t, u.each(func(c *dedup.Chunk) (bool, error) {
		i++
		return c.Fingerprint == testFingerprint(1) || c.Fingerprint == testFingerprint(2) || c.Fingerprint == testFingerprint(4), nil
	}))
	rtest.Equals(t, 5, i)
	rtest.Equals(t, 2, u.Len())
	rtest.Equals(t, testFingerprint(0), u.head().Fingerprint)

	var left []dedup.Fingerprint
	rtest.OK(t, u.each(func(c *dedup.Chunk) (bool, error) {
		left = append(left, c.Fingerprint)
		return false, nil
	}))
	rtest.Equals(t, []dedup.Fingerprint{testFingerprint(0), testFingerprint(3)}, left)
}
