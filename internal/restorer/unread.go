package restorer

import (
	"container/list"

	"github.com/fdl66/chongshan/internal/dedup"
)

// unreadList holds the data chunks of a segment that are not yet resolved, in
// segment order. Chunks are removed while iterating once they are resolved.
type unreadList struct {
	l list.List
}

func newUnreadList(s *dedup.Segment) *unreadList {
	u := &unreadList{}
	if s == nil {
		return u
	}
	for _, c := range s.Chunks {
		if c.IsData() {
			u.l.PushBack(c)
		}
	}
	return u
}

func (u *unreadList) Len() int {
	return u.l.Len()
}

// head returns the first unresolved chunk, or nil.
func (u *unreadList) head() *dedup.Chunk {
	e := u.l.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*dedup.Chunk)
}

// each calls fn for every chunk in order. If fn returns true the chunk is
// removed from the list.
func (u *unreadList) each(fn func(c *dedup.Chunk) (resolved bool, err error)) error {
	for e := u.l.Front(); e != nil; {
		next := e.Next()
		resolved, err := fn(e.Value.(*dedup.Chunk))
		if err != nil {
			return err
		}
		if resolved {
			u.l.Remove(e)
		}
		e = next
	}
	return nil
}

// fingerprints returns the set of fingerprints in the list.
func (u *unreadList) fingerprints() map[dedup.Fingerprint]struct{} {
	set := make(map[dedup.Fingerprint]struct{}, u.l.Len())
	for e := u.l.Front(); e != nil; e = e.Next() {
		set[e.Value.(*dedup.Chunk).Fingerprint] = struct{}{}
	}
	return set
}
