package restorer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/options"
	"github.com/fdl66/chongshan/internal/segment"
	rtest "github.com/fdl66/chongshan/internal/test"
)

func TestApplyExtended(t *testing.T) {
	ext, err := options.Parse([]string{
		"cache.lru=8",
		"cache.content=0",
		"pattern.wildcard=12",
		"segment.algorithm=content",
		"segment.size=256",
		"assembly.area=16M",
		"optimal.window=1k",
	})
	rtest.OK(t, err)

	opts := DefaultOptions()
	rtest.OK(t, opts.ApplyExtended(ext))

	want := DefaultOptions()
	want.CacheSize = 8
	want.ContentCacheSize = 0
	want.Wildcard = 12
	want.Segment = segment.Options{Algorithm: segment.AlgorithmContent, Size: 256}
	want.AssemblyArea = 16 << 20
	want.OptimalWindow = 1024

	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("options differ (-want +got):\n%s", diff)
	}
	rtest.OK(t, opts.Check())
}

func TestApplyExtendedInvalid(t *testing.T) {
	for _, in := range []string{
		"unknown.key=1",
		"cache.missing=1",
		"cache.lru=many",
		"optimal.window=99999999999999999999",
	} {
		t.Run(in, func(t *testing.T) {
			ext, err := options.Parse([]string{in})
			rtest.OK(t, err)

			opts := DefaultOptions()
			err = opts.ApplyExtended(ext)
			rtest.Assert(t, err != nil, "expected an error for %q", in)
			rtest.Assert(t, errors.IsFatal(err), "expected a fatal error, got %v", err)
		})
	}
}

func TestExtendedOptionsListed(t *testing.T) {
	var names []string
	for _, h := range options.List() {
		names = append(names, h.Namespace+"."+h.Name)
	}
	for _, name := range []string{"assembly.area", "cache.lru", "cache.meta", "optimal.window", "pattern.prefetch", "segment.algorithm"} {
		rtest.Assert(t, contains(names, name), "option %v not registered, got %v", name, names)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
