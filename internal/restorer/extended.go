package restorer

import (
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/options"
)

type patternOptions struct {
	Wildcard int `option:"wildcard" help:"longest run of unwanted chunks read through (default: 30)"`
	Prefetch int `option:"prefetch" help:"percentage of wanted chunks above which pattern-plus reads a whole container (default: 70)"`
}

type cacheOptions struct {
	LRU     int `option:"lru" help:"number of containers cached by the lru and optimal strategies (default: 32)"`
	Content int `option:"content" help:"capacity of the pattern content cache, 0 disables it (default: 32)"`
	Meta    int `option:"meta" help:"number of container metadata entries cached (default: 128)"`
}

type segmentOptions struct {
	Algorithm string `option:"algorithm" help:"segmenting algorithm: fixed, content or file (default: fixed)"`
	Size      int    `option:"size" help:"segment length in chunks, average for content (default: 1024)"`
	Min       int    `option:"min" help:"minimum segment length for content (default: size/2)"`
	Max       int    `option:"max" help:"maximum segment length for content (default: size*2)"`
}

type assemblyOptions struct {
	Area int64 `option:"area" help:"size of the assembly area (default: 64MiB)"`
}

type optimalOptions struct {
	Window int `option:"window" help:"number of chunk references the optimal strategy looks ahead (default: 65536)"`
}

func init() {
	options.Register("pattern", patternOptions{})
	options.Register("cache", cacheOptions{})
	options.Register("segment", segmentOptions{})
	options.Register("assembly", assemblyOptions{})
	options.Register("optimal", optimalOptions{})
}

// ApplyExtended overrides o with the values of extended options such as
// "cache.lru=64". Unknown namespaces and keys are an error.
func (o *Options) ApplyExtended(ext options.Options) error {
	for _, ns := range ext.Namespaces() {
		sub := ext.Extract(ns)

		var err error
		switch ns {
		case "pattern":
			p := patternOptions{Wildcard: o.Wildcard, Prefetch: o.PrefetchPercent}
			err = sub.Apply(ns, &p)
			o.Wildcard, o.PrefetchPercent = p.Wildcard, p.Prefetch
		case "cache":
			c := cacheOptions{LRU: o.CacheSize, Content: o.ContentCacheSize, Meta: o.MetaCacheSize}
			err = sub.Apply(ns, &c)
			o.CacheSize, o.ContentCacheSize, o.MetaCacheSize = c.LRU, c.Content, c.Meta
		case "segment":
			s := segmentOptions{Algorithm: o.Segment.Algorithm, Size: o.Segment.Size, Min: o.Segment.Min, Max: o.Segment.Max}
			err = sub.Apply(ns, &s)
			o.Segment.Algorithm, o.Segment.Size, o.Segment.Min, o.Segment.Max = s.Algorithm, s.Size, s.Min, s.Max
		case "assembly":
			a := assemblyOptions{Area: o.AssemblyArea}
			err = sub.Apply(ns, &a)
			o.AssemblyArea = a.Area
		case "optimal":
			w := optimalOptions{Window: o.OptimalWindow}
			err = sub.Apply(ns, &w)
			o.OptimalWindow = w.Window
		default:
			return errors.Fatalf("unknown option namespace %q", ns)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
