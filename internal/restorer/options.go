package restorer

import (
	"time"

	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/segment"
)

// SimulationLevel selects how much I/O a restore performs.
type SimulationLevel int

const (
	// SimulationNone performs a full restore.
	SimulationNone SimulationLevel = iota
	// SimulationRestore consults container metadata only and writes no files.
	SimulationRestore
	// SimulationAll additionally skips all filesystem access.
	SimulationAll
)

var simulationNames = map[SimulationLevel]string{
	SimulationNone:    "none",
	SimulationRestore: "restore",
	SimulationAll:     "all",
}

func (l SimulationLevel) String() string {
	if s, ok := simulationNames[l]; ok {
		return s
	}
	return "unknown"
}

// MetadataOnly reports whether container data is read at all.
func (l SimulationLevel) MetadataOnly() bool {
	return l >= SimulationRestore
}

// ParseSimulationLevel parses the name of a simulation level.
func ParseSimulationLevel(s string) (SimulationLevel, error) {
	for l, name := range simulationNames {
		if name == s {
			return l, nil
		}
	}
	return 0, errors.Fatalf("invalid simulation level %q, valid levels are none, restore, all", s)
}

// Set implements pflag.Value.
func (l *SimulationLevel) Set(s string) error {
	v, err := ParseSimulationLevel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Type implements pflag.Value.
func (l *SimulationLevel) Type() string {
	return "level"
}

// Defaults.
const (
	DefaultStrategy         = StrategyPatternPlus
	DefaultCacheSize        = 32
	DefaultContentCacheSize = 32
	DefaultMetaCacheSize    = 128
	DefaultWildcard         = 30
	DefaultPrefetchPercent  = 70
	DefaultSegmentSize      = 1024
	DefaultAssemblyArea     = 64 << 20
	DefaultOptimalWindow    = 65536
	DefaultQueueSize        = 1024
	DefaultProgressInterval = 5 * time.Second
	DefaultStatsLog         = "restore.log"
)

// Options configure a restore.
type Options struct {
	Strategy   string
	Simulation SimulationLevel

	// CacheSize is the number of containers held by the lru and optimal
	// strategies.
	CacheSize int
	// ContentCacheSize is the capacity of the cross-segment content cache of
	// the pattern strategies: chunks for pattern, containers for
	// pattern-plus. Zero disables it.
	ContentCacheSize int
	// MetaCacheSize is the number of container metadata entries cached by
	// the pattern strategies.
	MetaCacheSize int

	// Wildcard is the longest gap of unwanted chunks read through.
	Wildcard int
	// PrefetchPercent is the share of wanted chunks above which
	// pattern-plus fetches a whole container.
	PrefetchPercent int

	Segment segment.Options

	// AssemblyArea is the size of the assembly area in bytes.
	AssemblyArea int64
	// OptimalWindow is the number of chunk references the optimal strategy
	// looks ahead.
	OptimalWindow int

	QueueSize        int
	ProgressInterval time.Duration

	// StatsLog names the file a statistics record is appended to, empty
	// disables it.
	StatsLog string
}

// DefaultOptions returns the default restore options.
func DefaultOptions() Options {
	return Options{
		Strategy:         DefaultStrategy,
		Simulation:       SimulationNone,
		CacheSize:        DefaultCacheSize,
		ContentCacheSize: DefaultContentCacheSize,
		MetaCacheSize:    DefaultMetaCacheSize,
		Wildcard:         DefaultWildcard,
		PrefetchPercent:  DefaultPrefetchPercent,
		Segment: segment.Options{
			Algorithm: segment.AlgorithmFixed,
			Size:      DefaultSegmentSize,
		},
		AssemblyArea:     DefaultAssemblyArea,
		OptimalWindow:    DefaultOptimalWindow,
		QueueSize:        DefaultQueueSize,
		ProgressInterval: DefaultProgressInterval,
		StatsLog:         DefaultStatsLog,
	}
}

// Check returns an error if the options are invalid.
func (o Options) Check() error {
	if _, ok := strategies[o.Strategy]; !ok {
		return errors.Fatalf("invalid restore strategy %q, valid strategies are %v", o.Strategy, StrategyNames())
	}
	if _, ok := simulationNames[o.Simulation]; !ok {
		return errors.Fatalf("invalid simulation level %d", o.Simulation)
	}

	for _, v := range []struct {
		name  string
		value int64
		min   int64
	}{
		{"cache size", int64(o.CacheSize), 1},
		{"content cache size", int64(o.ContentCacheSize), 0},
		{"metadata cache size", int64(o.MetaCacheSize), 1},
		{"wildcard length", int64(o.Wildcard), 0},
		{"prefetch percentage", int64(o.PrefetchPercent), 0},
		{"assembly area", o.AssemblyArea, 1},
		{"optimal window", int64(o.OptimalWindow), 1},
		{"queue size", int64(o.QueueSize), 1},
	} {
		if v.value < v.min {
			return errors.Fatalf("invalid %v %d", v.name, v.value)
		}
	}
	if o.PrefetchPercent > 100 {
		return errors.Fatalf("invalid prefetch percentage %d", o.PrefetchPercent)
	}

	if _, err := segment.New(o.Segment); err != nil {
		return err
	}
	return nil
}
