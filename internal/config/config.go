// Package config loads the chongshan configuration file.
//
// The file is given by the --config flag or the CHONGSHAN_CONFIG environment
// variable. Values from the file override the built-in defaults and are in
// turn overridden by command-line flags.
package config

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/restorer"
	"github.com/fdl66/chongshan/internal/ui"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "CHONGSHAN_CONFIG"

// Config mirrors the configuration file. Unset keys are nil and leave the
// corresponding defaults alone.
type Config struct {
	// Repository is the directory holding the container files.
	Repository string `yaml:"repository"`
	// Recipes is the SQLite recipe database.
	Recipes string `yaml:"recipes"`

	Simulation *string `yaml:"simulation"`
	Strategy   *string `yaml:"strategy"`
	StatsLog   *string `yaml:"stats_log"`

	Cache    CacheConfig    `yaml:"cache"`
	Pattern  PatternConfig  `yaml:"pattern"`
	Segment  SegmentConfig  `yaml:"segment"`
	Assembly AssemblyConfig `yaml:"assembly"`
	Optimal  OptimalConfig  `yaml:"optimal"`
	Storage  StorageConfig  `yaml:"storage"`
}

// CacheConfig sizes the restore caches.
type CacheConfig struct {
	LRU     *int `yaml:"lru"`
	Content *int `yaml:"content"`
	Meta    *int `yaml:"meta"`
}

// PatternConfig tunes the pattern strategies.
type PatternConfig struct {
	Wildcard *int `yaml:"wildcard"`
	Prefetch *int `yaml:"prefetch"`
}

// SegmentConfig selects the segmenter.
type SegmentConfig struct {
	Algorithm *string `yaml:"algorithm"`
	Size      *int    `yaml:"size"`
	Min       *int    `yaml:"min"`
	Max       *int    `yaml:"max"`
}

// AssemblyConfig sizes the assembly area. Area accepts size suffixes such as
// "64M".
type AssemblyConfig struct {
	Area *string `yaml:"area"`
}

// OptimalConfig sizes the lookahead window.
type OptimalConfig struct {
	Window *int `yaml:"window"`
}

// StorageConfig configures access to the container store.
type StorageConfig struct {
	// LimitDownload is the read bandwidth limit in KiB/s, 0 is unlimited.
	LimitDownload int   `yaml:"limit_download"`
	Retry         *bool `yaml:"retry"`
}

// Load reads the file named by path, or by CHONGSHAN_CONFIG if path is
// empty. Without either an empty Config is returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return &Config{}, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Fatalf("unable to read config file: %v", err)
	}

	cfg, err := Parse(buf)
	if err != nil {
		return nil, errors.Fatalf("config file %v: %v", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document. Unknown keys are an error.
func Parse(buf []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode")
	}
	return cfg, nil
}

// Retry reports whether reads from the container store are retried.
func (c *Config) Retry() bool {
	return c.Storage.Retry == nil || *c.Storage.Retry
}

// Apply overrides opts with the values set in c.
func (c *Config) Apply(opts *restorer.Options) error {
	if c.Strategy != nil {
		opts.Strategy = *c.Strategy
	}
	if c.Simulation != nil {
		l, err := restorer.ParseSimulationLevel(*c.Simulation)
		if err != nil {
			return err
		}
		opts.Simulation = l
	}
	if c.StatsLog != nil {
		opts.StatsLog = *c.StatsLog
	}

	setInt(&opts.CacheSize, c.Cache.LRU)
	setInt(&opts.ContentCacheSize, c.Cache.Content)
	setInt(&opts.MetaCacheSize, c.Cache.Meta)
	setInt(&opts.Wildcard, c.Pattern.Wildcard)
	setInt(&opts.PrefetchPercent, c.Pattern.Prefetch)
	setInt(&opts.Segment.Size, c.Segment.Size)
	setInt(&opts.Segment.Min, c.Segment.Min)
	setInt(&opts.Segment.Max, c.Segment.Max)
	setInt(&opts.OptimalWindow, c.Optimal.Window)

	if c.Segment.Algorithm != nil {
		opts.Segment.Algorithm = *c.Segment.Algorithm
	}
	if c.Assembly.Area != nil {
		n, err := ui.ParseBytes(*c.Assembly.Area)
		if err != nil {
			return errors.Fatalf("invalid assembly area %q: %v", *c.Assembly.Area, err)
		}
		opts.AssemblyArea = n
	}
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
