package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/fdl66/chongshan/internal/config"
	"github.com/fdl66/chongshan/internal/container/limiter"
	"github.com/fdl66/chongshan/internal/container/local"
	"github.com/fdl66/chongshan/internal/container/retry"
	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/options"
	"github.com/fdl66/chongshan/internal/recipe/sqlite"
	"github.com/fdl66/chongshan/internal/ui/progress"
)

// GlobalOptions hold the options shared by all commands.
type GlobalOptions struct {
	Repo       string
	Recipes    string
	ConfigFile string
	Quiet      bool
	Verbose    int
	JSON       bool
	NoRetry    bool

	limiter.Limits

	// verbosity is set as follows:
	//  0 means: don't print any messages except errors, this is used when --quiet is specified
	//  1 is the default: print essential messages
	//  2 means: print more messages, this is used when --verbose is specified
	//  3 means: print very detailed debug messages, this is used when --verbose=2 is specified
	verbosity uint

	Options []string

	extended options.Options
	cfg      *config.Config

	stdout io.Writer
	stderr io.Writer
}

func newGlobalOptions() *GlobalOptions {
	return &GlobalOptions{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// AddFlags registers the global flags on f.
func (opts *GlobalOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVarP(&opts.Repo, "repo", "r", "", "`directory` holding the containers (default: $CHONGSHAN_REPOSITORY)")
	f.StringVar(&opts.Recipes, "recipes", "", "recipe database `file` (default: $CHONGSHAN_RECIPES)")
	f.StringVar(&opts.ConfigFile, "config", "", "configuration `file` (default: $CHONGSHAN_CONFIG)")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "do not output comprehensive progress report")
	// use empty parameter name as `-v, --verbose n` instead of the correct `--verbose=n` is confusing
	f.CountVarP(&opts.Verbose, "verbose", "v", "be verbose (specify multiple times or a level using --verbose=n``, max level/times is 2)")
	f.BoolVar(&opts.JSON, "json", false, "set output mode to JSON")
	f.BoolVar(&opts.NoRetry, "no-retry", false, "do not retry failed container reads")
	f.IntVar(&opts.Limits.DownloadKb, "limit-download", 0, "limits container reads to a maximum `rate` in KiB/s. (default: unlimited)")
	f.StringSliceVarP(&opts.Options, "option", "o", []string{}, "set extended option (`key=value`, can be specified multiple times)")

	opts.Repo = os.Getenv("CHONGSHAN_REPOSITORY")
	opts.Recipes = os.Getenv("CHONGSHAN_RECIPES")
}

// PreRun derives the verbosity, parses the extended options and loads the
// configuration file. Values from the file only fill what flags and the
// environment left unset.
func (opts *GlobalOptions) PreRun() error {
	opts.verbosity = 1
	if opts.Quiet && opts.Verbose > 0 {
		return errors.Fatal("--quiet and --verbose cannot be specified at the same time")
	}

	switch {
	case opts.Verbose >= 2:
		opts.verbosity = 3
	case opts.Verbose > 0:
		opts.verbosity = 2
	case opts.Quiet:
		opts.verbosity = 0
	}

	extendedOpts, err := options.Parse(opts.Options)
	if err != nil {
		return err
	}
	opts.extended = extendedOpts

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	opts.cfg = cfg

	if opts.Repo == "" {
		opts.Repo = cfg.Repository
	}
	if opts.Recipes == "" {
		opts.Recipes = cfg.Recipes
	}
	if opts.Limits.DownloadKb == 0 {
		opts.Limits.DownloadKb = cfg.Storage.LimitDownload
	}
	if !cfg.Retry() {
		opts.NoRetry = true
	}
	return nil
}

// OpenContainerStore opens the container directory, wrapped for retries and
// bandwidth limits as configured.
func OpenContainerStore(ctx context.Context, opts *GlobalOptions, printer progress.Printer) (dedup.ContainerStore, error) {
	if opts.Repo == "" {
		return nil, errors.Fatal("Please specify the container directory (-r or $CHONGSHAN_REPOSITORY)")
	}

	s, err := local.Open(ctx, opts.Repo)
	if err != nil {
		return nil, errors.Fatalf("unable to open container store at %v: %v", opts.Repo, err)
	}

	var store dedup.ContainerStore = s
	if !opts.NoRetry {
		store = retry.New(store, 5*time.Minute,
			func(msg string, err error, d time.Duration) {
				printer.E("%v returned error, retrying after %v: %v", msg, d.Truncate(time.Millisecond), err)
			},
			func(msg string, retries int) {
				printer.E("%v operation successful after %d retries", msg, retries)
			})
	}
	store = limiter.LimitStore(store, opts.Limits)

	debug.Log("container store %v opened, retry %v, limits %+v", opts.Repo, !opts.NoRetry, opts.Limits)
	return store, nil
}

// OpenRecipes opens the recipe database.
func OpenRecipes(ctx context.Context, opts *GlobalOptions) (*sqlite.Store, error) {
	if opts.Recipes == "" {
		return nil, errors.Fatal("Please specify the recipe database (--recipes or $CHONGSHAN_RECIPES)")
	}
	if _, err := os.Stat(opts.Recipes); err != nil {
		return nil, errors.Fatalf("unable to open recipe database: %v", err)
	}

	s, err := sqlite.Open(ctx, opts.Recipes)
	if err != nil {
		return nil, errors.Fatalf("unable to open recipe database %v: %v", opts.Recipes, err)
	}
	return s, nil
}
