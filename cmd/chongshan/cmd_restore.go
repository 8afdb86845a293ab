package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/restorer"
	"github.com/fdl66/chongshan/internal/ui"
	"github.com/fdl66/chongshan/internal/ui/progress"
	restoreui "github.com/fdl66/chongshan/internal/ui/restore"
	"github.com/fdl66/chongshan/internal/ui/termstatus"
)

func newRestoreCommand(gopts *GlobalOptions) *cobra.Command {
	var opts RestoreOptions

	cmd := &cobra.Command{
		Use:   "restore [flags] versionID",
		Short: "Restore a backup version",
		Long: `
The "restore" command restores the files of a backup version to a directory.

The restore strategy decides in which order containers are read and which of
them are kept in memory: lru, optimal, assembly, pattern or pattern-plus.
With --simulation the restore only counts the container reads it would
perform: "restore" reads container metadata only and writes no files, "all"
additionally touches no file system.

EXIT STATUS
===========

Exit status is 0 if the command was successful.
Exit status is 1 if there was any error.
Exit status is 130 if the restore was interrupted.
`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			term, cancel := termstatus.Setup(gopts.stdout, gopts.stderr, gopts.Quiet)
			defer cancel()
			return runRestore(cmd.Context(), opts, gopts, cmd.Flags(), term, args)
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

// RestoreOptions collects all options for the restore command.
type RestoreOptions struct {
	Target       string
	Strategy     string
	Simulation   restorer.SimulationLevel
	CacheSize    int
	ContentCache int
	MetaCache    int
	Wildcard     int
	Prefetch     int
	Segment      string
	SegmentSize  int
	StatsLog     string
}

// AddFlags registers the restore flags on f.
func (opts *RestoreOptions) AddFlags(f *pflag.FlagSet) {
	def := restorer.DefaultOptions()

	f.StringVarP(&opts.Target, "target", "t", "", "`directory` to restore the files to")
	f.StringVar(&opts.Strategy, "strategy", def.Strategy, "restore `strategy`, one of ("+strings.Join(restorer.StrategyNames(), "|")+")")
	f.Var(&opts.Simulation, "simulation", "simulation `level`, one of (none|restore|all) (default: none)")
	f.IntVar(&opts.CacheSize, "cache-size", def.CacheSize, "number of containers kept by the lru and optimal strategies")
	f.IntVar(&opts.ContentCache, "content-cache", def.ContentCacheSize, "capacity of the pattern content cache, 0 disables it")
	f.IntVar(&opts.MetaCache, "meta-cache", def.MetaCacheSize, "number of container metadata entries kept")
	f.IntVar(&opts.Wildcard, "wildcard", def.Wildcard, "longest run of unwanted chunks read through by the pattern strategies")
	f.IntVar(&opts.Prefetch, "prefetch", def.PrefetchPercent, "`percentage` of wanted chunks above which pattern-plus reads a whole container")
	f.StringVar(&opts.Segment, "segment", def.Segment.Algorithm, "segmenting `algorithm`, one of (fixed|content|file)")
	f.IntVar(&opts.SegmentSize, "segment-size", def.Segment.Size, "segment length in chunks")
	f.StringVar(&opts.StatsLog, "stats-log", def.StatsLog, "`file` a statistics record is appended to, empty disables it")
}

// restoreOptions builds the restorer options. Later sources override earlier
// ones: defaults, configuration file, flags given on the command line and
// extended options.
func (opts RestoreOptions) restoreOptions(gopts *GlobalOptions, flags *pflag.FlagSet) (restorer.Options, error) {
	ropts := restorer.DefaultOptions()
	if gopts.cfg != nil {
		if err := gopts.cfg.Apply(&ropts); err != nil {
			return restorer.Options{}, err
		}
	}

	changed := func(name string) bool {
		return flags != nil && flags.Changed(name)
	}
	if changed("strategy") {
		ropts.Strategy = opts.Strategy
	}
	if changed("simulation") {
		ropts.Simulation = opts.Simulation
	}
	if changed("cache-size") {
		ropts.CacheSize = opts.CacheSize
	}
	if changed("content-cache") {
		ropts.ContentCacheSize = opts.ContentCache
	}
	if changed("meta-cache") {
		ropts.MetaCacheSize = opts.MetaCache
	}
	if changed("wildcard") {
		ropts.Wildcard = opts.Wildcard
	}
	if changed("prefetch") {
		ropts.PrefetchPercent = opts.Prefetch
	}
	if changed("segment") {
		ropts.Segment.Algorithm = opts.Segment
	}
	if changed("segment-size") {
		ropts.Segment.Size = opts.SegmentSize
	}
	if changed("stats-log") {
		ropts.StatsLog = opts.StatsLog
	}

	if err := ropts.ApplyExtended(gopts.extended); err != nil {
		return restorer.Options{}, err
	}
	return ropts, ropts.Check()
}

func runRestore(ctx context.Context, opts RestoreOptions, gopts *GlobalOptions, flags *pflag.FlagSet,
	term ui.Terminal, args []string) error {

	switch {
	case len(args) == 0:
		return errors.Fatal("no version ID specified")
	case len(args) > 1:
		return errors.Fatalf("more than one version ID specified: %v", args)
	}
	versionID, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Fatalf("invalid version ID %q", args[0])
	}

	ropts, err := opts.restoreOptions(gopts, flags)
	if err != nil {
		return err
	}
	if opts.Target == "" && ropts.Simulation != restorer.SimulationAll {
		return errors.Fatal("please specify a directory to restore to (--target)")
	}

	printer := progress.NewTerminalPrinter(term, gopts.verbosity)
	debug.Log("restore version %d to %v with %+v", versionID, opts.Target, ropts)

	store, err := OpenContainerStore(ctx, gopts, printer)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			debug.Log("closing container store failed: %v", err)
		}
	}()

	recipes, err := OpenRecipes(ctx, gopts)
	if err != nil {
		return err
	}
	defer func() {
		if err := recipes.Close(); err != nil {
			debug.Log("closing recipe database failed: %v", err)
		}
	}()

	res := restorer.New(recipes, store, ropts)
	res.Printer = printer
	switch {
	case gopts.JSON:
		res.Progress = restoreui.NewJSONProgress(term)
	case gopts.verbosity > 0:
		res.Progress = restoreui.NewTextProgress(term)
	}

	printer.P("restoring version %d to %s", versionID, opts.Target)
	job, err := res.Restore(ctx, versionID, opts.Target)
	if err != nil {
		return err
	}

	if !gopts.JSON && gopts.verbosity > 0 {
		var buf bytes.Buffer
		if err := job.WriteSummary(&buf); err != nil {
			return err
		}
		term.Print(buf.String())
	}
	return nil
}
