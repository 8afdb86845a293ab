//go:build debug

package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/fdl66/chongshan/internal/errors"
)

type profileOptions struct {
	listen    string
	memPath   string
	cpuPath   string
	blockPath string
	tracePath string
}

func registerProfiling(cmd *cobra.Command) {
	var opts profileOptions

	f := cmd.PersistentFlags()
	f.StringVar(&opts.listen, "listen-profile", "", "listen on this `address:port` for memory profiling")
	f.StringVar(&opts.memPath, "mem-profile", "", "write memory profile to `dir`")
	f.StringVar(&opts.cpuPath, "cpu-profile", "", "write cpu profile to `dir`")
	f.StringVar(&opts.blockPath, "block-profile", "", "write block profile to `dir`")
	f.StringVar(&opts.tracePath, "trace-profile", "", "write trace to `dir`")

	origPreRun := cmd.PersistentPreRunE
	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		if err := origPreRun(c, args); err != nil {
			return err
		}
		return opts.start()
	}
}

func (opts profileOptions) start() error {
	if opts.listen != "" {
		fmt.Fprintf(os.Stderr, "running profile HTTP server on %v\n", opts.listen)
		go func() {
			err := http.ListenAndServe(opts.listen, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "profile HTTP server listen failed: %v\n", err)
			}
		}()
	}

	var mode func(*profile.Profile)
	var dir string
	n := 0
	for _, p := range []struct {
		path string
		mode func(*profile.Profile)
	}{
		{opts.memPath, profile.MemProfile},
		{opts.cpuPath, profile.CPUProfile},
		{opts.blockPath, profile.BlockProfile},
		{opts.tracePath, profile.TraceProfile},
	} {
		if p.path != "" {
			mode, dir = p.mode, p.path
			n++
		}
	}
	if n > 1 {
		return errors.Fatal("only one profile (memory, CPU, block or trace) may be activated at the same time")
	}
	if mode == nil {
		return nil
	}

	prof := profile.Start(profile.Quiet, profile.NoShutdownHook, mode, profile.ProfilePath(dir))
	AddCleanupHandler(func() error {
		prof.Stop()
		return nil
	})
	return nil
}
