package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/fdl66/chongshan/internal/config"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/repotest"
	"github.com/fdl66/chongshan/internal/restorer"
	rtest "github.com/fdl66/chongshan/internal/test"
)

type testEnv struct {
	backup  *repotest.Backup
	repo    string
	recipes string
	base    string
}

func setupEnv(t *testing.T) *testEnv {
	t.Setenv(config.EnvVar, "")
	t.Setenv("CHONGSHAN_REPOSITORY", "")
	t.Setenv("CHONGSHAN_RECIPES", "")

	b := repotest.Generate(t, 4, repotest.GenerateOptions{Seed: 11, Files: 4, FileSize: 32 * 1024, Duplicates: 30})
	env := &testEnv{
		backup: b,
		base:   t.TempDir(),
	}
	env.repo = filepath.Join(env.base, "containers")
	env.recipes = filepath.Join(env.base, "recipes.db")
	b.LocalStore(t, env.repo)
	b.SQLiteRecipes(t, env.recipes)
	return env
}

// run executes the command line args and returns stdout.
func (env *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	gopts := newGlobalOptions()
	gopts.stdout, gopts.stderr = &stdout, &stderr

	cmd := newRootCommand(gopts)
	cmd.SetOut(&stdout)
	cmd.SetArgs(append([]string{"-r", env.repo, "--recipes", env.recipes}, args...))
	err := cmd.ExecuteContext(context.TODO())
	return stdout.String(), err
}

func TestRestoreCommand(t *testing.T) {
	env := setupEnv(t)

	for _, strategy := range restorer.StrategyNames() {
		t.Run(strategy, func(t *testing.T) {
			target := filepath.Join(env.base, "target-"+strategy)
			out, err := env.run(t, "restore", "--strategy", strategy, "--stats-log", "", "-t", target, "4")
			rtest.OK(t, err)
			env.backup.Verify(t, target)

			rtest.Assert(t, strings.Contains(out, "job id: 4\n"), "summary missing from output:\n%s", out)
			rtest.Assert(t, strings.Contains(out, "number of files: 4\n"), "file count missing from output:\n%s", out)
		})
	}
}

func TestRestoreCommandStatsLog(t *testing.T) {
	env := setupEnv(t)
	statsLog := filepath.Join(env.base, "restore.log")

	for i := 0; i < 2; i++ {
		_, err := env.run(t, "restore", "-q", "--simulation", "all", "--stats-log", statsLog, "4")
		rtest.OK(t, err)
	}

	buf, err := os.ReadFile(statsLog)
	rtest.OK(t, err)
	lines := strings.Split(strings.TrimSpace(string(buf)), "\n")
	rtest.Equals(t, 2, len(lines))
	rtest.Assert(t, strings.HasPrefix(lines[0], "4 "), "unexpected stats record %q", lines[0])
}

func TestRestoreCommandErrors(t *testing.T) {
	env := setupEnv(t)
	target := filepath.Join(env.base, "target")

	for _, c := range []struct {
		name string
		args []string
	}{
		{"no version", []string{"restore", "-t", target}},
		{"two versions", []string{"restore", "-t", target, "1", "2"}},
		{"invalid version", []string{"restore", "-t", target, "latest"}},
		{"no target", []string{"restore", "4"}},
		{"unknown strategy", []string{"restore", "--strategy", "fifo", "-t", target, "4"}},
		{"unknown simulation", []string{"restore", "--simulation", "some", "-t", target, "4"}},
		{"unknown option", []string{"restore", "-o", "cache.size=1", "-t", target, "4"}},
		{"quiet and verbose", []string{"restore", "-q", "-v", "-t", target, "4"}},
		{"missing version", []string{"restore", "--stats-log", "", "-t", target, "99"}},
	} {
		t.Run(c.name, func(t *testing.T) {
			_, err := env.run(t, c.args...)
			rtest.Assert(t, err != nil, "expected an error")
			rtest.Equals(t, 1, exitCode(err))
		})
	}
}

func TestMissingRepository(t *testing.T) {
	env := setupEnv(t)
	env.repo = filepath.Join(env.base, "missing")
	_, err := env.run(t, "restore", "-t", filepath.Join(env.base, "target"), "4")
	rtest.Assert(t, errors.IsFatal(err), "expected fatal error, got %v", err)
}

func TestVersionsCommand(t *testing.T) {
	env := setupEnv(t)

	out, err := env.run(t, "versions")
	rtest.OK(t, err)
	rtest.Equals(t, "4\n", out)

	out, err = env.run(t, "--json", "versions")
	rtest.OK(t, err)
	rtest.Equals(t, "[4]\n", out)
}

func TestOptionsCommand(t *testing.T) {
	var buf bytes.Buffer
	printOptions(&buf)
	for _, name := range []string{"cache.lru", "pattern.wildcard", "segment.algorithm", "assembly.area", "optimal.window"} {
		rtest.Assert(t, strings.Contains(buf.String(), name), "option %v missing in:\n%s", name, buf.String())
	}
}

func TestRestoreOptionsPrecedence(t *testing.T) {
	cfg, err := config.Parse([]byte("strategy: optimal\ncache:\n  lru: 3\n  meta: 9\n"))
	rtest.OK(t, err)

	var opts RestoreOptions
	flags := pflag.NewFlagSet("restore", pflag.ContinueOnError)
	opts.AddFlags(flags)
	rtest.OK(t, flags.Parse([]string{"--cache-size", "5", "--wildcard", "4"}))

	gopts := newGlobalOptions()
	gopts.Options = []string{"pattern.wildcard=6"}
	rtest.OK(t, gopts.PreRun())
	gopts.cfg = cfg

	ropts, err := opts.restoreOptions(gopts, flags)
	rtest.OK(t, err)

	// config file
	rtest.Equals(t, restorer.StrategyOptimal, ropts.Strategy)
	rtest.Equals(t, 9, ropts.MetaCacheSize)
	// flag overrides config file
	rtest.Equals(t, 5, ropts.CacheSize)
	// extended option overrides flag
	rtest.Equals(t, 6, ropts.Wildcard)
	// defaults for everything else
	rtest.Equals(t, restorer.DefaultPrefetchPercent, ropts.PrefetchPercent)
}

func TestExitCode(t *testing.T) {
	rtest.Equals(t, 0, exitCode(nil))
	rtest.Equals(t, 1, exitCode(errors.Fatal("invalid")))
	rtest.Equals(t, 1, exitCode(errors.Consistency("chunk missing")))
	rtest.Equals(t, 130, exitCode(errors.Wrap(context.Canceled, "restore")))
}
