package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fdl66/chongshan/internal/ui"
	"github.com/fdl66/chongshan/internal/ui/termstatus"
)

func newVersionsCommand(gopts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List backup versions",
		Long: `
The "versions" command lists the backup versions stored in the recipe
database, one ID per line.

EXIT STATUS
===========

Exit status is 0 if the command was successful.
Exit status is 1 if there was any error.
`,
		DisableAutoGenTag: true,
		Args:              cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			term, cancel := termstatus.Setup(gopts.stdout, gopts.stderr, gopts.Quiet)
			defer cancel()
			return runVersions(cmd.Context(), gopts, term)
		},
	}
	return cmd
}

func runVersions(ctx context.Context, gopts *GlobalOptions, term ui.Terminal) error {
	recipes, err := OpenRecipes(ctx, gopts)
	if err != nil {
		return err
	}
	defer func() {
		_ = recipes.Close()
	}()

	ids, err := recipes.Versions(ctx)
	if err != nil {
		return err
	}

	if gopts.JSON {
		if ids == nil {
			ids = []int{}
		}
		term.Print(ui.ToJSONString(ids))
		return nil
	}
	for _, id := range ids {
		term.Print(strconv.Itoa(id))
	}
	return nil
}
