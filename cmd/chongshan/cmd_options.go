package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fdl66/chongshan/internal/options"
)

func newOptionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Print list of extended options",
		Long: `
The "options" command prints a list of extended options. They are set with
-o namespace.key=value and override flags and the configuration file.

EXIT STATUS
===========

Exit status is 0 if the command was successful.
Exit status is 1 if there was any error.
`,
		DisableAutoGenTag: true,
		Run: func(cmd *cobra.Command, _ []string) {
			printOptions(cmd.OutOrStdout())
		},
	}
	return cmd
}

func printOptions(w io.Writer) {
	list := options.List()

	_, _ = fmt.Fprintf(w, "All Extended Options:\n")
	var maxLen int
	for _, opt := range list {
		if l := len(opt.Namespace + "." + opt.Name); l > maxLen {
			maxLen = l
		}
	}
	for _, opt := range list {
		_, _ = fmt.Fprintf(w, "  %*s  %s\n", -maxLen, opt.Namespace+"."+opt.Name, opt.Text)
	}
}
