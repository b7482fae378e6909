package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/backkem/traverse/pkg/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show every setting and its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tKIND\tSOURCE\tVALUE")
			for _, d := range config.Definitions {
				value, set := opts.resolver.String(d.Key)
				source := "set"
				if !set {
					value, source = d.Default, "default"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Key, d.Kind, source, value)
			}
			return w.Flush()
		},
	}
}
