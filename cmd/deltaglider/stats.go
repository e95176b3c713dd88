package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "stats <bucket>",
		Short: "Report stored versus logical bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}

			out, err := a.engine.Stats(cmd.Context(), args[0], prefix)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "bucket:        %s\n", out.Bucket)
			if out.Prefix != "" {
				fmt.Fprintf(w, "prefix:        %s\n", out.Prefix)
			}
			fmt.Fprintf(w, "objects:       %d\n", out.ObjectCount)
			fmt.Fprintf(w, "logical bytes: %d\n", out.LogicalBytes)
			fmt.Fprintf(w, "stored bytes:  %d\n", out.StoredBytes)
			fmt.Fprintf(w, "saved:         %.1f%%\n", out.SavedPct)
			fmt.Fprintf(w, "cache:         %d hits, %d misses, %d evictions\n",
				out.Cache.Hits, out.Cache.Misses, out.Cache.Evictions)

			if len(out.Groups) > 0 {
				fmt.Fprintln(w, "groups:")
				for _, g := range out.Groups {
					fmt.Fprintf(w, "  %-40s %4d objects %14d -> %-14d %.1f%%\n",
						g.GroupID, g.ObjectCount, g.LogicalBytes, g.StoredBytes, g.SavedPct)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "restrict to keys under this prefix")
	return cmd
}
