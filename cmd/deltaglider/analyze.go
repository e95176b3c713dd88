package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prn-tf/deltaglider/internal/analyze"
)

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <s3://bucket/[prefix/]>",
		Short: "Estimate savings without converting anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseS3URL(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}

			report, err := analyze.New(a.store, a.logger).Analyze(cmd.Context(), target.Bucket, target.Key)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "files:           %d\n", report.FileCount)
			fmt.Fprintf(w, "original bytes:  %d\n", report.OriginalBytes)
			fmt.Fprintf(w, "projected bytes: %d\n", report.ProjectedBytes)
			fmt.Fprintf(w, "projected ratio: %.2f%%\n", 100*report.ProjectedRatio)

			if len(report.Groups) > 0 {
				fmt.Fprintln(w, "groups:")
				for _, g := range report.Groups {
					fmt.Fprintf(w, "  %-40s %4d files %14d -> %d\n",
						g.GroupID, g.FileCount, g.OriginalBytes, g.ProjectedBytes)
				}
			}
			return nil
		},
	}
}
