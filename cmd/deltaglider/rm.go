package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prn-tf/deltaglider/internal/engine"
)

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <s3://bucket/key> [...]",
		Short: "Delete logical objects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}

			for _, arg := range args {
				target, err := parseS3URL(arg)
				if err != nil {
					return err
				}
				if target.isPrefix() {
					return usagef("rm needs object keys, got prefix %q", arg)
				}

				if _, err := a.engine.DeleteObject(cmd.Context(), &engine.DeleteObjectInput{
					Bucket: target.Bucket,
					Key:    target.Key,
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rm s3://%s/%s\n", target.Bucket, target.Key)
			}
			return nil
		},
	}
}
