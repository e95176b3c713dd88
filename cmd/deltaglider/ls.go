package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prn-tf/deltaglider/internal/engine"
)

func newLsCmd() *cobra.Command {
	var long bool
	var includeRefs bool

	cmd := &cobra.Command{
		Use:   "ls <s3://bucket/[prefix/]>",
		Short: "List logical objects under a prefix",
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

			token := ""
			for {
				out, err := a.engine.ListObjectsV2(cmd.Context(), &engine.ListObjectsV2Input{
					Bucket:            target.Bucket,
					Prefix:            target.Key,
					ContinuationToken: token,
					IncludeReferences: includeRefs,
				})
				if err != nil {
					return err
				}

				for _, obj := range out.Contents {
					if long {
						flag := " "
						ratio := ""
						if obj.Metadata["deltaglider-is-delta"] == "true" {
							flag = "D"
							ratio = "  " + obj.Metadata["deltaglider-compression-ratio"]
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%s %12d  %s  s3://%s/%s%s\n",
							flag, obj.Size, obj.LastModified.Format("2006-01-02 15:04:05"), target.Bucket, obj.Key, ratio)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "s3://%s/%s\n", target.Bucket, obj.Key)
					}
				}

				if !out.IsTruncated {
					return nil
				}
				token = out.NextContinuationToken
			}
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "show size, date and delta details")
	cmd.Flags().BoolVar(&includeRefs, "include-references", false, "expose group reference objects")
	return cmd
}
