package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/prn-tf/deltaglider/internal/engine"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <s3://bucket/key> [<local>]",
		Short: "Download and reconstruct an object",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := parseS3URL(args[0])
			if err != nil {
				return err
			}
			if src.isPrefix() {
				return usagef("get needs an object key, got prefix %q", args[0])
			}

			local := path.Base(src.Key)
			if len(args) == 2 {
				local = args[1]
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return getFile(cmd, a, src, local)
		},
	}
}

func getFile(cmd *cobra.Command, a *app, src s3URL, local string) error {
	out, err := a.engine.GetObject(cmd.Context(), &engine.GetObjectInput{
		Bucket: src.Bucket,
		Key:    src.Key,
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	if info, err := os.Stat(local); err == nil && info.IsDir() {
		local = filepath.Join(local, path.Base(src.Key))
	}

	f, err := os.Create(local)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := io.Copy(f, out.Body)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "get s3://%s/%s -> %s (%d bytes)\n", src.Bucket, src.Key, local, n)
	return nil
}
