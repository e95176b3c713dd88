package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/prn-tf/deltaglider/internal/engine"
)

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local...> <s3://bucket/prefix/>",
		Short: "Upload local files, delta-compressing where it pays off",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := parseS3URL(args[len(args)-1])
			if err != nil {
				return err
			}
			if !dest.isPrefix() {
				return usagef("put destination must be a bucket or prefix, got %q", args[len(args)-1])
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}

			for _, local := range args[:len(args)-1] {
				if err := putPath(cmd, a, local, dest); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// putPath uploads a file, or every regular file under a directory.
func putPath(cmd *cobra.Command, a *app, local string, dest s3URL) error {
	info, err := os.Stat(local)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return putFile(cmd, a, local, dest.Bucket, dest.join(filepath.Base(local)))
	}

	root := filepath.Clean(local)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return putFile(cmd, a, path, dest.Bucket, dest.join(filepath.ToSlash(rel)))
	})
}

func putFile(cmd *cobra.Command, a *app, local, bucket, key string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := a.engine.PutObject(cmd.Context(), &engine.PutObjectInput{
		Bucket: bucket,
		Key:    key,
		Body:   f,
	})
	if err != nil {
		return err
	}

	suffix := ""
	if out.Metadata["deltaglider-is-delta"] == "true" {
		suffix = fmt.Sprintf(" (delta, ratio %s)", out.Metadata["deltaglider-compression-ratio"])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "put s3://%s/%s%s\n", bucket, key, suffix)
	return nil
}
