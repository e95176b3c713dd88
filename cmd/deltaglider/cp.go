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

func newCpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cp <src> <dst>",
		Short: "Copy between local paths and s3:// locations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]

			switch {
			case isS3URL(src) && isS3URL(dst):
				return cpRemote(cmd, src, dst)
			case !isS3URL(src) && isS3URL(dst):
				return cpUpload(cmd, src, dst)
			case isS3URL(src) && !isS3URL(dst):
				return cpDownload(cmd, src, dst)
			default:
				return cpLocal(cmd, src, dst)
			}
		},
	}
}

func cpRemote(cmd *cobra.Command, src, dst string) error {
	srcURL, err := parseS3URL(src)
	if err != nil {
		return err
	}
	dstURL, err := parseS3URL(dst)
	if err != nil {
		return err
	}
	if srcURL.isPrefix() {
		return usagef("cp needs an object key, got prefix %q", src)
	}

	dstKey := dstURL.Key
	if dstURL.isPrefix() {
		dstKey = dstURL.join(path.Base(srcURL.Key))
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := a.engine.CopyObject(cmd.Context(), &engine.CopyObjectInput{
		SrcBucket: srcURL.Bucket,
		SrcKey:    srcURL.Key,
		DstBucket: dstURL.Bucket,
		DstKey:    dstKey,
	}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cp s3://%s/%s -> s3://%s/%s\n", srcURL.Bucket, srcURL.Key, dstURL.Bucket, dstKey)
	return nil
}

func cpUpload(cmd *cobra.Command, src, dst string) error {
	dstURL, err := parseS3URL(dst)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	if dstURL.isPrefix() {
		return putPath(cmd, a, src, dstURL)
	}
	return putFile(cmd, a, src, dstURL.Bucket, dstURL.Key)
}

func cpDownload(cmd *cobra.Command, src, dst string) error {
	srcURL, err := parseS3URL(src)
	if err != nil {
		return err
	}
	if srcURL.isPrefix() {
		return usagef("cp needs an object key, got prefix %q", src)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	return getFile(cmd, a, srcURL, dst)
}

func cpLocal(cmd *cobra.Command, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cp %s -> %s (%d bytes)\n", src, dst, n)
	return nil
}
