package main

import "strings"

const s3Scheme = "s3://"

// s3URL is a parsed s3://bucket/key destination.
type s3URL struct {
	Bucket string
	Key    string
}

// isS3URL reports whether s names a remote object or prefix.
func isS3URL(s string) bool {
	return strings.HasPrefix(s, s3Scheme)
}

// parseS3URL splits s3://bucket/key into its parts. The key may be
// empty (whole bucket) or end in "/" (prefix).
func parseS3URL(s string) (s3URL, error) {
	if !isS3URL(s) {
		return s3URL{}, usagef("not an s3:// URL: %q", s)
	}
	rest := strings.TrimPrefix(s, s3Scheme)
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return s3URL{}, usagef("missing bucket in %q", s)
	}
	return s3URL{Bucket: bucket, Key: key}, nil
}

// isPrefix reports whether the URL names a prefix rather than an object.
func (u s3URL) isPrefix() bool {
	return u.Key == "" || strings.HasSuffix(u.Key, "/")
}

// join appends a filename to a prefix URL.
func (u s3URL) join(name string) string {
	if u.Key == "" {
		return name
	}
	return strings.TrimSuffix(u.Key, "/") + "/" + name
}
