// Package analyze estimates the savings DeltaGlider would achieve on an
// existing bucket, offline: keys are classified by filename and size
// only, no body is downloaded.
package analyze

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/deltaglider/internal/classify"
	"github.com/prn-tf/deltaglider/internal/naming"
	"github.com/prn-tf/deltaglider/internal/store"
)

// Typical compression ratios used for projection: archives of the same
// group usually delta down to ~1% of their size; direct families keep
// their full footprint.
const (
	archiveTypicalRatio = 0.99
	directTypicalRatio  = 0.0
)

// GroupReport projects one group's savings.
type GroupReport struct {
	GroupID        string
	FileCount      int
	OriginalBytes  int64
	ProjectedBytes int64
}

// Report is the bucket-level projection.
type Report struct {
	Bucket         string
	Prefix         string
	FileCount      int
	OriginalBytes  int64
	ProjectedBytes int64
	ProjectedRatio float64
	Groups         []GroupReport
}

// Analyzer walks key spaces and projects savings.
type Analyzer struct {
	store  store.BucketService
	logger zerolog.Logger
}

// New creates an analyzer over a bucket service.
func New(svc store.BucketService, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		store:  svc,
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze walks bucket/prefix and estimates the DeltaGlider footprint:
// per group, the first candidate stays full-size (it would become the
// reference) and every further candidate shrinks by the family's
// typical ratio.
func (a *Analyzer) Analyze(ctx context.Context, bucket, prefix string) (*Report, error) {
	start := time.Now()

	report := &Report{Bucket: bucket, Prefix: prefix}
	groups := make(map[string]*GroupReport)
	candidates := make(map[string]int)

	token := ""
	for {
		page, err := a.store.List(ctx, store.ListInput{Bucket: bucket, Prefix: prefix, ContinuationToken: token})
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Objects {
			if naming.IsReferenceKey(obj.Key) || naming.IsDeltaKey(obj.Key) {
				// Already converted; its footprint is what it is.
				continue
			}

			id := naming.Identify(obj.Key)
			g, ok := groups[id.GroupID]
			if !ok {
				g = &GroupReport{GroupID: id.GroupID}
				groups[id.GroupID] = g
			}

			g.FileCount++
			g.OriginalBytes += obj.Size
			report.FileCount++
			report.OriginalBytes += obj.Size

			verdict := classify.File(id.Filename, obj.Size)
			if verdict == classify.DeltaCandidate {
				candidates[id.GroupID]++
			}
			switch {
			case verdict != classify.DeltaCandidate:
				g.ProjectedBytes += obj.Size
			case candidates[id.GroupID] == 1:
				// The first candidate seeds the reference at full size.
				g.ProjectedBytes += obj.Size
			default:
				ratio := directTypicalRatio
				if classify.IsArchiveFamily(id.Family) {
					ratio = archiveTypicalRatio
				}
				g.ProjectedBytes += int64(float64(obj.Size) * (1 - ratio))
			}
		}

		if !page.IsTruncated {
			break
		}
		token = page.NextContinuationToken
	}

	for _, g := range groups {
		report.ProjectedBytes += g.ProjectedBytes
		report.Groups = append(report.Groups, *g)
	}
	sort.Slice(report.Groups, func(i, j int) bool { return report.Groups[i].GroupID < report.Groups[j].GroupID })

	if report.OriginalBytes > 0 {
		report.ProjectedRatio = 1 - float64(report.ProjectedBytes)/float64(report.OriginalBytes)
	}

	a.logger.Debug().
		Str("bucket", bucket).
		Str("prefix", prefix).
		Int("files", report.FileCount).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")
	return report, nil
}
