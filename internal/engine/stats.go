package engine

import (
	"context"
	"sort"
	"time"

	"github.com/prn-tf/deltaglider/internal/cache"
	"github.com/prn-tf/deltaglider/internal/naming"
	"github.com/prn-tf/deltaglider/internal/store"
)

// GroupStats aggregates one group's footprint.
type GroupStats struct {
	GroupID      string
	ObjectCount  int
	LogicalBytes int64
	StoredBytes  int64
	SavedPct     float64
}

// StatsOutput reports bucket-level storage effectiveness.
type StatsOutput struct {
	Bucket       string
	Prefix       string
	ObjectCount  int
	LogicalBytes int64
	StoredBytes  int64
	SavedPct     float64
	Groups       []GroupStats
	Cache        cache.Stats
}

// Stats walks a bucket prefix and reports logical versus stored bytes,
// overall and per group. References count toward stored bytes but are
// not logical objects.
func (e *Engine) Stats(ctx context.Context, bucket, prefix string) (out *StatsOutput, err error) {
	start := time.Now()
	defer func() { e.observe("stats", start, err) }()

	out = &StatsOutput{Bucket: bucket, Prefix: prefix}
	groups := make(map[string]*GroupStats)

	token := ""
	for {
		page, err := e.store.List(ctx, store.ListInput{Bucket: bucket, Prefix: prefix, ContinuationToken: token})
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Objects {
			logical := naming.LogicalKey(obj.Key)
			id := naming.Identify(logical)

			if naming.IsReferenceKey(obj.Key) {
				info, meta, err := e.headMeta(ctx, bucket, obj.Key)
				if err != nil {
					return nil, err
				}
				groupID := id.GroupID
				if info != nil && meta.GroupID != "" {
					groupID = meta.GroupID
				}
				g := groupOf(groups, groupID)
				g.StoredBytes += obj.Size
				out.StoredBytes += obj.Size
				continue
			}

			_, meta, err := e.headMeta(ctx, bucket, obj.Key)
			if err != nil {
				return nil, err
			}
			logicalSize := meta.Size
			if logicalSize == 0 && meta.Kind == KindDirect {
				logicalSize = obj.Size
			}

			g := groupOf(groups, id.GroupID)
			g.ObjectCount++
			g.LogicalBytes += logicalSize
			g.StoredBytes += obj.Size

			out.ObjectCount++
			out.LogicalBytes += logicalSize
			out.StoredBytes += obj.Size
		}

		if !page.IsTruncated {
			break
		}
		token = page.NextContinuationToken
	}

	for _, g := range groups {
		g.SavedPct = savedPct(g.LogicalBytes, g.StoredBytes)
		out.Groups = append(out.Groups, *g)
	}
	sort.Slice(out.Groups, func(i, j int) bool { return out.Groups[i].GroupID < out.Groups[j].GroupID })

	out.SavedPct = savedPct(out.LogicalBytes, out.StoredBytes)
	out.Cache = e.cache.Stats()
	return out, nil
}

func groupOf(groups map[string]*GroupStats, id string) *GroupStats {
	g, ok := groups[id]
	if !ok {
		g = &GroupStats{GroupID: id}
		groups[id] = g
	}
	return g
}

func savedPct(logical, stored int64) float64 {
	if logical <= 0 {
		return 0
	}
	return 100 * (1 - float64(stored)/float64(logical))
}
