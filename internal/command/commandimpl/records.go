package commandimpl

import (
	"context"
	"io"
	"sort"

	"github.com/orgball2608/xhs-likes-manager/internal/command"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/review"
	"github.com/orgball2608/xhs-likes-manager/internal/tagger"
)

func (c *CommandImpl) Tag(ctx context.Context, opts tagger.Options) (tagger.Result, error) {
	res, err := c.tagger.Run(ctx, opts)
	if err != nil {
		return res, classify(err)
	}
	c.refreshExport(ctx)
	return res, nil
}

func (c *CommandImpl) List(ctx context.Context, opts command.ListOptions) ([]domain.PostRecord, error) {
	records, err := c.postRepo.List(ctx, domain.Filter{
		Kind:           opts.Kind,
		Tag:            opts.Tag,
		IncludeRemoved: opts.IncludeRemoved,
	})
	return records, wrapf(err, "list records")
}

// Stats counts every record per collection; the tag and extraction
// distributions leave removed records out.
func (c *CommandImpl) Stats(ctx context.Context) (command.Stats, error) {
	var stats command.Stats
	records, err := c.postRepo.List(ctx, domain.Filter{IncludeRemoved: true})
	if err != nil {
		return stats, wrapf(err, "list records")
	}

	perKind := make(map[domain.Kind]*command.KindStats, len(allKinds))
	for _, kind := range allKinds {
		last, err := c.postRepo.LastFetch(ctx, kind)
		if err != nil {
			return stats, wrapf(err, "read last fetch")
		}
		stats.Kinds = append(stats.Kinds, command.KindStats{Kind: kind, LastFetch: last})
	}
	for i := range stats.Kinds {
		perKind[stats.Kinds[i].Kind] = &stats.Kinds[i]
	}

	tags := make(map[string]int)
	extraction := make(map[domain.ExtractionStatus]int)
	for _, rec := range records {
		if ks, ok := perKind[rec.Kind]; ok {
			ks.Total++
			switch rec.Status {
			case domain.StatusUntagged:
				ks.Untagged++
			case domain.StatusTagged:
				ks.Tagged++
			case domain.StatusReviewed:
				ks.Reviewed++
			case domain.StatusRemoved:
				ks.Removed++
			}
		}
		if rec.IsRemoved() {
			continue
		}
		for _, t := range rec.Tags {
			tags[t]++
		}
		if rec.Extraction != domain.ExtractionNone {
			extraction[rec.Extraction]++
		}
	}

	for t, n := range tags {
		stats.Tags = append(stats.Tags, command.TagCount{Tag: t, Count: n})
	}
	sort.Slice(stats.Tags, func(i, j int) bool {
		if stats.Tags[i].Count != stats.Tags[j].Count {
			return stats.Tags[i].Count > stats.Tags[j].Count
		}
		return stats.Tags[i].Tag < stats.Tags[j].Tag
	})

	for s, n := range extraction {
		stats.Extraction = append(stats.Extraction, command.ExtractionCount{Status: s, Count: n})
	}
	sort.Slice(stats.Extraction, func(i, j int) bool {
		return stats.Extraction[i].Status < stats.Extraction[j].Status
	})
	return stats, nil
}

func (c *CommandImpl) Review(ctx context.Context, in io.Reader, out io.Writer, opts review.Options) (review.Result, error) {
	res, err := c.reviewer.Run(ctx, in, out, opts)
	if err != nil {
		return res, classify(err)
	}
	if res.Kept+res.Removed+res.Tagged+res.Noted > 0 {
		c.refreshExport(ctx)
	}
	return res, nil
}

func (c *CommandImpl) Export(ctx context.Context) ([]string, error) {
	paths, err := c.exporter.Run(ctx)
	return paths, wrapf(err, "export markdown")
}
