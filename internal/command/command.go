package command

import (
	"context"
	"io"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/fetcher"
	"github.com/orgball2608/xhs-likes-manager/internal/papers"
	"github.com/orgball2608/xhs-likes-manager/internal/review"
	"github.com/orgball2608/xhs-likes-manager/internal/tagger"
)

type FetchOptions struct {
	Kinds []domain.Kind
	Full  bool
}

type FetchSummary struct {
	UserID   string
	Results  []fetcher.Result
	Exported []string
}

type ListOptions struct {
	Tag            string
	Kind           domain.Kind
	IncludeRemoved bool
}

type ExtractOptions struct {
	Force     bool
	NoBrowser bool
}

type UnlikeOptions struct {
	// ID unlikes a single record; Pending processes every removed like not
	// yet withdrawn on the site.
	ID      string
	Pending bool
}

type UnlikeSummary struct {
	Unliked []string
	// Manual lists records marked removed whose like button could not be clicked.
	Manual []string
}

type KindStats struct {
	Kind      domain.Kind
	Total     int
	Untagged  int
	Tagged    int
	Reviewed  int
	Removed   int
	LastFetch time.Time
}

type TagCount struct {
	Tag   string
	Count int
}

type ExtractionCount struct {
	Status domain.ExtractionStatus
	Count  int
}

type Stats struct {
	Kinds      []KindStats
	Tags       []TagCount
	Extraction []ExtractionCount
}

type WatchOptions struct {
	Cron   string
	RunNow bool
}

type WatchSummary struct {
	Fetch FetchSummary
	Tag   tagger.Result
}

type Client interface {
	// Login opens a visible browser, waits for the user to confirm on in and
	// reports the detected account, or "" when it could not be verified.
	Login(ctx context.Context, in io.Reader, out io.Writer) (string, error)
	Fetch(ctx context.Context, opts FetchOptions) (FetchSummary, error)
	Tag(ctx context.Context, opts tagger.Options) (tagger.Result, error)
	Stats(ctx context.Context) (Stats, error)
	List(ctx context.Context, opts ListOptions) ([]domain.PostRecord, error)
	ExtractPapers(ctx context.Context, opts ExtractOptions) (papers.Result, error)
	Unlike(ctx context.Context, opts UnlikeOptions) (UnlikeSummary, error)
	Review(ctx context.Context, in io.Reader, out io.Writer, opts review.Options) (review.Result, error)
	Export(ctx context.Context) ([]string, error)
	// Watch runs fetch and tag on a schedule until ctx is cancelled.
	Watch(ctx context.Context, opts WatchOptions) error
}
