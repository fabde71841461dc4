package fetcherimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/browser"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/fetcher"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories/post"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In
	Config   *config.Config
	Logger   logger.Logger
	PostRepo post.Repository
}

type FetcherImpl struct {
	config   *config.Config
	logger   logger.Logger
	postRepo post.Repository
	now      func() time.Time
}

var _ fetcher.Fetcher = (*FetcherImpl)(nil)

func New(opts Opts) *FetcherImpl {
	return &FetcherImpl{
		config:   opts.Config,
		logger:   opts.Logger.WithComponent("Fetcher"),
		postRepo: opts.PostRepo,
		now:      time.Now,
	}
}

func (f *FetcherImpl) maxScrolls(kind domain.Kind) int {
	if kind == domain.KindBookmark {
		return f.config.Fetch.MaxScrollsBookmarks
	}
	return f.config.Fetch.MaxScrollsLikes
}

// batch holds the state of one collection run.
type batch struct {
	kind domain.Kind
	opts fetcher.Options
	now  time.Time
	seen map[string]struct{}
	// stored holds every id in the store and decides insert versus refresh.
	stored map[string]struct{}
	// known holds the ids of this collection covered by an earlier complete
	// fetch; only they count as "not new" for the incremental stopping rule.
	known  map[string]struct{}
	result fetcher.Result
}

func (f *FetcherImpl) Fetch(ctx context.Context, sess browser.Session, userID string, kind domain.Kind, opts fetcher.Options) (fetcher.Result, error) {
	existing, err := f.postRepo.List(ctx, domain.Filter{IncludeRemoved: true})
	if err != nil {
		return fetcher.Result{Kind: kind}, fmt.Errorf("list stored records: %w", err)
	}
	lastFetch, err := f.postRepo.LastFetch(ctx, kind)
	if err != nil {
		return fetcher.Result{Kind: kind}, fmt.Errorf("read last fetch: %w", err)
	}
	baseline := !lastFetch.IsZero()

	b := &batch{
		kind:   kind,
		opts:   opts,
		now:    f.now().UTC(),
		seen:   make(map[string]struct{}),
		stored: make(map[string]struct{}, len(existing)),
		known:  make(map[string]struct{}),
		result: fetcher.Result{Kind: kind},
	}
	for _, rec := range existing {
		b.stored[rec.ID] = struct{}{}
		// without a complete earlier pass the store cannot say where the
		// already-fetched region ends, so novelty falls back to this session
		if baseline && rec.Kind == kind {
			b.known[rec.ID] = struct{}{}
		}
	}

	log := f.logger.With("kind", kind.Collection())
	log.Info("Opening feed", "user_id", userID, "full", opts.Full, "baseline", baseline)

	first, err := sess.OpenFeed(ctx, userID, kind)
	if err != nil {
		return b.result, fmt.Errorf("open %s feed: %w", kind.Collection(), err)
	}
	if _, err := f.merge(ctx, b, first); err != nil {
		return b.result, err
	}
	log.Info("Initial page loaded", "found", b.result.Found)

	noChange := 0
	threshold := f.config.Fetch.NoChangeThreshold
	drained := false
	for i := 0; i < f.maxScrolls(kind); i++ {
		posts, err := sess.Scroll(ctx)
		if err != nil {
			b.result.Err = fmt.Errorf("scroll %d: %w", i+1, err)
			log.Warn("Scroll failed, keeping what was collected", "scroll", i+1, "error", err)
			break
		}
		b.result.Scrolls++

		novel, err := f.merge(ctx, b, posts)
		if err != nil {
			return b.result, err
		}
		if novel == 0 {
			noChange++
			if noChange >= threshold {
				log.Debug("No new notes, stopping", "scrolls", b.result.Scrolls)
				drained = true
				break
			}
			continue
		}
		noChange = 0
		log.Info("Scrolled", "scroll", i+1, "found", b.result.Found, "new", b.result.New)
	}

	if b.result.Err == nil && !drained {
		b.result.Capped = true
		log.Warn("Stopped at the scroll limit, older notes may be missing", "max_scrolls", f.maxScrolls(kind))
	}

	// checkpoint even when the caller's context was cancelled mid-scroll.
	// A capped run only counts as complete when an earlier pass already was.
	saveCtx := context.WithoutCancel(ctx)
	if b.result.Err == nil && (drained || baseline) {
		if err := f.postRepo.SetLastFetch(saveCtx, kind, b.now); err != nil {
			return b.result, fmt.Errorf("record last fetch: %w", err)
		}
	}
	if err := f.postRepo.Save(saveCtx); err != nil {
		return b.result, fmt.Errorf("save record store: %w", err)
	}

	log.Info("Fetch finished",
		"found", b.result.Found,
		"new", b.result.New,
		"refreshed", b.result.Refreshed,
		"skipped", b.result.Skipped,
		"scrolls", b.result.Scrolls,
	)
	return b.result, b.result.Err
}

// merge upserts the notes of one page and returns how many of them count as
// new for the stopping rule.
func (f *FetcherImpl) merge(ctx context.Context, b *batch, posts []browser.RawPost) (int, error) {
	novel := 0
	for _, raw := range posts {
		rec, err := fetcher.ParseRawPost(raw, f.config.BaseURL, b.kind, b.now)
		if err != nil {
			b.result.Skipped++
			f.logger.Warn("Skipping note", "error", err)
			continue
		}
		if _, dup := b.seen[rec.ID]; dup {
			continue
		}
		b.seen[rec.ID] = struct{}{}
		b.result.Found++

		if _, known := b.stored[rec.ID]; !known {
			if err := f.postRepo.Upsert(ctx, rec); err != nil {
				return novel, fmt.Errorf("store note %s: %w", rec.ID, err)
			}
			b.result.New++
			novel++
			continue
		}

		if _, covered := b.known[rec.ID]; b.opts.Full || !covered {
			novel++
		}
		stored, err := f.postRepo.Get(ctx, rec.ID)
		if err != nil {
			return novel, fmt.Errorf("load note %s: %w", rec.ID, err)
		}
		if changed := stored.Refresh(rec); changed {
			f.logger.Debug("Note changed since last fetch", "id", rec.ID)
		}
		if err := f.postRepo.Upsert(ctx, stored); err != nil {
			return novel, fmt.Errorf("store note %s: %w", rec.ID, err)
		}
		b.result.Refreshed++
	}
	return novel, nil
}
