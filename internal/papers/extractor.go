package papers

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/orgball2608/xhs-likes-manager/internal/arxiv"
	"github.com/orgball2608/xhs-likes-manager/internal/browser"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories/post"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"go.uber.org/fx"
)

// shortTextRunes is the length under which an image-heavy paper post is
// assumed to carry its content in the images.
const shortTextRunes = 100

type Options struct {
	// Force re-processes records that were already extracted.
	Force bool
}

type Result struct {
	Processed      int
	Extracted      int
	Lookups        int
	LookupFailures int
	DetailFailures int
	Skipped        int
}

type Opts struct {
	fx.In
	Config   *config.Config
	Logger   logger.Logger
	PostRepo post.Repository
	Arxiv    arxiv.Client
}

type Extractor struct {
	config   config.PaperExtractionConfig
	logger   logger.Logger
	postRepo post.Repository
	arxiv    arxiv.Client
	now      func() time.Time
}

func New(opts Opts) *Extractor {
	return &Extractor{
		config:   opts.Config.PaperExtraction,
		logger:   opts.Logger.WithComponent("PaperExtractor"),
		postRepo: opts.PostRepo,
		arxiv:    opts.Arxiv,
		now:      time.Now,
	}
}

// Candidates lists the live records carrying the trigger tag that still need
// extraction.
func (e *Extractor) Candidates(ctx context.Context, opts Options) ([]domain.PostRecord, int, error) {
	records, err := e.postRepo.List(ctx, domain.Filter{Tag: e.config.TriggerTag})
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	var out []domain.PostRecord
	skipped := 0
	for _, rec := range records {
		if rec.Extraction != domain.ExtractionNone && !opts.Force {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// Run processes every candidate. sess may be nil, in which case only the
// stored title and text are examined. Each record is checkpointed as soon as
// it is done.
func (e *Extractor) Run(ctx context.Context, sess browser.Session, opts Options) (Result, error) {
	var res Result

	candidates, skipped, err := e.Candidates(ctx, opts)
	if err != nil {
		return res, err
	}
	res.Skipped = skipped
	e.logger.Info("Extracting papers", "candidates", len(candidates), "skipped", skipped, "browser", sess != nil)

	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := e.Process(ctx, sess, &rec, &res); err != nil {
			return res, err
		}
		if err := e.postRepo.Upsert(ctx, rec); err != nil {
			return res, fmt.Errorf("store record %s: %w", rec.ID, err)
		}
		if err := e.postRepo.Save(ctx); err != nil {
			return res, fmt.Errorf("save record store: %w", err)
		}
	}

	e.logger.Info("Paper extraction finished",
		"processed", res.Processed,
		"extracted", res.Extracted,
		"lookups", res.Lookups,
		"lookup_failures", res.LookupFailures,
		"skipped", res.Skipped,
	)
	return res, nil
}

// Process extracts paper references for one record in place. Only a
// cancelled context or an expired session is returned as an error.
func (e *Extractor) Process(ctx context.Context, sess browser.Session, rec *domain.PostRecord, res *Result) error {
	log := e.logger.With("id", rec.ID)
	imageCount := 0

	if sess != nil {
		detail, err := sess.PostDetail(ctx, *rec)
		switch {
		case err == nil:
			if detail.Text != "" && detail.Text != rec.Text {
				rec.Text = detail.Text
			}
			imageCount = detail.ImageCount
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, browser.ErrSessionExpired):
			return err
		default:
			res.DetailFailures++
			log.Warn("Could not read note detail, using stored text", "error", err)
		}
	}

	text := rec.SearchText()
	ids := ExtractArxivIDs(text)
	titles := ExtractTitles(text)

	refs := make([]domain.PaperRef, 0, len(ids)+len(titles))
	known := make(map[string]struct{})
	addRef := func(ref domain.PaperRef) {
		if ref.ArxivID != "" {
			if _, dup := known[ref.ArxivID]; dup {
				return
			}
			known[ref.ArxivID] = struct{}{}
		}
		refs = append(refs, ref)
	}

	for _, id := range ids {
		addRef(domain.PaperRef{ArxivID: id, Source: domain.PaperSourceRegex})
	}

	for i, title := range titles {
		if len(ids) > 0 || i >= e.config.MaxTitleLookups {
			addRef(domain.PaperRef{Title: title, Source: domain.PaperSourceRegex})
			continue
		}

		res.Lookups++
		papers, err := e.arxiv.Search(ctx, title, e.config.ArxivMaxResults)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.LookupFailures++
			log.Warn("arXiv lookup failed", "title", title, "error", err)
		}
		if len(papers) == 0 {
			addRef(domain.PaperRef{Title: title, Source: domain.PaperSourceRegex})
			continue
		}
		for _, p := range papers {
			addRef(domain.PaperRef{ArxivID: p.ID, Title: p.Title, Source: domain.PaperSourceAPILookup})
		}
	}

	rec.PaperRefs = refs
	rec.Extraction = classify(text, ids, titles, refs, imageCount)
	at := e.now().UTC()
	rec.ExtractedAt = &at

	res.Processed++
	if rec.Extraction == domain.ExtractionExtracted {
		res.Extracted++
	}
	log.Info("Extracted", "status", rec.Extraction, "refs", len(refs))
	return nil
}

func classify(text string, ids, titles []string, refs []domain.PaperRef, imageCount int) domain.ExtractionStatus {
	paperLike := LooksLikePaper(text, ids, titles)
	switch {
	case len(refs) > 0:
		return domain.ExtractionExtracted
	case paperLike && imageCount > 0 && utf8.RuneCountInString(text) < shortTextRunes:
		return domain.ExtractionNeedsVision
	case paperLike:
		return domain.ExtractionNoIDFound
	default:
		return domain.ExtractionInsight
	}
}
