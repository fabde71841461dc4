package tagger

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories/post"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"go.uber.org/fx"
)

// Match returns the names of the rules with a keyword contained in text,
// case-insensitively, in rule order. In "first" mode only the first hit counts.
func Match(text string, rules []config.TagRule, mode string) []string {
	haystack := strings.ToLower(text)
	var out []string
	for _, rule := range rules {
		if slices.Contains(out, rule.Name) {
			continue
		}
		for _, kw := range rule.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(kw)) {
				out = append(out, rule.Name)
				break
			}
		}
		if mode == config.TagModeFirst && len(out) > 0 {
			break
		}
	}
	return out
}

type Options struct {
	// Force re-evaluates every record that is not removed.
	Force bool
}

type Result struct {
	Tagged    int
	Unmatched int
	Skipped   int
}

type Opts struct {
	fx.In
	Config   *config.Config
	Logger   logger.Logger
	PostRepo post.Repository
}

type Tagger struct {
	rules    []config.TagRule
	mode     string
	fallback string
	logger   logger.Logger
	postRepo post.Repository
}

func New(opts Opts) *Tagger {
	return &Tagger{
		rules:    opts.Config.TagRules,
		mode:     opts.Config.Tagging.Mode,
		fallback: opts.Config.Tagging.Fallback(),
		logger:   opts.Logger.WithComponent("Tagger"),
		postRepo: opts.PostRepo,
	}
}

// ruleTags are the tags this tagger can produce; anything else on a record
// was added by hand.
func (t *Tagger) ruleTags() map[string]struct{} {
	out := make(map[string]struct{}, len(t.rules)+1)
	for _, r := range t.rules {
		out[r.Name] = struct{}{}
	}
	if t.fallback != "" {
		out[t.fallback] = struct{}{}
	}
	return out
}

// Apply computes the tags of one record. It reports whether the record now
// carries a tag.
func (t *Tagger) Apply(rec *domain.PostRecord, force bool) bool {
	if force {
		produced := t.ruleTags()
		kept := rec.Tags[:0:0]
		for _, tag := range rec.Tags {
			if _, ok := produced[tag]; !ok {
				kept = append(kept, tag)
			}
		}
		rec.Tags = kept
	}

	matched := Match(rec.SearchText(), t.rules, t.mode)
	if len(matched) == 0 && t.fallback != "" {
		matched = []string{t.fallback}
	}
	rec.AddTags(matched...)

	if len(rec.Tags) == 0 {
		return false
	}
	if rec.Status == domain.StatusUntagged || rec.Status == "" {
		rec.Status = domain.StatusTagged
	}
	return true
}

// Run tags the untagged records, or every live record with Force, then
// checkpoints the store.
func (t *Tagger) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result

	records, err := t.postRepo.List(ctx, domain.Filter{})
	if err != nil {
		return res, fmt.Errorf("list records: %w", err)
	}

	for _, rec := range records {
		if !opts.Force && rec.Status != domain.StatusUntagged {
			res.Skipped++
			continue
		}

		before := rec.Clone()
		if t.Apply(&rec, opts.Force) {
			res.Tagged++
		} else {
			res.Unmatched++
		}

		if slices.Equal(before.Tags, rec.Tags) && before.Status == rec.Status {
			continue
		}
		if err := t.postRepo.Upsert(ctx, rec); err != nil {
			return res, fmt.Errorf("store record %s: %w", rec.ID, err)
		}
	}

	if err := t.postRepo.Save(ctx); err != nil {
		return res, fmt.Errorf("save record store: %w", err)
	}

	t.logger.Info("Tagging finished", "tagged", res.Tagged, "unmatched", res.Unmatched, "skipped", res.Skipped, "force", opts.Force)
	return res, nil
}
