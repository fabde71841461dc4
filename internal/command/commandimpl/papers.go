package commandimpl

import (
	"context"
	"errors"
	"fmt"

	"github.com/orgball2608/xhs-likes-manager/internal/browser"
	"github.com/orgball2608/xhs-likes-manager/internal/command"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/papers"
	pkgerrors "github.com/orgball2608/xhs-likes-manager/pkg/errors"
)

func (c *CommandImpl) ExtractPapers(ctx context.Context, opts command.ExtractOptions) (papers.Result, error) {
	popts := papers.Options{Force: opts.Force}

	var sess browser.Session
	if !opts.NoBrowser {
		candidates, _, err := c.extractor.Candidates(ctx, popts)
		if err != nil {
			return papers.Result{}, classify(err)
		}
		// nothing to read, so no reason to start Chromium
		if len(candidates) > 0 {
			if sess, err = c.openSession(ctx, c.config.Browser.Headless); err != nil {
				return papers.Result{}, err
			}
			defer c.closeSession(sess)
		}
	}

	res, err := c.extractor.Run(ctx, sess, popts)
	return res, classify(err)
}

// Unlike withdraws likes on the site. A record whose like button cannot be
// clicked is still marked removed and reported for manual follow-up.
func (c *CommandImpl) Unlike(ctx context.Context, opts command.UnlikeOptions) (command.UnlikeSummary, error) {
	var summary command.UnlikeSummary

	targets, err := c.unlikeTargets(ctx, opts)
	if err != nil || len(targets) == 0 {
		return summary, err
	}

	sess, err := c.openSession(ctx, c.config.Browser.Headless)
	if err != nil {
		return summary, err
	}
	defer c.closeSession(sess)

	for _, rec := range targets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		log := c.logger.With("id", rec.ID)

		at := c.now().UTC()
		err := sess.ClickUnlike(ctx, rec)
		switch {
		case err == nil:
			rec.MarkUnliked(at)
			summary.Unliked = append(summary.Unliked, rec.ID)
			log.Info("Unliked")
		case ctx.Err() != nil:
			return summary, ctx.Err()
		case errors.Is(err, browser.ErrSessionExpired):
			return summary, classify(err)
		default:
			rec.MarkRemoved(at)
			summary.Manual = append(summary.Manual, rec.ID)
			log.Warn("Could not unlike on the site", "error", err)
		}

		if err := c.postRepo.Upsert(ctx, rec); err != nil {
			return summary, fmt.Errorf("store record %s: %w", rec.ID, err)
		}
		if err := c.postRepo.Save(ctx); err != nil {
			return summary, fmt.Errorf("save record store: %w", err)
		}
	}
	return summary, nil
}

func (c *CommandImpl) unlikeTargets(ctx context.Context, opts command.UnlikeOptions) ([]domain.PostRecord, error) {
	if opts.ID != "" {
		rec, err := c.postRepo.Get(ctx, opts.ID)
		if err != nil {
			return nil, classify(err)
		}
		if rec.UnlikedAt != nil {
			c.logger.Info("Already unliked", "id", rec.ID)
			return nil, nil
		}
		return []domain.PostRecord{rec}, nil
	}
	if !opts.Pending {
		return nil, pkgerrors.WrapWithCode(pkgerrors.ErrInvalidInput, pkgerrors.CodeConfig, "give a record id or --pending")
	}

	removed, err := c.postRepo.List(ctx, domain.Filter{
		Kind:     domain.KindLike,
		Statuses: []domain.Status{domain.StatusRemoved},
	})
	if err != nil {
		return nil, wrapf(err, "list removed likes")
	}
	var pending []domain.PostRecord
	for _, rec := range removed {
		if rec.UnlikedAt == nil {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}
