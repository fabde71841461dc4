package commandimpl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/browser"
	"github.com/orgball2608/xhs-likes-manager/internal/command"
	"github.com/orgball2608/xhs-likes-manager/internal/export"
	"github.com/orgball2608/xhs-likes-manager/internal/fetcher"
	"github.com/orgball2608/xhs-likes-manager/internal/papers"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories/post"
	"github.com/orgball2608/xhs-likes-manager/internal/review"
	"github.com/orgball2608/xhs-likes-manager/internal/scheduler"
	"github.com/orgball2608/xhs-likes-manager/internal/tagger"
	"github.com/orgball2608/xhs-likes-manager/internal/telegram"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	pkgerrors "github.com/orgball2608/xhs-likes-manager/pkg/errors"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Config    *config.Config
	Logger    logger.Logger
	PostRepo  post.Repository
	Browser   browser.Driver
	Fetcher   fetcher.Fetcher
	Tagger    *tagger.Tagger
	Extractor *papers.Extractor
	Reviewer  *review.Reviewer
	Exporter  *export.Exporter
	Scheduler *scheduler.Scheduler
	Notifier  telegram.Notifier
}

type CommandImpl struct {
	config    *config.Config
	logger    logger.Logger
	postRepo  post.Repository
	browser   browser.Driver
	fetcher   fetcher.Fetcher
	tagger    *tagger.Tagger
	extractor *papers.Extractor
	reviewer  *review.Reviewer
	exporter  *export.Exporter
	scheduler *scheduler.Scheduler
	notifier  telegram.Notifier
	now       func() time.Time
}

var _ command.Client = (*CommandImpl)(nil)

func New(opts Opts) *CommandImpl {
	return &CommandImpl{
		config:    opts.Config,
		logger:    opts.Logger.WithComponent("Command"),
		postRepo:  opts.PostRepo,
		browser:   opts.Browser,
		fetcher:   opts.Fetcher,
		tagger:    opts.Tagger,
		extractor: opts.Extractor,
		reviewer:  opts.Reviewer,
		exporter:  opts.Exporter,
		scheduler: opts.Scheduler,
		notifier:  opts.Notifier,
		now:       time.Now,
	}
}

func (c *CommandImpl) openSession(ctx context.Context, headless bool) (browser.Session, error) {
	sess, err := c.browser.Open(ctx, browser.OpenOptions{
		ProfileDir: c.config.ProfilePath(),
		Headless:   headless,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open browser")
	}
	return sess, nil
}

func (c *CommandImpl) closeSession(sess browser.Session) {
	if err := sess.Close(); err != nil {
		c.logger.Warn("Failed to close browser", "error", err)
	}
}

// userID prefers the configured account and falls back to asking the site.
func (c *CommandImpl) userID(ctx context.Context, sess browser.Session) (string, error) {
	if c.config.UserID != "" {
		return c.config.UserID, nil
	}
	uid, err := sess.CurrentUserID(ctx)
	if err != nil {
		return "", classify(err)
	}
	return uid, nil
}

// classify attaches the error code the CLI reports on.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case pkgerrors.GetCode(err) != "":
		return err
	case errors.Is(err, browser.ErrSessionExpired):
		return pkgerrors.WrapWithCode(err, pkgerrors.CodeSessionExpired, "not logged in")
	case errors.Is(err, browser.ErrNavigation):
		return pkgerrors.WrapWithCode(err, pkgerrors.CodeNavigation, "page did not load")
	case pkgerrors.IsNotFound(err):
		return pkgerrors.WrapWithCode(err, pkgerrors.CodeNotFound, "no such record")
	case errors.Is(err, post.ErrStoreCorrupted):
		return pkgerrors.WrapWithCode(err, pkgerrors.CodeStoreCorrupted, "record store is unreadable")
	}
	return err
}

// refreshExport regenerates the markdown files unless exports are disabled.
// A failed export is logged; the records are already saved.
func (c *CommandImpl) refreshExport(ctx context.Context) []string {
	if c.config.Export.Disabled {
		return nil
	}
	paths, err := c.exporter.Run(ctx)
	if err != nil {
		c.logger.Error("Failed to export markdown", "error", err)
	}
	return paths
}

func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return classify(fmt.Errorf(format+": %w", append(args, err)...))
}
