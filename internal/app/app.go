package app

import (
	"github.com/orgball2608/xhs-likes-manager/internal/arxiv"
	"github.com/orgball2608/xhs-likes-manager/internal/arxiv/arxivimpl"
	"github.com/orgball2608/xhs-likes-manager/internal/browser"
	"github.com/orgball2608/xhs-likes-manager/internal/browser/browserimpl"
	"github.com/orgball2608/xhs-likes-manager/internal/command"
	"github.com/orgball2608/xhs-likes-manager/internal/command/commandimpl"
	"github.com/orgball2608/xhs-likes-manager/internal/export"
	"github.com/orgball2608/xhs-likes-manager/internal/fetcher"
	"github.com/orgball2608/xhs-likes-manager/internal/fetcher/fetcherimpl"
	"github.com/orgball2608/xhs-likes-manager/internal/papers"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories/post"
	"github.com/orgball2608/xhs-likes-manager/internal/review"
	"github.com/orgball2608/xhs-likes-manager/internal/scheduler"
	"github.com/orgball2608/xhs-likes-manager/internal/tagger"
	"github.com/orgball2608/xhs-likes-manager/internal/telegram/telegramimpl"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"go.uber.org/fx"
)

// Module wires every component behind command.Client. The caller supplies
// the loaded *config.Config and, optionally, post.Options.
var Module = fx.Options(
	fx.Provide(
		logger.FxOption,
	),
	logger.FxEventLogger,
	post.Module,
	fx.Provide(
		fx.Annotate(
			browserimpl.New,
			fx.As(new(browser.Driver)),
		), fx.Annotate(
			arxivimpl.New,
			fx.As(new(arxiv.Client)),
		), fx.Annotate(
			fetcherimpl.New,
			fx.As(new(fetcher.Fetcher)),
		),
		telegramimpl.New,
		tagger.New,
		papers.New,
		review.New,
		export.New,
		scheduler.New,
		fx.Annotate(
			commandimpl.New,
			fx.As(new(command.Client)),
		),
	),
)

// New builds the application for one CLI invocation and fills client.
func New(cfg *config.Config, storeOpts post.Options, client *command.Client) *fx.App {
	return fx.New(
		fx.Supply(cfg, storeOpts),
		Module,
		fx.Populate(client),
	)
}
