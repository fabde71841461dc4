package logger

import (
	"log/slog"

	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

var FxOption = fx.Annotate(
	func(cfg *config.Config) *Impl {
		return New(
			Opts{
				Env:       cfg.App.Env,
				Level:     cfg.Log.Level,
				SentryDSN: cfg.Sentry.DSN,
			},
		)
	},
	fx.As(new(Logger)),
)

// FxEventLogger routes fx's own lifecycle events through the application logger.
var FxEventLogger = fx.WithLogger(func(log Logger) fxevent.Logger {
	l := &fxevent.SlogLogger{Logger: log.WithComponent("fx").Slog()}
	l.UseLogLevel(slog.LevelDebug)
	return l
})
