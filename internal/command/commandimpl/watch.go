package commandimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/command"
	"github.com/orgball2608/xhs-likes-manager/internal/scheduler"
	"github.com/orgball2608/xhs-likes-manager/internal/tagger"
	"github.com/orgball2608/xhs-likes-manager/internal/telegram"
	"github.com/orgball2608/xhs-likes-manager/pkg/formatter"
)

// watchRunTimeout bounds one scheduled fetch and tag pass.
const watchRunTimeout = 30 * time.Minute

func (c *CommandImpl) Watch(ctx context.Context, opts command.WatchOptions) error {
	return c.scheduler.Run(ctx, scheduler.Options{
		Cron:    opts.Cron,
		RunNow:  opts.RunNow,
		Timeout: watchRunTimeout,
	}, c.watchOnce)
}

func (c *CommandImpl) watchOnce(ctx context.Context) error {
	var summary command.WatchSummary
	var runErr error

	summary.Fetch, runErr = c.Fetch(ctx, command.FetchOptions{Kinds: allKinds})
	if runErr == nil {
		summary.Tag, runErr = c.Tag(ctx, tagger.Options{})
	}

	if err := c.notifier.Notify(ctx, watchMessage(summary, runErr)); err != nil {
		c.logger.Warn("Failed to send watch notification", "error", err)
	}
	return runErr
}

func watchMessage(s command.WatchSummary, err error) telegram.Message {
	msg := telegram.Message{Title: "XHS fetch finished"}
	if err != nil {
		msg.Title = "XHS fetch failed"
	}
	for _, r := range s.Fetch.Results {
		line := fmt.Sprintf("%s: +%s new, %s seen", r.Kind.Collection(),
			formatter.FormatNumber(r.New), formatter.FormatNumber(r.Found))
		if r.Err != nil || r.Capped {
			line += " (incomplete)"
		}
		msg.Lines = append(msg.Lines, line)
	}
	if s.Tag.Tagged > 0 || s.Tag.Unmatched > 0 {
		msg.Lines = append(msg.Lines, fmt.Sprintf("tagged %d, unmatched %d", s.Tag.Tagged, s.Tag.Unmatched))
	}
	if err != nil {
		msg.Lines = append(msg.Lines, formatter.Truncate(err.Error(), 300))
	}
	return msg
}
