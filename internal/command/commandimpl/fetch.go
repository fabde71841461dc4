package commandimpl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/orgball2608/xhs-likes-manager/internal/command"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/fetcher"
	pkgerrors "github.com/orgball2608/xhs-likes-manager/pkg/errors"
	"github.com/orgball2608/xhs-likes-manager/pkg/prompt"
)

var allKinds = []domain.Kind{domain.KindLike, domain.KindBookmark}

// Login keeps the browser profile whatever happens after the prompt. When the
// account cannot be read back it warns and returns an empty id instead of failing.
func (c *CommandImpl) Login(ctx context.Context, in io.Reader, out io.Writer) (string, error) {
	sess, err := c.openSession(ctx, false)
	if err != nil {
		return "", err
	}
	defer c.closeSession(sess)

	if err := sess.Navigate(ctx, c.config.BaseURL); err != nil {
		return "", classify(err)
	}

	fmt.Fprintln(out, "Log in in the browser window (scan the QR code), then press Enter here.")
	confirm := prompt.NewReader(in)
	defer confirm.Close()
	if _, err := confirm.ReadLine(ctx); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read confirmation: %w", err)
	}

	uid, err := sess.CurrentUserID(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("Could not verify login", "error", err)
		fmt.Fprintf(out, "Could not verify login (%v). The browser profile is kept; run `xhs fetch` to check.\n", err)
		return "", nil
	}
	c.logger.Info("Logged in", "user_id", uid)
	return uid, nil
}

// Fetch scrolls the requested collections in one browser session. A failed
// collection does not stop the next one; an expired session stops everything.
func (c *CommandImpl) Fetch(ctx context.Context, opts command.FetchOptions) (command.FetchSummary, error) {
	var summary command.FetchSummary
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = allKinds
	}

	sess, err := c.openSession(ctx, c.config.Browser.Headless)
	if err != nil {
		return summary, err
	}
	defer c.closeSession(sess)

	uid, err := c.userID(ctx, sess)
	if err != nil {
		return summary, err
	}
	summary.UserID = uid

	var errs []error
	for _, kind := range kinds {
		res, err := c.fetcher.Fetch(ctx, sess, uid, kind, fetcher.Options{Full: opts.Full})
		if err != nil && res.Err == nil {
			res.Err = err
		}
		summary.Results = append(summary.Results, res)
		if err == nil {
			continue
		}

		err = classify(err)
		if ctx.Err() != nil || pkgerrors.IsSessionExpired(err) {
			return summary, err
		}
		errs = append(errs, fmt.Errorf("fetch %s: %w", kind.Collection(), err))
	}

	if len(errs) > 0 {
		return summary, errors.Join(errs...)
	}
	summary.Exported = c.refreshExport(ctx)
	return summary, nil
}
