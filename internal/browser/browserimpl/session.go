package browserimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/browser"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/ratelimit"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"github.com/orgball2608/xhs-likes-manager/pkg/retry"
	"github.com/playwright-community/playwright-go"
)

const (
	likeFeedAPI    = "note/like/page"
	collectFeedAPI = "note/collect/page"
	userMeAPI      = "user/me"

	scrollStep = 1000
)

var feedTabs = map[domain.Kind]struct {
	label string
	api   string
}{
	domain.KindLike:     {label: "点赞", api: likeFeedAPI},
	domain.KindBookmark: {label: "收藏", api: collectFeedAPI},
}

// Session drives one page of a persistent browser context. Responses are
// captured by playwright's callback goroutine and read back on the caller's.
type Session struct {
	config *config.Config
	logger logger.Logger
	page   playwright.Page
	// notes paces note page opens (detail reads, unlikes)
	notes *ratelimit.Gate

	mu       sync.Mutex
	pattern  string
	captured []playwright.Response

	closeOnce sync.Once
	closeErr  error
	shutdown  func() error
}

var _ browser.Session = (*Session)(nil)

func newSession(cfg *config.Config, log logger.Logger, page playwright.Page) *Session {
	s := &Session{
		config: cfg,
		logger: log,
		page:   page,
		notes:  ratelimit.NewGate(cfg.Browser.NoteGap),
	}
	page.OnResponse(s.onResponse)
	return s
}

func (s *Session) onResponse(resp playwright.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pattern != "" && strings.Contains(resp.URL(), s.pattern) {
		s.captured = append(s.captured, resp)
	}
}

// capture starts collecting responses whose URL contains pattern, dropping
// anything collected before.
func (s *Session) capture(pattern string) {
	s.mu.Lock()
	s.pattern = pattern
	s.captured = nil
	s.mu.Unlock()
}

func (s *Session) drain() [][]byte {
	s.mu.Lock()
	responses := s.captured
	s.captured = nil
	s.mu.Unlock()

	bodies := make([][]byte, 0, len(responses))
	for _, resp := range responses {
		body, err := resp.Body()
		if err != nil {
			s.logger.Warn("Could not read captured response", "url", resp.URL(), "error", err)
			continue
		}
		bodies = append(bodies, body)
	}
	return bodies
}

func (s *Session) Navigate(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := playwright.Float(float64(s.config.Browser.NavigationTimeout.Milliseconds()))
	gotoOperation := func() error {
		if err := ctx.Err(); err != nil {
			return retry.Permanent(err)
		}
		_, err := s.page.Goto(target, playwright.PageGotoOptions{
			Timeout:   timeout,
			WaitUntil: playwright.WaitUntilStateNetworkidle,
		})
		return err
	}

	policy := retry.Navigation(s.config.Browser.NavigationRetries)
	if err := retry.Do(ctx, s.logger, "PageGoto", policy, gotoOperation); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", browser.ErrNavigation, target, err)
	}
	return nil
}

func (s *Session) CurrentUserID(ctx context.Context) (string, error) {
	s.capture(userMeAPI)
	defer s.capture("")

	if err := s.Navigate(ctx, s.config.BaseURL); err != nil {
		return "", err
	}
	if err := sleep(ctx, s.config.Browser.SettleWait); err != nil {
		return "", err
	}

	for _, body := range s.drain() {
		if uid, ok := parseUserMe(body); ok {
			return uid, nil
		}
	}
	return "", browser.ErrSessionExpired
}

func (s *Session) OpenFeed(ctx context.Context, userID string, kind domain.Kind) ([]browser.RawPost, error) {
	tab, ok := feedTabs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown feed kind %q", kind)
	}

	s.capture(tab.api)
	profileURL := fmt.Sprintf("%s/user/profile/%s", strings.TrimRight(s.config.BaseURL, "/"), url.PathEscape(userID))
	if err := s.Navigate(ctx, profileURL); err != nil {
		return nil, err
	}
	if err := sleep(ctx, s.config.Browser.SettleWait); err != nil {
		return nil, err
	}

	locator := s.page.Locator(fmt.Sprintf(`.reds-tab-item:has-text("%s")`, tab.label)).First()
	if n, err := locator.Count(); err != nil || n == 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrTabNotFound, tab.label)
	}
	if err := locator.Click(); err != nil {
		return nil, fmt.Errorf("click %s tab: %w", tab.label, err)
	}
	if err := sleep(ctx, s.config.Browser.SettleWait); err != nil {
		return nil, err
	}

	return s.collectNotes(), nil
}

func (s *Session) Scroll(ctx context.Context) ([]browser.RawPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", scrollStep)); err != nil {
		return nil, fmt.Errorf("scroll: %w", err)
	}
	if err := sleep(ctx, s.config.Fetch.ScrollWait); err != nil {
		return nil, err
	}
	return s.collectNotes(), nil
}

func (s *Session) collectNotes() []browser.RawPost {
	var notes []browser.RawPost
	for _, body := range s.drain() {
		batch, err := parseFeedPage(body)
		if err != nil {
			s.logger.Warn("Could not decode feed response", "error", err)
			continue
		}
		notes = append(notes, batch...)
	}
	return notes
}

const detailScript = `(sel) => {
	const title = document.querySelector('#detail-title');
	const desc = document.querySelector(sel.content);
	const imgs = document.querySelectorAll('.swiper-slide img, .note-slider-img img');
	return {
		title: title?.innerText?.trim() || '',
		text: desc?.innerText?.trim() || '',
		image_count: imgs.length,
	};
}`

// openNote navigates to a note page, waiting out the gap since the last one.
func (s *Session) openNote(ctx context.Context, rec domain.PostRecord) error {
	if err := s.notes.Wait(ctx); err != nil {
		return err
	}
	return s.Navigate(ctx, detailURL(s.config.BaseURL, rec))
}

func (s *Session) PostDetail(ctx context.Context, rec domain.PostRecord) (browser.Detail, error) {
	if err := s.openNote(ctx, rec); err != nil {
		return browser.Detail{}, err
	}
	if err := sleep(ctx, s.config.PaperExtraction.PageLoadWait); err != nil {
		return browser.Detail{}, err
	}

	raw, err := s.page.Evaluate(detailScript, map[string]any{
		"content": strings.Join(s.config.PaperExtraction.ContentSelectors, ", "),
	})
	if err != nil {
		return browser.Detail{}, fmt.Errorf("read note detail: %w", err)
	}
	return decodeDetail(raw)
}

const activeLikeScanScript = `() => {
	for (const el of document.querySelectorAll('[class*="like"], [class*="Like"]')) {
		const cls = String(el.className || '');
		if (cls.includes('active') || cls.includes('Active')) {
			el.click();
			return true;
		}
	}
	return false;
}`

func (s *Session) ClickUnlike(ctx context.Context, rec domain.PostRecord) error {
	if err := s.openNote(ctx, rec); err != nil {
		return err
	}
	if err := sleep(ctx, s.config.Browser.SettleWait); err != nil {
		return err
	}

	for _, sel := range s.config.Browser.UnlikeSelectors {
		locator := s.page.Locator(sel).First()
		if n, err := locator.Count(); err != nil || n == 0 {
			continue
		}
		if err := locator.Click(); err != nil {
			s.logger.Warn("Like button click failed", "selector", sel, "error", err)
			continue
		}
		s.logger.Debug("Clicked like button", "id", rec.ID, "selector", sel)
		return sleep(ctx, s.config.Browser.SettleWait)
	}

	clicked, err := s.page.Evaluate(activeLikeScanScript)
	if err != nil {
		return fmt.Errorf("scan for like button: %w", err)
	}
	if ok, _ := clicked.(bool); !ok {
		return browser.ErrLikeButtonNotFound
	}
	s.logger.Debug("Clicked like button found by DOM scan", "id", rec.ID)
	return sleep(ctx, s.config.Browser.SettleWait)
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing browser")
		if s.shutdown != nil {
			s.closeErr = s.shutdown()
		}
	})
	return s.closeErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// detailURL carries the xsec token; note pages opened without it are refused.
func detailURL(base string, rec domain.PostRecord) string {
	u := fmt.Sprintf("%s/explore/%s", strings.TrimRight(base, "/"), url.PathEscape(rec.ID))
	if rec.XsecToken == "" {
		return u
	}
	q := url.Values{}
	q.Set("xsec_token", rec.XsecToken)
	q.Set("xsec_source", "pc_collect")
	return u + "?" + q.Encode()
}

func parseFeedPage(body []byte) ([]browser.RawPost, error) {
	var page struct {
		Data struct {
			Notes []json.RawMessage `json:"notes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}
	out := make([]browser.RawPost, 0, len(page.Data.Notes))
	for _, n := range page.Data.Notes {
		out = append(out, browser.RawPost(n))
	}
	return out, nil
}

func parseUserMe(body []byte) (string, bool) {
	var me struct {
		Data struct {
			UserID string `json:"user_id"`
			Guest  *bool  `json:"guest"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		return "", false
	}
	// a missing guest flag counts as guest
	if me.Data.UserID == "" || me.Data.Guest == nil || *me.Data.Guest {
		return "", false
	}
	return me.Data.UserID, true
}

func decodeDetail(raw any) (browser.Detail, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return browser.Detail{}, fmt.Errorf("unexpected note detail %T", raw)
	}
	d := browser.Detail{}
	d.Title, _ = m["title"].(string)
	d.Text, _ = m["text"].(string)
	switch n := m["image_count"].(type) {
	case int:
		d.ImageCount = n
	case float64:
		d.ImageCount = int(n)
	case int64:
		d.ImageCount = int(n)
	}
	return d, nil
}
