package browserimpl

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/orgball2608/xhs-likes-manager/internal/browser"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In
	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

// Driver starts Chromium on demand, so commands that never touch the browser
// never pay for it.
type Driver struct {
	config *config.Config
	logger logger.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

var _ browser.Driver = (*Driver)(nil)

func New(opts Opts) *Driver {
	d := &Driver{
		config:   opts.Config,
		logger:   opts.Logger.WithComponent("Browser"),
		sessions: make(map[*Session]struct{}),
	}

	opts.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			d.closeAll()
			return nil
		},
	})
	return d
}

func (d *Driver) Open(ctx context.Context, opts browser.OpenOptions) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.ProfileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create browser profile dir: %w", err)
	}

	d.logger.Info("Starting browser", "profile", opts.ProfileDir, "headless", opts.Headless)
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	bc := d.config.Browser
	brContext, err := pw.Chromium.LaunchPersistentContext(opts.ProfileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
		Viewport: &playwright.Size{
			Width:  bc.ViewportWidth,
			Height: bc.ViewportHeight,
		},
		Locale:    playwright.String(bc.Locale),
		UserAgent: playwright.String(bc.UserAgent),
		Args:      []string{"--lang=" + bc.Locale},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	var page playwright.Page
	if pages := brContext.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = brContext.NewPage(); err != nil {
		_ = brContext.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("could not create new page: %w", err)
	}

	s := newSession(d.config, d.logger, page)
	s.shutdown = func() error {
		d.forget(s)
		var firstErr error
		if err := brContext.Close(); err != nil {
			firstErr = err
		}
		if err := pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}

	d.mu.Lock()
	d.sessions[s] = struct{}{}
	d.mu.Unlock()

	return s, nil
}

func (d *Driver) forget(s *Session) {
	d.mu.Lock()
	delete(d.sessions, s)
	d.mu.Unlock()
}

func (d *Driver) closeAll() {
	d.mu.Lock()
	open := make([]*Session, 0, len(d.sessions))
	for s := range d.sessions {
		open = append(open, s)
	}
	d.mu.Unlock()

	for _, s := range open {
		if err := s.Close(); err != nil {
			d.logger.Error("Failed to close browser session", "error", err)
		}
	}
}
