package browser

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/orgball2608/xhs-likes-manager/internal/domain"
)

var (
	ErrSessionExpired     = errors.New("browser session is not logged in")
	ErrNavigation         = errors.New("navigation failed")
	ErrLikeButtonNotFound = errors.New("like button not found")
	ErrTabNotFound        = errors.New("feed tab not found")
)

// RawPost is one note object as returned by the feed API, kept undecoded so
// the fetcher owns the parsing rules.
type RawPost json.RawMessage

// Detail is what the note page shows beyond the feed card.
type Detail struct {
	Title      string
	Text       string
	ImageCount int
}

type OpenOptions struct {
	// ProfileDir holds cookies and local storage between runs.
	ProfileDir string
	Headless   bool
}

//go:generate go run go.uber.org/mock/mockgen -source=browser.go -destination=mocks/mock.go
type Driver interface {
	// Open starts a browser bound to the persistent profile directory.
	Open(ctx context.Context, opts OpenOptions) (Session, error)
}

type Session interface {
	Navigate(ctx context.Context, url string) error

	// CurrentUserID returns the logged-in user id or ErrSessionExpired.
	CurrentUserID(ctx context.Context) (string, error)

	// OpenFeed shows the profile tab of the given collection and returns the
	// notes delivered with the first page.
	OpenFeed(ctx context.Context, userID string, kind domain.Kind) ([]RawPost, error)

	// Scroll performs one scroll step and returns the notes loaded by it.
	Scroll(ctx context.Context) ([]RawPost, error)

	PostDetail(ctx context.Context, rec domain.PostRecord) (Detail, error)

	// ClickUnlike toggles the active like button on the note page.
	ClickUnlike(ctx context.Context, rec domain.PostRecord) error

	Close() error
}
