package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/browser"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
)

var ErrParse = errors.New("malformed note")

// Options tune a single fetch run.
type Options struct {
	// Full keeps scrolling while the session still sees unseen ids, even if
	// they are already stored.
	Full bool
}

// Result is the per-collection outcome of a fetch.
type Result struct {
	Kind      domain.Kind
	Found     int
	New       int
	Refreshed int
	Skipped   int
	Scrolls   int
	// Capped is set when the run hit the scroll limit before the feed ran dry.
	Capped bool
	Err    error
}

type Fetcher interface {
	// Fetch scrolls one collection feed and merges every note into the store.
	// Notes collected before a mid-scroll failure are kept and saved.
	Fetch(ctx context.Context, sess browser.Session, userID string, kind domain.Kind, opts Options) (Result, error)
}

type rawNote struct {
	NoteID       string          `json:"note_id"`
	DisplayTitle string          `json:"display_title"`
	Title        string          `json:"title"`
	Type         string          `json:"type"`
	XsecToken    string          `json:"xsec_token"`
	User         json.RawMessage `json:"user"`
	Cover        json.RawMessage `json:"cover"`
}

// ParseRawPost converts a feed note into a new untagged record.
func ParseRawPost(raw browser.RawPost, baseURL string, kind domain.Kind, now time.Time) (domain.PostRecord, error) {
	var n rawNote
	if err := json.Unmarshal(raw, &n); err != nil {
		return domain.PostRecord{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	id := strings.TrimSpace(n.NoteID)
	if id == "" {
		return domain.PostRecord{}, fmt.Errorf("%w: missing note_id", ErrParse)
	}

	var user struct {
		Nickname string `json:"nickname"`
		UserID   string `json:"user_id"`
	}
	// user and cover are optional and sometimes not objects
	_ = json.Unmarshal(n.User, &user)
	var cover struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(n.Cover, &cover)

	title := strings.TrimSpace(n.DisplayTitle)
	if title == "" {
		title = strings.TrimSpace(n.Title)
	}
	if title == "" {
		short := id
		if len(short) > 8 {
			short = short[:8]
		}
		title = "笔记 " + short
	}

	return domain.PostRecord{
		ID:        id,
		Kind:      kind,
		URL:       fmt.Sprintf("%s/explore/%s", strings.TrimRight(baseURL, "/"), id),
		Title:     title,
		Author:    user.Nickname,
		AuthorID:  user.UserID,
		Cover:     cover.URL,
		NoteType:  n.Type,
		XsecToken: n.XsecToken,
		FirstSeen: now,
		FetchedAt: now,
		Status:    domain.StatusUntagged,
	}, nil
}
