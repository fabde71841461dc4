package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind is the collection a post was first seen in.
type Kind string

const (
	KindLike     Kind = "like"
	KindBookmark Kind = "bookmark"
)

// Collection returns the plural name used on the command line and in exports.
func (k Kind) Collection() string {
	switch k {
	case KindBookmark:
		return "bookmarks"
	default:
		return "likes"
	}
}

// ParseKind accepts both the singular and the plural spelling.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like", "likes":
		return KindLike, nil
	case "bookmark", "bookmarks":
		return KindBookmark, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

type Status string

const (
	StatusUntagged Status = "untagged"
	StatusTagged   Status = "tagged"
	StatusReviewed Status = "reviewed"
	StatusRemoved  Status = "removed"
)

// PostRecord is one liked or bookmarked note.
type PostRecord struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	AuthorID  string `json:"author_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Cover     string `json:"cover,omitempty"`
	NoteType  string `json:"note_type,omitempty"`
	XsecToken string `json:"xsec_token,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	FetchedAt time.Time `json:"fetched_at"`

	Tags   []string `json:"tags"`
	Note   string   `json:"note,omitempty"`
	Status Status   `json:"status"`

	PaperRefs   []PaperRef       `json:"paper_refs,omitempty"`
	Extraction  ExtractionStatus `json:"extraction,omitempty"`
	ExtractedAt *time.Time       `json:"extracted_at,omitempty"`

	RemovedAt *time.Time `json:"removed_at,omitempty"`
	UnlikedAt *time.Time `json:"unliked_at,omitempty"`
}

// SearchText is what tag rules and paper heuristics look at.
func (p PostRecord) SearchText() string {
	if p.Text == "" {
		return p.Title
	}
	return p.Title + " " + p.Text
}

func (p PostRecord) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

func (p PostRecord) IsRemoved() bool {
	return p.Status == StatusRemoved
}

// AddTags merges tags into the record's sorted tag set and reports whether it changed.
func (p *PostRecord) AddTags(tags ...string) bool {
	changed := false
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || p.HasTag(t) {
			continue
		}
		p.Tags = append(p.Tags, t)
		changed = true
	}
	if changed {
		slices.Sort(p.Tags)
	}
	return changed
}

// Refresh copies the snapshot fields of a newer sighting of the same note.
// User state (tags, note, status, paper refs, removal) is left alone.
func (p *PostRecord) Refresh(seen PostRecord) bool {
	before := *p
	if seen.Title != "" {
		p.Title = seen.Title
	}
	if seen.Author != "" {
		p.Author = seen.Author
	}
	if seen.AuthorID != "" {
		p.AuthorID = seen.AuthorID
	}
	if seen.URL != "" {
		p.URL = seen.URL
	}
	if seen.Cover != "" {
		p.Cover = seen.Cover
	}
	if seen.NoteType != "" {
		p.NoteType = seen.NoteType
	}
	if seen.XsecToken != "" {
		p.XsecToken = seen.XsecToken
	}
	changed := p.Title != before.Title || p.Author != before.Author || p.AuthorID != before.AuthorID ||
		p.URL != before.URL || p.Cover != before.Cover || p.NoteType != before.NoteType ||
		p.XsecToken != before.XsecToken
	if !seen.FetchedAt.IsZero() {
		p.FetchedAt = seen.FetchedAt
	}
	return changed
}

// MarkReviewed is the review "keep" action.
func (p *PostRecord) MarkReviewed() {
	if p.Status != StatusRemoved {
		p.Status = StatusReviewed
	}
}

// MarkRemoved soft-deletes the record; tags and notes are kept.
func (p *PostRecord) MarkRemoved(at time.Time) {
	p.Status = StatusRemoved
	if p.RemovedAt == nil {
		p.RemovedAt = &at
	}
}

// MarkUnliked records that the like was withdrawn on the site.
func (p *PostRecord) MarkUnliked(at time.Time) {
	p.MarkRemoved(at)
	p.UnlikedAt = &at
}

// Clone returns a copy that shares no slices with p.
func (p PostRecord) Clone() PostRecord {
	p.Tags = slices.Clone(p.Tags)
	p.PaperRefs = slices.Clone(p.PaperRefs)
	if p.ExtractedAt != nil {
		t := *p.ExtractedAt
		p.ExtractedAt = &t
	}
	if p.RemovedAt != nil {
		t := *p.RemovedAt
		p.RemovedAt = &t
	}
	if p.UnlikedAt != nil {
		t := *p.UnlikedAt
		p.UnlikedAt = &t
	}
	return p
}
