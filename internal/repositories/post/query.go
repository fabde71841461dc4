package post

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories"
)

const (
	postsTable = "posts"
	metaTable  = "meta"
)

var postColumns = []string{
	"id", "kind", "url", "title", "author", "author_id", "text", "cover", "note_type", "xsec_token",
	"first_seen", "fetched_at", "tags", "note", "status", "paper_refs", "extraction",
	"extracted_at", "removed_at", "unliked_at",
}

// postRow is the column image of a PostRecord shared by the SQL backends.
type postRow struct {
	ID, Kind, URL, Title, Author, AuthorID, Text, Cover, NoteType, XsecToken string
	FirstSeen, FetchedAt                                                     string
	Tags, Note, Status, PaperRefs, Extraction                                string
	ExtractedAt, RemovedAt, UnlikedAt                                        sql.NullString
}

func (r *postRow) dest() []any {
	return []any{
		&r.ID, &r.Kind, &r.URL, &r.Title, &r.Author, &r.AuthorID, &r.Text, &r.Cover, &r.NoteType, &r.XsecToken,
		&r.FirstSeen, &r.FetchedAt, &r.Tags, &r.Note, &r.Status, &r.PaperRefs, &r.Extraction,
		&r.ExtractedAt, &r.RemovedAt, &r.UnlikedAt,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (domain.PostRecord, error) {
	var r postRow
	if err := s.Scan(r.dest()...); err != nil {
		return domain.PostRecord{}, err
	}
	return r.record()
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: repositories.FormatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := repositories.ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r postRow) record() (domain.PostRecord, error) {
	rec := domain.PostRecord{
		ID:         r.ID,
		Kind:       domain.Kind(r.Kind),
		URL:        r.URL,
		Title:      r.Title,
		Author:     r.Author,
		AuthorID:   r.AuthorID,
		Text:       r.Text,
		Cover:      r.Cover,
		NoteType:   r.NoteType,
		XsecToken:  r.XsecToken,
		Note:       r.Note,
		Status:     domain.Status(r.Status),
		Extraction: domain.ExtractionStatus(r.Extraction),
	}

	var err error
	if rec.FirstSeen, err = repositories.ParseTime(r.FirstSeen); err != nil {
		return rec, fmt.Errorf("post %s first_seen: %w", r.ID, err)
	}
	if rec.FetchedAt, err = repositories.ParseTime(r.FetchedAt); err != nil {
		return rec, fmt.Errorf("post %s fetched_at: %w", r.ID, err)
	}
	if rec.ExtractedAt, err = parseNullTime(r.ExtractedAt); err != nil {
		return rec, fmt.Errorf("post %s extracted_at: %w", r.ID, err)
	}
	if rec.RemovedAt, err = parseNullTime(r.RemovedAt); err != nil {
		return rec, fmt.Errorf("post %s removed_at: %w", r.ID, err)
	}
	if rec.UnlikedAt, err = parseNullTime(r.UnlikedAt); err != nil {
		return rec, fmt.Errorf("post %s unliked_at: %w", r.ID, err)
	}
	if r.Tags != "" {
		if err := json.Unmarshal([]byte(r.Tags), &rec.Tags); err != nil {
			return rec, fmt.Errorf("post %s tags: %w", r.ID, err)
		}
	}
	if r.PaperRefs != "" {
		if err := json.Unmarshal([]byte(r.PaperRefs), &rec.PaperRefs); err != nil {
			return rec, fmt.Errorf("post %s paper_refs: %w", r.ID, err)
		}
	}
	return rec, nil
}

func postValues(rec domain.PostRecord) ([]any, error) {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	refs := rec.PaperRefs
	if refs == nil {
		refs = []domain.PaperRef{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return nil, err
	}
	return []any{
		rec.ID, string(rec.Kind), rec.URL, rec.Title, rec.Author, rec.AuthorID, rec.Text, rec.Cover, rec.NoteType, rec.XsecToken,
		repositories.FormatTime(rec.FirstSeen), repositories.FormatTime(rec.FetchedAt),
		string(tagsJSON), rec.Note, string(rec.Status), string(refsJSON), string(rec.Extraction),
		nullTime(rec.ExtractedAt), nullTime(rec.RemovedAt), nullTime(rec.UnlikedAt),
	}, nil
}

// upsertSuffix works for both Postgres and SQLite 3.24+.
func upsertSuffix() string {
	s := "ON CONFLICT (id) DO UPDATE SET "
	for i, c := range postColumns[1:] {
		if i > 0 {
			s += ", "
		}
		s += c + " = excluded." + c
	}
	return s
}

func buildUpsert(b sq.StatementBuilderType, rec domain.PostRecord) (string, []any, error) {
	if rec.ID == "" {
		return "", nil, ErrInvalidRecord
	}
	values, err := postValues(rec)
	if err != nil {
		return "", nil, err
	}
	query, args, err := b.Insert(postsTable).
		Columns(postColumns...).
		Values(values...).
		Suffix(upsertSuffix()).
		ToSql()
	if err != nil {
		return "", nil, repositories.ErrBadQuery
	}
	return query, args, nil
}

func buildGet(b sq.StatementBuilderType, id string) (string, []any, error) {
	query, args, err := b.Select(postColumns...).
		From(postsTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", nil, repositories.ErrBadQuery
	}
	return query, args, nil
}

// buildList narrows by kind and status in SQL; tag conditions live in JSON
// columns and are applied with filter.Match after scanning.
func buildList(b sq.StatementBuilderType, filter domain.Filter) (string, []any, error) {
	q := b.Select(postColumns...).From(postsTable)
	if filter.Kind != "" {
		q = q.Where(sq.Eq{"kind": string(filter.Kind)})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where(sq.Eq{"status": statuses})
	}
	query, args, err := q.OrderBy("first_seen", "id").ToSql()
	if err != nil {
		return "", nil, repositories.ErrBadQuery
	}
	return query, args, nil
}

func lastFetchKey(kind domain.Kind) string {
	return "last_fetch:" + string(kind)
}

func buildGetMeta(b sq.StatementBuilderType, key string) (string, []any, error) {
	query, args, err := b.Select("value").From(metaTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", nil, repositories.ErrBadQuery
	}
	return query, args, nil
}

func buildSetMeta(b sq.StatementBuilderType, key, value string) (string, []any, error) {
	query, args, err := b.Insert(metaTable).
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return "", nil, repositories.ErrBadQuery
	}
	return query, args, nil
}
