package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
)

// SQLite stores records in a local database file through database/sql.
type SQLite struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSQLite(db *sql.DB, logger logger.Logger) *SQLite {
	return &SQLite{
		db:     db,
		logger: logger.WithComponent("SQLiteRecordStore"),
	}
}

var _ Repository = (*SQLite)(nil)

func (s *SQLite) Load(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Save(ctx context.Context) error { return nil }

func (s *SQLite) Get(ctx context.Context, id string) (domain.PostRecord, error) {
	query, args, err := buildGet(repositories.SqliteBuilder, id)
	if err != nil {
		return domain.PostRecord{}, err
	}

	rec, err := scanPost(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PostRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return domain.PostRecord{}, err
	}
	return rec, nil
}

func (s *SQLite) Upsert(ctx context.Context, rec domain.PostRecord) error {
	query, args, err := buildUpsert(repositories.SqliteBuilder, rec)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert post %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, filter domain.Filter) ([]domain.PostRecord, error) {
	query, args, err := buildList(repositories.SqliteBuilder, filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PostRecord
	for rows.Next() {
		rec, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLite) LastFetch(ctx context.Context, kind domain.Kind) (time.Time, error) {
	query, args, err := buildGetMeta(repositories.SqliteBuilder, lastFetchKey(kind))
	if err != nil {
		return time.Time{}, err
	}

	var value string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return repositories.ParseTime(value)
}

func (s *SQLite) SetLastFetch(ctx context.Context, kind domain.Kind, at time.Time) error {
	query, args, err := buildSetMeta(repositories.SqliteBuilder, lastFetchKey(kind), repositories.FormatTime(at))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}
