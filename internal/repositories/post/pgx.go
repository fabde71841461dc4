package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
)

// Pgx stores records in Postgres. Every Upsert is its own committed statement,
// so Save has nothing left to flush.
type Pgx struct {
	pg     *pgxpool.Pool
	logger logger.Logger
}

func NewPgx(pg *pgxpool.Pool, logger logger.Logger) *Pgx {
	return &Pgx{
		pg:     pg,
		logger: logger.WithComponent("PostgresRecordStore"),
	}
}

var _ Repository = (*Pgx)(nil)

func (p *Pgx) Load(ctx context.Context) error {
	return p.pg.Ping(ctx)
}

func (p *Pgx) Save(ctx context.Context) error { return nil }

func (p *Pgx) Get(ctx context.Context, id string) (domain.PostRecord, error) {
	query, args, err := buildGet(repositories.SqBuilder, id)
	if err != nil {
		return domain.PostRecord{}, err
	}

	rec, err := scanPost(p.pg.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PostRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return domain.PostRecord{}, err
	}
	return rec, nil
}

func (p *Pgx) Upsert(ctx context.Context, rec domain.PostRecord) error {
	query, args, err := buildUpsert(repositories.SqBuilder, rec)
	if err != nil {
		return err
	}
	if _, err := p.pg.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert post %s: %w", rec.ID, err)
	}
	return nil
}

func (p *Pgx) List(ctx context.Context, filter domain.Filter) ([]domain.PostRecord, error) {
	query, args, err := buildList(repositories.SqBuilder, filter)
	if err != nil {
		return nil, err
	}

	rows, err := p.pg.Query(ctx, query, args...)
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

func (p *Pgx) LastFetch(ctx context.Context, kind domain.Kind) (time.Time, error) {
	query, args, err := buildGetMeta(repositories.SqBuilder, lastFetchKey(kind))
	if err != nil {
		return time.Time{}, err
	}

	var value string
	if err := p.pg.QueryRow(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return repositories.ParseTime(value)
}

func (p *Pgx) SetLastFetch(ctx context.Context, kind domain.Kind, at time.Time) error {
	query, args, err := buildSetMeta(repositories.SqBuilder, lastFetchKey(kind), repositories.FormatTime(at))
	if err != nil {
		return err
	}
	_, err = p.pg.Exec(ctx, query, args...)
	return err
}
