package post

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	pkgerrors "github.com/orgball2608/xhs-likes-manager/pkg/errors"
)

var (
	ErrNotFound       = fmt.Errorf("post record %w", pkgerrors.ErrNotFound)
	ErrInvalidRecord  = errors.New("post record has no id")
	ErrStoreCorrupted = errors.New("record store is corrupted")
)

// Options carries the command line choices that affect how the store opens.
type Options struct {
	// ReinitCorrupt moves a corrupt store file aside and starts empty instead of failing.
	ReinitCorrupt bool
}

//go:generate go run go.uber.org/mock/mockgen -source=post.go -destination=mocks/mock.go
type Repository interface {
	// Get returns the record with the given source id, or ErrNotFound
	Get(ctx context.Context, id string) (domain.PostRecord, error)

	// Upsert inserts or replaces the record keyed on its id
	Upsert(ctx context.Context, rec domain.PostRecord) error

	// List returns the records matching filter in first-seen order
	List(ctx context.Context, filter domain.Filter) ([]domain.PostRecord, error)

	// LastFetch returns when a collection was last fetched, zero if never
	LastFetch(ctx context.Context, kind domain.Kind) (time.Time, error)

	// SetLastFetch records a completed fetch of a collection
	SetLastFetch(ctx context.Context, kind domain.Kind, at time.Time) error

	// Load reads the persisted state; it runs once on start
	Load(ctx context.Context) error

	// Save checkpoints every change made since the last Save
	Save(ctx context.Context) error
}
