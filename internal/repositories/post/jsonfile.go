package post

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	pkgerrors "github.com/orgball2608/xhs-likes-manager/pkg/errors"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
)

const jsonFileVersion = 1

type jsonDocument struct {
	Version   int                       `json:"version"`
	LastFetch map[domain.Kind]time.Time `json:"last_fetch,omitempty"`
	Items     []domain.PostRecord       `json:"items"`
}

// JSONFile keeps the records in memory and persists them as one JSON document.
type JSONFile struct {
	path   string
	opts   Options
	logger logger.Logger
	now    func() time.Time

	items     map[string]domain.PostRecord
	order     []string
	lastFetch map[domain.Kind]time.Time
	dirty     bool
}

var _ Repository = (*JSONFile)(nil)

func NewJSONFile(path string, opts Options, log logger.Logger) *JSONFile {
	return &JSONFile{
		path:      path,
		opts:      opts,
		logger:    log.WithComponent("JSONRecordStore"),
		now:       time.Now,
		items:     make(map[string]domain.PostRecord),
		lastFetch: make(map[domain.Kind]time.Time),
	}
}

func (s *JSONFile) Path() string { return s.path }

func (s *JSONFile) Load(ctx context.Context) error {
	s.items = make(map[string]domain.PostRecord)
	s.order = nil
	s.lastFetch = make(map[domain.Kind]time.Time)
	s.dirty = false

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Debug("No record store yet, starting empty", "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read record store %s: %w", s.path, err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		if !s.opts.ReinitCorrupt {
			return pkgerrors.WrapWithCode(fmt.Errorf("%w: %s: %v", ErrStoreCorrupted, s.path, err),
				pkgerrors.CodeStoreCorrupted, "load record store")
		}
		backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			return fmt.Errorf("move corrupt record store aside: %w", renameErr)
		}
		s.logger.Warn("Record store was corrupt, starting empty", "error", err, "backup", backup)
		return nil
	}

	for _, rec := range doc.Items {
		if _, dup := s.items[rec.ID]; dup {
			s.logger.Warn("Duplicate record in store file, keeping the first", "id", rec.ID)
			continue
		}
		s.items[rec.ID] = rec
		s.order = append(s.order, rec.ID)
	}
	for k, t := range doc.LastFetch {
		s.lastFetch[k] = t
	}

	s.logger.Debug("Record store loaded", "path", s.path, "records", len(s.order))
	return nil
}

func decodeDocument(data []byte) (jsonDocument, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	if doc.Version > jsonFileVersion {
		return doc, fmt.Errorf("unsupported version %d", doc.Version)
	}
	for i, rec := range doc.Items {
		if rec.ID == "" {
			return doc, fmt.Errorf("item %d has no id", i)
		}
	}
	return doc, nil
}

// Save writes the document to a temporary file and renames it over the old one,
// so an interrupted save leaves the previous checkpoint readable.
func (s *JSONFile) Save(ctx context.Context) error {
	if !s.dirty {
		return nil
	}

	doc := jsonDocument{
		Version:   jsonFileVersion,
		LastFetch: s.lastFetch,
		Items:     make([]domain.PostRecord, 0, len(s.order)),
	}
	for _, id := range s.order {
		doc.Items = append(doc.Items, s.items[id])
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace record store: %w", err)
	}

	s.dirty = false
	s.logger.Debug("Record store saved", "path", s.path, "records", len(doc.Items))
	return nil
}

func (s *JSONFile) Get(ctx context.Context, id string) (domain.PostRecord, error) {
	rec, ok := s.items[id]
	if !ok {
		return domain.PostRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.Clone(), nil
}

func (s *JSONFile) Upsert(ctx context.Context, rec domain.PostRecord) error {
	if rec.ID == "" {
		return ErrInvalidRecord
	}
	if _, exists := s.items[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.items[rec.ID] = rec.Clone()
	s.dirty = true
	return nil
}

func (s *JSONFile) List(ctx context.Context, filter domain.Filter) ([]domain.PostRecord, error) {
	out := make([]domain.PostRecord, 0, len(s.order))
	for _, id := range s.order {
		rec := s.items[id]
		if filter.Match(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *JSONFile) LastFetch(ctx context.Context, kind domain.Kind) (time.Time, error) {
	return s.lastFetch[kind], nil
}

func (s *JSONFile) SetLastFetch(ctx context.Context, kind domain.Kind, at time.Time) error {
	s.lastFetch[kind] = at
	s.dirty = true
	return nil
}
