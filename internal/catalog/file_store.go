package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	dberrors "github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage"
)

// catalogDoc is the on-disk catalog.json
type catalogDoc struct {
	Version int                  `json:"version"`
	NextID  int64                `json:"next_id"`
	Tables  []schema.TableSchema `json:"tables"`
}

// FileStore keeps the catalog as one JSON document rewritten atomically on
// every change
type FileStore struct {
	mu     sync.RWMutex
	path   string
	now    Clock
	nextID int64
	byName map[string]schema.TableSchema
}

// OpenFileStore loads (or initializes) the catalog document at path
func OpenFileStore(path string) (*FileStore, error) {
	return OpenFileStoreWithClock(path, defaultClock)
}

func OpenFileStoreWithClock(path string, now Clock) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		now:    now,
		nextID: 1,
		byName: make(map[string]schema.TableSchema),
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
		if err := s.persist(s.byName, s.nextID); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	default:
		var doc catalogDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
		}
		s.nextID = doc.NextID
		for _, t := range doc.Tables {
			s.byName[t.TableName] = t
		}
	}

	slog.Info("catalog loaded", slog.String("path", path), slog.Int("tables", len(s.byName)))
	return s, nil
}

func (s *FileStore) Get(ctx context.Context, name string) (schema.TableSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byName[name]
	if !ok {
		return schema.TableSchema{}, &dberrors.TableNotFoundError{Table: name}
	}
	return t.Clone(), nil
}

func (s *FileStore) GetByID(ctx context.Context, id int64) (schema.TableSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.byName {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return schema.TableSchema{}, &dberrors.TableNotFoundError{ID: id}
}

func (s *FileStore) Create(ctx context.Context, name string, fields []schema.FieldSpec) (schema.TableSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[name]; exists {
		return schema.TableSchema{}, &dberrors.AlreadyExistsError{Table: name}
	}

	now := s.now()
	rec := schema.TableSchema{
		ID:        s.nextID,
		TableName: name,
		Fields:    schema.CloneFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}

	next := s.copyTables()
	next[name] = rec
	if err := s.persist(next, s.nextID+1); err != nil {
		return schema.TableSchema{}, err
	}

	s.byName = next
	s.nextID++
	return rec.Clone(), nil
}

func (s *FileStore) Update(ctx context.Context, name string, fields []schema.FieldSpec) (schema.TableSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byName[name]
	if !ok {
		return schema.TableSchema{}, &dberrors.TableNotFoundError{Table: name}
	}
	rec.Fields = schema.CloneFields(fields)
	rec.UpdatedAt = s.now()

	next := s.copyTables()
	next[name] = rec
	if err := s.persist(next, s.nextID); err != nil {
		return schema.TableSchema{}, err
	}

	s.byName = next
	return rec.Clone(), nil
}

func (s *FileStore) List(ctx context.Context) ([]schema.TableSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedTables(s.byName), nil
}

func (s *FileStore) Close() error {
	return nil
}

// copyTables returns a shallow copy of the name index. Caller holds s.mu.
func (s *FileStore) copyTables() map[string]schema.TableSchema {
	next := make(map[string]schema.TableSchema, len(s.byName)+1)
	for k, v := range s.byName {
		next[k] = v
	}
	return next
}

func (s *FileStore) persist(tables map[string]schema.TableSchema, nextID int64) error {
	doc := catalogDoc{Version: 1, NextID: nextID, Tables: sortedTables(tables)}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := storage.WriteFileAtomic(s.path, raw); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

func sortedTables(tables map[string]schema.TableSchema) []schema.TableSchema {
	out := make([]schema.TableSchema, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ Store = (*FileStore)(nil)
