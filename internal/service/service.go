// Package service exposes the dynamic table operations addressed by catalog
// id, taking request arguments exactly as the transport decoded them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/leengari/dyntable/internal/catalog"
	"github.com/leengari/dyntable/internal/config"
	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/gateway"
	"github.com/leengari/dyntable/internal/journal"
	"github.com/leengari/dyntable/internal/lock"
	"github.com/leengari/dyntable/internal/migrate"
	"github.com/leengari/dyntable/internal/reconcile"
	"github.com/leengari/dyntable/internal/storage"
	"github.com/leengari/dyntable/internal/storage/filestore"
	"github.com/leengari/dyntable/internal/storage/sqlite"
)

// ErrInconsistent is returned by Acknowledge while storage and catalog disagree
var ErrInconsistent = errors.New("storage and catalog disagree")

type Service struct {
	catalog  catalog.Store
	engine   storage.Engine
	journal  *journal.Journal
	migrator *migrate.Migrator
	gateway  *gateway.Gateway
}

// New wires the components over an already opened catalog and engine.
// j may be nil to run without a journal.
func New(cat catalog.Store, engine storage.Engine, locks *lock.Manager, j *journal.Journal) *Service {
	m := migrate.New(cat, engine, locks)
	if j != nil {
		m.SetJournal(j)
	}
	return &Service{
		catalog:  cat,
		engine:   engine,
		journal:  j,
		migrator: m,
		gateway:  gateway.New(cat, engine, locks),
	}
}

// Open creates the data directory and opens the configured backend
func Open(cfg config.Config) (*Service, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var (
		cat    catalog.Store
		engine storage.Engine
	)
	switch cfg.Backend {
	case config.BackendSQLite:
		e, err := sqlite.Open(filepath.Join(cfg.DataDir, "dyntable.db"))
		if err != nil {
			return nil, err
		}
		store, err := catalog.NewSQLStore(context.Background(), e.DB())
		if err != nil {
			e.Close()
			return nil, err
		}
		cat, engine = store, e

	case config.BackendFile:
		e, err := filestore.Open(filepath.Join(cfg.DataDir, "tables"))
		if err != nil {
			return nil, err
		}
		store, err := catalog.OpenFileStore(filepath.Join(cfg.DataDir, "catalog.json"))
		if err != nil {
			e.Close()
			return nil, err
		}
		cat, engine = store, e

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	var j *journal.Journal
	if cfg.Journal {
		var err error
		j, err = journal.Open(filepath.Join(cfg.DataDir, journal.FileName))
		if err != nil {
			cat.Close()
			engine.Close()
			return nil, err
		}
	}

	slog.Info("service opened",
		slog.String("backend", cfg.Backend),
		slog.String("data_dir", cfg.DataDir),
		slog.Bool("journal", j != nil),
	)
	return New(cat, engine, lock.NewManager(cfg.LockTimeout), j), nil
}

func (s *Service) Close() error {
	var errs []error
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	errs = append(errs, s.catalog.Close(), s.engine.Close())
	return errors.Join(errs...)
}

// AddObserver subscribes o to migration events
func (s *Service) AddObserver(o migrate.Observer) {
	s.migrator.AddObserver(o)
}

// DefaultTableName generates a name for tables defined without one
func DefaultTableName() string {
	return "dynamic_table_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// DefineTable creates a table. An empty name gets a generated one.
func (s *Service) DefineTable(ctx context.Context, name string, rawFields interface{}) (schema.TableSchema, error) {
	fields, err := schema.DecodeFields(rawFields)
	if err != nil {
		return schema.TableSchema{}, err
	}
	if name == "" {
		name = DefaultTableName()
	}
	return s.migrator.DefineTable(ctx, name, fields)
}

func (s *Service) AlterTable(ctx context.Context, id int64, rawFields interface{}) (schema.TableSchema, error) {
	fields, err := schema.DecodeFields(rawFields)
	if err != nil {
		return schema.TableSchema{}, err
	}
	t, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return schema.TableSchema{}, err
	}
	return s.migrator.AlterTable(ctx, t.TableName, fields)
}

func (s *Service) InsertRow(ctx context.Context, id int64, rawData interface{}) (int64, error) {
	t, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.gateway.Insert(ctx, t.TableName, rawData)
}

// ListRows returns every row of the table in storage order
func (s *Service) ListRows(ctx context.Context, id int64) ([]data.Row, error) {
	t, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	seq, err := s.gateway.ListAll(ctx, t.TableName)
	if err != nil {
		return nil, err
	}
	return gateway.Collect(seq)
}

func (s *Service) Table(ctx context.Context, id int64) (schema.TableSchema, error) {
	return s.catalog.GetByID(ctx, id)
}

func (s *Service) Tables(ctx context.Context) ([]schema.TableSchema, error) {
	return s.catalog.List(ctx)
}

func (s *Service) journalPath() string {
	if s.journal == nil {
		return ""
	}
	return s.journal.Path()
}

// Check reports drift between catalog, storage and journal
func (s *Service) Check(ctx context.Context) (*reconcile.Report, error) {
	return reconcile.Check(ctx, s.catalog, s.engine, s.journalPath())
}

// Acknowledge checkpoints the journal once every catalog entry matches its
// storage, clearing journal findings an operator has dealt with
func (s *Service) Acknowledge(ctx context.Context) (*reconcile.Report, error) {
	report, err := reconcile.Check(ctx, s.catalog, s.engine, "")
	if err != nil {
		return nil, err
	}
	if !report.Clean() {
		return report, ErrInconsistent
	}
	if s.journal == nil {
		return report, nil
	}
	lsn, err := s.journal.Checkpoint()
	if err != nil {
		return nil, err
	}
	slog.Info("journal checkpointed", slog.Uint64("lsn", lsn))
	return report, nil
}
