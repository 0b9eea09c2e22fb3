package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	dberrors "github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
)

const catalogDDL = `CREATE TABLE IF NOT EXISTS "_catalog" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"table_name" TEXT NOT NULL UNIQUE,
	"fields" TEXT NOT NULL,
	"created_date" TEXT NOT NULL,
	"updated_date" TEXT NOT NULL
)`

const selectColumns = `SELECT "id", "table_name", "fields", "created_date", "updated_date" FROM "_catalog"`

// SQLStore keeps the catalog in the _catalog table of the same SQLite
// database that holds the physical tables. It does not own db.
type SQLStore struct {
	db  *sql.DB
	now Clock
}

// NewSQLStore creates the _catalog table if it does not exist
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	return NewSQLStoreWithClock(ctx, db, defaultClock)
}

func NewSQLStoreWithClock(ctx context.Context, db *sql.DB, now Clock) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, catalogDDL); err != nil {
		return nil, fmt.Errorf("failed to create catalog table: %w", err)
	}
	return &SQLStore{db: db, now: now}, nil
}

func (s *SQLStore) Get(ctx context.Context, name string) (schema.TableSchema, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE "table_name" = ?`, name)
	t, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.TableSchema{}, &dberrors.TableNotFoundError{Table: name}
	}
	return t, err
}

func (s *SQLStore) GetByID(ctx context.Context, id int64) (schema.TableSchema, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE "id" = ?`, id)
	t, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.TableSchema{}, &dberrors.TableNotFoundError{ID: id}
	}
	return t, err
}

func (s *SQLStore) Create(ctx context.Context, name string, fields []schema.FieldSpec) (schema.TableSchema, error) {
	encoded, err := encodeFields(fields)
	if err != nil {
		return schema.TableSchema{}, err
	}
	now := s.now()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO "_catalog" ("table_name", "fields", "created_date", "updated_date") VALUES (?, ?, ?, ?)`,
		name, encoded, formatTime(now), formatTime(now))
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return schema.TableSchema{}, &dberrors.AlreadyExistsError{Table: name}
		}
		return schema.TableSchema{}, fmt.Errorf("failed to register table %s: %w", name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return schema.TableSchema{}, fmt.Errorf("failed to read catalog id for %s: %w", name, err)
	}

	return schema.TableSchema{
		ID:        id,
		TableName: name,
		Fields:    schema.CloneFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLStore) Update(ctx context.Context, name string, fields []schema.FieldSpec) (schema.TableSchema, error) {
	encoded, err := encodeFields(fields)
	if err != nil {
		return schema.TableSchema{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE "_catalog" SET "fields" = ?, "updated_date" = ? WHERE "table_name" = ?`,
		encoded, formatTime(s.now()), name)
	if err != nil {
		return schema.TableSchema{}, fmt.Errorf("failed to update catalog for %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return schema.TableSchema{}, fmt.Errorf("failed to update catalog for %s: %w", name, err)
	}
	if n == 0 {
		return schema.TableSchema{}, &dberrors.TableNotFoundError{Table: name}
	}
	return s.Get(ctx, name)
}

func (s *SQLStore) List(ctx context.Context) ([]schema.TableSchema, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY "id"`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()

	out := []schema.TableSchema{}
	for rows.Next() {
		t, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close is a no-op; the database belongs to the storage engine
func (s *SQLStore) Close() error {
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (schema.TableSchema, error) {
	var (
		t                schema.TableSchema
		fields           string
		created, updated string
	)
	if err := sc.Scan(&t.ID, &t.TableName, &fields, &created, &updated); err != nil {
		return schema.TableSchema{}, err
	}

	if err := json.Unmarshal([]byte(fields), &t.Fields); err != nil {
		return schema.TableSchema{}, fmt.Errorf("corrupt catalog fields for %s: %w", t.TableName, err)
	}
	if t.Fields == nil {
		t.Fields = []schema.FieldSpec{}
	}

	var err error
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return schema.TableSchema{}, fmt.Errorf("corrupt created_date for %s: %w", t.TableName, err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return schema.TableSchema{}, fmt.Errorf("corrupt updated_date for %s: %w", t.TableName, err)
	}
	return t, nil
}

func encodeFields(fields []schema.FieldSpec) (string, error) {
	raw, err := json.Marshal(schema.CloneFields(fields))
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}
	return string(raw), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

var _ Store = (*SQLStore)(nil)
