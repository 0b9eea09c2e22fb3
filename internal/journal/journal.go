// Package journal records schema migrations in an append-only binary log so
// that a crash or partial failure between the physical changes and the
// catalog write can be found and reconciled later. Records are never
// replayed; the journal is evidence, not a redo log.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leengari/dyntable/internal/domain/schema"
)

// FileName is the journal's name inside the data directory
const FileName = "migrations.journal"

// Journal appends migration records to a single file
type Journal struct {
	mu   sync.Mutex
	file *os.File
	path string
	now  func() time.Time

	nextLSN        uint64
	offset         int64
	lastCheckpoint uint64

	active map[string]*Migration
}

// Open opens or creates the journal at path. A torn or corrupt tail left by
// a crash is cut off so new records follow the last good one.
func Open(path string) (*Journal, error) {
	j := &Journal{
		path:    path,
		now:     func() time.Time { return time.Now().UTC() },
		nextLSN: 1,
		active:  make(map[string]*Migration),
	}

	info, err := os.Stat(path)
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat journal: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	j.file = file

	if fresh {
		if err := j.writeFileHeader(); err != nil {
			file.Close()
			return nil, err
		}
	} else if err := j.scan(); err != nil {
		file.Close()
		return nil, err
	}

	slog.Debug("journal opened",
		slog.String("path", path),
		slog.Uint64("next_lsn", j.nextLSN),
		slog.Int64("offset", j.offset),
	)
	return j, nil
}

func (j *Journal) writeFileHeader() error {
	if _, err := j.file.WriteAt(encodeFileHeader(j.nextLSN, j.now()), 0); err != nil {
		return fmt.Errorf("failed to write journal header: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal header: %w", err)
	}
	j.offset = FileHeaderSize
	return nil
}

// scan restores nextLSN and the write offset from the existing records
func (j *Journal) scan() error {
	r, err := NewReader(j.path)
	if err != nil {
		return err
	}
	defer r.Close()

	if _, err := r.ReadFileHeader(); err != nil {
		return err
	}

	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrTornRecord) || errors.Is(err, ErrCorruptRecord) {
			slog.Warn("journal tail discarded",
				slog.String("path", j.path),
				slog.Int64("offset", r.Offset()),
				slog.Any("error", err),
			)
			if err := j.file.Truncate(r.Offset()); err != nil {
				return fmt.Errorf("failed to truncate journal: %w", err)
			}
			break
		}
		if err != nil {
			return err
		}
		j.nextLSN = rec.LSN + 1
		if rec.Type == RecordCheckpoint {
			j.lastCheckpoint = rec.LSN
		}
	}

	j.offset = r.Offset()
	return nil
}

// Close syncs and closes the journal file
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func (j *Journal) Path() string {
	return j.path
}

// NextLSN returns the LSN the next record will get
func (j *Journal) NextLSN() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextLSN
}

func (j *Journal) LastCheckpointLSN() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastCheckpoint
}

// Begin records the start of a migration on table towards fields
func (j *Journal) Begin(table string, kind Kind, fields []schema.FieldSpec) (*Migration, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	m := &Migration{
		ID:        uuid.NewString(),
		Table:     table,
		Kind:      kind,
		Fields:    schema.CloneFields(fields),
		StartTime: j.now(),
	}
	entry := Entry{
		MigrationID: m.ID,
		Table:       table,
		Kind:        kind,
		Fields:      m.Fields,
		Time:        m.StartTime,
	}
	if _, err := j.writeRecord(RecordBegin, entry); err != nil {
		return nil, fmt.Errorf("failed to write Begin record: %w", err)
	}
	j.active[m.ID] = m
	return m, nil
}

// Step records one physical change applied by m
func (j *Journal) Step(m *Migration, op string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.verifyActive(m); err != nil {
		return err
	}
	entry := Entry{MigrationID: m.ID, Table: m.Table, Op: op, Time: j.now()}
	if _, err := j.writeRecord(RecordStep, entry); err != nil {
		return fmt.Errorf("failed to write Step record: %w", err)
	}
	m.Steps = append(m.Steps, op)
	return nil
}

// Commit records that m reached the catalog
func (j *Journal) Commit(m *Migration) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.verifyActive(m); err != nil {
		return err
	}
	entry := Entry{MigrationID: m.ID, Table: m.Table, Time: j.now()}
	if _, err := j.writeRecord(RecordCommit, entry); err != nil {
		return fmt.Errorf("failed to write Commit record: %w", err)
	}
	delete(j.active, m.ID)
	return nil
}

// Abort records that m stopped; steps already recorded stay applied
func (j *Journal) Abort(m *Migration, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.verifyActive(m); err != nil {
		return err
	}
	entry := Entry{MigrationID: m.ID, Table: m.Table, Reason: reason, Time: j.now()}
	if _, err := j.writeRecord(RecordAbort, entry); err != nil {
		return fmt.Errorf("failed to write Abort record: %w", err)
	}
	delete(j.active, m.ID)
	return nil
}

// Checkpoint marks every earlier record as reconciled
func (j *Journal) Checkpoint() (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	lsn, err := j.writeRecord(RecordCheckpoint, Entry{Time: j.now()})
	if err != nil {
		return 0, fmt.Errorf("failed to write Checkpoint record: %w", err)
	}
	j.lastCheckpoint = lsn
	return lsn, nil
}

// Must be called with j.mu held
func (j *Journal) verifyActive(m *Migration) error {
	if m == nil {
		return ErrUnknown
	}
	if _, ok := j.active[m.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, m.ID)
	}
	return nil
}

// writeRecord appends and fsyncs one record. Must be called with j.mu held.
func (j *Journal) writeRecord(rt RecordType, entry Entry) (uint64, error) {
	if j.file == nil {
		return 0, ErrClosed
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return 0, err
	}
	if len(payload) > MaxPayloadSize {
		return 0, fmt.Errorf("payload of %d bytes exceeds %d", len(payload), MaxPayloadSize)
	}

	lsn := j.nextLSN
	buf := encodeRecord(rt, lsn, payload)

	if _, err := j.file.WriteAt(buf, j.offset); err != nil {
		return 0, err
	}
	if err := j.file.Sync(); err != nil {
		return 0, err
	}

	j.nextLSN++
	j.offset += int64(len(buf))
	return lsn, nil
}
