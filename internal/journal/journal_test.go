package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/leengari/dyntable/internal/domain/schema"
)

// createTestJournal opens a journal in a temp dir and closes it at cleanup
func createTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	j, err := Open(path)
	assert.NilError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

var userFields = []schema.FieldSpec{
	{Name: "name", Type: schema.FieldString},
	{Name: "age", Type: schema.FieldNumber},
}

func TestFreshJournalHasHeaderOnly(t *testing.T) {
	j, path := createTestJournal(t)
	assert.Equal(t, j.NextLSN(), uint64(1))

	info, err := os.Stat(path)
	assert.NilError(t, err)
	assert.Equal(t, info.Size(), int64(FileHeaderSize))

	records, err := ReadAll(path)
	assert.NilError(t, err)
	assert.Equal(t, len(records), 0)
}

func TestRecordsRoundTrip(t *testing.T) {
	j, path := createTestJournal(t)

	m, err := j.Begin("users", KindAlter, userFields)
	assert.NilError(t, err)
	assert.Assert(t, m.ID != "")
	assert.NilError(t, j.Step(m, "drop_column age:number"))
	assert.NilError(t, j.Step(m, "add_column email:string"))
	assert.NilError(t, j.Commit(m))
	assert.DeepEqual(t, m.Steps, []string{"drop_column age:number", "add_column email:string"})

	records, err := ReadAll(path)
	assert.NilError(t, err)
	assert.Equal(t, len(records), 4)

	types := make([]RecordType, len(records))
	for i, r := range records {
		types[i] = r.Type
		assert.Equal(t, r.LSN, uint64(i+1))
		assert.Equal(t, r.Offset%8, int64(0), "record %d misaligned", i)
		assert.Equal(t, r.Entry.MigrationID, m.ID)
	}
	assert.DeepEqual(t, types, []RecordType{RecordBegin, RecordStep, RecordStep, RecordCommit})
	assert.DeepEqual(t, records[0].Entry.Fields, userFields)
	assert.Equal(t, records[0].Entry.Kind, KindAlter)
	assert.Equal(t, records[2].Entry.Op, "add_column email:string")
}

func TestFinishedMigrationRejectsMoreRecords(t *testing.T) {
	j, _ := createTestJournal(t)

	m, err := j.Begin("users", KindDefine, userFields)
	assert.NilError(t, err)
	assert.NilError(t, j.Abort(m, "boom"))

	err = j.Step(m, "add_column x:string")
	assert.Assert(t, errors.Is(err, ErrUnknown), "got %v", err)
	err = j.Commit(m)
	assert.Assert(t, errors.Is(err, ErrUnknown), "got %v", err)
}

func TestReopenContinuesLSN(t *testing.T) {
	j, path := createTestJournal(t)
	m, err := j.Begin("users", KindDefine, userFields)
	assert.NilError(t, err)
	assert.NilError(t, j.Commit(m))
	assert.NilError(t, j.Close())

	reopened, err := Open(path)
	assert.NilError(t, err)
	defer reopened.Close()
	assert.Equal(t, reopened.NextLSN(), uint64(3))

	lsn, err := reopened.Checkpoint()
	assert.NilError(t, err)
	assert.Equal(t, lsn, uint64(3))
	assert.Equal(t, reopened.LastCheckpointLSN(), uint64(3))
}

func TestTornTailIsTruncatedOnOpen(t *testing.T) {
	j, path := createTestJournal(t)
	m, err := j.Begin("users", KindAlter, userFields)
	assert.NilError(t, err)
	assert.NilError(t, j.Step(m, "drop_column age:number"))
	assert.NilError(t, j.Close())

	good, err := os.Stat(path)
	assert.NilError(t, err)

	// half a record header, as a crash mid-append would leave
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	assert.NilError(t, err)
	_, err = f.Write([]byte{byte(RecordStep), 0, 0, 0, 9, 0, 0})
	assert.NilError(t, err)
	assert.NilError(t, f.Close())

	_, err = ReadAll(path)
	assert.Assert(t, errors.Is(err, ErrTornRecord), "got %v", err)

	reopened, err := Open(path)
	assert.NilError(t, err)
	defer reopened.Close()

	info, err := os.Stat(path)
	assert.NilError(t, err)
	assert.Equal(t, info.Size(), good.Size())

	_, err = reopened.Checkpoint()
	assert.NilError(t, err)
	records, err := ReadAll(path)
	assert.NilError(t, err)
	assert.Equal(t, len(records), 3)
	assert.Equal(t, records[2].Type, RecordCheckpoint)
}

func TestChecksumMismatchStopsReader(t *testing.T) {
	j, path := createTestJournal(t)
	m, err := j.Begin("users", KindAlter, userFields)
	assert.NilError(t, err)
	assert.NilError(t, j.Step(m, "drop_column age:number"))
	assert.NilError(t, j.Close())

	records, err := ReadAll(path)
	assert.NilError(t, err)
	second := records[1].Offset

	raw, err := os.ReadFile(path)
	assert.NilError(t, err)
	raw[second+RecordHeaderSize+2] ^= 0xFF
	assert.NilError(t, os.WriteFile(path, raw, 0644))

	records, err = ReadAll(path)
	assert.Assert(t, errors.Is(err, ErrCorruptRecord), "got %v", err)
	assert.Equal(t, len(records), 1)
}

func TestBadMagicIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	assert.NilError(t, os.WriteFile(path, make([]byte, FileHeaderSize), 0644))

	_, err := Open(path)
	assert.Assert(t, errors.Is(err, ErrBadHeader), "got %v", err)
}

func TestWriteAfterCloseFails(t *testing.T) {
	j, _ := createTestJournal(t)
	assert.NilError(t, j.Close())
	_, err := j.Begin("users", KindDefine, nil)
	assert.Assert(t, errors.Is(err, ErrClosed), "got %v", err)
}
