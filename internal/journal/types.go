package journal

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/leengari/dyntable/internal/domain/schema"
)

// Journal file layout:
//
//	File header (64 bytes)
//	Record: [header (24 bytes)] [JSON payload] [zero padding to 8 bytes]
//	Record: ...
//
// Record header:
//
//	Type(1) Reserved(3) PayloadLen(4) LSN(8) CRC32(4) Reserved(4)
//
// All integers are little-endian. The CRC covers the payload only.

var ByteOrder = binary.LittleEndian

var Magic = [8]byte{'D', 'Y', 'N', 'T', 'B', 'J', 'N', 'L'}

const (
	Version          uint16 = 1
	FileHeaderSize          = 64
	RecordHeaderSize        = 24
	// MaxPayloadSize caps what a corrupt length field can make the reader allocate
	MaxPayloadSize = 4 * 1024 * 1024
)

var (
	// ErrTornRecord marks a record cut short by a crash mid-write
	ErrTornRecord = errors.New("journal: torn record")
	// ErrCorruptRecord marks a record whose header or checksum does not verify
	ErrCorruptRecord = errors.New("journal: corrupt record")
	ErrBadHeader     = errors.New("journal: bad file header")
	ErrUnknown       = errors.New("journal: unknown migration")
	ErrClosed        = errors.New("journal: closed")
)

// AlignTo8 rounds size up to the next multiple of 8
func AlignTo8(size int) int {
	return (size + 7) &^ 7
}

type RecordType uint8

const (
	RecordBegin RecordType = iota + 1
	RecordStep
	RecordCommit
	RecordAbort
	RecordCheckpoint
)

func (rt RecordType) String() string {
	switch rt {
	case RecordBegin:
		return "Begin"
	case RecordStep:
		return "Step"
	case RecordCommit:
		return "Commit"
	case RecordAbort:
		return "Abort"
	case RecordCheckpoint:
		return "Checkpoint"
	default:
		return "Unknown"
	}
}

func (rt RecordType) valid() bool {
	return rt >= RecordBegin && rt <= RecordCheckpoint
}

// Kind says which migrator entry point started a migration
type Kind string

const (
	KindDefine Kind = "define"
	KindAlter  Kind = "alter"
)

// Entry is the JSON payload of a record. Which fields are set depends on
// the record type.
type Entry struct {
	MigrationID string             `json:"migration_id,omitempty"`
	Table       string             `json:"table,omitempty"`
	Kind        Kind               `json:"kind,omitempty"`
	Fields      []schema.FieldSpec `json:"fields,omitempty"`
	Op          string             `json:"op,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Time        time.Time          `json:"time"`
}

// Record is one decoded journal record
type Record struct {
	Type   RecordType
	LSN    uint64
	Offset int64
	Entry  Entry
}

// Migration is a journaled schema change in flight
type Migration struct {
	ID        string
	Table     string
	Kind      Kind
	Fields    []schema.FieldSpec
	StartTime time.Time
	Steps     []string
}
