package journal

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"time"
)

// FileHeader is the decoded 64-byte file header
type FileHeader struct {
	Version    uint16
	InitialLSN uint64
	CreatedAt  time.Time
}

// Reader walks the records of a journal file front to back
type Reader struct {
	file    *os.File
	pos     int64
	lastLSN uint64
}

func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Reader{file: file}, nil
}

func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Offset is the position of the next record to be read, or of the record
// that failed to decode
func (r *Reader) Offset() int64 {
	return r.pos
}

// ReadFileHeader validates the file header and positions the reader at the
// first record
func (r *Reader) ReadFileHeader() (FileHeader, error) {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return FileHeader{}, fmt.Errorf("failed to seek journal: %w", err)
	}

	buf := make([]byte, FileHeaderSize)
	if _, err := io.ReadFull(r.file, buf); err != nil {
		return FileHeader{}, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	h, err := decodeFileHeader(buf)
	if err != nil {
		return FileHeader{}, err
	}
	r.pos = FileHeaderSize
	return h, nil
}

// Next returns the next record. It returns io.EOF at a clean end of file,
// and an error wrapping ErrTornRecord or ErrCorruptRecord when the record at
// Offset cannot be trusted; nothing after it is read.
func (r *Reader) Next() (Record, error) {
	head := make([]byte, RecordHeaderSize)
	n, err := io.ReadFull(r.file, head)
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: header at offset %d (%d bytes)", ErrTornRecord, r.pos, n)
	}

	rt := RecordType(head[0])
	payloadLen := ByteOrder.Uint32(head[4:8])
	lsn := ByteOrder.Uint64(head[8:16])
	sum := ByteOrder.Uint32(head[16:20])

	if !rt.valid() {
		return Record{}, fmt.Errorf("%w: type %d at offset %d", ErrCorruptRecord, head[0], r.pos)
	}
	if payloadLen > MaxPayloadSize {
		return Record{}, fmt.Errorf("%w: payload length %d at offset %d", ErrCorruptRecord, payloadLen, r.pos)
	}
	if lsn <= r.lastLSN {
		return Record{}, fmt.Errorf("%w: lsn %d after %d at offset %d", ErrCorruptRecord, lsn, r.lastLSN, r.pos)
	}

	total := AlignTo8(RecordHeaderSize + int(payloadLen))
	body := make([]byte, total-RecordHeaderSize)
	if _, err := io.ReadFull(r.file, body); err != nil {
		return Record{}, fmt.Errorf("%w: payload at offset %d", ErrTornRecord, r.pos)
	}

	payload := body[:payloadLen]
	if crc32.ChecksumIEEE(payload) != sum {
		return Record{}, fmt.Errorf("%w: checksum mismatch at offset %d", ErrCorruptRecord, r.pos)
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return Record{}, fmt.Errorf("%w: payload at offset %d: %v", ErrCorruptRecord, r.pos, err)
	}

	rec := Record{Type: rt, LSN: lsn, Offset: r.pos, Entry: entry}
	r.pos += int64(total)
	r.lastLSN = lsn
	return rec, nil
}

// ReadAll reads every trustworthy record. The reader stops at the first
// bad record; its error is returned alongside the records before it.
func ReadAll(path string) ([]Record, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if _, err := r.ReadFileHeader(); err != nil {
		return nil, err
	}

	var records []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

func encodeFileHeader(initialLSN uint64, createdAt time.Time) []byte {
	buf := make([]byte, FileHeaderSize)
	copy(buf[0:8], Magic[:])
	ByteOrder.PutUint16(buf[8:10], Version)
	ByteOrder.PutUint64(buf[16:24], initialLSN)
	ByteOrder.PutUint64(buf[24:32], uint64(createdAt.Unix()))
	return buf
}

func decodeFileHeader(buf []byte) (FileHeader, error) {
	var magic [8]byte
	copy(magic[:], buf[0:8])
	if magic != Magic {
		return FileHeader{}, fmt.Errorf("%w: magic %q", ErrBadHeader, magic[:])
	}
	h := FileHeader{
		Version:    ByteOrder.Uint16(buf[8:10]),
		InitialLSN: ByteOrder.Uint64(buf[16:24]),
		CreatedAt:  time.Unix(int64(ByteOrder.Uint64(buf[24:32])), 0).UTC(),
	}
	if h.Version != Version {
		return FileHeader{}, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, h.Version)
	}
	return h, nil
}

func encodeRecord(rt RecordType, lsn uint64, payload []byte) []byte {
	total := AlignTo8(RecordHeaderSize + len(payload))
	buf := make([]byte, total)
	buf[0] = byte(rt)
	ByteOrder.PutUint32(buf[4:8], uint32(len(payload)))
	ByteOrder.PutUint64(buf[8:16], lsn)
	ByteOrder.PutUint32(buf[16:20], crc32.ChecksumIEEE(payload))
	copy(buf[RecordHeaderSize:], payload)
	return buf
}
