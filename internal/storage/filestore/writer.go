package filestore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leengari/dyntable/internal/storage"
)

// loadTable reads meta.json and, if present, data.json from a table directory
func loadTable(path string) (*table, error) {
	metaBytes, err := os.ReadFile(filepath.Join(path, "meta.json"))
	if err != nil {
		return nil, err
	}

	var meta tableMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse meta.json: %w", err)
	}

	rows := []rowRecord{}
	dataPath := filepath.Join(path, "data.json")
	if _, err := os.Stat(dataPath); err == nil {
		dataBytes, err := os.ReadFile(dataPath)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(dataBytes, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse data.json: %w", err)
		}
	}

	for _, r := range rows {
		if r.ID > meta.LastInsertID {
			meta.LastInsertID = r.ID
		}
	}

	slog.Debug("table loaded",
		slog.String("table", meta.Name),
		slog.Int("rows", len(rows)),
	)

	return &table{path: path, meta: meta, rows: rows}, nil
}

// commit persists the next image of the table and only then installs it in
// memory. Caller holds t.mu for writing.
func (t *table) commit(meta tableMeta, rows []rowRecord) error {
	meta.RowCount = int64(len(rows))

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal table meta for %s: %w", meta.Name, err)
	}
	dataBytes, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rows for %s: %w", meta.Name, err)
	}

	// data.json first. A crash between the two renames leaves meta.json one
	// write behind: a dropped column is still listed and scans fill in its
	// default, and a stale last_insert_id is repaired by loadTable.
	files := []struct {
		path string
		data []byte
		name string
	}{
		{filepath.Join(t.path, "data.json"), dataBytes, "data.json"},
		{filepath.Join(t.path, "meta.json"), metaBytes, "meta.json"},
	}

	for _, f := range files {
		if err := storage.WriteFileAtomic(f.path, f.data); err != nil {
			return fmt.Errorf("failed to write %s for table %s: %w", f.name, meta.Name, err)
		}
	}

	t.meta = meta
	t.rows = rows
	return nil
}
