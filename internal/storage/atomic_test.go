package storage

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")

	assert.NilError(t, WriteFileAtomic(path, []byte(`{"v":1}`)))
	assert.NilError(t, WriteFileAtomic(path, []byte(`{"v":2}`)))

	got, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Equal(t, string(got), `{"v":2}`)

	_, err = os.Stat(path + ".tmp")
	assert.Assert(t, os.IsNotExist(err))
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "meta.json")
	assert.Assert(t, WriteFileAtomic(path, []byte("x")) != nil)
}
