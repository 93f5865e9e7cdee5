package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TempFileName(suffix string) string {
	return filepath.Join(os.TempDir(), uuid.New().String()+suffix)
}

func createTestDB(t *testing.T, opts *Options) (*DB, string) {
	tempFilename := TempFileName(".db")

	db, err := Open(tempFilename, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
		_ = os.Remove(tempFilename)
	})
	return db, tempFilename
}

func openTestDB(t *testing.T, filename string, opts *Options) *DB {
	db, err := Open(filename, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestPager(t *testing.T, pageSize int) (*Pager, *MemStore) {
	store := NewMemStore(pageSize)
	pager, err := NewPager(store, pageSize, NoPage, 0)
	require.NoError(t, err)
	return pager, store
}

func patternBytes(n int) []byte {
	data := make([]byte, n)
	for idx := range data {
		data[idx] = byte(idx % 251)
	}
	return data
}
