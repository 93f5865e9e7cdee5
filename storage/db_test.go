package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDBWriteRead(t *testing.T) {
	db, _ := createTestDB(t, DefaultOptions().WithPageSize(1000))

	records := map[EntryAddress][]byte{}
	for _, size := range []int{0, 10, 500, 912, 4000, 12345} {
		payload := patternBytes(size)
		addr, err := db.WriteRecord(payload)
		require.NoError(t, err)
		records[addr] = payload
	}
	for addr, want := range records {
		got, err := db.ReadRecord(addr)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	stat := db.Stat()
	require.Equal(t, 1000, stat.PageSize)
	require.Equal(t, uint64(6), stat.Pager.RecordsWritten)
	require.NotZero(t, stat.FileSize)
	require.NotZero(t, stat.ActivePage)
}

func TestDBReopen(t *testing.T) {
	opts := DefaultOptions().WithPageSize(2048)
	db, filename := createTestDB(t, opts)

	var addrs []EntryAddress
	for i := 0; i < 300; i++ {
		addr, err := db.WriteRecord(patternBytes(i * 3))
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}
	db.SetRoot(addrs[42])
	lastID := db.Stat().LastPageID
	require.NoError(t, db.Close())

	reopened := openTestDB(t, filename, opts)
	require.Equal(t, addrs[42], reopened.Root())
	require.Equal(t, lastID, reopened.Stat().LastPageID)
	for i, addr := range addrs {
		data, err := reopened.ReadRecord(addr)
		require.NoError(t, err)
		require.Equal(t, patternBytes(i*3), data)
	}

	// a reopened store never writes into a sealed page
	addr, err := reopened.WriteRecord([]byte("after reopen"))
	require.NoError(t, err)
	require.Greater(t, addr.PageID, lastID)
}

func TestDBSyncKeepsPageOpen(t *testing.T) {
	db, _ := createTestDB(t, DefaultOptions())
	first, err := db.WriteRecord([]byte("one"))
	require.NoError(t, err)
	require.NoError(t, db.Sync())

	second, err := db.WriteRecord([]byte("two"))
	require.NoError(t, err)
	require.Equal(t, first.PageID, second.PageID)
	require.Equal(t, uint16(1), second.SlotID)
}

func TestDBClosed(t *testing.T) {
	db, err := OpenMem(DefaultOptions())
	require.NoError(t, err)
	addr, err := db.WriteRecord([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.WriteRecord([]byte("y"))
	require.ErrorIs(t, err, ErrClosed)
	_, err = db.ReadRecord(addr)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, db.Sync(), ErrClosed)
}

func TestDBCloseReportsSealError(t *testing.T) {
	store := &failingStore{MemStore: NewMemStore(1000)}
	db, err := OpenStore(store, NoPage, DefaultOptions().WithPageSize(1000))
	require.NoError(t, err)

	_, err = db.WriteRecord([]byte("hello"))
	require.NoError(t, err)

	require.ErrorIs(t, db.Close(), errStoreDown)
	require.Zero(t, store.Len())
	require.NoError(t, db.Close())
}

func TestOpenRejectsBadOptions(t *testing.T) {
	_, err := Open(TempFileName(".db"), DefaultOptions().WithPageSize(MinPageSize-1))
	require.ErrorIs(t, err, ErrBadPageSize)
	_, err = OpenMem(DefaultOptions().WithPageSize(MaxPageSize + 1))
	require.ErrorIs(t, err, ErrBadPageSize)
}

func TestDBConcurrentReadersAndWriter(t *testing.T) {
	db, err := OpenMem(DefaultOptions().WithPageSize(512).WithPageCacheSize(4))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	seed, err := db.WriteRecord(patternBytes(300))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, writeErr := db.WriteRecord(patternBytes(i))
			require.NoError(t, writeErr)
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				data, readErr := db.ReadRecord(seed)
				require.NoError(t, readErr)
				require.Len(t, data, 300)
			}
		}()
	}
	wg.Wait()
}
