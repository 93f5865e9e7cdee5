package storage

import (
	"errors"
	"sync"
)

// DB is a record store over a PageStore. It allows one writer and any number
// of concurrent readers.
type DB struct {
	lock   sync.RWMutex
	store  PageStore
	dal    *Dal
	pager  *Pager
	opts   *Options
	root   EntryAddress
	closed bool
}

type DBStat struct {
	PageSize        int          `json:"page_size"`
	LastPageID      PageID       `json:"last_page_id"`
	ActivePage      PageID       `json:"active_page"`
	ActiveSlots     int          `json:"active_slots"`
	ActiveFreeSpace int          `json:"active_free_space"`
	FileSize        uint64       `json:"file_size"`
	Root            EntryAddress `json:"root"`
	Pager           PagerStats   `json:"pager"`
}

// Open opens or creates a file-backed store at path.
func Open(path string, opts *Options) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dal, err := NewDal(path, opts)
	if err != nil {
		return nil, err
	}
	pager, err := NewPager(dal, opts.PageSize, dal.LastPageID(), opts.PageCacheSize)
	if err != nil {
		_ = dal.Close()
		return nil, err
	}
	return &DB{
		store: dal,
		dal:   dal,
		pager: pager,
		opts:  opts,
		root:  dal.Root(),
	}, nil
}

// OpenStore builds a DB over any PageStore, e.g. a MemStore. lastID must be
// at least the highest page id already in the store.
func OpenStore(store PageStore, lastID PageID, opts *Options) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	pager, err := NewPager(store, opts.PageSize, lastID, opts.PageCacheSize)
	if err != nil {
		return nil, err
	}
	return &DB{
		store: store,
		pager: pager,
		opts:  opts,
	}, nil
}

// OpenMem builds a DB whose pages live in memory only.
func OpenMem(opts *Options) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	return OpenStore(NewMemStore(opts.PageSize), NoPage, opts)
}

func (db *DB) WriteRecord(payload []byte) (EntryAddress, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	if db.closed {
		return EntryAddress{}, ErrClosed
	}
	return db.pager.WriteRecord(payload)
}

func (db *DB) ReadRecord(addr EntryAddress) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	return db.pager.ReadRecord(addr)
}

// Root is the address of the record the application registered as its entry point.
func (db *DB) Root() EntryAddress {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return db.root
}

func (db *DB) SetRoot(addr EntryAddress) {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.root = addr
	if db.dal != nil {
		db.dal.SetRoot(addr)
	}
}

// Sync makes every record written so far durable without sealing the open page.
func (db *DB) Sync() error {
	db.lock.Lock()
	defer db.lock.Unlock()
	if db.closed {
		return ErrClosed
	}
	if err := db.pager.Flush(); err != nil {
		return err
	}
	if db.dal == nil {
		return nil
	}
	db.dal.SetLastPageID(db.pager.LastPageID())
	return db.dal.Sync()
}

func (db *DB) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	sealErr := db.pager.Seal()
	if sealErr != nil {
		logger.Error("could not seal open page", "err", sealErr)
	}
	if db.dal == nil {
		return sealErr
	}
	db.dal.SetLastPageID(db.pager.LastPageID())
	return errors.Join(sealErr, db.dal.Close())
}

func (db *DB) Stat() *DBStat {
	db.lock.RLock()
	defer db.lock.RUnlock()
	stat := &DBStat{
		PageSize:   db.opts.PageSize,
		LastPageID: db.pager.LastPageID(),
		Root:       db.root,
		Pager:      db.pager.Stats(),
	}
	if active := db.pager.ActivePage(); active != nil {
		stat.ActivePage = active.ID()
		stat.ActiveSlots = active.SlotCount()
		stat.ActiveFreeSpace = active.RemainingFreeSpace()
	}
	if db.dal != nil {
		stat.FileSize = db.dal.Size()
	}
	return stat
}

func (db *DB) GetOptions() *Options {
	return db.opts
}
