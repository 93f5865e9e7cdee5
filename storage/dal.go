package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

const (
	minFileSize = 1024 * 32 // 32KB
	OneGigabyte = 1024 * 1024 * 1024
)

// Dal is the file-backed PageStore. Page id N lives at offset N*pageSize of a
// shared memory mapping; slot 0 holds the superblock.
type Dal struct {
	file       *os.File
	data       []byte
	osPageSize uint64
	pageSize   uint64
	maxPages   uint64
	size       uint64
	meta       *Meta
	fileLock   *flock.Flock
}

var _ PageStore = (*Dal)(nil)

func NewDal(path string, opts *Options) (*Dal, error) {
	var fileExists bool

	if statInfo, statErr := os.Stat(path); statErr == nil && statInfo.Size() > 0 {
		fileExists = true
		logger.Debug("database file already exists", "path", path)
	} else if statErr == nil || os.IsNotExist(statErr) {
		fileExists = false
		logger.Debug("database file not exists", "path", path)
	} else {
		return nil, fmt.Errorf("could not stat dal: %v", statErr)
	}

	fileLock := flock.New(path)
	locked, err := fileLock.TryLock()
	if err != nil || !locked {
		return nil, fmt.Errorf("could not lock database file: %s", path)
	}

	file, openErr := os.OpenFile(path, os.O_RDWR|os.O_CREATE, opts.FileMode)
	if openErr != nil {
		_ = fileLock.Unlock()
		return nil, fmt.Errorf("could not open dal: %v", openErr)
	}

	fileInfo, fileStatErr := file.Stat()
	if fileStatErr != nil {
		_ = file.Close()
		_ = fileLock.Unlock()
		return nil, fmt.Errorf("could not stat dal: %v", fileStatErr)
	}

	pageSize := uint64(opts.PageSize)
	fileSize := uint64(fileInfo.Size())
	fileSize = max(fileSize, minFileSize, 4*pageSize)

	logger.Info("open database file", "path", path, "size", fileSize)

	dal := &Dal{
		fileLock:   fileLock,
		file:       file,
		meta:       NewMeta(pageSize),
		osPageSize: uint64(os.Getpagesize()),
		pageSize:   pageSize,
	}
	if err = dal.mmap(fileSize); err != nil {
		dal.abort()
		return nil, err
	}

	if fileExists {
		meta, readMetaErr := ReadMeta(dal)
		if readMetaErr != nil {
			dal.abort()
			return nil, fmt.Errorf("could not read meta: %w", readMetaErr)
		}
		if meta.pageSize != pageSize {
			dal.abort()
			return nil, fmt.Errorf("%w: file uses %d byte pages, %d requested", ErrBadPageSize, meta.pageSize, pageSize)
		}
		dal.meta = meta
	} else {
		if writeMetaErr := WriteMeta(dal, dal.meta); writeMetaErr != nil {
			dal.abort()
			return nil, fmt.Errorf("could not write meta: %w", writeMetaErr)
		}
	}

	return dal, nil
}

func (dal *Dal) abort() {
	if dal.data != nil {
		_ = unix.Munmap(dal.data)
		dal.data = nil
	}
	_ = dal.file.Close()
	_ = dal.fileLock.Unlock()
}

func (dal *Dal) mmap(size uint64) error {
	oldSize := dal.size
	if oldSize != 0 {
		logger.Info("unmapping dal", "old_size", oldSize, "new_size", size)
		if err := unix.Munmap(dal.data); err != nil {
			return fmt.Errorf("could not unmap dal: %w", err)
		}
		dal.data = nil
	}
	if err := dal.mapFile(size); err != nil {
		if oldSize != 0 {
			dal.restoreMapping(oldSize)
		}
		return err
	}
	logger.Info("mmap", "size", dal.size, "max_pages", dal.maxPages)
	return nil
}

func (dal *Dal) mapFile(size uint64) error {
	if err := dal.file.Truncate(int64(size)); err != nil {
		return fmt.Errorf("could not grow dal to %d bytes: %w", size, err)
	}
	data, mmapErr := unix.Mmap(int(dal.file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if mmapErr != nil {
		return fmt.Errorf("could not mmap dal: %w", mmapErr)
	}
	dal.data = data
	dal.size = size
	dal.maxPages = size / dal.pageSize
	return nil
}

// restoreMapping maps the file back at its previous size after a failed grow.
// If that fails too the store stays unmapped and every Get and Put reports
// ErrNotMapped.
func (dal *Dal) restoreMapping(size uint64) {
	if err := dal.mapFile(size); err != nil {
		logger.Error("could not restore mapping", "size", size, "err", err)
		dal.data = nil
		dal.size = 0
		dal.maxPages = 0
	}
}

func (dal *Dal) expandMapping() error {
	var newSize uint64
	if dal.size < OneGigabyte {
		newSize = dal.size * 2
	} else {
		newSize = dal.size + OneGigabyte
	}
	logger.Info("expand mmap", "size", newSize)
	return dal.mmap(newSize)
}

func (dal *Dal) slot(pageNumber uint64) []byte {
	offset := pageNumber * dal.pageSize
	return dal.data[offset : offset+dal.pageSize]
}

func (dal *Dal) syncSlot(pageNumber uint64) error {
	offset := pageNumber * dal.pageSize
	alignedOffset := offset - (offset % dal.osPageSize)
	end := offset + dal.pageSize
	if err := unix.Msync(dal.data[alignedOffset:end], unix.MS_SYNC); err != nil {
		return fmt.Errorf("failed to sync page %d: %w", pageNumber, err)
	}
	return nil
}

func (dal *Dal) Get(id PageID) ([]byte, error) {
	if dal.file == nil {
		return nil, ErrClosed
	}
	if dal.data == nil {
		return nil, ErrNotMapped
	}
	if id == NoPage || id > dal.meta.lastPageID || uint64(id) >= dal.maxPages {
		return nil, fmt.Errorf("%w: page %d", ErrNotFound, id)
	}
	data := dal.slot(uint64(id))
	// A slot that was minted but never written still holds zeroes.
	if PageID(binary.BigEndian.Uint64(data[pageIDOffset:])) != id {
		return nil, fmt.Errorf("%w: page %d was never written", ErrNotFound, id)
	}
	return append([]byte(nil), data...), nil
}

func (dal *Dal) Put(id PageID, data []byte) error {
	if dal.file == nil {
		return ErrClosed
	}
	if dal.data == nil {
		return ErrNotMapped
	}
	if id == NoPage {
		return fmt.Errorf("cannot put page %d", id)
	}
	if uint64(len(data)) != dal.pageSize {
		return fmt.Errorf("%w: page %d is %d bytes, store pages are %d", ErrShortWrite, id, len(data), dal.pageSize)
	}
	for uint64(id) >= dal.maxPages {
		if err := dal.expandMapping(); err != nil {
			return err
		}
	}
	copy(dal.slot(uint64(id)), data)
	if id > dal.meta.lastPageID {
		dal.meta.lastPageID = id
	}
	return dal.syncSlot(uint64(id))
}

func (dal *Dal) LastPageID() PageID {
	return dal.meta.lastPageID
}

func (dal *Dal) SetLastPageID(id PageID) {
	if id > dal.meta.lastPageID {
		dal.meta.lastPageID = id
	}
}

func (dal *Dal) Root() EntryAddress {
	return dal.meta.root
}

func (dal *Dal) SetRoot(addr EntryAddress) {
	dal.meta.root = addr
}

func (dal *Dal) Size() uint64 {
	return dal.size
}

func (dal *Dal) Sync() error {
	if dal.file == nil {
		return ErrClosed
	}
	if dal.data == nil {
		return ErrNotMapped
	}
	if err := WriteMeta(dal, dal.meta); err != nil {
		return err
	}
	if err := unix.Msync(dal.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("failed to sync mapping: %w", err)
	}
	return dal.file.Sync()
}

func (dal *Dal) Close() error {
	if dal.file == nil {
		return nil
	}
	var errs []error
	if dal.data != nil {
		if err := WriteMeta(dal, dal.meta); err != nil {
			logger.Error("failed to write superblock on close", "err", err)
			errs = append(errs, fmt.Errorf("could not write meta: %w", err))
		}
		if err := unix.Munmap(dal.data); err != nil {
			logger.Error("failed to unmap file", "err", err)
			errs = append(errs, fmt.Errorf("failed to unmap file: %w", err))
		}
		dal.data = nil
	} else {
		errs = append(errs, fmt.Errorf("could not write meta: %w", ErrNotMapped))
	}
	if err := dal.file.Close(); err != nil && !errors.Is(err, fs.ErrClosed) {
		errs = append(errs, fmt.Errorf("failed to close file: %w", err))
	}
	dal.file = nil
	if err := dal.fileLock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("failed to unlock db file: %w", err))
	}
	return errors.Join(errs...)
}
