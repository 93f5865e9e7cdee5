package storage

import (
	"fmt"
	"math"
	"os"
)

const (
	DefaultPageSize      = 16000
	DefaultPageCacheSize = 64

	// Offsets inside a page are stored as uint16.
	MaxPageSize = math.MaxUint16
	// Room for the header, one entry and an overflow page's next pointer.
	MinPageSize = PageHeaderSize + MinRecordOverhead + overflowNextSize + 32
)

type Options struct {
	FileMode      os.FileMode
	PageSize      int
	PageCacheSize int // decoded sealed pages kept in memory, 0 disables the cache
}

func DefaultOptions() *Options {
	return &Options{
		FileMode:      0600,
		PageSize:      DefaultPageSize,
		PageCacheSize: DefaultPageCacheSize,
	}
}

func (o *Options) WithPageSize(pageSize int) *Options {
	o.PageSize = pageSize
	return o
}

func (o *Options) WithPageCacheSize(size int) *Options {
	o.PageCacheSize = size
	return o
}

func (o *Options) WithFileMode(mode os.FileMode) *Options {
	o.FileMode = mode
	return o
}

func (o *Options) Validate() error {
	if o.PageSize < MinPageSize || o.PageSize > MaxPageSize {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrBadPageSize, o.PageSize, MinPageSize, MaxPageSize)
	}
	if o.PageCacheSize < 0 {
		return fmt.Errorf("page cache size must not be negative: %d", o.PageCacheSize)
	}
	return nil
}
