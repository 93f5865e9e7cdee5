package storage

import (
	"errors"
)

var (
	ErrOutOfSpace     = errors.New("not enough free space in page")
	ErrShortRead      = errors.New("short read")
	ErrShortWrite     = errors.New("short write")
	ErrShortCopy      = errors.New("short copy")
	ErrRange          = errors.New("position out of range")
	ErrCorruptHeader  = errors.New("corrupt page header")
	ErrNotFound       = errors.New("record not found")
	ErrWrongPageType  = errors.New("unexpected page type")
	ErrRecordTooLarge = errors.New("record too large")
	ErrBadPageSize    = errors.New("invalid page size")
	ErrBadDbVersion   = errors.New("invalid db version")
	ErrBadDbName      = errors.New("invalid db name")
	ErrClosed         = errors.New("database closed")
	ErrNotMapped      = errors.New("database file not mapped")
)
