package storage

import (
	"errors"
	"fmt"
)

// Overflow page map
// 0          72                                freeOffset                         size-8        size
// +----------+-----------------------------------+----------------------------------+-------------+
// |  Header  |       Continuation bytes          |           unused                 |  Next Page  |
// |          |  (head allocated, in order)       |                                  |   uint64    |
// +----------+-----------------------------------+----------------------------------+-------------+
//
// The next pointer is tail allocated when the page is created; NoPage ends the chain.

const overflowNextSize = UInt64Size

// OverflowCapacity is the number of record bytes one overflow page carries.
func OverflowCapacity(pageSize int) int {
	return pageSize - PageHeaderSize - overflowNextSize
}

type OverflowPage struct {
	*Page
}

func NewOverflowPage(id PageID, size int) *OverflowPage {
	page := &OverflowPage{Page: NewPage(id, PageTypeOverflow, size)}
	// A fresh page always has room for the pointer.
	_, _ = page.Allocate(overflowNextSize, true)
	_ = page.SetNext(NoPage)
	return page
}

func LoadOverflowPage(raw []byte) (*OverflowPage, error) {
	page, err := LoadPage(raw)
	if err != nil {
		return nil, err
	}
	if page.Type() != PageTypeOverflow {
		return nil, fmt.Errorf("%w: page %d is %s", ErrWrongPageType, page.ID(), page.Type())
	}
	if page.TailBytes() != overflowNextSize {
		return nil, fmt.Errorf("%w: overflow page %d tail of %d bytes", ErrCorruptHeader, page.ID(), page.TailBytes())
	}
	return &OverflowPage{Page: page}, nil
}

// Append stores as much of data as still fits and returns the count stored.
func (p *OverflowPage) Append(data []byte) (int, error) {
	n := min(len(data), p.RemainingFreeSpace())
	addr, err := p.Allocate(n, false)
	if err != nil {
		return 0, err
	}
	if _, err = p.Seek(SeekAbsolute, addr); err != nil {
		return 0, err
	}
	if err = p.WriteFull(data[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *OverflowPage) Next() PageID {
	c := p.view()
	if _, err := c.Seek(SeekAbsolute, p.Size()-overflowNextSize); err != nil {
		return NoPage
	}
	next, err := c.ReadUint64()
	if err != nil {
		return NoPage
	}
	return PageID(next)
}

func (p *OverflowPage) SetNext(next PageID) error {
	if _, err := p.Seek(SeekAbsolute, p.Size()-overflowNextSize); err != nil {
		return err
	}
	return p.WriteUint64(uint64(next))
}

// Content returns the continuation bytes stored in the page.
func (p *OverflowPage) Content() []byte {
	return p.Data()[PageHeaderSize:p.FreeOffset()]
}

func overflowPageCount(pageSize int, dataLen int) int {
	capacity := OverflowCapacity(pageSize)
	pages := dataLen / capacity
	if dataLen%capacity != 0 {
		pages++
	}
	return pages
}

// writeOverflowChain spreads data over freshly minted overflow pages, links
// them in order and puts them into the store. It returns the chain's page ids.
func writeOverflowChain(store PageStore, mint func() PageID, pageSize int, data []byte) ([]PageID, error) {
	pageCount := overflowPageCount(pageSize, len(data))
	ids := make([]PageID, pageCount)
	for idx := range ids {
		ids[idx] = mint()
	}

	dataOffset := 0
	for idx, id := range ids {
		page := NewOverflowPage(id, pageSize)
		next := NoPage
		if idx < pageCount-1 {
			next = ids[idx+1]
		}
		if err := page.SetNext(next); err != nil {
			return nil, err
		}
		written, err := page.Append(data[dataOffset:])
		if err != nil {
			return nil, err
		}
		dataOffset += written

		if err = page.FlushHeader(); err != nil {
			return nil, err
		}
		if err = store.Put(id, page.Data()); err != nil {
			return nil, fmt.Errorf("could not put overflow page %d: %w", id, err)
		}
	}
	logger.Debug("overflow chain written", "head", ids[0], "pages", pageCount, "bytes", len(data))
	return ids, nil
}

// readOverflowChain follows the chain from head until want bytes are collected.
func readOverflowChain(store PageStore, head PageID, want int) ([]byte, error) {
	data := make([]byte, 0, want)
	visited := make(map[PageID]struct{})
	next := head
	for len(data) < want {
		if next == NoPage {
			return nil, fmt.Errorf("%w: overflow chain from %d ends after %d of %d bytes",
				ErrCorruptHeader, head, len(data), want)
		}
		if _, seen := visited[next]; seen {
			return nil, fmt.Errorf("%w: overflow chain from %d loops at %d", ErrCorruptHeader, head, next)
		}
		visited[next] = struct{}{}

		raw, err := store.Get(next)
		if err != nil {
			return nil, fmt.Errorf("could not get overflow page %d: %w", next, err)
		}
		page, err := LoadOverflowPage(raw)
		if errors.Is(err, ErrWrongPageType) {
			return nil, fmt.Errorf("%w: overflow chain from %d reaches %v", ErrCorruptHeader, head, err)
		}
		if err != nil {
			return nil, err
		}
		content := page.Content()
		if len(content) == 0 || len(data)+len(content) > want {
			return nil, fmt.Errorf("%w: overflow page %d carries %d bytes, %d still expected",
				ErrCorruptHeader, next, len(content), want-len(data))
		}
		data = append(data, content...)
		next = page.Next()
	}
	return data, nil
}
