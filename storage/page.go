package storage

import (
	"fmt"
)

// Page header map
// 0                        8            9            11           13                      72
// +------------------------+------------+------------+------------+------------------------+
// |        Page ID         | Page Type  | Free Off.  | Free Len.  |   Reserved (zeroed)    |
// |        uint64          |   uint8    |  uint16    |  uint16    |       59 bytes         |
// +------------------------+------------+------------+------------+------------------------+
//
// The free arena spans [freeOffset, freeOffset+freeLength). Head allocations grow it
// from the front, tail allocations from the back.

type PageID uint64

// NoPage is never minted; it marks the end of an overflow chain.
const NoPage PageID = 0

type PageType uint8

const (
	PageTypeEntry    PageType = 0
	PageTypeOverflow PageType = 1
)

func (t PageType) String() string {
	switch t {
	case PageTypeEntry:
		return "Entry"
	case PageTypeOverflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

const (
	PageHeaderSize = 72

	pageIDSize         = UInt64Size
	pageTypeSize       = UInt8Size
	pageFreeOffsetSize = UInt16Size

	pageIDOffset         = 0
	pageTypeOffset       = pageIDOffset + pageIDSize
	pageFreeOffsetOffset = pageTypeOffset + pageTypeSize
	pageFreeLengthOffset = pageFreeOffsetOffset + pageFreeOffsetSize
)

// PageMeta is the decoded page header.
type PageMeta struct {
	ID         PageID
	Type       PageType
	FreeOffset uint16
	FreeLength uint16
}

func (m *PageMeta) Serialize(c *Cursor) error {
	if _, err := c.Seek(SeekAbsolute, pageIDOffset); err != nil {
		return err
	}
	if err := c.WriteUint64(uint64(m.ID)); err != nil {
		return err
	}
	if err := c.WriteUint8(uint8(m.Type)); err != nil {
		return err
	}
	if err := c.WriteUint16(m.FreeOffset); err != nil {
		return err
	}
	return c.WriteUint16(m.FreeLength)
}

func (m *PageMeta) Deserialize(c *Cursor) error {
	if _, err := c.Seek(SeekAbsolute, pageIDOffset); err != nil {
		return err
	}
	id, err := c.ReadUint64()
	if err != nil {
		return err
	}
	pageType, err := c.ReadUint8()
	if err != nil {
		return err
	}
	freeOffset, err := c.ReadUint16()
	if err != nil {
		return err
	}
	freeLength, err := c.ReadUint16()
	if err != nil {
		return err
	}
	m.ID = PageID(id)
	m.Type = PageType(pageType)
	m.FreeOffset = freeOffset
	m.FreeLength = freeLength
	return nil
}

// Page is one fixed-size block. It embeds its own cursor; Page.Seek adds the
// header, payload and free-arena origins on top of the plain cursor kinds.
type Page struct {
	*Cursor
	meta PageMeta
}

func NewPage(id PageID, pageType PageType, size int) *Page {
	return &Page{
		Cursor: NewCursor(make([]byte, size)),
		meta: PageMeta{
			ID:         id,
			Type:       pageType,
			FreeOffset: PageHeaderSize,
			FreeLength: uint16(size - PageHeaderSize),
		},
	}
}

// LoadPage decodes a page from raw bytes. The bytes are copied.
func LoadPage(raw []byte) (*Page, error) {
	if len(raw) < PageHeaderSize || len(raw) > MaxPageSize {
		return nil, fmt.Errorf("%w: page of %d bytes", ErrCorruptHeader, len(raw))
	}
	data := make([]byte, len(raw))
	copy(data, raw)
	page := &Page{Cursor: NewCursor(data)}
	if err := page.meta.Deserialize(page.Cursor); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}
	if err := page.validate(); err != nil {
		return nil, err
	}
	return page, nil
}

func (p *Page) validate() error {
	m := p.meta
	if m.ID == NoPage {
		return fmt.Errorf("%w: page id is zero", ErrCorruptHeader)
	}
	if m.Type != PageTypeEntry && m.Type != PageTypeOverflow {
		return fmt.Errorf("%w: page %d has type %d", ErrCorruptHeader, m.ID, m.Type)
	}
	if int(m.FreeOffset) < PageHeaderSize || int(m.FreeOffset)+int(m.FreeLength) > p.Len() {
		return fmt.Errorf("%w: page %d free arena [%d,+%d) outside page of %d bytes",
			ErrCorruptHeader, m.ID, m.FreeOffset, m.FreeLength, p.Len())
	}
	return nil
}

func (p *Page) ID() PageID {
	return p.meta.ID
}

func (p *Page) Type() PageType {
	return p.meta.Type
}

func (p *Page) Meta() PageMeta {
	return p.meta
}

func (p *Page) Size() int {
	return p.Len()
}

// Data returns the page image. Call FlushHeader first to make the header current.
func (p *Page) Data() []byte {
	return p.Bytes()
}

func (p *Page) FreeOffset() int {
	return int(p.meta.FreeOffset)
}

func (p *Page) RemainingFreeSpace() int {
	return int(p.meta.FreeLength)
}

// TailBytes is the amount allocated from the end of the page.
func (p *Page) TailBytes() int {
	return p.Len() - int(p.meta.FreeOffset) - int(p.meta.FreeLength)
}

// Allocate carves size bytes from the head or the tail of the free arena and
// returns the absolute offset of the allocation.
func (p *Page) Allocate(size int, fromEnd bool) (int, error) {
	if size < 0 || int(p.meta.FreeLength) < size {
		return 0, ErrOutOfSpace
	}
	var addr int
	if fromEnd {
		addr = int(p.meta.FreeOffset) + int(p.meta.FreeLength) - size
	} else {
		addr = int(p.meta.FreeOffset)
		p.meta.FreeOffset += uint16(size)
	}
	p.meta.FreeLength -= uint16(size)
	return addr, nil
}

func (p *Page) Seek(kind SeekKind, value int) (int, error) {
	switch kind {
	case SeekHeader:
		return p.seekTo(value)
	case SeekPayload:
		return p.seekTo(PageHeaderSize + value)
	case SeekFree:
		return p.seekTo(int(p.meta.FreeOffset) + value)
	default:
		return p.Cursor.Seek(kind, value)
	}
}

// FlushHeader writes PageMeta into the header region. It must run before the
// page image leaves memory.
func (p *Page) FlushHeader() error {
	pos := p.Position()
	if err := p.meta.Serialize(p.Cursor); err != nil {
		return err
	}
	_, err := p.seekTo(pos)
	return err
}

// view returns an independent cursor over the page image, so readers never
// move the page's own position.
func (p *Page) view() *Cursor {
	return NewCursor(p.Bytes())
}
