package storage

import (
	"fmt"
	"math"
)

// Entry page map
// 0          72                                   freeOffset          freeOffset+freeLength    size
// +----------+--------------------------------------+---------------------+------------------------+
// |  Header  | EntryMeta|payload EntryMeta|payload  |     free arena      | slot[n-1] ... slot[0]  |
// |          |  (head allocations, in write order)  |                     |   uint16 offsets       |
// +----------+--------------------------------------+---------------------+------------------------+
//
// EntryMeta map
// 0                        4            6                        14
// +------------------------+------------+------------------------+
// |      Total Size        | In-Page Sz |    Overflow Page       |
// |        uint32          |   uint16   |       uint64           |
// +------------------------+------------+------------------------+

const (
	entryTotalSizeSize  = UInt32Size
	entryInPageSizeSize = UInt16Size
	entryOverflowSize   = UInt64Size
	EntryMetaSize       = entryTotalSizeSize + entryInPageSizeSize + entryOverflowSize

	entryTotalSizeOffset  = 0
	entryInPageSizeOffset = entryTotalSizeOffset + entryTotalSizeSize
	entryOverflowOffset   = entryInPageSizeOffset + entryInPageSizeSize

	SlotPointerSize   = UInt16Size
	MinRecordOverhead = EntryMetaSize + SlotPointerSize

	MaxRecordSize = math.MaxUint32
)

type EntryMeta struct {
	TotalSize  uint32
	InPageSize uint16
	Overflow   PageID
}

func (m *EntryMeta) Serialize(c *Cursor) error {
	if err := c.WriteUint32(m.TotalSize); err != nil {
		return err
	}
	if err := c.WriteUint16(m.InPageSize); err != nil {
		return err
	}
	return c.WriteUint64(uint64(m.Overflow))
}

func (m *EntryMeta) Deserialize(c *Cursor) error {
	totalSize, err := c.ReadUint32()
	if err != nil {
		return err
	}
	inPageSize, err := c.ReadUint16()
	if err != nil {
		return err
	}
	overflow, err := c.ReadUint64()
	if err != nil {
		return err
	}
	m.TotalSize = totalSize
	m.InPageSize = inPageSize
	m.Overflow = PageID(overflow)
	return nil
}

// EntryAddress is the durable handle of a record.
type EntryAddress struct {
	PageID PageID `json:"page"`
	SlotID uint16 `json:"slot"`
}

func (a EntryAddress) IsZero() bool {
	return a.PageID == NoPage
}

func (a EntryAddress) String() string {
	return fmt.Sprintf("%d:%d", a.PageID, a.SlotID)
}

// EntryWrite reports where WriteEntry put a record and how much of it fit.
type EntryWrite struct {
	SlotID  uint16
	Written int
}

// EntryPage is a Page holding records through a slot directory kept at the
// tail of the page. Slot ids are indexes into the directory and never change.
type EntryPage struct {
	*Page
	slots []uint16
}

func NewEntryPage(id PageID, size int) *EntryPage {
	return &EntryPage{Page: NewPage(id, PageTypeEntry, size)}
}

func LoadEntryPage(raw []byte) (*EntryPage, error) {
	page, err := LoadPage(raw)
	if err != nil {
		return nil, err
	}
	if page.Type() != PageTypeEntry {
		return nil, fmt.Errorf("%w: page %d is %s", ErrWrongPageType, page.ID(), page.Type())
	}
	entryPage := &EntryPage{Page: page}
	if err = entryPage.loadSlots(); err != nil {
		return nil, err
	}
	return entryPage, nil
}

func (p *EntryPage) loadSlots() error {
	tail := p.TailBytes()
	if tail%SlotPointerSize != 0 {
		return fmt.Errorf("%w: page %d slot directory of %d bytes", ErrCorruptHeader, p.ID(), tail)
	}
	count := tail / SlotPointerSize
	p.slots = make([]uint16, count)
	c := p.view()
	for i := 0; i < count; i++ {
		if _, err := c.Seek(SeekAbsolute, slotPosition(p.Size(), i)); err != nil {
			return err
		}
		offset, err := c.ReadUint16()
		if err != nil {
			return err
		}
		if int(offset) < PageHeaderSize || int(offset)+EntryMetaSize > p.FreeOffset() {
			return fmt.Errorf("%w: page %d slot %d points at %d", ErrCorruptHeader, p.ID(), i, offset)
		}
		p.slots[i] = offset
	}
	return nil
}

// slotPosition is where the i-th slot pointer lives; the directory grows backward.
func slotPosition(pageSize int, slot int) int {
	return pageSize - (slot+1)*SlotPointerSize
}

func (p *EntryPage) SlotCount() int {
	return len(p.slots)
}

func (p *EntryPage) HasEnoughSpace() bool {
	return p.RemainingFreeSpace() >= MinRecordOverhead
}

// WriteEntry stores as much of payload as the page can hold. When Written is
// less than len(payload) the caller owns placing the rest and calling PatchOverflow.
func (p *EntryPage) WriteEntry(payload []byte) (EntryWrite, error) {
	if !p.HasEnoughSpace() {
		return EntryWrite{}, ErrOutOfSpace
	}
	if uint64(len(payload)) > MaxRecordSize {
		return EntryWrite{}, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(payload))
	}
	if len(p.slots) > math.MaxUint16 {
		return EntryWrite{}, ErrOutOfSpace
	}

	totalSize := len(payload)
	inPageSize := min(p.RemainingFreeSpace()-MinRecordOverhead, totalSize)

	entryOffset, err := p.Allocate(EntryMetaSize+inPageSize, false)
	if err != nil {
		return EntryWrite{}, err
	}
	slotOffset, err := p.Allocate(SlotPointerSize, true)
	if err != nil {
		return EntryWrite{}, err
	}

	if _, err = p.Seek(SeekAbsolute, slotOffset); err != nil {
		return EntryWrite{}, err
	}
	if err = p.WriteUint16(uint16(entryOffset)); err != nil {
		return EntryWrite{}, err
	}
	p.slots = append(p.slots, uint16(entryOffset))

	if _, err = p.Seek(SeekAbsolute, entryOffset); err != nil {
		return EntryWrite{}, err
	}
	meta := EntryMeta{TotalSize: uint32(totalSize), InPageSize: uint16(inPageSize), Overflow: NoPage}
	if err = meta.Serialize(p.Cursor); err != nil {
		return EntryWrite{}, err
	}
	if err = p.WriteFull(payload[:inPageSize]); err != nil {
		return EntryWrite{}, err
	}

	return EntryWrite{SlotID: uint16(len(p.slots) - 1), Written: inPageSize}, nil
}

// PatchOverflow links a record to the first page of its overflow chain.
func (p *EntryPage) PatchOverflow(slot uint16, overflow PageID) error {
	if int(slot) >= len(p.slots) {
		return fmt.Errorf("%w: slot %d on page %d", ErrNotFound, slot, p.ID())
	}
	if _, err := p.Seek(SeekAbsolute, int(p.slots[slot])+entryOverflowOffset); err != nil {
		return err
	}
	return p.WriteUint64(uint64(overflow))
}

// ReadEntry decodes a slot and returns its metadata with the in-page bytes.
// It uses a private cursor, so sealed pages can be read concurrently.
func (p *EntryPage) ReadEntry(slot uint16) (EntryMeta, []byte, error) {
	var meta EntryMeta
	if int(slot) >= len(p.slots) {
		return meta, nil, fmt.Errorf("%w: slot %d on page %d", ErrNotFound, slot, p.ID())
	}
	offset := int(p.slots[slot])
	c := p.view()
	if _, err := c.Seek(SeekAbsolute, offset); err != nil {
		return meta, nil, err
	}
	if err := meta.Deserialize(c); err != nil {
		return meta, nil, err
	}
	end := offset + EntryMetaSize + int(meta.InPageSize)
	if uint32(meta.InPageSize) > meta.TotalSize || end > p.FreeOffset() {
		return meta, nil, fmt.Errorf("%w: page %d slot %d holds %d of %d bytes",
			ErrCorruptHeader, p.ID(), slot, meta.InPageSize, meta.TotalSize)
	}
	data := make([]byte, meta.InPageSize)
	if err := c.ReadFull(data); err != nil {
		return meta, nil, err
	}
	return meta, data, nil
}

// entryPageState is enough to undo a WriteEntry that could not be completed.
type entryPageState struct {
	meta  PageMeta
	slots int
}

func (p *EntryPage) snapshot() entryPageState {
	return entryPageState{meta: p.meta, slots: len(p.slots)}
}

func (p *EntryPage) restore(state entryPageState) {
	p.meta = state.meta
	p.slots = p.slots[:state.slots]
}
