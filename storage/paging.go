package storage

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PagerStats counts what the pager has produced since it was created.
type PagerStats struct {
	RecordsWritten uint64 `json:"records_written"`
	BytesWritten   uint64 `json:"bytes_written"`
	EntryPages     uint64 `json:"entry_pages"`
	OverflowPages  uint64 `json:"overflow_pages"`
	SealedPages    uint64 `json:"sealed_pages"`
}

// Pager routes record writes to the single open entry page, rotating to a new
// one only when a write cannot start, and resolves addresses on reads.
// Writes must be serialized by the caller; reads may run concurrently with
// each other.
type Pager struct {
	store    PageStore
	pageSize int
	lastID   PageID
	active   *EntryPage
	cache    *lru.Cache[PageID, *EntryPage]
	stats    PagerStats
}

// NewPager resumes id allocation after lastID. cacheSize bounds the number of
// decoded sealed pages kept in memory; 0 disables caching.
func NewPager(store PageStore, pageSize int, lastID PageID, cacheSize int) (*Pager, error) {
	pager := &Pager{
		store:    store,
		pageSize: pageSize,
		lastID:   lastID,
	}
	if cacheSize > 0 {
		cache, err := lru.New[PageID, *EntryPage](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("could not create page cache: %w", err)
		}
		pager.cache = cache
	}
	return pager, nil
}

func (pg *Pager) nextPageID() PageID {
	pg.lastID++
	return pg.lastID
}

func (pg *Pager) LastPageID() PageID {
	return pg.lastID
}

func (pg *Pager) Stats() PagerStats {
	return pg.stats
}

// ActivePage returns the page currently accepting records, or nil.
func (pg *Pager) ActivePage() *EntryPage {
	return pg.active
}

// WriteRecord stores payload and returns its address. Either the whole record
// becomes readable or the open page is left as it was before the call.
func (pg *Pager) WriteRecord(payload []byte) (EntryAddress, error) {
	if uint64(len(payload)) > MaxRecordSize {
		return EntryAddress{}, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(payload))
	}
	if pg.active == nil || !pg.active.HasEnoughSpace() {
		if err := pg.rotate(); err != nil {
			return EntryAddress{}, err
		}
	}

	page := pg.active
	state := page.snapshot()
	written, err := page.WriteEntry(payload)
	if err != nil {
		page.restore(state)
		return EntryAddress{}, err
	}

	if written.Written < len(payload) {
		chain, chainErr := writeOverflowChain(pg.store, pg.nextPageID, pg.pageSize, payload[written.Written:])
		if chainErr != nil {
			page.restore(state)
			return EntryAddress{}, chainErr
		}
		if err = page.PatchOverflow(written.SlotID, chain[0]); err != nil {
			page.restore(state)
			return EntryAddress{}, err
		}
		pg.stats.OverflowPages += uint64(len(chain))
	}

	pg.stats.RecordsWritten++
	pg.stats.BytesWritten += uint64(len(payload))
	return EntryAddress{PageID: page.ID(), SlotID: written.SlotID}, nil
}

func (pg *Pager) rotate() error {
	if err := pg.Seal(); err != nil {
		return err
	}
	pg.active = NewEntryPage(pg.nextPageID(), pg.pageSize)
	pg.stats.EntryPages++
	logger.Debug("opened entry page", "page", pg.active.ID())
	return nil
}

// Flush puts the open page into the store without sealing it.
func (pg *Pager) Flush() error {
	if pg.active == nil {
		return nil
	}
	if err := pg.active.FlushHeader(); err != nil {
		return err
	}
	if err := pg.store.Put(pg.active.ID(), pg.active.Data()); err != nil {
		return fmt.Errorf("could not flush page %d: %w", pg.active.ID(), err)
	}
	return nil
}

// Seal flushes the open page and stops writing to it.
func (pg *Pager) Seal() error {
	if pg.active == nil {
		return nil
	}
	if err := pg.Flush(); err != nil {
		return err
	}
	logger.Debug("sealed entry page", "page", pg.active.ID(),
		"slots", pg.active.SlotCount(), "free", pg.active.RemainingFreeSpace())
	if pg.cache != nil {
		pg.cache.Add(pg.active.ID(), pg.active)
	}
	pg.active = nil
	pg.stats.SealedPages++
	return nil
}

// ReadRecord returns the full payload stored at addr, following its overflow chain.
func (pg *Pager) ReadRecord(addr EntryAddress) ([]byte, error) {
	page, err := pg.entryPage(addr.PageID)
	if err != nil {
		return nil, err
	}
	meta, data, err := page.ReadEntry(addr.SlotID)
	if err != nil {
		return nil, err
	}
	remaining := int(meta.TotalSize) - len(data)
	if meta.Overflow == NoPage {
		if remaining != 0 {
			return nil, fmt.Errorf("%w: record %s misses %d bytes and has no overflow",
				ErrCorruptHeader, addr, remaining)
		}
		return data, nil
	}
	rest, err := readOverflowChain(pg.store, meta.Overflow, remaining)
	if err != nil {
		return nil, err
	}
	return append(data, rest...), nil
}

func (pg *Pager) entryPage(id PageID) (*EntryPage, error) {
	if pg.active != nil && pg.active.ID() == id {
		return pg.active, nil
	}
	if id == NoPage || id > pg.lastID {
		return nil, fmt.Errorf("%w: page %d", ErrNotFound, id)
	}
	if pg.cache != nil {
		if page, ok := pg.cache.Get(id); ok {
			return page, nil
		}
	}
	raw, err := pg.store.Get(id)
	if err != nil {
		return nil, err
	}
	page, err := LoadEntryPage(raw)
	if errors.Is(err, ErrWrongPageType) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	if pg.cache != nil {
		pg.cache.Add(id, page)
	}
	return page, nil
}
