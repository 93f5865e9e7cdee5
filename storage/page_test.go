package storage

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	page := NewPage(7, PageTypeEntry, 1000)
	require.Equal(t, PageID(7), page.ID())
	require.Equal(t, PageTypeEntry, page.Type())
	require.Equal(t, 1000, page.Size())
	require.Equal(t, PageHeaderSize, page.FreeOffset())
	require.Equal(t, 1000-PageHeaderSize, page.RemainingFreeSpace())
	require.Equal(t, 0, page.TailBytes())
}

func TestPageAllocateKeepsArenaEnd(t *testing.T) {
	page := NewPage(1, PageTypeEntry, 1000)
	arenaEnd := page.FreeOffset() + page.RemainingFreeSpace()

	addr, err := page.Allocate(100, false)
	require.NoError(t, err)
	require.Equal(t, PageHeaderSize, addr)
	require.Equal(t, 172, page.FreeOffset())
	require.Equal(t, arenaEnd, page.FreeOffset()+page.RemainingFreeSpace())

	addr, err = page.Allocate(10, true)
	require.NoError(t, err)
	require.Equal(t, 990, addr)
	require.Equal(t, 10, page.TailBytes())

	addr, err = page.Allocate(2, true)
	require.NoError(t, err)
	require.Equal(t, 988, addr)

	for _, size := range []int{1, 13, 200} {
		_, err = page.Allocate(size, false)
		require.NoError(t, err)
		require.Equal(t, 1000, page.FreeOffset()+page.RemainingFreeSpace()+page.TailBytes())
	}
}

func TestPageAllocateOutOfSpace(t *testing.T) {
	page := NewPage(1, PageTypeOverflow, 200)
	_, err := page.Allocate(120, false)
	require.NoError(t, err)

	before := page.Meta()
	_, err = page.Allocate(9, false)
	require.ErrorIs(t, err, ErrOutOfSpace)
	_, err = page.Allocate(9, true)
	require.ErrorIs(t, err, ErrOutOfSpace)
	require.Equal(t, before, page.Meta())

	addr, err := page.Allocate(8, true)
	require.NoError(t, err)
	require.Equal(t, 192, addr)
	require.Equal(t, 0, page.RemainingFreeSpace())
}

func TestPageSeekKinds(t *testing.T) {
	page := NewPage(1, PageTypeEntry, 500)
	_, err := page.Allocate(30, false)
	require.NoError(t, err)

	pos, err := page.Seek(SeekHeader, 8)
	require.NoError(t, err)
	require.Equal(t, 8, pos)

	pos, err = page.Seek(SeekPayload, 4)
	require.NoError(t, err)
	require.Equal(t, PageHeaderSize+4, pos)

	pos, err = page.Seek(SeekFree, 0)
	require.NoError(t, err)
	require.Equal(t, PageHeaderSize+30, pos)

	pos, err = page.Seek(SeekRelative, -2)
	require.NoError(t, err)
	require.Equal(t, PageHeaderSize+28, pos)

	_, err = page.Seek(SeekPayload, 500)
	require.ErrorIs(t, err, ErrRange)
}

func TestPageHeaderRoundTrip(t *testing.T) {
	page := NewPage(42, PageTypeOverflow, 256)
	_, err := page.Allocate(50, false)
	require.NoError(t, err)
	_, err = page.Allocate(8, true)
	require.NoError(t, err)

	_, err = page.Seek(SeekAbsolute, 100)
	require.NoError(t, err)
	require.NoError(t, page.FlushHeader())
	require.Equal(t, 100, page.Position())

	raw := page.Data()
	require.Equal(t, uint64(42), binary.BigEndian.Uint64(raw[0:8]))
	require.Equal(t, byte(PageTypeOverflow), raw[8])
	require.Equal(t, uint16(122), binary.BigEndian.Uint16(raw[9:11]))
	require.Equal(t, uint16(126), binary.BigEndian.Uint16(raw[11:13]))

	loaded, err := LoadPage(raw)
	require.NoError(t, err)
	require.Equal(t, page.Meta(), loaded.Meta())
	require.Equal(t, 8, loaded.TailBytes())
}

func TestLoadPageCorrupt(t *testing.T) {
	header := func(id uint64, pageType byte, freeOffset, freeLength uint16) []byte {
		raw := make([]byte, 200)
		binary.BigEndian.PutUint64(raw[0:], id)
		raw[8] = pageType
		binary.BigEndian.PutUint16(raw[9:], freeOffset)
		binary.BigEndian.PutUint16(raw[11:], freeLength)
		return raw
	}
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "too short", raw: make([]byte, PageHeaderSize-1)},
		{name: "zero id", raw: header(0, 0, 72, 128)},
		{name: "unknown type", raw: header(1, 9, 72, 128)},
		{name: "free offset inside header", raw: header(1, 0, 10, 128)},
		{name: "arena past end", raw: header(1, 1, 100, 101)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPage(tt.raw)
			require.ErrorIs(t, err, ErrCorruptHeader)
		})
	}

	page, err := LoadPage(header(3, 1, 72, 128))
	require.NoError(t, err)
	require.Equal(t, PageID(3), page.ID())
}

func TestLoadPageCopiesBytes(t *testing.T) {
	page := NewPage(5, PageTypeEntry, 128)
	require.NoError(t, page.FlushHeader())
	raw := page.Data()

	loaded, err := LoadPage(raw)
	require.NoError(t, err)
	raw[100] = 0xff
	require.Equal(t, byte(0), loaded.Data()[100])
}
