package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorSeek(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		kind    SeekKind
		value   int
		want    int
		wantErr error
	}{
		{name: "absolute", start: 0, kind: SeekAbsolute, value: 5, want: 5},
		{name: "absolute to end", start: 0, kind: SeekAbsolute, value: 16, want: 16},
		{name: "relative forward", start: 4, kind: SeekRelative, value: 3, want: 7},
		{name: "relative backward", start: 4, kind: SeekRelative, value: -4, want: 0},
		{name: "past end", start: 0, kind: SeekAbsolute, value: 17, want: 0, wantErr: ErrRange},
		{name: "before start", start: 2, kind: SeekRelative, value: -3, want: 2, wantErr: ErrRange},
		{name: "page kind", start: 1, kind: SeekFree, value: 0, want: 1, wantErr: ErrRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(make([]byte, 16))
			_, err := c.Seek(SeekAbsolute, tt.start)
			require.NoError(t, err)

			pos, err := c.Seek(tt.kind, tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, pos)
			require.Equal(t, tt.want, c.Position())
		})
	}
}

func TestCursorIntegersAreBigEndian(t *testing.T) {
	c := NewCursor(make([]byte, 15))
	require.NoError(t, c.WriteUint8(0x01))
	require.NoError(t, c.WriteUint16(0x0203))
	require.NoError(t, c.WriteUint32(0x04050607))
	require.NoError(t, c.WriteUint64(0x08090a0b0c0d0e0f))
	require.Equal(t, 15, c.Position())

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	require.Equal(t, want, c.Bytes())

	_, err := c.Seek(SeekAbsolute, 0)
	require.NoError(t, err)
	u8, err := c.ReadUint8()
	require.NoError(t, err)
	require.Equal(t, uint8(1), u8)
	u16, err := c.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0203), u16)
	u32, err := c.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x04050607), u32)
	u64, err := c.ReadUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x08090a0b0c0d0e0f), u64)
}

func TestCursorShortTransfers(t *testing.T) {
	c := NewCursor(make([]byte, 5))
	_, err := c.Seek(SeekAbsolute, 2)
	require.NoError(t, err)

	require.ErrorIs(t, c.WriteUint32(1), ErrShortWrite)
	require.Equal(t, 2, c.Position())

	_, err = c.ReadUint64()
	require.ErrorIs(t, err, ErrShortRead)

	require.Equal(t, 3, c.Write([]byte("abcdef")))
	require.Equal(t, 5, c.Position())
	require.Equal(t, 0, c.Read(make([]byte, 1)))

	_, err = c.Seek(SeekAbsolute, 3)
	require.NoError(t, err)
	require.ErrorIs(t, c.ReadFull(make([]byte, 3)), ErrShortRead)
	require.ErrorIs(t, c.WriteFull([]byte("xyz")), ErrShortWrite)
}

func TestCursorCopy(t *testing.T) {
	src := NewCursor([]byte("hello world"))
	dst := NewCursor(make([]byte, 8))

	n, err := Copy(dst, src, 5)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 5, src.Position())
	require.Equal(t, 5, dst.Position())
	require.Equal(t, "hello", string(dst.Bytes()[:5]))

	// dst only has 3 bytes left
	n, err = Copy(dst, src, 6)
	require.ErrorIs(t, err, ErrShortCopy)
	require.Equal(t, 3, n)
	require.Equal(t, "hello wo", string(dst.Bytes()))
	require.Equal(t, 3, src.Remaining())
}
