package btree

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeandaverde/litescan/internal/pager"
	"github.com/joeandaverde/litescan/internal/storage"
)

// memSource is a minimal in-memory io.ReaderAt+Closer+Size source for
// building synthetic single-file databases in tests, without touching the
// filesystem.
type memSource struct{ data []byte }

func (m *memSource) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}
func (m *memSource) Close() error         { return nil }
func (m *memSource) Size() (int64, error) { return int64(len(m.data)), nil }

func newTestPager(t *testing.T, data []byte) pager.Pager {
	t.Helper()
	p, err := pager.New(&memSource{data: data})
	require.NoError(t, err)
	return p
}

// buildSingleLeafTableTree lays out a one-page table-leaf B-tree with one
// cell per row: a two-column record whose first column is the NULL
// rowid-alias placeholder and whose second column is a text value.
func buildSingleLeafTableTree(t *testing.T, rows [][2]interface{}) []byte {
	t.Helper()

	pageSize := 512
	buf := make([]byte, pageSize)

	fh := storage.FileHeader{PageSize: uint32(pageSize), TextEncoding: storage.EncodingUTF8}
	fh.WriteTo(buf[:100])

	headerOff := 100
	buf[headerOff] = byte(pager.PageTypeLeafTable)
	binary.BigEndian.PutUint16(buf[headerOff+3:headerOff+5], uint16(len(rows)))

	type builtCell struct {
		bytes []byte
	}
	var cells []builtCell
	for _, row := range rows {
		rowid := int64(row[0].(int))
		name := row[1].(string)

		textSerial := uint64(13 + 2*len(name))

		hdr := []byte{}
		hdr = storage.AppendVarint(hdr, 0)
		hdr = storage.AppendVarint(hdr, textSerial)
		headerSize := uint64(len(hdr)) + 1 // +1 for the size byte (single-byte for these small records)

		record := []byte{}
		record = storage.AppendVarint(record, headerSize)
		record = append(record, hdr...)
		record = append(record, []byte(name)...)

		cellBuf := []byte{}
		cellBuf = storage.AppendVarint(cellBuf, uint64(len(record)))
		cellBuf = storage.AppendVarint(cellBuf, uint64(rowid))
		cellBuf = append(cellBuf, record...)

		cells = append(cells, builtCell{bytes: cellBuf})
	}

	cellContentEnd := pageSize
	pointers := make([]uint16, len(cells))
	for i, c := range cells {
		cellContentEnd -= len(c.bytes)
		copy(buf[cellContentEnd:], c.bytes)
		pointers[i] = uint16(cellContentEnd)
	}
	binary.BigEndian.PutUint16(buf[headerOff+5:headerOff+7], uint16(cellContentEnd))

	ptrBase := headerOff + 8
	for i, p := range pointers {
		binary.BigEndian.PutUint16(buf[ptrBase+i*2:ptrBase+i*2+2], p)
	}

	return buf
}

func TestCursor_NextTableCell_SingleLeafPage(t *testing.T) {
	r := require.New(t)

	data := buildSingleLeafTableTree(t, [][2]interface{}{
		{1, "alice"},
		{2, "bob"},
	})

	p := newTestPager(t, data)
	cur, err := NewCursor(context.Background(), p, 1)
	r.NoError(err)

	var got []Cell
	for {
		cell, ok, err := cur.NextTableCell(context.Background())
		r.NoError(err)
		if !ok {
			break
		}
		got = append(got, cell)
	}

	r.Len(got, 2)
	r.Equal(int64(1), got[0].RowID)
	r.Equal(int64(2), got[1].RowID)

	values, err := storage.DecodeRecord(got[0].Payload)
	r.NoError(err)
	r.True(values[0].IsNull())
	name, ok := values[1].Text()
	r.True(ok)
	r.Equal("alice", name)
}

func TestCursor_NextTableCell_EmptyTreeYieldsNothing(t *testing.T) {
	r := require.New(t)

	data := buildSingleLeafTableTree(t, nil)
	p := newTestPager(t, data)
	cur, err := NewCursor(context.Background(), p, 1)
	r.NoError(err)

	_, ok, err := cur.NextTableCell(context.Background())
	r.NoError(err)
	r.False(ok)
}
