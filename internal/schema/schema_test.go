package schema

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeandaverde/litescan/internal/pager"
	"github.com/joeandaverde/litescan/internal/storage"
)

type memSource struct{ data []byte }

func (m *memSource) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}
func (m *memSource) Close() error         { return nil }
func (m *memSource) Size() (int64, error) { return int64(len(m.data)), nil }

// encodeCell builds a table-leaf cell for a row of columns, each either a
// string (text), an int (small integer), or nil (NULL).
func encodeCell(rowid int64, cols []interface{}) []byte {
	var hdr []byte
	var body []byte

	for _, col := range cols {
		switch v := col.(type) {
		case nil:
			hdr = storage.AppendVarint(hdr, 0)
		case string:
			hdr = storage.AppendVarint(hdr, uint64(13+2*len(v)))
			body = append(body, []byte(v)...)
		case int:
			hdr = storage.AppendVarint(hdr, 1) // int8 serial type
			body = append(body, byte(v))
		}
	}

	// The header-size varint's own byte width is itself part of what it
	// counts, so resolve it by fixed-point iteration rather than assuming
	// a single byte.
	size := storage.VarintLen(uint64(len(hdr) + 1))
	for storage.VarintLen(uint64(len(hdr)+size)) != size {
		size = storage.VarintLen(uint64(len(hdr) + size))
	}
	headerSizeField := storage.AppendVarint(nil, uint64(len(hdr)+size))
	record := append(headerSizeField, hdr...)
	record = append(record, body...)

	cell := storage.AppendVarint(nil, uint64(len(record)))
	cell = storage.AppendVarint(cell, uint64(rowid))
	cell = append(cell, record...)
	return cell
}

func buildMasterPage(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	pageSize := 1024
	buf := make([]byte, pageSize)

	fh := storage.FileHeader{PageSize: uint32(pageSize), TextEncoding: storage.EncodingUTF8}
	fh.WriteTo(buf[:100])

	headerOff := 100
	buf[headerOff] = byte(pager.PageTypeLeafTable)
	binary.BigEndian.PutUint16(buf[headerOff+3:headerOff+5], uint16(len(rows)))

	var cells [][]byte
	for i, row := range rows {
		cells = append(cells, encodeCell(int64(i+1), row))
	}

	cellContentEnd := pageSize
	pointers := make([]uint16, len(cells))
	for i, c := range cells {
		cellContentEnd -= len(c)
		copy(buf[cellContentEnd:], c)
		pointers[i] = uint16(cellContentEnd)
	}
	binary.BigEndian.PutUint16(buf[headerOff+5:headerOff+7], uint16(cellContentEnd))

	ptrBase := headerOff + 8
	for i, p := range pointers {
		binary.BigEndian.PutUint16(buf[ptrBase+i*2:ptrBase+i*2+2], p)
	}

	return buf
}

func TestLoad_ParsesTableAndIndex(t *testing.T) {
	r := require.New(t)

	rows := [][]interface{}{
		{"table", "users", "users", 2, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)"},
		{"index", "idx_users_name", "users", 3, "CREATE INDEX idx_users_name ON users (name)"},
	}
	data := buildMasterPage(t, rows)

	p, err := pager.New(&memSource{data: data})
	r.NoError(err)

	cat, err := Load(context.Background(), p, nil)
	r.NoError(err)

	table, ok := cat.Table("USERS")
	r.True(ok)
	r.Equal(uint32(2), table.RootPage)
	r.Len(table.Columns, 3)
	r.Equal(0, table.RowIDAlias)
	r.Equal("id", table.Columns[0].Name)

	r.Len(table.Indexes, 1)
	r.Equal("idx_users_name", table.Indexes[0].Name)
	r.Equal([]string{"name"}, table.Indexes[0].Columns)
	r.False(table.Indexes[0].Auto)
}

func TestLoad_IntPrimaryKeyIsNotRowIDAlias(t *testing.T) {
	r := require.New(t)

	rows := [][]interface{}{
		{"table", "widgets", "widgets", 2, "CREATE TABLE widgets (id INT PRIMARY KEY, name TEXT)"},
	}
	data := buildMasterPage(t, rows)

	p, err := pager.New(&memSource{data: data})
	r.NoError(err)

	cat, err := Load(context.Background(), p, nil)
	r.NoError(err)

	table, ok := cat.Table("widgets")
	r.True(ok)
	r.Equal(-1, table.RowIDAlias, "only the exact declared type INTEGER aliases the rowid")
}

func TestLoad_SkipsMalformedRow(t *testing.T) {
	r := require.New(t)

	rows := [][]interface{}{
		{"table", "broken", "broken", 2, "NOT VALID SQL AT ALL ((("},
		{"table", "ok_table", "ok_table", 3, "CREATE TABLE ok_table (a TEXT)"},
	}
	data := buildMasterPage(t, rows)

	p, err := pager.New(&memSource{data: data})
	r.NoError(err)

	cat, err := Load(context.Background(), p, nil)
	r.NoError(err)

	_, ok := cat.Table("broken")
	r.False(ok)

	_, ok = cat.Table("ok_table")
	r.True(ok)
}

func TestLoad_AutoIndexInheritsPrimaryKeyColumns(t *testing.T) {
	r := require.New(t)

	rows := [][]interface{}{
		{"table", "widgets", "widgets", 2, "CREATE TABLE widgets (sku TEXT PRIMARY KEY, qty INTEGER)"},
		{"index", "sqlite_autoindex_widgets_1", "widgets", 3, nil},
	}
	data := buildMasterPage(t, rows)

	p, err := pager.New(&memSource{data: data})
	r.NoError(err)

	cat, err := Load(context.Background(), p, nil)
	r.NoError(err)

	table, ok := cat.Table("widgets")
	r.True(ok)
	r.Len(table.Indexes, 1)
	r.True(table.Indexes[0].Auto)
	r.Equal([]string{"sku"}, table.Indexes[0].Columns)
}
