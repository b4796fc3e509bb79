package litescan_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeandaverde/litescan"
	"github.com/joeandaverde/litescan/internal/pager"
	"github.com/joeandaverde/litescan/internal/storage"
)

const testPageSize = 512

// encodeRecord and the cell/page builders below mirror the fixture
// technique internal/planner's tests use, since a package-external caller
// of the public façade has no access to those unexported helpers.
func encodeRecord(cols []interface{}) []byte {
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
			hdr = storage.AppendVarint(hdr, 1)
			body = append(body, byte(v))
		}
	}

	size := storage.VarintLen(uint64(len(hdr) + 1))
	for storage.VarintLen(uint64(len(hdr)+size)) != size {
		size = storage.VarintLen(uint64(len(hdr) + size))
	}
	headerSizeField := storage.AppendVarint(nil, uint64(len(hdr)+size))
	record := append(headerSizeField, hdr...)
	return append(record, body...)
}

func tableLeafCell(rowid int64, cols []interface{}) []byte {
	record := encodeRecord(cols)
	cell := storage.AppendVarint(nil, uint64(len(record)))
	cell = storage.AppendVarint(cell, uint64(rowid))
	return append(cell, record...)
}

func writeLeafPage(buf []byte, headerOff int, pageType pager.PageType, cells [][]byte) {
	buf[headerOff] = byte(pageType)
	binary.BigEndian.PutUint16(buf[headerOff+3:headerOff+5], uint16(len(cells)))

	cellContentEnd := len(buf)
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
}

// widgetsFixture writes a 2-page database (sqlite_master, widgets table
// leaf) to a temp file and returns its path. Rows: (1,"bolt") (2,"nut").
func widgetsFixture(t *testing.T) string {
	t.Helper()

	data := make([]byte, testPageSize*2)
	fh := storage.FileHeader{PageSize: uint32(testPageSize), TextEncoding: storage.EncodingUTF8}
	fh.WriteTo(data[:100])

	masterCells := [][]byte{
		tableLeafCell(1, []interface{}{"table", "widgets", "widgets", 2, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)"}),
	}
	writeLeafPage(data[0:testPageSize], 100, pager.PageTypeLeafTable, masterCells)

	widgetCells := [][]byte{
		tableLeafCell(1, []interface{}{nil, "bolt"}),
		tableLeafCell(2, []interface{}{nil, "nut"}),
	}
	writeLeafPage(data[testPageSize:2*testPageSize], 0, pager.PageTypeLeafTable, widgetCells)

	path := filepath.Join(t.TempDir(), "widgets.db")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpen_TablesAndCount(t *testing.T) {
	r := require.New(t)
	path := widgetsFixture(t)

	db, err := litescan.Open(path)
	r.NoError(err)
	defer db.Close()

	tables, err := db.Tables()
	r.NoError(err)
	r.Equal([]string{"widgets"}, tables)

	n, err := db.CountTableRows("widgets")
	r.NoError(err)
	r.EqualValues(2, n)
}

func TestExecuteQuery_ReturnsProjectedRows(t *testing.T) {
	r := require.New(t)
	path := widgetsFixture(t)

	db, err := litescan.Open(path, litescan.WithCacheCapacity(8))
	r.NoError(err)
	defer db.Close()

	rows, err := db.ExecuteQuery("SELECT name FROM widgets WHERE id = 2")
	r.NoError(err)
	r.Len(rows, 1)
	r.Equal([]string{"name"}, rows[0].Columns)
	name, _ := rows[0].Values[0].Text()
	r.Equal("nut", name)
}

func TestExecuteQuery_RejectsNonSelect(t *testing.T) {
	r := require.New(t)
	path := widgetsFixture(t)

	db, err := litescan.Open(path)
	r.NoError(err)
	defer db.Close()

	_, err = db.ExecuteQuery("DELETE FROM widgets")
	r.Error(err)
}

func TestTables_ExcludesSqliteSystemTables(t *testing.T) {
	r := require.New(t)

	data := make([]byte, testPageSize*2)
	fh := storage.FileHeader{PageSize: uint32(testPageSize), TextEncoding: storage.EncodingUTF8}
	fh.WriteTo(data[:100])

	masterCells := [][]byte{
		tableLeafCell(1, []interface{}{"table", "widgets", "widgets", 2, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)"}),
		tableLeafCell(2, []interface{}{"table", "sqlite_sequence", "sqlite_sequence", 0, "CREATE TABLE sqlite_sequence(name,seq)"}),
	}
	writeLeafPage(data[0:testPageSize], 100, pager.PageTypeLeafTable, masterCells)

	widgetCells := [][]byte{
		tableLeafCell(1, []interface{}{nil, "bolt"}),
	}
	writeLeafPage(data[testPageSize:2*testPageSize], 0, pager.PageTypeLeafTable, widgetCells)

	path := filepath.Join(t.TempDir(), "widgets.db")
	r.NoError(os.WriteFile(path, data, 0o644))

	db, err := litescan.Open(path)
	r.NoError(err)
	defer db.Close()

	tables, err := db.Tables()
	r.NoError(err)
	r.Equal([]string{"widgets"}, tables)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := litescan.Open(filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	r.NoError(os.WriteFile(path, []byte("cache_capacity: 128\nlog_level: debug\n"), 0o644))

	cfg, err := litescan.LoadConfig(path)
	r.NoError(err)
	r.Equal(128, cfg.CacheCapacity)
	r.NotNil(cfg.Logger)
}
