package pager

import (
	"encoding/binary"

	"github.com/joeandaverde/litescan/internal/errs"
)

// PageType identifies the four B-tree page shapes this format supports.
type PageType byte

const (
	PageTypeInteriorIndex PageType = 0x02
	PageTypeInteriorTable PageType = 0x05
	PageTypeLeafIndex     PageType = 0x0A
	PageTypeLeafTable     PageType = 0x0D
)

// IsLeaf reports whether a page of this type carries cells directly rather
// than child pointers.
func (t PageType) IsLeaf() bool {
	return t == PageTypeLeafIndex || t == PageTypeLeafTable
}

// IsTable reports whether a page belongs to a table B-tree (rowid-keyed)
// rather than an index B-tree (value-keyed).
func (t PageType) IsTable() bool {
	return t == PageTypeInteriorTable || t == PageTypeLeafTable
}

func (t PageType) String() string {
	switch t {
	case PageTypeInteriorIndex:
		return "interior-index"
	case PageTypeInteriorTable:
		return "interior-table"
	case PageTypeLeafIndex:
		return "leaf-index"
	case PageTypeLeafTable:
		return "leaf-table"
	default:
		return "unknown"
	}
}

// Header is the 8- or 12-byte B-tree page header (12 bytes for interior
// pages, which carry an extra right-most-child pointer).
type Header struct {
	Type                PageType
	FirstFreeblock      uint16
	NumCells            uint16
	CellContentOffset   uint16 // 0 means 65536
	FragmentedFreeBytes byte
	RightMostPointer    uint32 // only meaningful when !Type.IsLeaf()
}

// Size returns the on-disk byte width of this header shape.
func (h Header) Size() int {
	if h.Type.IsLeaf() {
		return 8
	}
	return 12
}

// Page is one fixed-size block of the database file, retained by the
// pager's cache. Number is 1-indexed. Data is the full page including, for
// page 1, the 100-byte file header prefix — callers use HeaderOffset to
// find where the B-tree page header actually begins.
type Page struct {
	Number uint32
	Data   []byte
}

// HeaderOffset returns the byte offset within Data where the B-tree page
// header begins: 100 for page 1 (after the file header), 0 otherwise.
func (p *Page) HeaderOffset() int {
	if p.Number == 1 {
		return 100
	}
	return 0
}

// ParseHeader decodes this page's B-tree page header.
func (p *Page) ParseHeader() (Header, error) {
	off := p.HeaderOffset()
	if off+8 > len(p.Data) {
		return Header{}, &errs.CorruptError{Msg: "page too small for a page header"}
	}

	buf := p.Data[off:]
	t := PageType(buf[0])
	switch t {
	case PageTypeInteriorIndex, PageTypeInteriorTable, PageTypeLeafIndex, PageTypeLeafTable:
	default:
		return Header{}, &errs.CorruptError{Msg: "unrecognized page type byte"}
	}

	h := Header{
		Type:                t,
		FirstFreeblock:      binary.BigEndian.Uint16(buf[1:3]),
		NumCells:            binary.BigEndian.Uint16(buf[3:5]),
		CellContentOffset:   binary.BigEndian.Uint16(buf[5:7]),
		FragmentedFreeBytes: buf[7],
	}

	if !t.IsLeaf() {
		if off+12 > len(p.Data) {
			return Header{}, &errs.CorruptError{Msg: "interior page too small for right pointer"}
		}
		h.RightMostPointer = binary.BigEndian.Uint32(buf[8:12])
	}

	return h, nil
}

// CellPointer returns the byte offset (within Data) of the i-th cell, as
// recorded in the cell-pointer array immediately following the page
// header.
func (p *Page) CellPointer(h Header, i int) (uint16, error) {
	if i < 0 || i >= int(h.NumCells) {
		return 0, &errs.CorruptError{Msg: "cell index out of range"}
	}
	base := p.HeaderOffset() + h.Size() + i*2
	if base+2 > len(p.Data) {
		return 0, &errs.CorruptError{Msg: "cell pointer array runs past page"}
	}
	return binary.BigEndian.Uint16(p.Data[base : base+2]), nil
}

// CellData returns the byte slice of Data starting at the given cell
// offset, running to the end of the page. Callers parse only as much of it
// as the cell's own varints declare.
func (p *Page) CellData(offset uint16) ([]byte, error) {
	if int(offset) >= len(p.Data) {
		return nil, &errs.CorruptError{Msg: "cell offset beyond page bounds"}
	}
	return p.Data[offset:], nil
}
