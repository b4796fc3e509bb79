// Package btree walks the on-disk table and index B-trees using an
// explicit frame stack rather than native recursion, so traversal depth is
// bounded and a caller can stop mid-walk without unwinding a call chain.
package btree

import (
	"context"
	"sort"

	"github.com/joeandaverde/litescan/internal/errs"
	"github.com/joeandaverde/litescan/internal/pager"
	"github.com/joeandaverde/litescan/internal/storage"
	"github.com/joeandaverde/litescan/internal/value"
)

// maxSafetyDepth bounds traversal depth beyond what log2(page count) would ever
// require for a well-formed tree; exceeding it means a cycle slipped past
// the per-path visited check or the tree is absurdly unbalanced.
const maxSafetyDepth = 64

// Cell is one decoded entry from a table-tree leaf: a rowid and its
// (possibly overflow-reassembled) record payload.
type Cell struct {
	RowID   int64
	Payload []byte
}

// IndexCell is one decoded entry from an index tree (a leaf cell or an
// interior separator): the full record payload, whose last column is the
// referenced table rowid per §3.
type IndexCell struct {
	Payload []byte
	RowID   int64
	Key     []value.Value
}

// frame is one level of the explicit traversal stack: the page being
// visited, the next cell index to process, and whether the child for the
// current position has already been descended into (the current cell's
// left subtree on an index interior page, or the right-most child once the
// cells are exhausted).
type frame struct {
	page       *pager.Page
	header     pager.Header
	cellIndex  int
	descended  bool
}

// Cursor performs an in-order walk of a single B-tree rooted at rootPage.
type Cursor struct {
	p       pager.Pager
	root    uint32
	stack   []frame
	visited map[uint32]bool
	steps   int
}

// NewCursor returns a Cursor positioned before the first entry of the tree
// rooted at rootPage. Call Next to advance.
func NewCursor(ctx context.Context, p pager.Pager, rootPage uint32) (*Cursor, error) {
	c := &Cursor{p: p, root: rootPage, visited: map[uint32]bool{}}
	if err := c.push(ctx, rootPage); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cursor) push(ctx context.Context, pageNo uint32) error {
	if c.visited[pageNo] {
		return &errs.CorruptError{Msg: "cycle detected in b-tree traversal"}
	}
	if len(c.stack) > maxSafetyDepth {
		return &errs.CorruptError{Msg: "b-tree traversal exceeded safety depth"}
	}

	page, err := c.p.Page(ctx, pageNo)
	if err != nil {
		return err
	}
	h, err := page.ParseHeader()
	if err != nil {
		return err
	}

	c.visited[pageNo] = true
	c.stack = append(c.stack, frame{page: page, header: h})
	return nil
}

// pop removes the top frame and clears its page from the visited set,
// since visited tracks the current root-to-leaf path, not the whole tree.
func (c *Cursor) pop() {
	top := c.stack[len(c.stack)-1]
	delete(c.visited, top.page.Number)
	c.stack = c.stack[:len(c.stack)-1]
}

// NextTableCell advances a table-tree traversal and returns the next
// leaf cell in rowid order, or ok=false when the tree is exhausted.
func (c *Cursor) NextTableCell(ctx context.Context) (cell Cell, ok bool, err error) {
	for {
		c.steps++
		if c.steps > 1_000_000 {
			return Cell{}, false, &errs.CorruptError{Msg: "b-tree traversal exceeded iteration cap"}
		}
		if len(c.stack) == 0 {
			return Cell{}, false, nil
		}

		top := &c.stack[len(c.stack)-1]

		if top.header.Type.IsLeaf() {
			if top.cellIndex >= int(top.header.NumCells) {
				c.pop()
				continue
			}
			cell, err := c.decodeTableLeafCell(top.page, top.header, top.cellIndex)
			top.cellIndex++
			if err != nil {
				return Cell{}, false, err
			}
			return cell, true, nil
		}

		// Interior table page: descend left child, then continue to the
		// next cell (whose separator carries no payload itself), and
		// finally the right-most child once all cells are exhausted.
		if top.cellIndex >= int(top.header.NumCells) {
			if top.descended {
				c.pop()
				continue
			}
			top.descended = true
			right := top.header.RightMostPointer
			if err := c.push(ctx, right); err != nil {
				return Cell{}, false, err
			}
			continue
		}

		left, _, err := c.readTableInteriorCell(top.page, top.header, top.cellIndex)
		if err != nil {
			return Cell{}, false, err
		}
		top.cellIndex++
		if err := c.push(ctx, left); err != nil {
			return Cell{}, false, err
		}
	}
}

func (c *Cursor) readTableInteriorCell(p *pager.Page, h pager.Header, i int) (leftChild uint32, rowid int64, err error) {
	off, err := p.CellPointer(h, i)
	if err != nil {
		return 0, 0, err
	}
	data, err := p.CellData(off)
	if err != nil {
		return 0, 0, err
	}
	if len(data) < 4 {
		return 0, 0, &errs.CorruptError{Msg: "table interior cell truncated"}
	}
	leftChild = beUint32(data[0:4])
	rid, _, ok := storage.ReadVarintBytes(data[4:])
	if !ok {
		return 0, 0, &errs.CorruptError{Msg: "table interior cell rowid varint truncated"}
	}
	return leftChild, int64(rid), nil
}

func (c *Cursor) decodeTableLeafCell(p *pager.Page, h pager.Header, i int) (Cell, error) {
	off, err := p.CellPointer(h, i)
	if err != nil {
		return Cell{}, err
	}
	data, err := p.CellData(off)
	if err != nil {
		return Cell{}, err
	}

	payloadSize, n1, ok := storage.ReadVarintBytes(data)
	if !ok {
		return Cell{}, &errs.CorruptError{Msg: "table leaf cell payload size varint truncated"}
	}
	rowid, n2, ok := storage.ReadVarintBytes(data[n1:])
	if !ok {
		return Cell{}, &errs.CorruptError{Msg: "table leaf cell rowid varint truncated"}
	}

	usable := c.p.UsableSize()
	localLen := storage.LocalPayload(usable, payloadSize, false)
	bodyStart := n1 + n2
	localEnd := bodyStart + int(localLen)
	if localEnd > len(data) {
		return Cell{}, &errs.CorruptError{Msg: "table leaf cell local payload runs past page"}
	}
	local := data[bodyStart:localEnd]

	var overflowPage uint32
	if uint64(localLen) < payloadSize {
		if localEnd+4 > len(data) {
			return Cell{}, &errs.CorruptError{Msg: "table leaf cell missing overflow pointer"}
		}
		overflowPage = beUint32(data[localEnd : localEnd+4])
	}

	payload, err := storage.ReadPayload(local, payloadSize, overflowPage, usable, c.p)
	if err != nil {
		return Cell{}, err
	}

	return Cell{RowID: int64(rowid), Payload: payload}, nil
}

// NextIndexCell advances an index-tree traversal and returns the next
// entry in key order (leaf cells and interior separators alike), or
// ok=false when the tree is exhausted.
// keyColumns is the number of leading record columns that form the index
// key; the trailing column is always the referenced table rowid.
func (c *Cursor) NextIndexCell(ctx context.Context, keyColumns int) (cell IndexCell, ok bool, err error) {
	for {
		c.steps++
		if c.steps > 1_000_000 {
			return IndexCell{}, false, &errs.CorruptError{Msg: "b-tree traversal exceeded iteration cap"}
		}
		if len(c.stack) == 0 {
			return IndexCell{}, false, nil
		}

		top := &c.stack[len(c.stack)-1]

		if top.header.Type.IsLeaf() {
			if top.cellIndex >= int(top.header.NumCells) {
				c.pop()
				continue
			}
			cell, err := c.decodeIndexCell(top.page, top.header, top.cellIndex, keyColumns)
			top.cellIndex++
			if err != nil {
				return IndexCell{}, false, err
			}
			return cell, true, nil
		}

		// Interior index page: descend left child, yield the separator
		// key itself (it is a full record, unlike table-interior
		// separators), then continue.
		if top.cellIndex >= int(top.header.NumCells) {
			if top.descended {
				c.pop()
				continue
			}
			top.descended = true
			if err := c.push(ctx, top.header.RightMostPointer); err != nil {
				return IndexCell{}, false, err
			}
			continue
		}

		if !top.descended {
			left, err := c.readIndexInteriorLeftChild(top.page, top.header, top.cellIndex)
			if err != nil {
				return IndexCell{}, false, err
			}
			top.descended = true
			if err := c.push(ctx, left); err != nil {
				return IndexCell{}, false, err
			}
			continue
		}

		cell, err := c.decodeIndexInteriorSeparator(top.page, top.header, top.cellIndex, keyColumns)
		top.cellIndex++
		top.descended = false
		if err != nil {
			return IndexCell{}, false, err
		}
		return cell, true, nil
	}
}

func (c *Cursor) readIndexInteriorLeftChild(p *pager.Page, h pager.Header, i int) (uint32, error) {
	off, err := p.CellPointer(h, i)
	if err != nil {
		return 0, err
	}
	data, err := p.CellData(off)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, &errs.CorruptError{Msg: "index interior cell truncated"}
	}
	return beUint32(data[0:4]), nil
}

func (c *Cursor) decodeIndexInteriorSeparator(p *pager.Page, h pager.Header, i int, keyColumns int) (IndexCell, error) {
	off, err := p.CellPointer(h, i)
	if err != nil {
		return IndexCell{}, err
	}
	data, err := p.CellData(off)
	if err != nil {
		return IndexCell{}, err
	}
	if len(data) < 4 {
		return IndexCell{}, &errs.CorruptError{Msg: "index interior cell truncated"}
	}

	payloadSize, n, ok := storage.ReadVarintBytes(data[4:])
	if !ok {
		return IndexCell{}, &errs.CorruptError{Msg: "index interior cell payload size varint truncated"}
	}
	return c.decodeIndexPayload(data[4+n:], payloadSize, keyColumns)
}

func (c *Cursor) decodeIndexCell(p *pager.Page, h pager.Header, i int, keyColumns int) (IndexCell, error) {
	off, err := p.CellPointer(h, i)
	if err != nil {
		return IndexCell{}, err
	}
	data, err := p.CellData(off)
	if err != nil {
		return IndexCell{}, err
	}

	payloadSize, n, ok := storage.ReadVarintBytes(data)
	if !ok {
		return IndexCell{}, &errs.CorruptError{Msg: "index leaf cell payload size varint truncated"}
	}
	return c.decodeIndexPayload(data[n:], payloadSize, keyColumns)
}

func (c *Cursor) decodeIndexPayload(data []byte, payloadSize uint64, keyColumns int) (IndexCell, error) {
	usable := c.p.UsableSize()
	localLen := storage.LocalPayload(usable, payloadSize, true)
	if uint64(len(data)) < localLen {
		return IndexCell{}, &errs.CorruptError{Msg: "index cell local payload runs past page"}
	}
	local := data[:localLen]

	var overflowPage uint32
	if uint64(localLen) < payloadSize {
		if len(data) < int(localLen)+4 {
			return IndexCell{}, &errs.CorruptError{Msg: "index cell missing overflow pointer"}
		}
		overflowPage = beUint32(data[localLen : localLen+4])
	}

	payload, err := storage.ReadPayload(local, payloadSize, overflowPage, usable, c.p)
	if err != nil {
		return IndexCell{}, err
	}

	values, err := storage.DecodeRecord(payload)
	if err != nil {
		return IndexCell{}, err
	}
	if len(values) < keyColumns+1 {
		return IndexCell{}, &errs.CorruptError{Msg: "index record has fewer columns than the declared key"}
	}

	rowidVal := values[len(values)-1]
	rowid, ok := rowidVal.Integer()
	if !ok {
		return IndexCell{}, &errs.CorruptError{Msg: "index record's trailing rowid column is not an integer"}
	}

	return IndexCell{Payload: payload, RowID: rowid, Key: values[:keyColumns]}, nil
}

// SeekRowID performs a binary-search descent of the table tree rooted at
// rootPage for the cell with the given rowid, per spec §4.6's index-path
// point lookup (each matching rowid from an index walk is resolved back to
// its row this way, rather than by a full in-order scan). ok is false when
// no cell with that rowid exists.
func SeekRowID(ctx context.Context, p pager.Pager, rootPage uint32, rowid int64) (Cell, bool, error) {
	c := &Cursor{p: p}
	pageNo := rootPage
	visited := map[uint32]bool{}

	for depth := 0; ; depth++ {
		if depth > maxSafetyDepth {
			return Cell{}, false, &errs.CorruptError{Msg: "b-tree seek exceeded safety depth"}
		}
		if visited[pageNo] {
			return Cell{}, false, &errs.CorruptError{Msg: "cycle detected in b-tree seek"}
		}
		visited[pageNo] = true

		page, err := p.Page(ctx, pageNo)
		if err != nil {
			return Cell{}, false, err
		}
		h, err := page.ParseHeader()
		if err != nil {
			return Cell{}, false, err
		}

		if h.Type.IsLeaf() {
			lo, hi := 0, int(h.NumCells)
			for lo < hi {
				mid := (lo + hi) / 2
				rid, err := c.peekTableLeafRowID(page, h, mid)
				if err != nil {
					return Cell{}, false, err
				}
				if rid < rowid {
					lo = mid + 1
				} else {
					hi = mid
				}
			}
			if lo >= int(h.NumCells) {
				return Cell{}, false, nil
			}
			cell, err := c.decodeTableLeafCell(page, h, lo)
			if err != nil {
				return Cell{}, false, err
			}
			if cell.RowID != rowid {
				return Cell{}, false, nil
			}
			return cell, true, nil
		}

		lo, hi := 0, int(h.NumCells)
		for lo < hi {
			mid := (lo + hi) / 2
			_, maxRowID, err := c.readTableInteriorCell(page, h, mid)
			if err != nil {
				return Cell{}, false, err
			}
			if maxRowID < rowid {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo >= int(h.NumCells) {
			pageNo = h.RightMostPointer
			continue
		}
		child, _, err := c.readTableInteriorCell(page, h, lo)
		if err != nil {
			return Cell{}, false, err
		}
		pageNo = child
	}
}

// peekTableLeafRowID reads a leaf cell's rowid without reassembling its
// payload, so SeekRowID's binary search doesn't pay for overflow chains it
// will discard on every probe but the last.
func (c *Cursor) peekTableLeafRowID(p *pager.Page, h pager.Header, i int) (int64, error) {
	off, err := p.CellPointer(h, i)
	if err != nil {
		return 0, err
	}
	data, err := p.CellData(off)
	if err != nil {
		return 0, err
	}
	_, n1, ok := storage.ReadVarintBytes(data)
	if !ok {
		return 0, &errs.CorruptError{Msg: "table leaf cell payload size varint truncated"}
	}
	rowid, _, ok := storage.ReadVarintBytes(data[n1:])
	if !ok {
		return 0, &errs.CorruptError{Msg: "table leaf cell rowid varint truncated"}
	}
	return int64(rowid), nil
}

// CountTableRows sums the leaf cell counts of every table-leaf page
// reachable from rootPage without decoding any record, per spec §4.6's
// count_table_rows: a row count shouldn't pay for payload reassembly or
// overflow-chain reads it doesn't need.
func CountTableRows(ctx context.Context, p pager.Pager, rootPage uint32) (int64, error) {
	var total int64
	visited := map[uint32]bool{}

	var walk func(pageNo uint32, depth int) error
	walk = func(pageNo uint32, depth int) error {
		if depth > maxSafetyDepth {
			return &errs.CorruptError{Msg: "b-tree count exceeded safety depth"}
		}
		if visited[pageNo] {
			return &errs.CorruptError{Msg: "cycle detected in b-tree count"}
		}
		visited[pageNo] = true
		defer delete(visited, pageNo)

		page, err := p.Page(ctx, pageNo)
		if err != nil {
			return err
		}
		h, err := page.ParseHeader()
		if err != nil {
			return err
		}

		if h.Type.IsLeaf() {
			total += int64(h.NumCells)
			return nil
		}

		c := &Cursor{p: p}
		for i := 0; i < int(h.NumCells); i++ {
			child, _, err := c.readTableInteriorCell(page, h, i)
			if err != nil {
				return err
			}
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return walk(h.RightMostPointer, depth+1)
	}

	if err := walk(rootPage, 0); err != nil {
		return 0, err
	}
	return total, nil
}

// CompareKeys compares two index keys lexicographically over their declared
// key columns using value.Compare.
func CompareKeys(a, b []value.Value) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if d := value.Compare(a[i], b[i]); d != 0 {
			return d
		}
	}
	return len(a) - len(b)
}

// SortRowIDs sorts a collected slice of rowids ascending, for the index
// path's determinism/locality pass before table point lookups.
func SortRowIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
