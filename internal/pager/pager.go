// Package pager owns random access to a SQLite database file: an LRU cache
// of fixed-size pages sitting in front of a plain io.ReaderAt, following the
// same map-plus-mutex shape the teacher's own (write-oriented) pager used,
// adapted here to a read-only, context-aware cache.
package pager

import (
	"container/list"
	"context"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/joeandaverde/litescan/internal/errs"
	"github.com/joeandaverde/litescan/internal/storage"
)

// DefaultCacheCapacity is the number of pages retained in the LRU cache
// when a Pager is opened without an explicit capacity, matching §4.1's
// suggested default.
const DefaultCacheCapacity = 64

// Pager owns random-access reads over a SQLite file's fixed-size pages.
type Pager interface {
	// Page returns the page numbered pageNo (1-indexed), fetching it from
	// the cache or the underlying file as needed.
	Page(ctx context.Context, pageNo uint32) (*Page, error)
	// ReadPage returns the raw usable bytes of pageNo, trimmed of any
	// reserved-space tail, for overflow-chain reassembly. It satisfies
	// storage.OverflowReader.
	ReadPage(pageNo uint32) ([]byte, error)
	PageSize() uint32
	UsableSize() uint32
	// PageCount is derived from the file's actual length, not the
	// in-header count, so a truncated file is detectable during traversal
	// rather than trusted at open time.
	PageCount() uint32
	Header() storage.FileHeader
	Close() error
}

// Source is the byte-level backing store a Pager reads fixed-size pages
// from. *os.File satisfies it directly via Open; tests build fixtures over
// an in-memory buffer instead.
type Source interface {
	io.ReaderAt
	io.Closer
	Size() (int64, error)
}

type fileSource struct{ f *os.File }

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Close() error                             { return s.f.Close() }
func (s *fileSource) Size() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

type pager struct {
	mu       sync.RWMutex
	src      Source
	header   storage.FileHeader
	pageSize uint32
	pageCnt  uint32
	capacity int

	cache map[uint32]*list.Element
	order *list.List // front = most recently used

	log *logrus.Logger
}

type cacheEntry struct {
	pageNo uint32
	page   *Page
}

// Option configures Open.
type Option func(*pager)

// WithCacheCapacity overrides DefaultCacheCapacity.
func WithCacheCapacity(n int) Option {
	return func(p *pager) { p.capacity = n }
}

// WithLogger injects a structured logger; defaults to logrus's standard
// logger, matching the teacher's convention of an always-present, silence-
// by-configuration sink rather than a nil-checked optional one.
func WithLogger(l *logrus.Logger) Option {
	return func(p *pager) { p.log = l }
}

// Open reads path's file header and returns a Pager ready to serve pages.
func Open(path string, opts ...Option) (Pager, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.IOError{Op: "open", Err: err}
	}
	return New(&fileSource{f: f}, opts...)
}

// New builds a Pager over an arbitrary Source, for callers (including
// tests) that need a fixture other than a real file on disk.
func New(src Source, opts ...Option) (Pager, error) {
	return newPager(src, opts...)
}

func newPager(src Source, opts ...Option) (Pager, error) {
	p := &pager{
		src:      src,
		capacity: DefaultCacheCapacity,
		cache:    make(map[uint32]*list.Element),
		order:    list.New(),
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	headerBuf := make([]byte, storage.HeaderSize)
	if _, err := src.ReadAt(headerBuf, 0); err != nil {
		src.Close()
		return nil, &errs.FormatError{Msg: "cannot read file header", Err: err}
	}

	header, err := storage.ParseFileHeader(headerBuf)
	if err != nil {
		src.Close()
		return nil, err
	}
	p.header = header
	p.pageSize = header.PageSize

	size, err := src.Size()
	if err != nil {
		src.Close()
		return nil, &errs.IOError{Op: "stat", Err: err}
	}
	if size%int64(p.pageSize) != 0 {
		p.log.WithField("size", size).Warn("database file length is not a multiple of the page size")
	}
	p.pageCnt = uint32(size / int64(p.pageSize))

	return p, nil
}

func (p *pager) PageSize() uint32           { return p.pageSize }
func (p *pager) UsableSize() uint32         { return p.header.UsablePageSize() }
func (p *pager) PageCount() uint32          { return p.pageCnt }
func (p *pager) Header() storage.FileHeader { return p.header }

func (p *pager) Close() error {
	return p.src.Close()
}

func (p *pager) Page(ctx context.Context, pageNo uint32) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageNo == 0 {
		return nil, &errs.FormatError{Msg: "page 0 does not exist"}
	}
	if pageNo > p.pageCnt {
		return nil, &errs.CorruptError{Msg: "page number beyond end of file"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.cache[pageNo]; ok {
		p.order.MoveToFront(el)
		return el.Value.(*cacheEntry).page, nil
	}

	buf := make([]byte, p.pageSize)
	off := int64(pageNo-1) * int64(p.pageSize)
	if _, err := io.ReadFull(io.NewSectionReader(p.src, off, int64(p.pageSize)), buf); err != nil {
		return nil, &errs.IOError{Op: "read page", Err: err}
	}

	page := &Page{Number: pageNo, Data: buf}
	el := p.order.PushFront(&cacheEntry{pageNo: pageNo, page: page})
	p.cache[pageNo] = el

	for p.order.Len() > p.capacity {
		oldest := p.order.Back()
		if oldest == nil {
			break
		}
		p.order.Remove(oldest)
		delete(p.cache, oldest.Value.(*cacheEntry).pageNo)
	}

	return page, nil
}

func (p *pager) ReadPage(pageNo uint32) ([]byte, error) {
	page, err := p.Page(context.Background(), pageNo)
	if err != nil {
		return nil, err
	}
	usable := p.UsableSize()
	if usable > uint32(len(page.Data)) {
		usable = uint32(len(page.Data))
	}
	return page.Data[:usable], nil
}

var _ Pager = (*pager)(nil)
