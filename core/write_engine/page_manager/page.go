package pagemanager

import (
	"container/list"
	"sync"
)

// PageSize is the fixed size of every page in the store. Page N occupies the
// byte range [N*PageSize, (N+1)*PageSize) of the data file; there is no header
// page and no allocation metadata, so an unwritten page and an all-zero page
// are indistinguishable.
const PageSize = 4096

// PageID identifies a page on disk.
type PageID uint64

// Page is an in-memory copy of a disk page. The cache hands out the same
// *Page for a given PageID to every caller, so a mutation made through one
// handle is visible through every other handle for that page.
//
// The latch protects the page buffer itself. Callers that share a handle
// across goroutines must hold it around reads and writes of the data; the
// cache never takes it on their behalf.
type Page struct {
	id      PageID
	data    []byte
	isDirty bool

	// Position in the cache's recency list; nil once evicted.
	lruElement *list.Element

	latch sync.RWMutex
}

// NewPage creates a zero-filled page for the given id.
func NewPage(id PageID) *Page {
	return &Page{
		id:   id,
		data: make([]byte, PageSize),
	}
}

// GetData returns the page buffer itself, not a copy. Mutating the returned
// slice mutates the cached page.
func (p *Page) GetData() []byte { return p.data }

// SetData copies src into the page buffer, truncating at PageSize.
func (p *Page) SetData(src []byte) { copy(p.data, src) }

func (p *Page) GetPageID() PageID   { return p.id }
func (p *Page) IsDirty() bool       { return p.isDirty }
func (p *Page) SetDirty(dirty bool) { p.isDirty = dirty }

func (p *Page) GetLruElement() *list.Element     { return p.lruElement }
func (p *Page) SetLruElement(elem *list.Element) { p.lruElement = elem }

// RLock acquires a shared latch on the page buffer.
func (p *Page) RLock() { p.latch.RLock() }

// RUnlock releases a shared latch on the page buffer.
func (p *Page) RUnlock() { p.latch.RUnlock() }

// Lock acquires an exclusive latch on the page buffer.
func (p *Page) Lock() { p.latch.Lock() }

// Unlock releases an exclusive latch on the page buffer.
func (p *Page) Unlock() { p.latch.Unlock() }
