package pool

import (
	"container/list"

	"github.com/joshuapare/pagekit/internal/assert"
	"github.com/joshuapare/pagekit/store"
)

// Page is a pooled page frame. The pointer stays valid while the page is
// pinned; after the last unpin the frame may be evicted and reused at any
// time.
type Page struct {
	id     store.PageID
	buf    []byte
	pins   int
	dirty  bool
	loaded bool
	elem   *list.Element
}

// ID returns the page's id within the store.
func (p *Page) ID() store.PageID { return p.id }

// Bytes returns the page contents for reading. Callers must not write
// through this slice.
func (p *Page) Bytes() []byte { return p.buf }

// MutableBytes returns the page contents for writing. The caller must have
// declared the write first, normally through a transaction's WillModify,
// which marks the page dirty so the mutation reaches disk.
func (p *Page) MutableBytes() []byte {
	assert.That(p.dirty, "mutating a page without a declared write")
	return p.buf
}

// Dirty reports whether the page has unwritten modifications.
func (p *Page) Dirty() bool { return p.dirty }

// Loaded reports whether the frame's bytes have ever matched the file: true
// after a read or a write-back, false for an IgnoreData fetch that has not
// been flushed yet.
func (p *Page) Loaded() bool { return p.loaded }

// Pinned reports whether any caller currently holds the page.
func (p *Page) Pinned() bool { return p.pins > 0 }
