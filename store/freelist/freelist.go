package freelist

import (
	"fmt"

	"github.com/joshuapare/pagekit/internal/assert"
	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/store"
	"github.com/joshuapare/pagekit/store/pool"
)

// Pop removes and returns a free page id. An empty list returns NilPage
// with no error.
//
// When the head page still holds entries, the top entry is consumed and the
// head's entry offset shrinks by one slot. When the head is out of entries,
// the head page itself is the result: its successor becomes the new head and
// the page leaves the list with its bytes untouched, so no write intent is
// needed.
func (l *List) Pop(tx Transaction) (store.PageID, error) {
	assert.That(tx != nil, "nil transaction")
	assert.That(!tx.Internal(), "free list access from the bootstrap transaction")
	assert.That(!l.merged, "operation on a merged-away list")

	if l.head == store.NilPage {
		return store.NilPage, nil
	}

	p, err := l.po.Fetch(l.head, pool.FetchData)
	if err != nil {
		return store.NilPage, err
	}
	defer l.po.Unpin(p)

	rawOff := format.NextEntryOffset(p.Bytes())
	if rawOff == format.FirstEntryOffset {
		// The head page has no entries left; the page itself becomes the
		// free page and its successor takes over as head.
		newHead, err := store.PageIDFromU64(format.NextPageID64(p.Bytes()))
		if err != nil {
			return store.NilPage, err
		}
		freed := l.head
		l.head = newHead
		if newHead == store.NilPage {
			l.tail = store.NilPage
		}
		return freed, nil
	}

	if format.IsCorruptEntryOffset(rawOff, l.po.PageSize()) {
		return store.NilPage, fmt.Errorf("freelist: page %d: entry offset %d: %w",
			l.head, rawOff, store.ErrCorrupt)
	}

	off := int(rawOff) - format.EntrySize
	id, err := store.PageIDFromU64(format.ReadU64(p.Bytes(), off))
	if err != nil {
		return store.NilPage, err
	}

	tx.WillModify(p)
	format.SetNextEntryOffset(p.MutableBytes(), off)
	return id, nil
}

// Push adds a free page id to the list. While the head page has room, the
// id is recorded as an entry; once the head fills up, the pushed page itself
// is formatted as the new head, so the list never needs storage beyond the
// pages it tracks.
func (l *List) Push(tx Transaction, id store.PageID) error {
	assert.That(tx != nil, "nil transaction")
	assert.That(!tx.Internal(), "free list access from the bootstrap transaction")
	assert.That(id != store.NilPage, "push of the nil page")
	assert.That(!l.merged, "operation on a merged-away list")

	if l.head != store.NilPage {
		done, err := l.pushEntry(tx, id)
		if done || err != nil {
			return err
		}
		// The head page is full.
	}

	// The page being freed becomes the new head, chaining to the old one.
	p, err := l.po.Fetch(id, pool.IgnoreData)
	if err != nil {
		return err
	}
	defer l.po.Unpin(p)

	tx.WillModify(p)
	format.InitListPage(p.MutableBytes(), uint64(l.head))

	if l.head == store.NilPage {
		l.tail = id
	}
	l.head = id
	return nil
}

// pushEntry tries to record id as an entry in the head page. It reports
// done=false when the head is full and the caller must chain a new head.
func (l *List) pushEntry(tx Transaction, id store.PageID) (bool, error) {
	p, err := l.po.Fetch(l.head, pool.FetchData)
	if err != nil {
		return false, err
	}
	defer l.po.Unpin(p)

	pageSize := l.po.PageSize()
	rawOff := format.NextEntryOffset(p.Bytes())
	if rawOff >= uint64(pageSize) {
		// Full, or an offset so far gone the head cannot take entries.
		// Either way the pushed page starts a fresh head; a truly corrupt
		// offset surfaces the next time this page's entries are read.
		return false, nil
	}
	if format.IsCorruptEntryOffset(rawOff, pageSize) {
		return false, fmt.Errorf("freelist: page %d: entry offset %d: %w",
			l.head, rawOff, store.ErrCorrupt)
	}

	tx.WillModify(p)
	b := p.MutableBytes()
	off := int(rawOff)
	format.PutU64(b, off, uint64(id))
	format.SetNextEntryOffset(b, off+format.EntrySize)
	return true, nil
}

// Merge moves every page tracked by other into l and consumes other. Only
// transaction-local lists can be sources; the parameter type enforces that.
//
// The merge works page-pointer-first:
//
//  1. Both lists are a head page followed by a chain of full pages. The two
//     full chains are joined into one, source's pages first, by pointing the
//     source's tail at the destination's chain.
//  2. The two head pages collapse into one. If the destination head has room
//     for the source head's entries plus the source head's own id, they are
//     copied over and the source head dissolves into an ordinary free page.
//     Otherwise entries move the other way, from the destination head into
//     the source head until the source head is full, and the source head is
//     chained in as the first full page.
//
// Corrupt entry offsets and fetch failures are all detected before the
// first write intent, so a failed merge leaves every page of both lists
// untouched.
func (l *List) Merge(tx Transaction, other *TxnList) error {
	assert.That(tx != nil, "nil transaction")
	assert.That(!tx.Internal(), "free list access from the bootstrap transaction")
	assert.That(l != &other.List, "merge of a list into itself")
	assert.That(!l.merged, "operation on a merged-away list")
	assert.That(!other.merged, "merge of an already-merged source")
	assert.That(other.trackTail, "merge source must track its tail")
	if assert.Enabled {
		other.merged = true
	}

	if other.head == store.NilPage {
		return nil
	}

	// An empty destination adopts the source wholesale; no page changes.
	if l.head == store.NilPage {
		l.head = other.head
		if l.trackTail {
			l.tail = other.tail
		}
		return nil
	}

	headPage, err := l.po.Fetch(l.head, pool.FetchData)
	if err != nil {
		return err
	}
	defer l.po.Unpin(headPage)

	otherHeadID := other.head
	otherHead, err := l.po.Fetch(otherHeadID, pool.FetchData)
	if err != nil {
		return err
	}
	defer l.po.Unpin(otherHead)

	pageSize := l.po.PageSize()
	thisOff := format.NextEntryOffset(headPage.Bytes())
	otherOff := format.NextEntryOffset(otherHead.Bytes())
	if format.IsCorruptEntryOffset(thisOff, pageSize) {
		return fmt.Errorf("freelist: page %d: entry offset %d: %w",
			l.head, thisOff, store.ErrCorrupt)
	}
	if format.IsCorruptEntryOffset(otherOff, pageSize) {
		return fmt.Errorf("freelist: page %d: entry offset %d: %w",
			otherHeadID, otherOff, store.ErrCorrupt)
	}

	// Step 1: join the full-page chains, source's first. Chain ids travel
	// as raw 64-bit values; they are only ever rewritten into other pages,
	// so narrowing them would add failure modes for no benefit.
	fullChain := format.NextPageID64(headPage.Bytes())
	destHadChain := fullChain != 0
	if other.tail != otherHeadID {
		tailPage, err := l.po.Fetch(other.tail, pool.FetchData)
		if err != nil {
			return err
		}
		tx.WillModify(tailPage)
		format.SetNextPageID64(tailPage.MutableBytes(), fullChain)
		l.po.Unpin(tailPage)
		fullChain = format.NextPageID64(otherHead.Bytes())
	}

	// Step 2: collapse the head pages. The destination keeps its head page
	// either way: replacing it would force a store header write.
	tx.WillModify(headPage)
	headBytes := headPage.MutableBytes()

	needed := int(otherOff) - format.FirstEntryOffset
	off := int(thisOff)
	overflowed := off+needed >= pageSize
	if !overflowed {
		// Room for the source head's id plus all its entries.
		format.PutU64(headBytes, off, uint64(otherHeadID))
		off += format.EntrySize
		copy(headBytes[off:off+needed],
			otherHead.Bytes()[format.FirstEntryOffset:int(otherOff)])
		off += needed
		format.SetNextPageID64(headBytes, fullChain)
	} else {
		// Top up the source head with entries from the destination head,
		// then chain it in as the first full page.
		tx.WillModify(otherHead)
		otherBytes := otherHead.MutableBytes()

		empty := pageSize - int(otherOff)
		newOff := off - empty
		copy(otherBytes[int(otherOff):pageSize], headBytes[newOff:off])
		format.SetNextEntryOffset(otherBytes, pageSize)
		format.SetNextPageID64(otherBytes, fullChain)
		off = newOff
		format.SetNextPageID64(headBytes, uint64(otherHeadID))
	}
	format.SetNextEntryOffset(headBytes, off)

	// The chain's last page only changes when the destination had no full
	// pages of its own.
	if l.trackTail && !destHadChain {
		switch {
		case other.tail != otherHeadID:
			l.tail = other.tail
		case overflowed:
			l.tail = otherHeadID
		}
	}
	return nil
}
