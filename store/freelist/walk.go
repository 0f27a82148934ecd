package freelist

import (
	"fmt"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/store"
	"github.com/joshuapare/pagekit/store/pool"
)

// Node describes one list page during a Walk.
type Node struct {
	// ID is the list page's own id.
	ID store.PageID

	// Next is the id of the following list page, NilPage at the end of
	// the chain.
	Next store.PageID

	// Entries are the free page ids recorded in this page, oldest first.
	Entries []store.PageID
}

// Walk visits every page of the chain rooted at head, head first, and calls
// fn for each. It reads through the pool without a transaction and never
// writes, so it is safe on a list someone else owns as long as no mutation
// races it. A non-nil error from fn stops the walk and is returned.
//
// Corrupt entry offsets and chain cycles surface as store.ErrCorrupt.
func Walk(po *pool.Pool, head store.PageID, fn func(Node) error) error {
	visited := make(map[store.PageID]bool)
	for id := head; id != store.NilPage; {
		if visited[id] {
			return fmt.Errorf("freelist: page %d: chain cycle: %w", id, store.ErrCorrupt)
		}
		visited[id] = true

		n, next, err := readNode(po, id)
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
		id = next
	}
	return nil
}

// Len counts the free page ids the chain rooted at head tracks: every entry
// plus every list page, since the pages holding the list are themselves free.
func Len(po *pool.Pool, head store.PageID) (int, error) {
	total := 0
	err := Walk(po, head, func(n Node) error {
		total += 1 + len(n.Entries)
		return nil
	})
	return total, err
}

// readNode decodes one list page. The page is only pinned for the duration
// of the read, so the walk holds at most one page at a time.
func readNode(po *pool.Pool, id store.PageID) (Node, store.PageID, error) {
	p, err := po.Fetch(id, pool.FetchData)
	if err != nil {
		return Node{}, store.NilPage, err
	}
	defer po.Unpin(p)

	rawOff := format.NextEntryOffset(p.Bytes())
	if format.IsCorruptEntryOffset(rawOff, po.PageSize()) {
		return Node{}, store.NilPage, fmt.Errorf("freelist: page %d: entry offset %d: %w",
			id, rawOff, store.ErrCorrupt)
	}
	next, err := store.PageIDFromU64(format.NextPageID64(p.Bytes()))
	if err != nil {
		return Node{}, store.NilPage, err
	}

	n := Node{ID: id, Next: next}
	for off := format.FirstEntryOffset; off < int(rawOff); off += format.EntrySize {
		e, err := store.PageIDFromU64(format.ReadU64(p.Bytes(), off))
		if err != nil {
			return Node{}, store.NilPage, err
		}
		n.Entries = append(n.Entries, e)
	}
	return n, next, nil
}
