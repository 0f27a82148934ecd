package tx

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joshuapare/pagekit/internal/assert"
	"github.com/joshuapare/pagekit/store"
	"github.com/joshuapare/pagekit/store/freelist"
	"github.com/joshuapare/pagekit/store/pool"
)

// Options configures a Manager.
type Options struct {
	// Mode selects how Commit syncs the file. The zero value is
	// store.SyncAuto.
	Mode store.SyncMode

	// Logger receives transaction lifecycle diagnostics. Nil means no
	// logging.
	Logger *zap.Logger
}

// Manager owns the header sequence protocol and hands out transactions one
// at a time.
//
// The manager is NOT thread-safe. Only one goroutine should use it at a
// time.
type Manager struct {
	s    *store.Store
	po   *pool.Pool
	free *freelist.StoreList // store-wide list; its head persists via the header
	mode store.SyncMode
	lg   *zap.Logger
	cur  *Transaction // open transaction, nil when idle
	boot *Transaction // bootstrap identity, never committed
}

// NewManager creates a transaction manager over po's store. free must be
// the store-wide list loaded from the header; the manager persists its head
// on every commit.
func NewManager(po *pool.Pool, free *freelist.StoreList, opts Options) *Manager {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	m := &Manager{
		s:    po.Store(),
		po:   po,
		free: free,
		mode: opts.Mode,
		lg:   lg,
	}
	m.boot = &Transaction{m: m, internal: true}
	return m
}

// InitTransaction returns the store's bootstrap transaction: the identity
// for page writes that predate any real transaction, such as formatting
// pages during store setup. It has no undo log and never commits, and free
// list operations refuse it.
func (m *Manager) InitTransaction() *Transaction { return m.boot }

// InTransaction reports whether a transaction is currently open.
func (m *Manager) InTransaction() bool { return m.cur != nil }

// FreeListHead returns the store-wide list's current head. Until a commit
// publishes it, this can run ahead of the header's recorded head.
func (m *Manager) FreeListHead() store.PageID { return m.free.Head() }

// Begin opens a transaction.
//
// This method:
//  1. Refuses to run while another transaction is open (ErrActive)
//  2. Snapshots the free-list head and page count for Rollback
//  3. Bumps the primary sequence and writes the header
//
// A crash between Begin and Commit leaves the sequences unequal, so the
// next Open reports the store unclean.
func (m *Manager) Begin(ctx context.Context) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.cur != nil {
		return nil, ErrActive
	}

	hs := m.s.HeaderState()
	hs.PrimarySequence++
	if err := m.s.WriteHeader(hs); err != nil {
		return nil, fmt.Errorf("tx: begin: %w", err)
	}

	t := &Transaction{
		m:         m,
		undo:      make(map[store.PageID][]byte),
		held:      make(map[store.PageID]*pool.Page),
		freed:     freelist.NewTxnList(m.po),
		snapHead:  m.free.Head(),
		snapCount: hs.PageCount,
	}
	m.cur = t
	m.lg.Debug("transaction begun", zap.Uint32("seq", hs.PrimarySequence))
	return t, nil
}

// Transaction is one unit of atomic modification. See the package doc for
// the protocol.
type Transaction struct {
	m         *Manager
	undo      map[store.PageID][]byte     // pre-images, captured on first touch
	held      map[store.PageID]*pool.Page // pages pinned until the transaction ends
	freed     *freelist.TxnList           // pages freed inside this transaction
	snapHead  store.PageID                // store list head at Begin
	snapCount uint64                      // page count at Begin
	internal  bool
	done      bool
}

// WillModify declares that the caller is about to change p's bytes. The
// first declaration for a page captures its undo image and parks the page
// in the pool until the transaction ends; later declarations only refresh
// the dirty mark. Every mutation must be declared before the first changed
// byte, or Rollback cannot restore it.
func (t *Transaction) WillModify(p *pool.Page) {
	assert.That(!t.done, "write intent on a closed transaction")
	if t.internal {
		// Bootstrap writes have nothing to roll back to.
		t.m.po.MarkDirty(p)
		return
	}
	id := p.ID()
	if _, ok := t.undo[id]; !ok {
		t.m.po.Pin(p)
		t.held[id] = p
		var img []byte
		if p.Loaded() {
			img = make([]byte, len(p.Bytes()))
			copy(img, p.Bytes())
		}
		// A nil image means the frame never matched the file (IgnoreData
		// fetch); the file's copy stays authoritative until first flush.
		t.undo[id] = img
	}
	t.m.po.MarkDirty(p)
}

// Internal reports whether this is the bootstrap transaction.
func (t *Transaction) Internal() bool { return t.internal }

// FreeList returns the transaction-local list of freed pages. Its contents
// reach the store-wide list only at Commit.
func (t *Transaction) FreeList() *freelist.TxnList { return t.freed }

// Commit makes every declared change durable using the ordered flush
// protocol:
//
//  1. Merge the transaction's freed pages into the store-wide list
//  2. Flush all dirty pages (the header is not among them)
//  3. Write the header: secondary sequence caught up to primary, plus the
//     new free-list head and page count
//  4. Sync according to the manager's mode
//
// On error the transaction stays open so the caller can Rollback; the
// package doc covers what a rollback after a partial commit does.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.done {
		return ErrClosed
	}
	assert.That(!t.internal, "commit of the bootstrap transaction")

	// Step 1: the local list joins the store list. Validation happens
	// before any page write, so a corrupt list aborts with both lists
	// intact.
	if err := t.m.free.Merge(t, t.freed); err != nil {
		return fmt.Errorf("tx: merge freed pages: %w", err)
	}
	// The merge consumed the local list; a fresh one takes its place so a
	// retried commit cannot merge it twice.
	t.freed = freelist.NewTxnList(t.m.po)

	// Step 2: data pages first, the header strictly after.
	if err := t.m.po.FlushDirty(); err != nil {
		return fmt.Errorf("tx: flush pages: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Step 3: catching the secondary sequence up marks the transaction
	// complete; the free-list head and page count publish with it.
	hs := t.m.s.HeaderState()
	hs.SecondarySequence = hs.PrimarySequence
	hs.FreeListHead = t.m.free.Head()
	if err := t.m.s.WriteHeader(hs); err != nil {
		return fmt.Errorf("tx: write header: %w", err)
	}

	// Step 4: durability, per the configured mode.
	if err := t.m.s.Sync(t.m.mode); err != nil {
		return fmt.Errorf("tx: sync: %w", err)
	}

	t.release()
	t.m.lg.Debug("transaction committed",
		zap.Uint32("seq", hs.SecondarySequence),
		zap.Uint64("pages", hs.PageCount),
		zap.Uint64("free_head", uint64(hs.FreeListHead)))
	return nil
}

// Rollback undoes every declared change and closes the transaction.
//
// Modifications that never reached the file undo by dropping their pooled
// frames; the file still holds the original bytes. Pages a failed Commit
// already flushed get their pre-images written back when one exists. The
// free-list head and page count return to their Begin values, and pages the
// transaction extended the store by are truncated away. The header
// sequences stay unequal until the next successful commit.
func (t *Transaction) Rollback() error {
	if t.done {
		return ErrClosed
	}
	assert.That(!t.internal, "rollback of the bootstrap transaction")

	var firstErr error
	drop := make([]store.PageID, 0, len(t.undo))
	for id, img := range t.undo {
		if uint64(id) >= t.snapCount {
			continue // truncated away below
		}
		p := t.held[id]
		if p.Dirty() {
			// Pinning kept the change off the disk, so the file still
			// has the original bytes. Dropping the frame is the whole
			// undo.
			drop = append(drop, id)
			continue
		}
		if img == nil {
			// A failed commit flushed a page we never had a trustworthy
			// pre-image for. Its old bytes are gone; the unequal header
			// sequences keep the store flagged for verification.
			if firstErr == nil {
				firstErr = fmt.Errorf("tx: rollback: page %d has no pre-image to restore", id)
			}
			continue
		}
		// A failed commit flushed this page; write the pre-image back.
		t.m.po.MarkDirty(p)
		copy(p.MutableBytes(), img)
		if err := t.m.po.FlushPage(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	undone := len(t.undo)

	t.m.free.RestoreHead(t.snapHead)

	grown := t.m.s.PageCount()
	t.release()
	for _, id := range drop {
		t.m.po.Forget(id)
	}
	for id := t.snapCount; id < grown; id++ {
		t.m.po.Forget(store.PageID(id))
	}
	if err := t.m.s.Truncate(t.snapCount); err != nil && firstErr == nil {
		firstErr = err
	}

	t.m.lg.Debug("transaction rolled back",
		zap.Int("pages_undone", undone),
		zap.Uint64("pages_dropped", grown-t.snapCount))
	return firstErr
}

// release unpins every held page and closes the transaction.
func (t *Transaction) release() {
	for _, p := range t.held {
		t.m.po.Unpin(p)
	}
	t.held = nil
	t.undo = nil
	t.done = true
	t.m.cur = nil
}
