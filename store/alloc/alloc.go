package alloc

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/joshuapare/pagekit/store"
	"github.com/joshuapare/pagekit/store/freelist"
)

// Txn is the slice of a transaction the allocator needs.
type Txn interface {
	freelist.Transaction

	// FreeList returns the transaction-local list that accumulates freed
	// pages until commit.
	FreeList() *freelist.TxnList
}

// Stats counts where allocations came from.
type Stats struct {
	Reused uint64 // pages popped from the free list
	Grown  uint64 // pages created by extending the store
}

// Allocator hands out page ids backed by the store-wide free list.
type Allocator struct {
	s     *store.Store
	free  *freelist.StoreList
	stats Stats
	lg    *zap.Logger
}

// New creates an allocator over the store-wide free list.
func New(s *store.Store, free *freelist.StoreList, lg *zap.Logger) *Allocator {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Allocator{s: s, free: free, lg: lg}
}

// Allocate returns a page id the caller now owns. Recycled pages keep
// whatever bytes they held before; fetch them with pool.IgnoreData and
// overwrite.
func (a *Allocator) Allocate(txn Txn) (store.PageID, error) {
	id, err := a.free.Pop(txn)
	if err != nil {
		return store.NilPage, fmt.Errorf("alloc: %w", err)
	}
	if id != store.NilPage {
		a.stats.Reused++
		a.lg.Debug("reused free page", zap.Uint64("page", uint64(id)))
		return id, nil
	}
	id, err = a.s.Extend()
	if err != nil {
		return store.NilPage, fmt.Errorf("alloc: %w", err)
	}
	a.stats.Grown++
	return id, nil
}

// Release gives page id back. It lands on the transaction's local list and
// becomes reusable once the transaction commits.
func (a *Allocator) Release(txn Txn, id store.PageID) error {
	if id == store.NilPage {
		return ErrNilPage
	}
	if uint64(id) >= a.s.PageCount() {
		return fmt.Errorf("alloc: release page %d of %d: %w", id, a.s.PageCount(), store.ErrPageRange)
	}
	if err := txn.FreeList().Push(txn, id); err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the allocation counters.
func (a *Allocator) Stats() Stats { return a.stats }
