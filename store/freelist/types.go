package freelist

import (
	"github.com/joshuapare/pagekit/store"
	"github.com/joshuapare/pagekit/store/pool"
)

// List is the shared free-list implementation. Use the StoreList and
// TxnList constructors; the variants differ only in tail tracking and in
// what the type system lets them do (see the package doc).
type List struct {
	po   *pool.Pool
	head store.PageID

	// tail is the last page of the chain. Maintained only when trackTail
	// is set; meaningless otherwise.
	tail      store.PageID
	trackTail bool

	// merged marks a consumed merge source. Only maintained in debug
	// builds.
	merged bool
}

// StoreList is the store-wide free page list. Its head page id is persisted
// in the store header; it does not track its tail and can never be a merge
// source.
type StoreList struct {
	List
}

// TxnList is a transaction-local free page list. It starts empty, tracks
// its tail, and is the only legal merge source.
type TxnList struct {
	List
}

// NewStoreList wraps the store-wide list whose head was read from the store
// header. NilPage means the list is empty.
func NewStoreList(po *pool.Pool, head store.PageID) *StoreList {
	return &StoreList{List{po: po, head: head}}
}

// NewTxnList creates an empty transaction-local list.
func NewTxnList(po *pool.Pool) *TxnList {
	return &TxnList{List{po: po, trackTail: true}}
}

// Head returns the id of the first list page, NilPage when the list is
// empty. The store list's head belongs in the header at commit time.
func (l *List) Head() store.PageID { return l.head }

// Empty reports whether the list holds no free pages.
func (l *List) Empty() bool { return l.head == store.NilPage }

// RestoreHead rewinds the in-memory head pointer. Rollback uses this after
// undo images have restored the list pages themselves.
func (l *List) RestoreHead(id store.PageID) { l.head = id }

// Tail returns the id of the last page in the chain, NilPage when the list
// is empty.
func (tl *TxnList) Tail() store.PageID { return tl.tail }
