package freelist

import "github.com/joshuapare/pagekit/store/pool"

// Transaction is the slice of a transaction the free list depends on: write
// intents for the list pages it rewrites.
type Transaction interface {
	// WillModify declares that the caller is about to rewrite p's bytes.
	// The first declaration per page captures whatever the transaction
	// needs for rollback and marks the page dirty.
	WillModify(p *pool.Page)

	// Internal reports whether this is the store's bootstrap transaction.
	// The bootstrap transaction cannot roll back, so free list operations
	// refuse it (debug builds panic).
	Internal() bool
}
