// Package freelist implements the store's free page list: a LIFO of page ids
// that have been released and can be handed out again without growing the
// file.
//
// # Overview
//
// The list stores itself inside the pages it tracks. Each list page is a
// node in a singly linked chain:
//
//	Offset  Size  Description
//	------  ----  ----------------------------------------------------------
//	 0x00    8    Next list page id (0 = end of chain)
//	 0x08    8    Next entry offset: one past the last valid entry
//	 0x10   ...   Entries: free page ids, 8 bytes each, LIFO order
//
// Only the head page may be partially filled; every page after it is full.
// A 4096-byte page holds 510 entries.
//
// The list needs no pages of its own: a page entering the list either has
// its id recorded as an entry in the head page, or, when the head is full,
// becomes the new head itself. Popping drains entries from the head; when a
// head runs out of entries the head page itself is the popped page. An empty
// store therefore has an empty list, and a list of N pages occupies exactly
// the N pages it tracks.
//
// # List Variants
//
// StoreList is the store-wide list whose head page id lives in the store
// header. TxnList is a transaction-local list that accumulates the pages a
// transaction frees; at commit it merges into the store list so the freed
// pages become reusable all at once. Only a TxnList can be a merge source:
// merging needs the source's tail page, and only transaction-local lists
// track one. The Merge signature takes *TxnList, so handing a store list to
// it does not compile.
//
// A merged source is consumed. Debug builds panic on any further use of it;
// release builds leave the behavior undefined.
//
// # Write Intents
//
// Every page mutation is announced to the transaction through WillModify
// before the first byte changes, so the transaction can capture an undo
// image. Popping an exhausted head page mutates nothing: the page leaves the
// list by becoming the popped result, its bytes intact, which keeps the
// operation rollback-safe for free.
//
// # Corruption
//
// A list page's stored entry offset is validated before use: it must lie
// within [0x10, page size] and be entry-aligned. Violations surface as
// store.ErrCorrupt and leave the list unmodified; the list never repairs or
// guesses. Stored page ids too wide for the platform surface as
// store.ErrTooLarge.
//
// # Thread Safety
//
// Lists are NOT thread-safe. Free list access follows the single-writer
// transaction discipline; see the tx package.
package freelist
