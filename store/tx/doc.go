// Package tx coordinates atomic modification of a pagekit store.
//
// # Transaction Protocol
//
// A Manager hands out one Transaction at a time:
//
//  1. Begin bumps the header's primary sequence and writes the header.
//     From here until Commit the on-disk sequences disagree, which is the
//     crash marker.
//  2. Modifications declare themselves through WillModify before touching
//     page bytes. The first declaration for a page captures an undo image
//     and pins the page for the transaction's lifetime.
//  3. Commit merges the transaction's freed pages into the store-wide free
//     list, writes every dirty page, then writes the header with the
//     secondary sequence caught up plus the new free-list head and page
//     count, and finally syncs.
//
// Because modified pages stay pinned, the pool cannot evict them, and no
// uncommitted byte reaches the file before Commit's flush. Rollback drops
// the unflushed frames (the file still holds the original bytes), restores
// the free-list head and page count, and truncates away any pages the
// transaction extended the store by.
//
// # Failed Commits
//
// Commit can fail after some pages were flushed. The transaction stays open;
// Rollback then writes the captured pre-images back over the flushed pages.
// A page the transaction repurposed as free-list bookkeeping has no
// trustworthy pre-image (it was fetched without its data), so if the failed
// commit flushed one of those, Rollback reports it and leaves the header
// sequences unequal, which keeps the store flagged for verification. After
// any rollback the sequences realign only on the next successful commit.
//
// # Thread Safety
//
// Manager and Transaction are NOT thread-safe. Only one goroutine should use
// them at a time.
package tx
