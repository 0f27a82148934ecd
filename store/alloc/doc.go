// Package alloc hands out store pages, preferring recycled ones.
//
// Allocate pops the store-wide free list and falls back to growing the
// file by one page. Release routes freed pages through the transaction's
// local list, so the store-wide list only learns about them when the
// transaction commits; a rollback cannot leak a page that was still in
// use.
//
// The allocator is NOT thread-safe. It runs inside the single writer
// transaction.
package alloc
