// Package store implements the paged file underneath a pagekit database.
//
// # Overview
//
// A store is a single file divided into fixed-size pages. Page 0 holds the
// store header; every other page belongs to higher layers (user data or
// free-list bookkeeping). The store reads and writes whole pages, grows the
// file one page at a time, and persists the header with a checksum and a
// sequence-number pair used to detect interrupted transactions.
//
// # Header Protocol
//
// The header carries two sequence numbers:
//
//  1. The primary sequence is bumped and written when a transaction begins.
//  2. The secondary sequence is set equal to the primary when it commits.
//
// A store whose sequences differ was interrupted mid-transaction. Open
// reports this through Clean(); it does not attempt repair.
//
// # Page Identifiers
//
// PageID is the platform's native unsigned width. On disk every page id
// occupies 8 bytes little-endian; PageIDFromU64 rejects stored values that
// cannot be addressed on the current platform. Page id 0 is the header page
// and doubles as the nil sentinel: no chain or free list ever contains it.
//
// # Thread Safety
//
// A Store's page I/O methods are safe for concurrent use (they are stateless
// wrappers over pread/pwrite). Header mutation and Extend are not; the tx
// package serializes them.
//
// # Related Packages
//
//   - github.com/joshuapare/pagekit/store/pool: page cache over a store
//   - github.com/joshuapare/pagekit/store/tx: transaction protocol
//   - github.com/joshuapare/pagekit/internal/format: binary layout
package store
