// Package pool provides a fixed-capacity page cache over a store.
//
// # Overview
//
// The pool keeps recently used pages in memory, tracks pin counts so callers
// can hold page bytes across operations, and writes dirty pages back to the
// store when they are flushed or evicted. Eviction is least-recently-used
// among unpinned frames; when every frame is pinned, Fetch fails with
// ErrPoolFull rather than blocking.
//
// # Fetch Modes
//
// Fetch takes a mode describing what the caller wants from the page bytes:
//
//   - FetchData: the caller reads the page, so a cache miss loads it from
//     the store.
//   - IgnoreData: the caller overwrites the page entirely, so a cache miss
//     skips the disk read and hands back an uninitialized frame.
//
// A cache hit returns the resident frame either way.
//
// # Pinning
//
// Every Fetch pins the returned page. A pinned page keeps its frame and its
// byte slice stable; eviction skips it. Callers unpin when done, on every
// exit path:
//
//	p, err := po.Fetch(id, pool.FetchData)
//	if err != nil {
//	    return err
//	}
//	defer po.Unpin(p)
//
// # Thread Safety
//
// The pool itself is safe for concurrent use. The layers above it (free
// list, transactions) assume a single writer; see their docs.
package pool
