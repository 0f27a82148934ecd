package tx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pagekit/store"
	"github.com/joshuapare/pagekit/store/freelist"
	"github.com/joshuapare/pagekit/store/pool"
)

func newTxEnv(t *testing.T, pageShift uint) (*store.Store, *pool.Pool, *freelist.StoreList, *Manager) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tx.pgst")
	s, err := store.Open(path, store.Options{CreateIfMissing: true, PageShift: pageShift})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	po := pool.New(s, pool.Options{})
	free := freelist.NewStoreList(po, s.FreeListHead())
	return s, po, free, NewManager(po, free, Options{})
}

// extendAll grows the store by n pages inside no transaction; the next
// commit publishes the count.
func extendAll(t *testing.T, s *store.Store, n int) []store.PageID {
	t.Helper()
	out := make([]store.PageID, n)
	for i := range out {
		id, err := s.Extend()
		require.NoError(t, err)
		out[i] = id
	}
	return out
}

func TestManager_SingleWriter(t *testing.T) {
	_, _, _, m := newTxEnv(t, 9)
	ctx := context.Background()

	txn, err := m.Begin(ctx)
	require.NoError(t, err)
	require.True(t, m.InTransaction())

	_, err = m.Begin(ctx)
	require.ErrorIs(t, err, ErrActive)

	require.NoError(t, txn.Commit(ctx))
	require.False(t, m.InTransaction())

	txn2, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn2.Rollback())
	require.False(t, m.InTransaction())
}

func TestManager_BeginRespectsContext(t *testing.T) {
	_, _, _, m := newTxEnv(t, 9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Begin(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestManager_SequenceProtocol(t *testing.T) {
	s, _, _, m := newTxEnv(t, 9)
	ctx := context.Background()
	require.True(t, s.Clean())

	txn, err := m.Begin(ctx)
	require.NoError(t, err)
	require.False(t, s.Clean(), "an open transaction must leave the sequences unequal")

	require.NoError(t, txn.Commit(ctx))
	require.True(t, s.Clean())

	// A rollback leaves the store unclean until the next commit realigns
	// the sequences.
	txn2, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn2.Rollback())
	require.False(t, s.Clean())

	txn3, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn3.Commit(ctx))
	require.True(t, s.Clean())
}

func TestTransaction_CommitPublishes(t *testing.T) {
	s, po, _, m := newTxEnv(t, 9)
	ctx := context.Background()

	txn, err := m.Begin(ctx)
	require.NoError(t, err)

	id, err := s.Extend()
	require.NoError(t, err)
	p, err := po.Fetch(id, pool.IgnoreData)
	require.NoError(t, err)
	txn.WillModify(p)
	copy(p.MutableBytes(), []byte("committed"))
	po.Unpin(p)

	require.NoError(t, txn.Commit(ctx))

	// Reopen the file cold and verify both the page count and the bytes.
	path := s.Path()
	require.NoError(t, s.Close())
	s2, err := store.Open(path, store.Options{})
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	require.True(t, s2.Clean())
	require.Equal(t, uint64(2), s2.PageCount())
	buf := make([]byte, s2.PageSize())
	require.NoError(t, s2.ReadPage(id, buf))
	require.Equal(t, []byte("committed"), buf[:9])
}

func TestTransaction_RollbackRestoresPageBytes(t *testing.T) {
	s, po, _, m := newTxEnv(t, 9)
	ctx := context.Background()

	// Commit a page with known contents first.
	txn, err := m.Begin(ctx)
	require.NoError(t, err)
	id, err := s.Extend()
	require.NoError(t, err)
	p, err := po.Fetch(id, pool.IgnoreData)
	require.NoError(t, err)
	txn.WillModify(p)
	copy(p.MutableBytes(), []byte("original"))
	po.Unpin(p)
	require.NoError(t, txn.Commit(ctx))

	// Modify it in a second transaction and roll back.
	txn2, err := m.Begin(ctx)
	require.NoError(t, err)
	p, err = po.Fetch(id, pool.FetchData)
	require.NoError(t, err)
	txn2.WillModify(p)
	copy(p.MutableBytes(), []byte("scribble"))
	po.Unpin(p)
	require.NoError(t, txn2.Rollback())

	p, err = po.Fetch(id, pool.FetchData)
	require.NoError(t, err)
	require.Equal(t, []byte("original"), p.Bytes()[:8])
	po.Unpin(p)
}

func TestTransaction_RollbackDropsExtendedPages(t *testing.T) {
	s, po, _, m := newTxEnv(t, 9)
	ctx := context.Background()

	txn, err := m.Begin(ctx)
	require.NoError(t, err)

	id, err := s.Extend()
	require.NoError(t, err)
	p, err := po.Fetch(id, pool.IgnoreData)
	require.NoError(t, err)
	txn.WillModify(p)
	copy(p.MutableBytes(), []byte("doomed"))
	po.Unpin(p)

	require.NoError(t, txn.Rollback())
	require.Equal(t, uint64(1), s.PageCount())

	// The page is gone from both the pool and the file.
	_, err = po.Fetch(id, pool.FetchData)
	require.ErrorIs(t, err, store.ErrPageRange)
}

func TestTransaction_FreeListSurvivesReopen(t *testing.T) {
	s, _, free, m := newTxEnv(t, 9)
	ctx := context.Background()

	// Grow the store, then free all three pages in one transaction.
	txn, err := m.Begin(ctx)
	require.NoError(t, err)
	pages := extendAll(t, s, 3)
	for _, id := range pages {
		require.NoError(t, txn.FreeList().Push(txn, id))
	}
	require.NoError(t, txn.Commit(ctx))
	require.Equal(t, pages[0], s.FreeListHead())
	require.Equal(t, pages[0], m.FreeListHead())

	// Consume one entry in a second transaction.
	txn2, err := m.Begin(ctx)
	require.NoError(t, err)
	got, err := free.Pop(txn2)
	require.NoError(t, err)
	require.Equal(t, pages[2], got, "entries pop most recent first")
	require.NoError(t, txn2.Commit(ctx))

	// Cold restart: the remaining pages must still be on the list.
	path := s.Path()
	require.NoError(t, s.Close())
	s2, err := store.Open(path, store.Options{})
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	po2 := pool.New(s2, pool.Options{})
	free2 := freelist.NewStoreList(po2, s2.FreeListHead())
	m2 := NewManager(po2, free2, Options{})
	txn3, err := m2.Begin(ctx)
	require.NoError(t, err)

	var rest []store.PageID
	for {
		id, err := free2.Pop(txn3)
		require.NoError(t, err)
		if id == store.NilPage {
			break
		}
		rest = append(rest, id)
	}
	require.ElementsMatch(t, []store.PageID{pages[0], pages[1]}, rest)
	require.NoError(t, txn3.Rollback())
}

func TestTransaction_RollbackRestoresFreeList(t *testing.T) {
	s, _, free, m := newTxEnv(t, 9)
	ctx := context.Background()

	txn, err := m.Begin(ctx)
	require.NoError(t, err)
	pages := extendAll(t, s, 3)
	for _, id := range pages {
		require.NoError(t, txn.FreeList().Push(txn, id))
	}
	require.NoError(t, txn.Commit(ctx))
	head := free.Head()

	// Drain the whole store list, then roll back.
	txn2, err := m.Begin(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		id, err := free.Pop(txn2)
		require.NoError(t, err)
		require.NotEqual(t, store.NilPage, id)
	}
	require.True(t, free.Empty())
	require.NoError(t, txn2.Rollback())

	// The head and the popped entries are all back.
	require.Equal(t, head, free.Head())
	txn3, err := m.Begin(ctx)
	require.NoError(t, err)
	got, err := free.Pop(txn3)
	require.NoError(t, err)
	require.Equal(t, pages[2], got)
	require.NoError(t, txn3.Rollback())
}

func TestTransaction_ClosedIsClosed(t *testing.T) {
	_, _, _, m := newTxEnv(t, 9)
	ctx := context.Background()

	txn, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn.Commit(ctx))

	require.ErrorIs(t, txn.Commit(ctx), ErrClosed)
	require.ErrorIs(t, txn.Rollback(), ErrClosed)
}

func TestManager_InitTransaction(t *testing.T) {
	s, po, _, m := newTxEnv(t, 9)

	boot := m.InitTransaction()
	require.True(t, boot.Internal())

	// Bootstrap writes skip the undo log but still mark pages dirty.
	id, err := s.Extend()
	require.NoError(t, err)
	p, err := po.Fetch(id, pool.IgnoreData)
	require.NoError(t, err)
	boot.WillModify(p)
	copy(p.MutableBytes(), []byte("bootstrapped"))
	po.Unpin(p)

	require.NoError(t, po.FlushDirty())
	buf := make([]byte, s.PageSize())
	require.NoError(t, s.ReadPage(id, buf))
	require.Equal(t, []byte("bootstrapped"), buf[:12])
}
