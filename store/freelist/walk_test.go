package freelist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/store"
	"github.com/joshuapare/pagekit/store/pool"
)

func TestWalk_EmptyList(t *testing.T) {
	_, po, _ := newListEnv(t, 9, 0)

	calls := 0
	require.NoError(t, Walk(po, store.NilPage, func(Node) error {
		calls++
		return nil
	}))
	require.Zero(t, calls)

	n, err := Len(po, store.NilPage)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestWalk_VisitsEveryNodeAndEntry(t *testing.T) {
	// 62 entries per 512-byte page: 64 pushes build a two-node chain with
	// an entry-less head.
	_, po, tx := newListEnv(t, 9, 64)
	tl := NewTxnList(po)
	pushAll(t, tx, &tl.List, ids(1, 64))

	var nodes []Node
	require.NoError(t, Walk(po, tl.Head(), func(n Node) error {
		nodes = append(nodes, n)
		return nil
	}))

	require.Len(t, nodes, 2)
	require.Equal(t, store.PageID(64), nodes[0].ID)
	require.Equal(t, store.PageID(1), nodes[0].Next)
	require.Empty(t, nodes[0].Entries)
	require.Equal(t, store.PageID(1), nodes[1].ID)
	require.Equal(t, store.NilPage, nodes[1].Next)
	require.ElementsMatch(t, ids(2, 62), nodes[1].Entries)

	// Every entry plus both node pages.
	n, err := Len(po, tl.Head())
	require.NoError(t, err)
	require.Equal(t, 64, n)
}

func TestWalk_CallbackErrorStops(t *testing.T) {
	_, po, tx := newListEnv(t, 9, 64)
	tl := NewTxnList(po)
	pushAll(t, tx, &tl.List, ids(1, 64))

	sentinel := errors.New("stop")
	calls := 0
	err := Walk(po, tl.Head(), func(Node) error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
}

func TestWalk_ReportsCorruption(t *testing.T) {
	t.Run("bad entry offset", func(t *testing.T) {
		_, po, tx := newListEnv(t, 9, 4)
		tl := NewTxnList(po)
		pushAll(t, tx, &tl.List, ids(1, 4))

		corruptEntryOffset(t, po, tx, tl.Head(), 17)
		err := Walk(po, tl.Head(), func(Node) error { return nil })
		require.ErrorIs(t, err, store.ErrCorrupt)
	})

	t.Run("cycle", func(t *testing.T) {
		_, po, tx := newListEnv(t, 9, 64)
		tl := NewTxnList(po)
		pushAll(t, tx, &tl.List, ids(1, 64)) // head 64, full page 1 behind

		// Point the tail back at the head.
		p, err := po.Fetch(1, pool.FetchData)
		require.NoError(t, err)
		tx.WillModify(p)
		format.SetNextPageID64(p.MutableBytes(), 64)
		po.Unpin(p)

		err = Walk(po, tl.Head(), func(Node) error { return nil })
		require.ErrorIs(t, err, store.ErrCorrupt)
	})
}
