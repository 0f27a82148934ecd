package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pgst")
	s, err := Open(path, Options{CreateIfMissing: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreateAndReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.pgst")

	s, err := Open(path, Options{CreateIfMissing: true})
	require.NoError(t, err)
	require.Equal(t, 4096, s.PageSize())
	require.Equal(t, uint64(1), s.PageCount())
	require.Equal(t, NilPage, s.FreeListHead())
	require.True(t, s.Clean())
	require.NoError(t, s.Close())

	// Reopen without create flags; state must survive the round trip.
	s2, err := Open(path, Options{})
	require.NoError(t, err)
	defer s2.Close()
	require.Equal(t, 4096, s2.PageSize())
	require.Equal(t, uint64(1), s2.PageCount())
	require.True(t, s2.Clean())
}

func TestOpen_MissingWithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.pgst")
	_, err := Open(path, Options{})
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestOpen_ErrorIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pgst")
	s, err := Open(path, Options{CreateIfMissing: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path, Options{CreateIfMissing: true, ErrorIfExists: true})
	require.Error(t, err)
}

func TestOpen_CustomPageShift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.pgst")
	s, err := Open(path, Options{CreateIfMissing: true, PageShift: 9})
	require.NoError(t, err)
	require.Equal(t, 512, s.PageSize())
	require.NoError(t, s.Close())

	// An existing store dictates its own page size.
	s2, err := Open(path, Options{})
	require.NoError(t, err)
	defer s2.Close()
	require.Equal(t, 512, s2.PageSize())
}

func TestOpen_RejectsBadShift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pgst")
	_, err := Open(path, Options{CreateIfMissing: true, PageShift: 5})
	require.Error(t, err)
}

func TestOpen_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pgst")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))

	_, err := Open(path, Options{})
	require.Error(t, err)
}

func TestOpen_RejectsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.pgst")
	require.NoError(t, os.WriteFile(path, []byte("pgst"), 0o644))

	_, err := Open(path, Options{})
	require.ErrorIs(t, err, ErrNotStore)
}

func TestOpen_RejectsChecksumFlip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flip.pgst")
	s, err := Open(path, Options{CreateIfMissing: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Flip a bit inside the checksummed region.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[0x18] ^= 0x01
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Open(path, Options{})
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestOpen_TruncatesSlack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slack.pgst")
	s, err := Open(path, Options{CreateIfMissing: true})
	require.NoError(t, err)

	// Grow the file without committing the header; the new page is slack.
	_, err = s.Extend()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(2*4096), st.Size())

	s2, err := Open(path, Options{})
	require.NoError(t, err)
	defer s2.Close()
	require.Equal(t, uint64(1), s2.PageCount())

	st, err = os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(4096), st.Size())
}

func TestStore_PageRoundTrip(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Extend()
	require.NoError(t, err)
	require.Equal(t, PageID(1), id)
	require.Equal(t, uint64(2), s.PageCount())

	out := make([]byte, s.PageSize())
	for i := range out {
		out[i] = byte(i)
	}
	require.NoError(t, s.WritePage(id, out))

	in := make([]byte, s.PageSize())
	require.NoError(t, s.ReadPage(id, in))
	require.Equal(t, out, in)
}

func TestStore_PageRangeChecks(t *testing.T) {
	s := newTestStore(t)
	buf := make([]byte, s.PageSize())

	require.ErrorIs(t, s.ReadPage(PageID(5), buf), ErrPageRange)
	require.ErrorIs(t, s.WritePage(PageID(5), buf), ErrPageRange)

	// The header page never goes through WritePage.
	require.ErrorIs(t, s.WritePage(NilPage, buf), ErrPageRange)

	// Reading the header page raw is allowed (verify does this).
	require.NoError(t, s.ReadPage(NilPage, buf))
}

func TestStore_RejectsWrongBufferSize(t *testing.T) {
	s := newTestStore(t)
	require.Error(t, s.ReadPage(NilPage, make([]byte, 100)))
}

func TestStore_HeaderProtocol(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seq.pgst")

	s, err := Open(path, Options{CreateIfMissing: true})
	require.NoError(t, err)

	// Begin: bump the primary sequence. The store is now marked dirty.
	hs := s.HeaderState()
	hs.PrimarySequence++
	require.NoError(t, s.WriteHeader(hs))
	require.False(t, s.Clean())

	// Commit: catch the secondary up and record a free list head.
	id, err := s.Extend()
	require.NoError(t, err)
	hs = s.HeaderState()
	hs.SecondarySequence = hs.PrimarySequence
	hs.FreeListHead = id
	require.NoError(t, s.WriteHeader(hs))
	require.True(t, s.Clean())
	require.NoError(t, s.Close())

	s2, err := Open(path, Options{})
	require.NoError(t, err)
	defer s2.Close()
	require.True(t, s2.Clean())
	require.Equal(t, uint32(2), s2.HeaderState().PrimarySequence)
	require.Equal(t, id, s2.FreeListHead())
	require.Equal(t, uint64(2), s2.PageCount())
}

func TestStore_Truncate(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Extend()
	require.NoError(t, err)
	_, err = s.Extend()
	require.NoError(t, err)
	require.Equal(t, uint64(3), s.PageCount())

	require.NoError(t, s.Truncate(2))
	require.Equal(t, uint64(2), s.PageCount())

	// Shrink-only: growing and dropping the header page are both refused.
	require.Error(t, s.Truncate(5))
	require.Error(t, s.Truncate(0))
}

func TestStore_ClosedOps(t *testing.T) {
	s := newTestStore(t)
	buf := make([]byte, s.PageSize())
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.ReadPage(NilPage, buf), ErrClosed)
	require.ErrorIs(t, s.WritePage(PageID(1), buf), ErrClosed)
	_, err := s.Extend()
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.WriteHeader(s.HeaderState()), ErrClosed)
	require.ErrorIs(t, s.Sync(SyncAuto), ErrClosed)

	// Double close is fine.
	require.NoError(t, s.Close())
}

func TestPageIDFromU64(t *testing.T) {
	id, err := PageIDFromU64(42)
	require.NoError(t, err)
	require.Equal(t, PageID(42), id)

	if maxPageID < 1<<40 {
		// Only on 32-bit platforms can a stored id overflow the native width.
		_, err := PageIDFromU64(1 << 40)
		require.ErrorIs(t, err, ErrTooLarge)
	}
}
