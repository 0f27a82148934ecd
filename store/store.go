package store

import (
	"fmt"
	"math"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/joshuapare/pagekit/internal/format"
)

// Store is an open paged file. Zero or one transaction may be mutating it at
// any time; see the package doc for the concurrency contract.
type Store struct {
	f        *os.File
	path     string
	pageSize int
	shift    uint
	hs       HeaderState
	lg       *zap.Logger
}

// Open opens the store at path, creating it first when opts say so. A newly
// created store has a single page: the header, with an empty free list.
func Open(path string, opts Options) (*Store, error) {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	flags := os.O_RDWR
	if opts.CreateIfMissing {
		flags |= os.O_CREATE
		if opts.ErrorIfExists {
			flags |= os.O_EXCL
		}
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.Size() == 0 {
		if !opts.CreateIfMissing {
			_ = f.Close()
			return nil, fmt.Errorf("%s: empty file: %w", path, ErrNotStore)
		}
		return create(f, path, opts, lg)
	}
	return open(f, path, st.Size(), lg)
}

// create initializes an empty file as a one-page store.
func create(f *os.File, path string, opts Options, lg *zap.Logger) (*Store, error) {
	shift := opts.PageShift
	if shift == 0 {
		shift = DefaultPageShift
	}
	if shift < format.PageShiftMin || shift > format.PageShiftMax {
		_ = f.Close()
		return nil, fmt.Errorf("store: page shift %d out of range [%d, %d]",
			shift, format.PageShiftMin, format.PageShiftMax)
	}

	s := &Store{
		f:        f,
		path:     path,
		pageSize: 1 << shift,
		shift:    shift,
		hs: HeaderState{
			PrimarySequence:   1,
			SecondarySequence: 1,
			PageCount:         1,
		},
		lg: lg,
	}

	page := make([]byte, s.pageSize)
	s.putHeader(page, s.hs)
	if _, err := f.WriteAt(page, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("store: write initial header: %w", err)
	}
	if err := syncFile(f, false); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("store: sync initial header: %w", err)
	}

	lg.Info("created store",
		zap.String("path", path),
		zap.Int("page_size", s.pageSize))
	return s, nil
}

// open validates an existing file's header and wraps it as a Store.
func open(f *os.File, path string, size int64, lg *zap.Logger) (*Store, error) {
	raw := make([]byte, format.HeaderSize)
	if _, err := f.ReadAt(raw, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNotStore)
	}
	hdr, err := format.ParseHeader(raw)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("store: %s: %w", path, err)
	}
	if !format.HeaderChecksumOK(raw) {
		_ = f.Close()
		return nil, fmt.Errorf("store: %s: header checksum mismatch: %w", path, ErrCorrupt)
	}
	if hdr.MajorVersion != format.FormatMajorVersion {
		_ = f.Close()
		return nil, fmt.Errorf("store: %s: unsupported format version %d.%d",
			path, hdr.MajorVersion, hdr.MinorVersion)
	}
	if hdr.PageShift < format.PageShiftMin || hdr.PageShift > format.PageShiftMax {
		_ = f.Close()
		return nil, fmt.Errorf("store: %s: page shift %d out of range: %w",
			path, hdr.PageShift, ErrCorrupt)
	}
	if hdr.PageCount == 0 || hdr.PageCount > uint64(math.MaxInt64)>>hdr.PageShift {
		_ = f.Close()
		return nil, fmt.Errorf("store: %s: impossible page count %d: %w",
			path, hdr.PageCount, ErrCorrupt)
	}
	freeHead, err := PageIDFromU64(hdr.FreeListHead)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("store: %s: free list head %d: %w",
			path, hdr.FreeListHead, err)
	}

	s := &Store{
		f:        f,
		path:     path,
		pageSize: 1 << hdr.PageShift,
		shift:    uint(hdr.PageShift),
		hs: HeaderState{
			PrimarySequence:   hdr.PrimarySequence,
			SecondarySequence: hdr.SecondarySequence,
			PageCount:         hdr.PageCount,
			FreeListHead:      freeHead,
		},
		lg: lg,
	}

	logicalEnd := int64(hdr.PageCount << hdr.PageShift)
	if size < logicalEnd {
		_ = f.Close()
		return nil, fmt.Errorf("store: %s: file is %d bytes but header claims %d pages: %w",
			path, size, hdr.PageCount, ErrCorrupt)
	}
	if size > logicalEnd {
		// An extension that never committed leaves slack pages past the
		// recorded count. They belong to no one; drop them before any
		// layer hands out page ids.
		lg.Warn("truncating trailing slack",
			zap.String("path", path),
			zap.Int64("file_size", size),
			zap.Int64("logical_end", logicalEnd))
		if err := f.Truncate(logicalEnd); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("store: truncate trailing slack: %w", err)
		}
	}

	if !s.Clean() {
		lg.Warn("store was not closed cleanly",
			zap.String("path", path),
			zap.Uint32("primary_seq", hdr.PrimarySequence),
			zap.Uint32("secondary_seq", hdr.SecondarySequence))
	}
	lg.Info("opened store",
		zap.String("path", path),
		zap.Int("page_size", s.pageSize),
		zap.Uint64("pages", hdr.PageCount))
	return s, nil
}

// Close releases the underlying file. Double close is a no-op.
func (s *Store) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.lg.Info("closed store", zap.String("path", s.path))
	return err
}

// Path returns the file path the store was opened from.
func (s *Store) Path() string { return s.path }

// PageSize returns the page size in bytes.
func (s *Store) PageSize() int { return s.pageSize }

// PageShift returns log2 of the page size.
func (s *Store) PageShift() uint { return s.shift }

// PageCount returns the number of pages in the store, header page included.
func (s *Store) PageCount() uint64 { return s.hs.PageCount }

// FreeListHead returns the free-list head recorded by the last header write.
func (s *Store) FreeListHead() PageID { return s.hs.FreeListHead }

// HeaderState returns a copy of the current header fields.
func (s *Store) HeaderState() HeaderState { return s.hs }

// Clean reports whether the last transaction committed fully, i.e. the
// primary and secondary sequence numbers agree.
func (s *Store) Clean() bool {
	return s.hs.PrimarySequence == s.hs.SecondarySequence
}

// ReadPage fills buf with the contents of page id. buf must be exactly one
// page long.
func (s *Store) ReadPage(id PageID, buf []byte) error {
	if s.f == nil {
		return ErrClosed
	}
	if len(buf) != s.pageSize {
		return fmt.Errorf("store: page buffer is %d bytes, want %d", len(buf), s.pageSize)
	}
	if uint64(id) >= s.hs.PageCount {
		return fmt.Errorf("store: read page %d of %d: %w", id, s.hs.PageCount, ErrPageRange)
	}
	if _, err := s.f.ReadAt(buf, s.pageOffset(id)); err != nil {
		return fmt.Errorf("store: read page %d: %w", id, err)
	}
	return nil
}

// WritePage writes buf as the contents of page id. The header page is off
// limits; it changes only through WriteHeader, which maintains the checksum.
func (s *Store) WritePage(id PageID, buf []byte) error {
	if s.f == nil {
		return ErrClosed
	}
	if len(buf) != s.pageSize {
		return fmt.Errorf("store: page buffer is %d bytes, want %d", len(buf), s.pageSize)
	}
	if id == NilPage {
		return fmt.Errorf("store: write page 0: header writes go through WriteHeader: %w", ErrPageRange)
	}
	if uint64(id) >= s.hs.PageCount {
		return fmt.Errorf("store: write page %d of %d: %w", id, s.hs.PageCount, ErrPageRange)
	}
	if _, err := s.f.WriteAt(buf, s.pageOffset(id)); err != nil {
		return fmt.Errorf("store: write page %d: %w", id, err)
	}
	return nil
}

// Extend grows the store by one zeroed page and returns its id. The new page
// count reaches the header only at the next WriteHeader; until then a crash
// leaves the page as slack that open will trim.
func (s *Store) Extend() (PageID, error) {
	if s.f == nil {
		return NilPage, ErrClosed
	}
	if s.hs.PageCount > maxPageID {
		return NilPage, ErrTooLarge
	}
	id := PageID(s.hs.PageCount)
	if err := s.f.Truncate(int64((s.hs.PageCount + 1) << s.shift)); err != nil {
		return NilPage, fmt.Errorf("store: extend to %d pages: %w", s.hs.PageCount+1, err)
	}
	s.hs.PageCount++
	s.lg.Debug("extended store", zap.Uint64("page", uint64(id)))
	return id, nil
}

// Truncate shrinks the store back to pageCount pages, discarding everything
// past them. Growth is Extend's job; asking to grow is an error.
func (s *Store) Truncate(pageCount uint64) error {
	if s.f == nil {
		return ErrClosed
	}
	if pageCount == 0 {
		return fmt.Errorf("store: truncate would drop the header page")
	}
	if pageCount > s.hs.PageCount {
		return fmt.Errorf("store: truncate cannot grow (current %d, requested %d)",
			s.hs.PageCount, pageCount)
	}
	if pageCount == s.hs.PageCount {
		return nil
	}
	if err := s.f.Truncate(int64(pageCount << s.shift)); err != nil {
		return fmt.Errorf("store: truncate to %d pages: %w", pageCount, err)
	}
	s.hs.PageCount = pageCount
	return nil
}

// WriteHeader serializes hs to page 0 with a fresh modification time and
// checksum, then adopts it as the current state. It does not sync; the
// caller owns flush ordering.
func (s *Store) WriteHeader(hs HeaderState) error {
	if s.f == nil {
		return ErrClosed
	}
	buf := make([]byte, format.HeaderSize)
	s.putHeader(buf, hs)
	if _, err := s.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("store: write header: %w", err)
	}
	s.hs = hs
	return nil
}

// Sync flushes written pages to stable storage according to mode.
func (s *Store) Sync(mode SyncMode) error {
	if s.f == nil {
		return ErrClosed
	}
	switch mode {
	case SyncNone:
		return nil
	case SyncFull:
		return syncFile(s.f, true)
	default:
		return syncFile(s.f, false)
	}
}

func (s *Store) pageOffset(id PageID) int64 {
	return int64(uint64(id) << s.shift)
}

func (s *Store) putHeader(b []byte, hs HeaderState) {
	format.PutHeader(b, format.Header{
		PrimarySequence:   hs.PrimarySequence,
		SecondarySequence: hs.SecondarySequence,
		MajorVersion:      format.FormatMajorVersion,
		MinorVersion:      format.FormatMinorVersion,
		PageShift:         uint32(s.shift),
		PageCount:         hs.PageCount,
		FreeListHead:      uint64(hs.FreeListHead),
		ModTime:           uint64(time.Now().UnixNano()),
	})
}
