package store

import "go.uber.org/zap"

// PageID identifies a page within a store. It is an unsigned integer wide
// enough to address every page the current platform can map; on disk a page
// id always occupies 8 bytes little-endian regardless of the native width.
type PageID uint

// NilPage is the "no page" sentinel. Page 0 is the store header, which can
// never be allocated, freed, or linked into a chain, so the zero value is
// safe to use as the absent marker everywhere.
const NilPage PageID = 0

// maxPageID is the largest page id representable on this platform.
const maxPageID = uint64(^uint(0))

// PageIDFromU64 narrows a stored 8-byte page id to the native width.
// Values that do not fit report ErrTooLarge: the store was written on a
// platform with a wider address space than this one.
func PageIDFromU64(v uint64) (PageID, error) {
	if v > maxPageID {
		return NilPage, ErrTooLarge
	}
	return PageID(v), nil
}

// SyncMode controls durability guarantees when the store syncs the file.
type SyncMode int

const (
	// SyncAuto provides safe defaults for most use cases:
	// fdatasync() (Linux/FreeBSD), fsync() (macOS), or
	// FlushFileBuffers (Windows) after the header write.
	SyncAuto SyncMode = iota

	// SyncNone skips the sync syscall entirely. The caller is responsible
	// for syncing later. Use this when batching multiple transactions.
	SyncNone

	// SyncFull provides ultra-safe durability. On macOS it uses
	// F_FULLFSYNC to push data past the drive cache; elsewhere it is
	// equivalent to SyncAuto.
	SyncFull
)

// DefaultPageShift yields 4096-byte pages, the size virtually every
// filesystem and OS page cache is tuned for.
const DefaultPageShift = 12

// Options configures opening or creating a store.
type Options struct {
	// CreateIfMissing creates the store file when it does not exist.
	CreateIfMissing bool

	// ErrorIfExists fails Open when the file already exists. Only
	// meaningful together with CreateIfMissing.
	ErrorIfExists bool

	// PageShift sets the page size (1 << PageShift) for newly created
	// stores. Zero means DefaultPageShift. Ignored when opening an
	// existing store, which dictates its own page size.
	PageShift uint

	// Logger receives lifecycle and I/O diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// HeaderState is the mutable portion of the store header. The tx package
// reads the current state, adjusts it, and hands it back to WriteHeader;
// the store itself never changes these fields behind the caller's back.
type HeaderState struct {
	PrimarySequence   uint32
	SecondarySequence uint32
	PageCount         uint64
	FreeListHead      PageID
}
