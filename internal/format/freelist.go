package format

// ============================================================================
// Free List Page Constants
// ============================================================================
// A free-list page is a store page repurposed as a node in the chain of free
// page ids. Entries form a stack growing from FirstEntryOffset toward the end
// of the page; the next-entry offset is the byte offset one past the last
// valid entry (equal to FirstEntryOffset when the page holds no entries, and
// to the page size when the page is full).

const (
	// ListNextPageOffset is the offset of the next-page pointer (uint64).
	// Zero marks the end of the chain.
	ListNextPageOffset = 0x00

	// ListEntryOffsetOffset is the offset of the next-entry offset field.
	// Stored as a uint64 so the layout does not depend on the host's word
	// size; in-memory code handles it as an int after validation.
	ListEntryOffsetOffset = 0x08

	// FirstEntryOffset is where the entry stack begins.
	FirstEntryOffset = 0x10

	// EntrySize is the size of one entry: a page id as uint64.
	EntrySize = 8
)

// EntriesPerPage returns how many free page ids fit in one list page of the
// given size. For 4096-byte pages this is 510.
func EntriesPerPage(pageSize int) int {
	return (pageSize - FirstEntryOffset) / EntrySize
}

// NextPageID64 reads the chain pointer of a list page. The value is returned
// in its full stored width; callers that need a native page id must check it
// fits first.
func NextPageID64(b []byte) uint64 {
	return ReadU64(b, ListNextPageOffset)
}

// SetNextPageID64 writes the chain pointer of a list page.
func SetNextPageID64(b []byte, v uint64) {
	PutU64(b, ListNextPageOffset, v)
}

// NextEntryOffset reads the stored next-entry offset. The raw stored width is
// returned; run IsCorruptEntryOffset before narrowing it.
func NextEntryOffset(b []byte) uint64 {
	return ReadU64(b, ListEntryOffsetOffset)
}

// SetNextEntryOffset writes the next-entry offset.
func SetNextEntryOffset(b []byte, off int) {
	PutU64(b, ListEntryOffsetOffset, uint64(off))
}

// IsCorruptEntryOffset reports whether a stored next-entry offset is invalid
// for the given page size. A valid offset lies in
// [FirstEntryOffset, pageSize] and is entry-aligned. pageSize itself is valid
// and means the page is full.
func IsCorruptEntryOffset(off uint64, pageSize int) bool {
	if off < FirstEntryOffset || off > uint64(pageSize) {
		return true
	}
	return (off-FirstEntryOffset)%EntrySize != 0
}

// InitListPage formats b as an empty list page chaining to next. Only the two
// header fields are written; stale entry bytes past FirstEntryOffset are
// unreachable through a valid offset and need not be cleared.
func InitListPage(b []byte, next uint64) {
	SetNextPageID64(b, next)
	SetNextEntryOffset(b, FirstEntryOffset)
}
