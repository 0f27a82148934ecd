// Package verify runs offline structural validation of a pagekit store
// file. Every check reads the file without modifying it, so verification
// is safe on stores that are merely unclean. Failures come back as *Error
// carrying the check's name and the file offset of the damage.
package verify

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/joshuapare/pagekit/internal/format"
)

// Error describes a single validation failure.
type Error struct {
	// Type names the check that failed: Header, FileSize, Sequences or
	// FreeList.
	Type string

	// Message is the human-readable failure description.
	Message string

	// Offset is the file offset of the failing structure, or -1 when the
	// failure has no single location.
	Offset int64

	// Details carries check-specific values for programmatic use.
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Store opens the file at path read-only and runs every check, returning
// the first failure.
func Store(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	hdr := make([]byte, format.HeaderSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return &Error{Type: "Header", Message: fmt.Sprintf("read header: %v", err), Offset: 0}
	}
	if err := Header(hdr); err != nil {
		return err
	}
	if err := FileSize(hdr, st.Size()); err != nil {
		return err
	}
	if err := Sequences(hdr); err != nil {
		return err
	}
	return FreeList(f, hdr)
}

// Header validates the header block: signature, checksum, version, page
// shift, page count and free-list head range.
func Header(hdr []byte) error {
	if len(hdr) < format.HeaderSize {
		return &Error{
			Type:    "Header",
			Message: fmt.Sprintf("file too small: %d bytes (need %d)", len(hdr), format.HeaderSize),
			Offset:  -1,
		}
	}
	h, err := format.ParseHeader(hdr)
	if err != nil {
		return &Error{Type: "Header", Message: err.Error(), Offset: int64(format.HeaderSignatureOffset)}
	}
	if !format.HeaderChecksumOK(hdr) {
		calculated := format.HeaderChecksum(hdr)
		stored := format.ReadU32(hdr, format.HeaderChecksumOffset)
		return &Error{
			Type:    "Header",
			Message: fmt.Sprintf("checksum mismatch: calculated=0x%08X, stored=0x%08X", calculated, stored),
			Offset:  int64(format.HeaderChecksumOffset),
			Details: map[string]any{"calculated": calculated, "stored": stored},
		}
	}
	if h.MajorVersion != format.FormatMajorVersion {
		return &Error{
			Type:    "Header",
			Message: fmt.Sprintf("unsupported format version %d.%d", h.MajorVersion, h.MinorVersion),
			Offset:  int64(format.HeaderMajorVersionOffset),
		}
	}
	if h.PageShift < format.PageShiftMin || h.PageShift > format.PageShiftMax {
		return &Error{
			Type:    "Header",
			Message: fmt.Sprintf("page shift %d out of range [%d, %d]", h.PageShift, format.PageShiftMin, format.PageShiftMax),
			Offset:  int64(format.HeaderPageShiftOffset),
		}
	}
	if h.PageCount == 0 || h.PageCount > uint64(math.MaxInt64)>>h.PageShift {
		return &Error{
			Type:    "Header",
			Message: fmt.Sprintf("impossible page count %d", h.PageCount),
			Offset:  int64(format.HeaderPageCountOffset),
		}
	}
	if h.FreeListHead >= h.PageCount {
		return &Error{
			Type:    "Header",
			Message: fmt.Sprintf("free list head %d out of range (store has %d pages)", h.FreeListHead, h.PageCount),
			Offset:  int64(format.HeaderFreeHeadOffset),
		}
	}
	return nil
}

// FileSize validates that the file length matches the header's page count.
func FileSize(hdr []byte, size int64) error {
	if len(hdr) < format.HeaderSize {
		return &Error{Type: "FileSize", Message: "file too small for header", Offset: -1}
	}
	h, err := format.ParseHeader(hdr)
	if err != nil {
		return &Error{Type: "FileSize", Message: err.Error(), Offset: 0}
	}
	if h.PageCount == 0 || h.PageCount > uint64(math.MaxInt64)>>h.PageShift {
		return &Error{
			Type:    "FileSize",
			Message: fmt.Sprintf("impossible page count %d", h.PageCount),
			Offset:  int64(format.HeaderPageCountOffset),
		}
	}
	want := int64(h.PageCount) << h.PageShift
	if size != want {
		return &Error{
			Type:    "FileSize",
			Message: fmt.Sprintf("file is %d bytes, header claims %d pages of %d bytes", size, h.PageCount, 1<<h.PageShift),
			Offset:  -1,
			Details: map[string]any{"actual": size, "expected": want},
		}
	}
	return nil
}

// Sequences checks that the header sequences agree, i.e. the last
// transaction committed fully.
func Sequences(hdr []byte) error {
	if len(hdr) < format.HeaderSize {
		return &Error{Type: "Sequences", Message: "file too small for header", Offset: -1}
	}
	seq1 := format.ReadU32(hdr, format.HeaderPrimarySeqOffset)
	seq2 := format.ReadU32(hdr, format.HeaderSecondarySeqOffset)
	if seq1 != seq2 {
		return &Error{
			Type:    "Sequences",
			Message: fmt.Sprintf("sequences disagree (interrupted transaction): primary=%d, secondary=%d", seq1, seq2),
			Offset:  int64(format.HeaderPrimarySeqOffset),
			Details: map[string]any{"primary": seq1, "secondary": seq2},
		}
	}
	return nil
}

// FreeList walks the free-list chain and validates every node: ids in
// range, entry offsets well formed, every non-head node full, entries in
// range, and no cycles.
func FreeList(r io.ReaderAt, hdr []byte) error {
	h, err := format.ParseHeader(hdr)
	if err != nil {
		return &Error{Type: "FreeList", Message: err.Error(), Offset: 0}
	}
	if h.PageShift < format.PageShiftMin || h.PageShift > format.PageShiftMax {
		return &Error{
			Type:    "FreeList",
			Message: fmt.Sprintf("page shift %d out of range", h.PageShift),
			Offset:  int64(format.HeaderPageShiftOffset),
		}
	}

	pageSize := 1 << h.PageShift
	buf := make([]byte, pageSize)
	visited := make(map[uint64]bool)

	// from tracks the offset of the pointer that named the current node,
	// so range and cycle failures point at the dangling reference.
	from := int64(format.HeaderFreeHeadOffset)
	for id := h.FreeListHead; id != 0; {
		if id >= h.PageCount {
			return &Error{
				Type:    "FreeList",
				Message: fmt.Sprintf("node %d out of range (store has %d pages)", id, h.PageCount),
				Offset:  from,
				Details: map[string]any{"node": id},
			}
		}
		if visited[id] {
			return &Error{
				Type:    "FreeList",
				Message: fmt.Sprintf("cycle: node %d referenced twice", id),
				Offset:  from,
				Details: map[string]any{"node": id},
			}
		}
		visited[id] = true

		base := int64(id) << h.PageShift
		if _, err := r.ReadAt(buf, base); err != nil {
			return &Error{
				Type:    "FreeList",
				Message: fmt.Sprintf("read node %d: %v", id, err),
				Offset:  base,
			}
		}

		off := format.NextEntryOffset(buf)
		if format.IsCorruptEntryOffset(off, pageSize) {
			return &Error{
				Type:    "FreeList",
				Message: fmt.Sprintf("node %d: entry offset %#x invalid for %d-byte pages", id, off, pageSize),
				Offset:  base + format.ListEntryOffsetOffset,
				Details: map[string]any{"node": id, "entry_offset": off},
			}
		}
		if id != h.FreeListHead && int(off) != pageSize {
			return &Error{
				Type:    "FreeList",
				Message: fmt.Sprintf("node %d: only the head may be partially filled (offset %#x)", id, off),
				Offset:  base + format.ListEntryOffsetOffset,
				Details: map[string]any{"node": id, "entry_offset": off},
			}
		}
		for pos := int64(format.FirstEntryOffset); pos < int64(off); pos += format.EntrySize {
			e := format.ReadU64(buf, int(pos))
			if e == 0 || e >= h.PageCount {
				return &Error{
					Type:    "FreeList",
					Message: fmt.Sprintf("node %d: entry %d out of range (store has %d pages)", id, e, h.PageCount),
					Offset:  base + pos,
					Details: map[string]any{"node": id, "entry": e},
				}
			}
		}

		from = base + format.ListNextPageOffset
		id = format.NextPageID64(buf)
	}
	return nil
}
