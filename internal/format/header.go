// Package format houses the low-level byte layout of a pagekit store file.
// The goal is to keep the encoding focused, allocation-free where possible,
// and independent from the public API so higher-level packages can
// orchestrate the data in a more ergonomic form.
package format

import (
	"bytes"
	"fmt"
)

var (
	// StoreSignature is the four-byte signature at the start of every store file.
	// Layout (little-endian):
	//   0x00  'p' 'g' 's' 't'
	StoreSignature = []byte{'p', 'g', 's', 't'}
)

// ============================================================================
// Store Header Constants
// ============================================================================

const (
	HeaderSignatureOffset    = 0x00 // 4
	HeaderSignatureSize      = 4
	HeaderPrimarySeqOffset   = 0x04 // uint32, bumped when a transaction begins
	HeaderSecondarySeqOffset = 0x08 // uint32, set equal to primary at commit
	HeaderMajorVersionOffset = 0x0C // uint32
	HeaderMinorVersionOffset = 0x10 // uint32
	HeaderPageShiftOffset    = 0x14 // uint32, page size = 1 << shift
	HeaderPageCountOffset    = 0x18 // uint64, pages in the store incl. page 0
	HeaderFreeHeadOffset     = 0x20 // uint64, first free-list page, 0 = empty
	HeaderModTimeOffset      = 0x28 // uint64, unix nanoseconds of last write
	HeaderReservedOffset     = 0x30 // 12 bytes, zero
	HeaderChecksumOffset     = 0x3C // uint32, XOR of the preceding 60 bytes

	// HeaderSize is the size of the serialized header structure. The header
	// always lives on page 0, which is page-size bytes long; bytes past
	// HeaderSize are zero.
	HeaderSize = 0x40
)

// Header checksum covers the first 60 bytes (0x00..0x3B), i.e. 15 dwords.
const (
	HeaderChecksumRegionLen = 60
	HeaderChecksumDwords    = 15
)

// Checksum remappings. An all-ones or all-zeros XOR is replaced so those two
// values never appear on disk.
const (
	headerChecksumAllOnes             = 0xFFFFFFFF
	headerChecksumAllOnesReplacement  = 0xFFFFFFFE
	headerChecksumAllZeros            = 0x00000000
	headerChecksumAllZerosReplacement = 0x00000001
)

// Current format version.
const (
	FormatMajorVersion = 1
	FormatMinorVersion = 0
)

// Legal bounds for the page shift. A shift of 9 gives 512-byte pages, the
// smallest page that still holds a useful number of free-list entries; 20
// gives 1 MiB pages.
const (
	PageShiftMin = 9
	PageShiftMax = 20
)

// Header captures the store header fields. The diagram below is the on-disk
// layout; Windows-style little-endian throughout.
//
//	Offset  Size  Description
//	------  ----  ----------------------------------------------------------
//	 0x00    4    'p' 'g' 's' 't'
//	 0x04    4    Primary sequence number
//	 0x08    4    Secondary sequence number
//	 0x0C    4    Major version
//	 0x10    4    Minor version
//	 0x14    4    Page shift (page size = 1 << shift)
//	 0x18    8    Page count, including the header page
//	 0x20    8    Free page list head (0 = empty list)
//	 0x28    8    Modification time, unix nanoseconds
//	 0x30   12    Reserved, zero
//	 0x3C    4    XOR checksum of bytes 0x00..0x3B
type Header struct {
	PrimarySequence   uint32
	SecondarySequence uint32
	MajorVersion      uint32
	MinorVersion      uint32
	PageShift         uint32
	PageCount         uint64
	FreeListHead      uint64
	ModTime           uint64
}

// ParseHeader validates and extracts the store header fields. It checks only
// structure (length and signature); checksum and semantic validation belong
// to the caller, which has the surrounding context to report them well.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("store header: %w", ErrTruncated)
	}
	if !bytes.Equal(b[:HeaderSignatureSize], StoreSignature) {
		return Header{}, fmt.Errorf("store header: %w", ErrSignatureMismatch)
	}
	return Header{
		PrimarySequence:   ReadU32(b, HeaderPrimarySeqOffset),
		SecondarySequence: ReadU32(b, HeaderSecondarySeqOffset),
		MajorVersion:      ReadU32(b, HeaderMajorVersionOffset),
		MinorVersion:      ReadU32(b, HeaderMinorVersionOffset),
		PageShift:         ReadU32(b, HeaderPageShiftOffset),
		PageCount:         ReadU64(b, HeaderPageCountOffset),
		FreeListHead:      ReadU64(b, HeaderFreeHeadOffset),
		ModTime:           ReadU64(b, HeaderModTimeOffset),
	}, nil
}

// PutHeader serializes h into b, zeroing the reserved region and writing a
// fresh checksum. b must be at least HeaderSize bytes.
func PutHeader(b []byte, h Header) {
	copy(b[HeaderSignatureOffset:], StoreSignature)
	PutU32(b, HeaderPrimarySeqOffset, h.PrimarySequence)
	PutU32(b, HeaderSecondarySeqOffset, h.SecondarySequence)
	PutU32(b, HeaderMajorVersionOffset, h.MajorVersion)
	PutU32(b, HeaderMinorVersionOffset, h.MinorVersion)
	PutU32(b, HeaderPageShiftOffset, h.PageShift)
	PutU64(b, HeaderPageCountOffset, h.PageCount)
	PutU64(b, HeaderFreeHeadOffset, h.FreeListHead)
	PutU64(b, HeaderModTimeOffset, h.ModTime)
	for i := HeaderReservedOffset; i < HeaderChecksumOffset; i++ {
		b[i] = 0
	}
	PutU32(b, HeaderChecksumOffset, HeaderChecksum(b))
}

// HeaderChecksum computes the XOR checksum over 15 DWORDs (60 bytes). Then:
//
//	if xor==0xFFFFFFFF -> 0xFFFFFFFE
//	if xor==0x00000000 -> 0x00000001
func HeaderChecksum(b []byte) uint32 {
	var xor uint32
	for i := 0; i < HeaderChecksumDwords; i++ {
		xor ^= ReadU32(b, i*4)
	}
	switch xor {
	case headerChecksumAllOnes:
		return headerChecksumAllOnesReplacement
	case headerChecksumAllZeros:
		return headerChecksumAllZerosReplacement
	default:
		return xor
	}
}

// HeaderChecksumOK reports whether the stored checksum matches the header
// bytes it covers.
func HeaderChecksumOK(b []byte) bool {
	return HeaderChecksum(b) == ReadU32(b, HeaderChecksumOffset)
}
