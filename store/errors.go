package store

import "errors"

var (
	// ErrCorrupt indicates on-disk data failed a structural validity check.
	ErrCorrupt = errors.New("store: data corrupted")

	// ErrTooLarge indicates a stored page id does not fit the platform's
	// native page id width.
	ErrTooLarge = errors.New("store: page id too large for this platform")

	// ErrPageRange indicates a page id beyond the end of the store.
	ErrPageRange = errors.New("store: page id out of range")

	// ErrNotStore indicates the file is too short to hold a store header.
	ErrNotStore = errors.New("store: not a pagekit store")

	// ErrClosed indicates an operation on a closed store.
	ErrClosed = errors.New("store: closed")
)
