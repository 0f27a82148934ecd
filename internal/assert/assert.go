//go:build !pagekit_debug

// Package assert holds invariant checks that exist only in debug builds.
// Build with -tags pagekit_debug to enable them; release builds compile the
// checks down to nothing. The checks guard caller contracts (operating on a
// consumed list, unpinning an unpinned page), never data read from disk:
// disk data is untrusted and gets real error returns instead.
package assert

// Enabled reports whether assertions are compiled in. Tests that exercise
// assertion behavior skip themselves when it is false.
const Enabled = false

// That is a no-op in release builds.
func That(cond bool, msg string) {}
