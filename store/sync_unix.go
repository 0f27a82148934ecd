//go:build linux || freebsd

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile pushes written data to stable storage.
//
// On Linux/FreeBSD, fdatasync() provides sufficient guarantees: it skips
// flushing metadata like timestamps that do not affect data integrity.
// The full parameter is ignored here.
func syncFile(f *os.File, _ bool) error {
	return unix.Fdatasync(int(f.Fd()))
}
