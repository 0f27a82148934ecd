//go:build darwin

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile pushes written data to stable storage.
//
// On macOS, if full is true, use F_FULLFSYNC for maximum durability.
// F_FULLFSYNC ensures data is written to the physical disk, not just the
// drive cache. Otherwise, use regular fsync (macOS has no fdatasync).
func syncFile(f *os.File, full bool) error {
	if full {
		_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
		return err
	}
	return unix.Fsync(int(f.Fd()))
}
