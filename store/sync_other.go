//go:build !linux && !freebsd && !darwin && !windows

package store

import "os"

// syncFile pushes written data to stable storage on platforms without a
// specialized sync path.
func syncFile(f *os.File, _ bool) error {
	return f.Sync()
}
