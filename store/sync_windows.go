//go:build windows

package store

import (
	"os"

	"golang.org/x/sys/windows"
)

// syncFile pushes written data to stable storage.
//
// On Windows, FlushFileBuffers ensures all file data and metadata is written
// to disk. The full parameter is ignored.
func syncFile(f *os.File, _ bool) error {
	return windows.FlushFileBuffers(windows.Handle(f.Fd()))
}
