//go:build !windows

package litescan

import (
	"os"

	"golang.org/x/sys/unix"
)

// flockShared takes a non-blocking advisory shared (read) lock on f, held
// until f is closed, belt-and-suspenders alongside the OS
// guarantees a read-only opener already relies on.
func flockShared(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB)
}
