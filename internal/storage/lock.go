//go:build unix

package storage

import (
	"os"
	"syscall"
)

// flock takes an exclusive advisory lock on f, blocking until granted.
func flock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX)
}

func funlock(f *os.File) {
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
