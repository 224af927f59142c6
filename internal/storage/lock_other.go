//go:build !unix

package storage

import "os"

// Without flock only the in-process mutex serializes writers.
func flock(*os.File) error { return nil }

func funlock(*os.File) {}
