//go:build !unix

package storage

import "os"

// Without flock only the in-process mutex serializes access.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
