// Package security holds process-level startup guards.
package security

import (
	"errors"
	"fmt"
	"os"
)

// ErrRunningAsRoot is returned when the effective user ID is 0.
var ErrRunningAsRoot = errors.New("security: refusing to serve as root")

// ErrWorldReadable is returned when a file holding credentials is readable
// by group or others.
var ErrWorldReadable = errors.New("security: file is readable by other users")

// Hooks for tests. os.Geteuid returns -1 on platforms without user IDs.
var (
	geteuid = os.Geteuid
	statFn  = os.Stat
)

// RequireNonRoot fails when the process runs with an effective UID of 0.
func RequireNonRoot() error {
	if geteuid() == 0 {
		return ErrRunningAsRoot
	}
	return nil
}

// CheckPrivateFile reports whether path is private to its owner. A missing
// file passes.
func CheckPrivateFile(path string) error {
	info, err := statFn(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("security: stat %s: %w", path, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("%w: %s has mode %o", ErrWorldReadable, path, info.Mode().Perm())
	}
	return nil
}
