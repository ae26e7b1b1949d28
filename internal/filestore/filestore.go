// Package filestore implements the local file store holding originals and
// derivative files under a single base path.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"derivate/internal/fileutil"
)

// ErrEscapesBase rejects storage names that resolve outside the base path.
var ErrEscapesBase = errors.New("storage name escapes base path")

// Local is a file store rooted at a single writable directory.
type Local struct {
	base string
}

// NewLocal validates the base path and returns a store rooted there.
// The directory must exist and be readable and writable; derivative
// creation is pointless without both.
func NewLocal(base string) (*Local, error) {
	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("stat base path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base path %s is not a directory", base)
	}
	if err := unix.Access(base, unix.R_OK|unix.W_OK); err != nil {
		return nil, fmt.Errorf("base path %s is not read-writable: %w", base, err)
	}
	return &Local{base: base}, nil
}

// Base returns the store's base path.
func (s *Local) Base() string {
	return s.base
}

// LocalPath resolves a storage name to an absolute path under the base.
// A name is accepted only when naive concatenation below the base is
// already canonical; traversal and absolute names both fail that check.
func (s *Local) LocalPath(storageName string) (string, error) {
	naive := s.base + "/" + storageName
	if storageName == "" || filepath.Clean(naive) != naive {
		return "", fmt.Errorf("%w: %q", ErrEscapesBase, storageName)
	}
	return naive, nil
}

// Put copies the file at src into the store under storageName, creating
// parent directories as needed. The source file is left in place; callers
// owning temp files remove them afterwards.
func (s *Local) Put(src, storageName string) error {
	dst, err := s.LocalPath(storageName)
	if err != nil {
		return err
	}
	if err := fileutil.EnsureDir(filepath.Dir(dst)); err != nil {
		return fmt.Errorf("ensure store directory: %w", err)
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("store %s: %w", storageName, err)
	}
	return nil
}

// Delete removes the stored file for storageName. A missing file is not an
// error; metadata and filesystem may already have drifted apart.
func (s *Local) Delete(storageName string) error {
	path, err := s.LocalPath(storageName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", storageName, err)
	}
	return nil
}
