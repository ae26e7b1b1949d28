package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of filler
// bytes, creating parent directories as needed. A size <= 0 writes a
// single byte so readability probes still pass.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	pattern := bytes.Repeat([]byte("0123456789abcdef"), 256)
	for written := int64(0); written < size; {
		chunk := int64(len(pattern))
		if remaining := size - written; remaining < chunk {
			chunk = remaining
		}
		n, err := f.Write(pattern[:chunk])
		if err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		written += int64(n)
	}
}
