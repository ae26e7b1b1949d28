package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"derivate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The file-store root gets an original/ subfolder so media originals can be
// dropped in without further setup.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.BasePath = filepath.Join(base, "files")
	cfg.Paths.TempDir = filepath.Join(base, "tmp")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.HTTPBind = "127.0.0.1:0"

	for _, dir := range []string{
		filepath.Join(cfg.Paths.BasePath, "original"),
		cfg.Paths.TempDir,
		cfg.Paths.DataDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithEnabled replaces the enabled derivative types on the test config.
func WithEnabled(types ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Derivatives.Enabled = types
	}
}

// WithThresholdMB sets the synchronous build threshold on the test config.
func WithThresholdMB(mb int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Derivatives.ThresholdMB = mb
	}
}
