package daemon

import (
	"context"
	"testing"

	"derivate/internal/logging"
	"derivate/internal/testsupport"
)

func newDaemon(t *testing.T, dataDir string) *Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}
	st := testsupport.MustOpenStore(t, cfg)

	d, err := New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestStartStop(t *testing.T) {
	d := newDaemon(t, t.TempDir())
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second start must fail while running")
	}
	d.Stop()

	// A stopped daemon can start again.
	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}
	d.Stop()
}

func TestLockPreventsSecondInstance(t *testing.T) {
	dataDir := t.TempDir()
	first := newDaemon(t, dataDir)
	second := newDaemon(t, dataDir)
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer first.Stop()

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second instance must not acquire the lock")
	}
}
