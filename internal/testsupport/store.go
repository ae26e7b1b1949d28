package testsupport

import (
	"context"
	"testing"

	"derivate/internal/config"
	"derivate/internal/store"
)

// MustOpenStore opens a store against the config's data directory and
// registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg.Paths.DataDir)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// NewItem creates an item for tests using the provided store.
func NewItem(t testing.TB, st *store.Store, title string) *store.Item {
	t.Helper()

	item, err := st.CreateItem(context.Background(), title)
	if err != nil {
		t.Fatalf("store.CreateItem: %v", err)
	}
	return item
}
