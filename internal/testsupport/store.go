package testsupport

import (
	"context"
	"testing"

	"modelkeep/internal/catalog"
	"modelkeep/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Observe records one observation for tests using the provided store.
func Observe(t testing.TB, store *catalog.Store, params catalog.ObserveParams) int64 {
	t.Helper()

	id, err := store.Observe(context.Background(), params)
	if err != nil {
		t.Fatalf("store.Observe: %v", err)
	}
	return id
}
