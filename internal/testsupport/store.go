package testsupport

import (
	"context"
	"testing"

	"imgbatch/internal/batch"
	"imgbatch/internal/config"
	"imgbatch/internal/history"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun records a running entry for tests using the provided store.
func BeginRun(t testing.TB, store *history.Store, cfg *config.Config) *history.Run {
	t.Helper()

	run, err := store.Begin(context.Background(), batch.SettingsFromConfig(cfg))
	if err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
	return run
}
