// Package test provides store fixtures backed by a throwaway SQLite file.
package test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lynnzhiyun/chatpet/internal/profile"
	"github.com/lynnzhiyun/chatpet/store"
	"github.com/lynnzhiyun/chatpet/store/db/sqlite"
)

// NewTestingStore returns a migrated Store over a fresh SQLite database in a
// per-test temp directory. The database is closed via t.Cleanup.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   dir,
		DSN:    filepath.Join(dir, "chatpet_test.db"),
	}

	driver, err := sqlite.NewDB(p)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}
