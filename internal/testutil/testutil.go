// Package testutil holds helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/ppiankov/thematic/internal/store"
)

// TestStore opens a fresh SQLite store in a temp directory and closes it when
// the test ends.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
