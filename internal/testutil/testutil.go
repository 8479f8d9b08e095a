// Package testutil provides shared test helpers for setting up stores and bundle directories.
package testutil

import (
	"os"
	"testing"

	"github.com/tesselcraft/tessera/internal/bundledir"
	"github.com/tesselcraft/tessera/internal/store"
)

// TestStore creates a temporary SQLite schema store that is automatically cleaned up.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "tessera-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBundleDir creates a temporary bundle directory with a bundledir.Provider.
func TestBundleDir(t *testing.T) (string, bundledir.Provider) {
	t.Helper()
	dir := t.TempDir()
	prov, err := bundledir.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, prov
}
