// Package testutil provides shared test helpers for setting up workspaces,
// databases and canvas services.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/tessera/internal/canvasstore"
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "tessera-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace creates a temporary workspace directory with a storage.Provider.
func TestWorkspace(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// TestService wires a canvas service over a fresh workspace and database.
func TestService(t *testing.T, opts ...canvasstore.Option) (*canvasstore.Service, storage.Provider) {
	t.Helper()
	_, store := TestWorkspace(t)
	return canvasstore.NewService(store, TestDB(t), opts...), store
}
