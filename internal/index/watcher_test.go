package index

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/storage"
)

// watcherTestEnv sets up a workspace dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db, err := Open(filepath.Join(t.TempDir(), "watcher.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return root, store, db
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func writeCanvasFile(t *testing.T, dir, id, name string) {
	t.Helper()
	data, err := json.Marshal(models.Canvas{
		ID:       id,
		Name:     name,
		Cards:    []models.Card{{ID: "k1", Type: models.CardNote, Title: "first", Width: 240, Height: 180}},
		Viewport: models.DefaultViewport(),
	})
	if err != nil {
		t.Fatal(err)
	}
	// Write to a hidden temp file then rename, like the store does, so the
	// watcher never sees a half-written document.
	tmp := filepath.Join(dir, ".tmp-"+id)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, id+storage.DocumentExt)); err != nil {
		t.Fatal(err)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatcher_NewDocumentIndexed(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, root, quietLogger(), func(kind, id string) {
		mu.Lock()
		events = append(events, kind+":"+id)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	writeCanvasFile(t, root, "fresh", "Fresh board")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("fresh")
		return cs != ""
	}, "new document not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:fresh" {
				return true
			}
		}
		return false
	}, "expected created:fresh callback")
}

func TestWatcher_IgnoresNonDocuments(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, db, store, root, quietLogger(), func(kind, id string) {
		mu.Lock()
		events = append(events, kind+":"+id)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "readme.md"), []byte("# hi"), 0o644)
	_ = os.WriteFile(filepath.Join(root, ".hidden.json"), []byte("{}"), 0o644)
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 0 {
		t.Errorf("events = %v, want none", events)
	}
}

func TestWatcher_SkipsAlreadyIndexedContent(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	writeCanvasFile(t, root, "same", "Same")
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, db, store, root, quietLogger(), func(kind, id string) {
		mu.Lock()
		events = append(events, kind+":"+id)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	// Rewriting identical bytes must not produce an event.
	writeCanvasFile(t, root, "same", "Same")
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 0 {
		t.Errorf("events = %v, want none", events)
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, quietLogger(), nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(root, "archive")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	writeCanvasFile(t, subDir, "deep", "Deep")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("deep")
		return cs != ""
	}, "document in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	writeCanvasFile(t, root, "gone", "Delete me")
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	cs, _ := db.GetChecksum("gone")
	if cs == "" {
		t.Fatal("precondition: document should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(root, "gone.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("gone")
		return cs == ""
	}, "deleted document still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	writeCanvasFile(t, root, "old", "Rename")
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(root, "old.json"), filepath.Join(root, "renamed.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old")
		newCS, _ := db.GetChecksum("renamed")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old id should be removed and new id indexed")
}
