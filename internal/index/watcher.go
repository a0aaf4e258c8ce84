package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/tessera/internal/checksum"
	"github.com/starford/tessera/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted"; id is the canvas id.
type EventCallback func(kind string, id string)

// Watch starts an fsnotify watcher on the workspace root and processes
// document change events until ctx is cancelled. It calls cb (if non-nil)
// after each index mutation caused by an edit made outside the store; writes
// whose checksum is already indexed are skipped.
//
// Rename events trigger a reconciliation pass that removes stale index
// entries whose documents no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	emit := func(kind, id string) {
		if cb != nil {
			cb(kind, id)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, emit)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if hidden(info.Name()) {
						continue
					}
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					scheduleReconcile()
					continue
				}
			}

			name := filepath.Base(absPath)
			if hidden(name) || !strings.HasSuffix(name, storage.DocumentExt) {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			id := storage.DocumentID(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				prev, _ := db.GetChecksum(id)
				if prev == checksum.Sum(data) {
					continue
				}
				if idxErr := indexDocument(db, rel, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if prev == "" {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("canvas", id), slog.String("op", kind))
				emit(kind, id)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the OLD path only; a move into the
				// trash or elsewhere is handled like a removal and followed by
				// a reconciliation pass for any new location.
				if prev, _ := db.GetChecksum(id); prev == "" {
					continue
				}
				if delErr := db.DeleteCanvas(id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("canvas", id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("canvas", id))
				emit("deleted", id)
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries without a document on disk and indexes
// documents whose checksum differs from the index.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, emit EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List("", storage.DocumentExt)
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	paths := make(map[string]string, len(metas))
	for _, m := range metas {
		id := storage.DocumentID(m.Path)
		disk[id] = m.Checksum
		paths[id] = m.Path
	}

	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if delErr := db.DeleteCanvas(id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("canvas", id))
				emit("deleted", id)
			}
		}
	}

	for id, cs := range disk {
		prev, indexed := checksums[id]
		if prev == cs {
			continue
		}
		data, readErr := store.Read(paths[id])
		if readErr != nil {
			continue
		}
		if idxErr := indexDocument(db, paths[id], data); idxErr == nil {
			kind := "updated"
			if !indexed {
				kind = "created"
			}
			logger.Debug("reconcile: indexed", slog.String("canvas", id))
			emit(kind, id)
		}
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
