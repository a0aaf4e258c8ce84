package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/tessera/internal/canvasstore"
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/storage"
)

// backend is the local document store: workspace files, the SQLite index
// over them and the service that mutates both.
type backend struct {
	store *storage.FS
	db    *index.DB
	svc   *canvasstore.Service
}

func openBackend(cfg *Config, logger *slog.Logger, opts ...canvasstore.Option) (*backend, error) {
	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	opts = append([]canvasstore.Option{
		canvasstore.WithMinCardSize(cfg.Editor.MinCardWidth, cfg.Editor.MinCardHeight),
	}, opts...)
	return &backend{
		store: store,
		db:    db,
		svc:   canvasstore.NewService(store, db, opts...),
	}, nil
}

func (b *backend) Close() error {
	return b.db.Close()
}
