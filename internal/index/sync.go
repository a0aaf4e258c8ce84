package index

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/starford/tessera/internal/checksum"
	"github.com/starford/tessera/internal/markup"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/storage"
)

// Sync walks the workspace and brings the index up to date:
//   - new/changed canvas documents are decoded and upserted
//   - documents removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("", storage.DocumentExt)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		id := storage.DocumentID(m.Path)
		disk[id] = struct{}{}

		if checksums[id] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexDocument(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteCanvas(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("canvas", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("canvas", id))
			}
		}
	}

	return nil
}

// IndexCanvas upserts c under the given document checksum.
func IndexCanvas(db *DB, c *models.Canvas, cs string) error {
	cards := make([]CardRow, 0, len(c.Cards))
	for _, card := range c.Cards {
		parsed := markup.Parse(card.Content)
		cards = append(cards, CardRow{
			ID:    card.ID,
			Type:  string(card.Type),
			Title: card.Title,
			Body:  markup.PlainText(card.Content),
			Tags:  parsed.Tags,
		})
	}
	conns := make([]ConnectionRow, 0, len(c.Connections))
	for _, conn := range c.Connections {
		conns = append(conns, ConnectionRow{
			ID:     conn.ID,
			FromID: conn.FromID,
			ToID:   conn.ToID,
			Type:   string(conn.Type),
		})
	}
	return db.UpsertCanvas(CanvasRow{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		Checksum:        cs,
		CardCount:       len(c.Cards),
		ConnectionCount: len(c.Connections),
		UpdatedAt:       c.UpdatedAt,
	}, cards, conns)
}

// indexDocument decodes a stored canvas and upserts it. The id is taken from
// the file name.
func indexDocument(db *DB, path string, data []byte) error {
	var c models.Canvas
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("index: decode %s: %w", path, err)
	}
	c.ID = storage.DocumentID(path)
	return IndexCanvas(db, &c, checksum.Sum(data))
}
