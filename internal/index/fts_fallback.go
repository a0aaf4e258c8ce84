//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on the cards table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ string, _ CardRow) error {
	// Card text is already stored in the cards table; nothing extra to do.
	return nil
}

func ftsDeleteCanvas(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT k.canvas_id, c.name, k.card_id, k.title, substr(k.body, 1, 200)
		FROM cards k
		JOIN canvases c ON c.id = k.canvas_id
		WHERE k.title LIKE ? OR k.body LIKE ? OR k.tags LIKE ?
		ORDER BY c.updated_at DESC
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.CanvasID, &r.CanvasName, &r.CardID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
