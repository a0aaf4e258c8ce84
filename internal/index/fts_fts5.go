//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS cards_fts USING fts5(
			canvas_id UNINDEXED,
			card_id UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, canvasID string, card CardRow) error {
	_, err := tx.Exec(`INSERT INTO cards_fts (canvas_id, card_id, title, body, tags) VALUES (?, ?, ?, ?, ?)`,
		canvasID, card.ID, card.Title, card.Body, strings.Join(card.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDeleteCanvas(tx *sql.Tx, canvasID string) {
	_, _ = tx.Exec(`DELETE FROM cards_fts WHERE canvas_id = ?`, canvasID)
}

// Search performs an FTS5 full-text search over card text and returns hits with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.canvas_id,
		       c.name,
		       f.card_id,
		       f.title,
		       snippet(cards_fts, 3, '<b>', '</b>', '...', 64)
		FROM cards_fts f
		JOIN canvases c ON c.id = f.canvas_id
		WHERE cards_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
