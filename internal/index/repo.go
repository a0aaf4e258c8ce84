package index

import (
	"encoding/json"
	"fmt"
	"time"
)

// CanvasRow represents a row in the canvases table.
type CanvasRow struct {
	ID              string
	Name            string
	Description     string
	Checksum        string
	CardCount       int
	ConnectionCount int
	UpdatedAt       time.Time
}

// CardRow is the searchable projection of a card.
type CardRow struct {
	ID    string
	Type  string
	Title string
	Body  string
	Tags  []string
}

// ConnectionRow is the adjacency projection of a connection.
type ConnectionRow struct {
	ID     string
	FromID string
	ToID   string
	Type   string
}

// SearchResult represents one card hit.
type SearchResult struct {
	CanvasID   string `json:"canvasId"`
	CanvasName string `json:"canvasName"`
	CardID     string `json:"cardId"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
}

// UpsertCanvas replaces a canvas row together with its cards, FTS entries and
// connections within a transaction.
func (db *DB) UpsertCanvas(c CanvasRow, cards []CardRow, conns []ConnectionRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO canvases (id, name, description, checksum, card_count, connection_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name             = excluded.name,
			description      = excluded.description,
			checksum         = excluded.checksum,
			card_count       = excluded.card_count,
			connection_count = excluded.connection_count,
			updated_at       = excluded.updated_at
	`, c.ID, c.Name, c.Description, c.Checksum, c.CardCount, c.ConnectionCount, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert canvas: %w", err)
	}

	ftsDeleteCanvas(tx, c.ID)
	if _, err := tx.Exec(`DELETE FROM cards WHERE canvas_id = ?`, c.ID); err != nil {
		return fmt.Errorf("index: clear cards: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM connections WHERE canvas_id = ?`, c.ID); err != nil {
		return fmt.Errorf("index: clear connections: %w", err)
	}

	if len(cards) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO cards (canvas_id, card_id, type, title, body, tags) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare card insert: %w", err)
		}
		defer stmt.Close()
		for _, card := range cards {
			tagsJSON, _ := json.Marshal(nonNil(card.Tags))
			if _, err := stmt.Exec(c.ID, card.ID, card.Type, card.Title, card.Body, string(tagsJSON)); err != nil {
				return fmt.Errorf("index: insert card: %w", err)
			}
			if err := ftsUpsert(tx, c.ID, card); err != nil {
				return err
			}
		}
	}

	if len(conns) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO connections (canvas_id, conn_id, from_id, to_id, type) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare connection insert: %w", err)
		}
		defer stmt.Close()
		for _, conn := range conns {
			if _, err := stmt.Exec(c.ID, conn.ID, conn.FromID, conn.ToID, conn.Type); err != nil {
				return fmt.Errorf("index: insert connection: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteCanvas removes a canvas with its cards, connections and FTS entries.
func (db *DB) DeleteCanvas(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDeleteCanvas(tx, id)
	_, _ = tx.Exec(`DELETE FROM connections WHERE canvas_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM cards WHERE canvas_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM canvases WHERE id = ?`, id)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a canvas, or empty string if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM canvases WHERE id = ?`, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns the stored checksum of every indexed canvas.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM canvases`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// ListCanvases returns a page of canvases and the total count. sort is one of
// "updated_at" (default, newest first) or "name".
func (db *DB) ListCanvases(limit, offset int, sort string) ([]CanvasRow, int, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	order := "updated_at DESC"
	if sort == "name" {
		order = "name COLLATE NOCASE ASC"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM canvases`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count canvases: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, name, description, checksum, card_count, connection_count, updated_at
		FROM canvases
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list canvases: %w", err)
	}
	defer rows.Close()

	var out []CanvasRow
	for rows.Next() {
		var r CanvasRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Checksum, &r.CardCount, &r.ConnectionCount, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Neighbors returns the ids of cards connected to cardID, in either direction.
func (db *DB) Neighbors(canvasID, cardID string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT to_id FROM connections WHERE canvas_id = ? AND from_id = ?
		UNION
		SELECT from_id FROM connections WHERE canvas_id = ? AND to_id = ?
	`, canvasID, cardID, canvasID, cardID)
	if err != nil {
		return nil, fmt.Errorf("index: neighbors: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
