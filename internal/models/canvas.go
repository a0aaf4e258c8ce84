// Package models defines the domain types for Tessera canvases.
package models

import (
	"fmt"
	"time"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/geometry"
)

// Size and view limits.
const (
	MinCardWidth      = 150.0
	MinCardHeight     = 100.0
	DefaultCardWidth  = 240.0
	DefaultCardHeight = 180.0
	DefaultGridSize   = 20.0
	MinZoom           = 0.25
	MaxZoom           = 3.0
	MinimapPadding    = 100.0
)

// CardType is the presentational discriminator of a card.
type CardType string

// Card types.
const (
	CardNote  CardType = "note"
	CardTask  CardType = "task"
	CardLink  CardType = "link"
	CardImage CardType = "image"
)

// CardTypes lists every built-in card type.
var CardTypes = []CardType{CardNote, CardTask, CardLink, CardImage}

// ConnectionType controls how a connection is drawn.
type ConnectionType string

// Connection types.
const (
	ConnectionSimple        ConnectionType = "simple"        // undirected, dashed
	ConnectionDirectional   ConnectionType = "directional"   // arrow at the "to" end
	ConnectionBidirectional ConnectionType = "bidirectional" // arrows at both ends
)

// ConnectionTypes lists every built-in connection type.
var ConnectionTypes = []ConnectionType{ConnectionSimple, ConnectionDirectional, ConnectionBidirectional}

// Palette is the fixed set of card colours. The empty string means default.
var Palette = []string{"gray", "red", "orange", "yellow", "green", "blue", "purple", "pink"}

// ValidColor reports whether c is empty or a palette entry.
func ValidColor(c string) bool {
	if c == "" {
		return true
	}
	for _, p := range Palette {
		if p == c {
			return true
		}
	}
	return false
}

// Card is a positioned, sized rectangle on a canvas. X and Y are canvas-space.
type Card struct {
	ID      string   `json:"id"`
	Type    CardType `json:"type"`
	Title   string   `json:"title"`
	Content string   `json:"content,omitempty"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Color   string   `json:"color,omitempty"`
}

// Rect returns the card's bounding box in canvas-space.
func (c Card) Rect() geometry.Rect {
	return geometry.Rect{X: c.X, Y: c.Y, W: c.Width, H: c.Height}
}

// ClampSize raises width and height to the given minimums.
func (c *Card) ClampSize(minW, minH float64) {
	if c.Width < minW {
		c.Width = minW
	}
	if c.Height < minH {
		c.Height = minH
	}
}

// Connection is an edge between two distinct cards of the same canvas.
type Connection struct {
	ID     string         `json:"id"`
	FromID string         `json:"fromId"`
	ToID   string         `json:"toId"`
	Type   ConnectionType `json:"type"`
	Label  string         `json:"label,omitempty"`
}

// Joins reports whether the connection links a and b, in either direction.
func (c Connection) Joins(a, b string) bool {
	return (c.FromID == a && c.ToID == b) || (c.FromID == b && c.ToID == a)
}

// Touches reports whether either endpoint is cardID.
func (c Connection) Touches(cardID string) bool {
	return c.FromID == cardID || c.ToID == cardID
}

// Viewport is the pan/zoom transform of a canvas.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DefaultViewport is the view of a freshly created canvas.
func DefaultViewport() Viewport {
	return Viewport{Zoom: 1}
}

// ClampZoom bounds z to [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	switch {
	case z < MinZoom:
		return MinZoom
	case z > MaxZoom:
		return MaxZoom
	}
	return z
}

// Normalize returns v with a usable zoom. A zero zoom means "unset".
func (v Viewport) Normalize() Viewport {
	if v.Zoom == 0 {
		v.Zoom = 1
	}
	v.Zoom = ClampZoom(v.Zoom)
	return v
}

// Canvas is the aggregate persisted as one document.
type Canvas struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Cards       []Card       `json:"cards"`
	Connections []Connection `json:"connections"`
	Viewport    Viewport     `json:"viewport"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// CardIndex returns the position of the card with id, or -1.
func (c *Canvas) CardIndex(id string) int {
	for i := range c.Cards {
		if c.Cards[i].ID == id {
			return i
		}
	}
	return -1
}

// Card returns a pointer into Cards, or nil.
func (c *Canvas) Card(id string) *Card {
	if i := c.CardIndex(id); i >= 0 {
		return &c.Cards[i]
	}
	return nil
}

// ConnectionIndex returns the position of the connection with id, or -1.
func (c *Canvas) ConnectionIndex(id string) int {
	for i := range c.Connections {
		if c.Connections[i].ID == id {
			return i
		}
	}
	return -1
}

// Connection returns a pointer into Connections, or nil.
func (c *Canvas) Connection(id string) *Connection {
	if i := c.ConnectionIndex(id); i >= 0 {
		return &c.Connections[i]
	}
	return nil
}

// CheckConnection validates a prospective connection between from and to.
func (c *Canvas) CheckConnection(from, to string) error {
	return CheckEdge(from, to, func(id string) bool { return c.CardIndex(id) >= 0 }, func(a, b string) bool {
		for _, conn := range c.Connections {
			if conn.Joins(a, b) {
				return true
			}
		}
		return false
	})
}

// CheckEdge applies the connection invariants given lookups for card
// existence and existing unordered pairs.
func CheckEdge(from, to string, cardExists func(string) bool, joined func(a, b string) bool) error {
	if from == to {
		return fmt.Errorf("self-connection on %s: %w", from, apperr.ErrInvariant)
	}
	if !cardExists(from) || !cardExists(to) {
		return fmt.Errorf("connection endpoint missing: %w", apperr.ErrInvariant)
	}
	if joined(from, to) {
		return fmt.Errorf("cards %s and %s already connected: %w", from, to, apperr.ErrInvariant)
	}
	return nil
}

// AddConnection appends conn after checking the connection invariants.
func (c *Canvas) AddConnection(conn Connection) error {
	if err := c.CheckConnection(conn.FromID, conn.ToID); err != nil {
		return err
	}
	c.Connections = append(c.Connections, conn)
	return nil
}

// RemoveCard deletes a card and every connection touching it. It returns the
// removed card and connections so callers can offer undo.
func (c *Canvas) RemoveCard(id string) (Card, []Connection, bool) {
	i := c.CardIndex(id)
	if i < 0 {
		return Card{}, nil, false
	}
	removed := c.Cards[i]
	c.Cards = append(c.Cards[:i], c.Cards[i+1:]...)

	var dropped []Connection
	kept := c.Connections[:0]
	for _, conn := range c.Connections {
		if conn.Touches(id) {
			dropped = append(dropped, conn)
			continue
		}
		kept = append(kept, conn)
	}
	c.Connections = kept
	return removed, dropped, true
}

// RemoveConnection deletes the connection with id.
func (c *Canvas) RemoveConnection(id string) (Connection, bool) {
	i := c.ConnectionIndex(id)
	if i < 0 {
		return Connection{}, false
	}
	removed := c.Connections[i]
	c.Connections = append(c.Connections[:i], c.Connections[i+1:]...)
	return removed, true
}

// Summary returns the listing representation of the canvas.
func (c *Canvas) Summary() CanvasSummary {
	return CanvasSummary{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		CardCount:       len(c.Cards),
		ConnectionCount: len(c.Connections),
		UpdatedAt:       c.UpdatedAt,
	}
}

// CanvasSummary is a lightweight representation returned by list operations.
type CanvasSummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	CardCount       int       `json:"cardCount"`
	ConnectionCount int       `json:"connectionCount"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// FileMetadata describes a stored document.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
