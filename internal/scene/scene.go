// Package scene holds the editor's local copy of one canvas: cards and
// connections tagged pending or confirmed, the viewport, the selection and the
// grid settings. A Scene is owned by a single goroutine and is not safe for
// concurrent use.
package scene

import (
	"fmt"
	"strings"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/models"
)

// TempPrefix marks ids assigned locally before the store answers.
const TempPrefix = "tmp-"

// Status tells whether the store has acknowledged an entity.
type Status int

const (
	Confirmed Status = iota
	Pending
)

func (s Status) String() string {
	if s == Pending {
		return "pending"
	}
	return "confirmed"
}

// Card is a card with its persistence status.
type Card struct {
	models.Card
	Status Status
}

// Connection is a connection with its persistence status.
type Connection struct {
	models.Connection
	Status Status
}

// Settings are the editor-tunable constants.
type Settings struct {
	GridSize  float64
	GridSnap  bool
	MinWidth  float64
	MinHeight float64
}

// DefaultSettings mirrors the model defaults with snapping on.
func DefaultSettings() Settings {
	return Settings{
		GridSize:  models.DefaultGridSize,
		GridSnap:  true,
		MinWidth:  models.MinCardWidth,
		MinHeight: models.MinCardHeight,
	}
}

// Scene is the mutable local state of an open canvas.
type Scene struct {
	CanvasID    string
	Name        string
	Cards       []Card
	Connections []Connection
	Viewport    models.Viewport
	Settings

	selected []string
	tmpSeq   int
}

// New builds a scene from a fetched canvas. Every entity starts confirmed.
func New(c *models.Canvas, s Settings) *Scene {
	if s.GridSize <= 0 {
		s.GridSize = models.DefaultGridSize
	}
	sc := &Scene{
		CanvasID: c.ID,
		Name:     c.Name,
		Viewport: c.Viewport.Normalize(),
		Settings: s,
	}
	for _, card := range c.Cards {
		sc.Cards = append(sc.Cards, Card{Card: card})
	}
	for _, conn := range c.Connections {
		sc.Connections = append(sc.Connections, Connection{Connection: conn})
	}
	return sc
}

// NextTempID returns a fresh local id.
func (s *Scene) NextTempID() string {
	s.tmpSeq++
	return fmt.Sprintf("%s%d", TempPrefix, s.tmpSeq)
}

// IsTemp reports whether id was assigned locally.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// Snap applies grid snapping when it is enabled.
func (s *Scene) Snap(v float64) float64 {
	if !s.GridSnap {
		return v
	}
	return geometry.Snap(v, s.GridSize)
}

func (s *Scene) cardIndex(id string) int {
	for i := range s.Cards {
		if s.Cards[i].ID == id {
			return i
		}
	}
	return -1
}

// Card returns the card with id, or nil.
func (s *Scene) Card(id string) *Card {
	if i := s.cardIndex(id); i >= 0 {
		return &s.Cards[i]
	}
	return nil
}

// AddCard appends a card.
func (s *Scene) AddCard(c Card) {
	s.Cards = append(s.Cards, c)
}

// RemoveCard deletes a card together with every connection touching it, and
// drops it from the selection.
func (s *Scene) RemoveCard(id string) (Card, []Connection, bool) {
	i := s.cardIndex(id)
	if i < 0 {
		return Card{}, nil, false
	}
	removed := s.Cards[i]
	s.Cards = append(s.Cards[:i], s.Cards[i+1:]...)

	var dropped []Connection
	kept := s.Connections[:0]
	for _, conn := range s.Connections {
		if conn.Touches(id) {
			dropped = append(dropped, conn)
			continue
		}
		kept = append(kept, conn)
	}
	s.Connections = kept
	s.Deselect(id)
	return removed, dropped, true
}

func (s *Scene) connectionIndex(id string) int {
	for i := range s.Connections {
		if s.Connections[i].ID == id {
			return i
		}
	}
	return -1
}

// Connection returns the connection with id, or nil.
func (s *Scene) Connection(id string) *Connection {
	if i := s.connectionIndex(id); i >= 0 {
		return &s.Connections[i]
	}
	return nil
}

// CanConnect applies the connection invariants locally. Pending endpoints
// yield apperr.ErrNotYetPersisted.
func (s *Scene) CanConnect(from, to string) error {
	for _, id := range []string{from, to} {
		if c := s.Card(id); c != nil && c.Status == Pending {
			return fmt.Errorf("scene: card %s: %w", id, apperr.ErrNotYetPersisted)
		}
	}
	return models.CheckEdge(from, to,
		func(id string) bool { return s.cardIndex(id) >= 0 },
		func(a, b string) bool {
			for _, c := range s.Connections {
				if c.Joins(a, b) {
					return true
				}
			}
			return false
		})
}

// AddConnection appends conn if the invariants allow it.
func (s *Scene) AddConnection(conn Connection) error {
	if err := s.CanConnect(conn.FromID, conn.ToID); err != nil {
		return err
	}
	s.Connections = append(s.Connections, conn)
	return nil
}

// RemoveConnection deletes the connection with id.
func (s *Scene) RemoveConnection(id string) (Connection, bool) {
	i := s.connectionIndex(id)
	if i < 0 {
		return Connection{}, false
	}
	removed := s.Connections[i]
	s.Connections = append(s.Connections[:i], s.Connections[i+1:]...)
	return removed, true
}

// ConfirmCard gives a temporary card its store id, rewriting the selection
// and any connection endpoints that used the temporary id. Local fields win
// over the stored ones since the user may have edited the card while it was
// pending; dirty reports whether they differ.
func (s *Scene) ConfirmCard(tempID string, stored models.Card) (dirty, ok bool) {
	c := s.Card(tempID)
	if c == nil {
		return false, false
	}
	local := c.Card
	local.ID = stored.ID
	c.Card = local
	c.Status = Confirmed
	for i := range s.Connections {
		if s.Connections[i].FromID == tempID {
			s.Connections[i].FromID = stored.ID
		}
		if s.Connections[i].ToID == tempID {
			s.Connections[i].ToID = stored.ID
		}
	}
	for i, id := range s.selected {
		if id == tempID {
			s.selected[i] = stored.ID
		}
	}
	return local != stored, true
}

// ConfirmConnection gives a temporary connection its store id, keeping local
// type and label edits.
func (s *Scene) ConfirmConnection(tempID string, stored models.Connection) (dirty, ok bool) {
	c := s.Connection(tempID)
	if c == nil {
		return false, false
	}
	local := c.Connection
	local.ID = stored.ID
	c.Connection = local
	c.Status = Confirmed
	return local != stored, true
}

// CardAt returns the topmost card containing the canvas-space point p.
func (s *Scene) CardAt(p geometry.Point) *Card {
	for i := len(s.Cards) - 1; i >= 0; i-- {
		if s.Cards[i].Rect().Contains(p) {
			return &s.Cards[i]
		}
	}
	return nil
}

// Select replaces the selection with id.
func (s *Scene) Select(id string) {
	s.selected = []string{id}
}

// Toggle adds id to the selection or removes it.
func (s *Scene) Toggle(id string) {
	if s.IsSelected(id) {
		s.Deselect(id)
		return
	}
	s.selected = append(s.selected, id)
}

// Deselect removes id from the selection.
func (s *Scene) Deselect(id string) {
	for i, sel := range s.selected {
		if sel == id {
			s.selected = append(s.selected[:i], s.selected[i+1:]...)
			return
		}
	}
}

// SelectAll selects every confirmed card.
func (s *Scene) SelectAll() {
	s.selected = s.selected[:0]
	for _, c := range s.Cards {
		if c.Status == Confirmed {
			s.selected = append(s.selected, c.ID)
		}
	}
}

// ClearSelection empties the selection.
func (s *Scene) ClearSelection() {
	s.selected = nil
}

// IsSelected reports whether id is selected.
func (s *Scene) IsSelected(id string) bool {
	for _, sel := range s.selected {
		if sel == id {
			return true
		}
	}
	return false
}

// Selected returns the selection in selection order.
func (s *Scene) Selected() []string {
	out := make([]string, len(s.selected))
	copy(out, s.selected)
	return out
}

// Pan returns the viewport offset as a point.
func (s *Scene) Pan() geometry.Point {
	return geometry.Point{X: s.Viewport.X, Y: s.Viewport.Y}
}
