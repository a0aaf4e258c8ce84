// Package style maps card and connection kinds to their presentation.
// Front-ends look kinds up here instead of switching on the type tag, so new
// kinds can be registered without touching the renderers.
package style

import (
	"math"
	"sync"

	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/models"
)

// Arrowhead dimensions in canvas units.
const (
	ArrowLength    = 12.0
	ArrowHalfAngle = math.Pi / 7
)

// CardKind describes how a card type is drawn.
type CardKind struct {
	Type   models.CardType
	Label  string
	Glyph  string // single-cell marker for terminal front-ends
	Accent string // header colour used when the card has no colour
}

// ConnectionKind describes how a connection type is drawn.
type ConnectionKind struct {
	Type      models.ConnectionType
	Dashed    bool
	ArrowTo   bool
	ArrowFrom bool
}

// Arrowheads returns the filled triangles for a routed connection of this kind.
func (k ConnectionKind) Arrowheads(r geometry.Route) [][3]geometry.Point {
	var out [][3]geometry.Point
	if k.ArrowTo {
		out = append(out, geometry.ArrowheadPoints(r.X2, r.Y2, r.Angle, ArrowLength, ArrowHalfAngle))
	}
	if k.ArrowFrom {
		out = append(out, geometry.ArrowheadPoints(r.X1, r.Y1, r.Angle+math.Pi, ArrowLength, ArrowHalfAngle))
	}
	return out
}

// Registry holds the known card and connection kinds.
type Registry struct {
	mu    sync.RWMutex
	cards map[models.CardType]CardKind
	conns map[models.ConnectionType]ConnectionKind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cards: make(map[models.CardType]CardKind),
		conns: make(map[models.ConnectionType]ConnectionKind),
	}
}

// Default returns a registry with the built-in kinds.
func Default() *Registry {
	r := NewRegistry()
	r.RegisterCard(CardKind{Type: models.CardNote, Label: "Note", Glyph: "≡", Accent: "gray"})
	r.RegisterCard(CardKind{Type: models.CardTask, Label: "Task", Glyph: "☐", Accent: "green"})
	r.RegisterCard(CardKind{Type: models.CardLink, Label: "Link", Glyph: "↗", Accent: "blue"})
	r.RegisterCard(CardKind{Type: models.CardImage, Label: "Image", Glyph: "▣", Accent: "purple"})
	r.RegisterConnection(ConnectionKind{Type: models.ConnectionSimple, Dashed: true})
	r.RegisterConnection(ConnectionKind{Type: models.ConnectionDirectional, ArrowTo: true})
	r.RegisterConnection(ConnectionKind{Type: models.ConnectionBidirectional, ArrowTo: true, ArrowFrom: true})
	return r
}

// RegisterCard adds or replaces a card kind.
func (r *Registry) RegisterCard(k CardKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[k.Type] = k
}

// RegisterConnection adds or replaces a connection kind.
func (r *Registry) RegisterConnection(k ConnectionKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[k.Type] = k
}

// Card returns the kind for t, falling back to the note kind.
func (r *Registry) Card(t models.CardType) CardKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k, ok := r.cards[t]; ok {
		return k
	}
	if k, ok := r.cards[models.CardNote]; ok {
		return k
	}
	return CardKind{Type: t, Label: string(t), Glyph: "·", Accent: "gray"}
}

// Connection returns the kind for t, falling back to the simple kind.
func (r *Registry) Connection(t models.ConnectionType) ConnectionKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k, ok := r.conns[t]; ok {
		return k
	}
	if k, ok := r.conns[models.ConnectionSimple]; ok {
		return k
	}
	return ConnectionKind{Type: t, Dashed: true}
}
