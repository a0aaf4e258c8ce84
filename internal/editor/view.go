package editor

import (
	"math"

	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/interaction"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/scene"
	"github.com/starford/tessera/internal/style"
)

// CardView is a card as a front-end should draw it.
type CardView struct {
	models.Card
	Pending  bool
	Selected bool
	Editing  bool
	Kind     style.CardKind
	Color    string // resolved palette name
}

// ConnectionView is a routed connection.
type ConnectionView struct {
	models.Connection
	Pending    bool
	Selected   bool
	Route      geometry.Route
	Dashed     bool
	Arrowheads [][3]geometry.Point
}

// Preview is the rubber-band line of a connection being drawn, in
// canvas-space.
type Preview struct {
	From geometry.Point
	To   geometry.Point
}

// Minimap is the overview: the padded bounds of all cards and the visible
// region, both in canvas-space.
type Minimap struct {
	Empty    bool
	Bounds   geometry.Rect
	Viewport geometry.Rect
}

// View is a point-in-time copy of the editor state.
type View struct {
	CanvasID           string
	Name               string
	Cards              []CardView
	Connections        []ConnectionView
	Viewport           models.Viewport
	Mode               interaction.Mode
	Selection          []string
	SelectedConnection string
	EditingCardID      string
	ConfirmDelete      *DeleteTarget
	Preview            *Preview
	Minimap            Minimap
	GridSnap           bool
	GridSize           float64
	Origin             geometry.Point
}

// Snapshot returns the current view.
func (e *Editor) Snapshot() View {
	var v View
	e.call(func() { v = e.view() })
	return v
}

func (e *Editor) view() View {
	v := View{
		CanvasID:           e.sc.CanvasID,
		Name:               e.sc.Name,
		Viewport:           e.sc.Viewport,
		Mode:               e.mc.Mode(),
		Selection:          e.sc.Selected(),
		SelectedConnection: e.selectedConn,
		EditingCardID:      e.editing,
		GridSnap:           e.sc.GridSnap,
		GridSize:           e.sc.GridSize,
		Origin:             e.origin,
	}
	if e.confirm != nil {
		t := *e.confirm
		v.ConfirmDelete = &t
	}

	rects := make([]geometry.Rect, 0, len(e.sc.Cards))
	for _, c := range e.sc.Cards {
		v.Cards = append(v.Cards, CardView{
			Card:     c.Card,
			Pending:  c.Status == scene.Pending,
			Selected: e.sc.IsSelected(c.ID),
			Editing:  e.editing == c.ID,
			Kind:     e.style.Card(c.Type),
			Color:    e.style.CardColor(c.Card),
		})
		rects = append(rects, c.Rect())
	}

	for _, c := range e.sc.Connections {
		from, to := e.sc.Card(c.FromID), e.sc.Card(c.ToID)
		if from == nil || to == nil {
			continue
		}
		kind := e.style.Connection(c.Type)
		route := geometry.RouteConnection(from.Rect(), to.Rect())
		v.Connections = append(v.Connections, ConnectionView{
			Connection: c.Connection,
			Pending:    c.Status == scene.Pending,
			Selected:   e.selectedConn == c.ID,
			Route:      route,
			Dashed:     kind.Dashed,
			Arrowheads: kind.Arrowheads(route),
		})
	}

	if from, live, hasLive, ok := e.mc.Connecting(); ok && from != "" && hasLive {
		if src := e.sc.Card(from); src != nil {
			r := src.Rect()
			c := r.Center()
			angle := math.Atan2(live.Y-c.Y, live.X-c.X)
			v.Preview = &Preview{From: geometry.EdgePoint(r, angle), To: live}
		}
	}

	zoom := e.sc.Viewport.Zoom
	v.Minimap.Viewport = geometry.Rect{
		X: -e.sc.Viewport.X / zoom,
		Y: -e.sc.Viewport.Y / zoom,
		W: e.surfaceW / zoom,
		H: e.surfaceH / zoom,
	}
	if b, ok := geometry.Bounds(rects, models.MinimapPadding); ok {
		v.Minimap.Bounds = b
	} else {
		v.Minimap.Empty = true
	}
	return v
}
