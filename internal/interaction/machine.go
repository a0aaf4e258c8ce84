// Package interaction turns pointer, wheel and key input into scene mutations.
//
// The Machine tracks exactly one interaction mode at a time. It mutates the
// scene it is given and reports the persistence work the caller should do as
// Effects; it never performs I/O. Inputs that make no sense in the current
// mode are ignored.
package interaction

import (
	"math"

	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/scene"
)

// Mode is the active interaction.
type Mode int

// Interaction modes.
const (
	ModeIdle Mode = iota
	ModeDragging
	ModeResizing
	ModePanning
	ModeConnecting
)

func (m Mode) String() string {
	switch m {
	case ModeDragging:
		return "dragging"
	case ModeResizing:
		return "resizing"
	case ModePanning:
		return "panning"
	case ModeConnecting:
		return "connecting"
	}
	return "idle"
}

// Wheel zoom factors per tick.
const (
	ZoomInFactor  = 1.1
	ZoomOutFactor = 0.9
)

// Direction is a resize handle.
type Direction string

// Resize handle directions, by compass point.
const (
	N  Direction = "n"
	S  Direction = "s"
	E  Direction = "e"
	W  Direction = "w"
	NE Direction = "ne"
	NW Direction = "nw"
	SE Direction = "se"
	SW Direction = "sw"
)

func (d Direction) has(c byte) bool {
	for i := 0; i < len(d); i++ {
		if d[i] == c {
			return true
		}
	}
	return false
}

// TargetKind is what the pointer landed on.
type TargetKind int

// Pointer target kinds.
const (
	TargetEmpty TargetKind = iota
	TargetCard
	TargetResizeHandle
)

// Target identifies the hit element of a pointer event.
type Target struct {
	Kind      TargetKind
	CardID    string
	Direction Direction
}

// PointerEvent is a pointer position in screen pixels.
type PointerEvent struct {
	X, Y   float64
	Target Target
	Shift  bool
}

func (e PointerEvent) point() geometry.Point {
	return geometry.Point{X: e.X, Y: e.Y}
}

// Effect is work the caller must carry out after an input.
type Effect interface {
	effect()
}

// PersistCards asks for the geometry of the listed cards to be saved.
type PersistCards struct {
	IDs []string
}

// PersistViewport asks for the viewport to be saved.
type PersistViewport struct{}

// CreateConnection asks for a connection between two cards.
type CreateConnection struct {
	From, To string
}

// SelectionCleared reports that the selection was emptied.
type SelectionCleared struct{}

func (PersistCards) effect()     {}
func (PersistViewport) effect()  {}
func (CreateConnection) effect() {}
func (SelectionCleared) effect() {}

type dragState struct {
	cardID string
	offset geometry.Point // pointer minus the card's screen top-left
	start  map[string]geometry.Point
	order  []string
	moved  bool
}

type resizeState struct {
	cardID  string
	dir     Direction
	pointer geometry.Point
	rect    geometry.Rect
	moved   bool
}

type panState struct {
	pointer geometry.Point
	start   models.Viewport
	moved   bool
}

type connectState struct {
	from    string
	live    geometry.Point
	hasLive bool
}

// Machine is the interaction controller for one scene. Not safe for
// concurrent use.
type Machine struct {
	scene  *scene.Scene
	origin geometry.Point

	mode    Mode
	drag    dragState
	resize  resizeState
	pan     panState
	connect connectState
}

// New creates an idle machine over s. origin is the screen position of the
// drawing surface's top-left corner.
func New(s *scene.Scene, origin geometry.Point) *Machine {
	return &Machine{scene: s, origin: origin}
}

// Mode returns the active mode.
func (m *Machine) Mode() Mode { return m.mode }

// SetOrigin moves the drawing surface.
func (m *Machine) SetOrigin(p geometry.Point) { m.origin = p }

// ToCanvas converts a screen point to canvas-space.
func (m *Machine) ToCanvas(p geometry.Point) geometry.Point {
	return geometry.ToCanvas(p, m.origin, m.scene.Pan(), m.scene.Viewport.Zoom)
}

// ToScreen converts a canvas point to screen pixels.
func (m *Machine) ToScreen(p geometry.Point) geometry.Point {
	return geometry.ToScreen(p, m.origin, m.scene.Pan(), m.scene.Viewport.Zoom)
}

// Connecting returns the source card and live pointer of an in-progress
// connection gesture. from is empty until the first card is picked; ok is
// false outside connecting mode.
func (m *Machine) Connecting() (from string, live geometry.Point, hasLive, ok bool) {
	if m.mode != ModeConnecting {
		return "", geometry.Point{}, false, false
	}
	return m.connect.from, m.connect.live, m.connect.hasLive, true
}

// Active returns the card being dragged or resized, if any.
func (m *Machine) Active() string {
	switch m.mode {
	case ModeDragging:
		return m.drag.cardID
	case ModeResizing:
		return m.resize.cardID
	}
	return ""
}

// ToggleConnect enters connecting mode from idle, or leaves it.
func (m *Machine) ToggleConnect() []Effect {
	switch m.mode {
	case ModeIdle:
		m.mode = ModeConnecting
		m.connect = connectState{}
	case ModeConnecting:
		m.reset()
	}
	return nil
}

// PointerDown starts a gesture.
func (m *Machine) PointerDown(ev PointerEvent) []Effect {
	switch m.mode {
	case ModeIdle:
		switch ev.Target.Kind {
		case TargetCard:
			m.beginDrag(ev)
		case TargetResizeHandle:
			m.beginResize(ev)
		case TargetEmpty:
			m.mode = ModePanning
			m.pan = panState{pointer: ev.point(), start: m.scene.Viewport}
		}
	case ModeConnecting:
		return m.connectTo(ev)
	}
	return nil
}

func (m *Machine) beginDrag(ev PointerEvent) {
	card := m.scene.Card(ev.Target.CardID)
	if card == nil {
		return
	}
	switch {
	case ev.Shift:
		m.scene.Toggle(card.ID)
	case !m.scene.IsSelected(card.ID):
		m.scene.Select(card.ID)
	}

	topLeft := m.ToScreen(geometry.Point{X: card.X, Y: card.Y})
	d := dragState{
		cardID: card.ID,
		offset: geometry.Point{X: ev.X - topLeft.X, Y: ev.Y - topLeft.Y},
		start:  map[string]geometry.Point{card.ID: {X: card.X, Y: card.Y}},
		order:  []string{card.ID},
	}
	if m.scene.IsSelected(card.ID) {
		for _, id := range m.scene.Selected() {
			if _, seen := d.start[id]; seen {
				continue
			}
			if c := m.scene.Card(id); c != nil {
				d.start[id] = geometry.Point{X: c.X, Y: c.Y}
				d.order = append(d.order, id)
			}
		}
	}
	m.mode = ModeDragging
	m.drag = d
}

func (m *Machine) beginResize(ev PointerEvent) {
	card := m.scene.Card(ev.Target.CardID)
	if card == nil || ev.Target.Direction == "" {
		return
	}
	if !m.scene.IsSelected(card.ID) {
		m.scene.Select(card.ID)
	}
	m.mode = ModeResizing
	m.resize = resizeState{
		cardID:  card.ID,
		dir:     ev.Target.Direction,
		pointer: ev.point(),
		rect:    card.Rect(),
	}
}

func (m *Machine) connectTo(ev PointerEvent) []Effect {
	if ev.Target.Kind == TargetEmpty {
		m.reset()
		return nil
	}
	card := m.scene.Card(ev.Target.CardID)
	if card == nil || card.Status == scene.Pending {
		return nil
	}
	if m.connect.from == "" {
		m.connect.from = card.ID
		m.connect.hasLive = false
		return nil
	}
	if err := m.scene.CanConnect(m.connect.from, card.ID); err != nil {
		// Clicking the source again keeps the gesture; other rejected edges
		// end it without a request.
		if card.ID == m.connect.from {
			return nil
		}
		m.reset()
		return nil
	}
	from := m.connect.from
	m.reset()
	return []Effect{CreateConnection{From: from, To: card.ID}}
}

// PointerMove advances the active gesture.
func (m *Machine) PointerMove(ev PointerEvent) []Effect {
	switch m.mode {
	case ModeDragging:
		m.moveDrag(ev)
	case ModeResizing:
		m.moveResize(ev)
	case ModePanning:
		m.pan.moved = true
		m.scene.Viewport.X = m.pan.start.X + ev.X - m.pan.pointer.X
		m.scene.Viewport.Y = m.pan.start.Y + ev.Y - m.pan.pointer.Y
	case ModeConnecting:
		if m.connect.from != "" {
			m.connect.live = m.ToCanvas(ev.point())
			m.connect.hasLive = true
		}
	}
	return nil
}

func (m *Machine) moveDrag(ev PointerEvent) {
	d := &m.drag
	raw := m.ToCanvas(geometry.Point{X: ev.X - d.offset.X, Y: ev.Y - d.offset.Y})
	origin := d.start[d.cardID]
	dx, dy := raw.X-origin.X, raw.Y-origin.Y
	for _, id := range d.order {
		c := m.scene.Card(id)
		if c == nil {
			continue
		}
		s := d.start[id]
		c.X = m.scene.Snap(s.X + dx)
		c.Y = m.scene.Snap(s.Y + dy)
	}
	d.moved = true
}

func (m *Machine) moveResize(ev PointerEvent) {
	r := &m.resize
	c := m.scene.Card(r.cardID)
	if c == nil {
		return
	}
	zoom := m.scene.Viewport.Zoom
	dx := (ev.X - r.pointer.X) / zoom
	dy := (ev.Y - r.pointer.Y) / zoom
	minW, minH := m.scene.MinWidth, m.scene.MinHeight
	start := r.rect

	x, y, w, h := start.X, start.Y, start.W, start.H
	if r.dir.has('e') {
		w = math.Max(minW, start.W+dx)
	}
	if r.dir.has('w') {
		w = math.Max(minW, start.W-dx)
		x = start.X + start.W - w
	}
	if r.dir.has('s') {
		h = math.Max(minH, start.H+dy)
	}
	if r.dir.has('n') {
		h = math.Max(minH, start.H-dy)
		y = start.Y + start.H - h
	}
	c.X, c.Y, c.Width, c.Height = x, y, w, h
	r.moved = true
}

// PointerUp ends a drag, resize or pan. Connecting survives it so a
// connection can be drawn with two separate clicks.
func (m *Machine) PointerUp(PointerEvent) []Effect {
	switch m.mode {
	case ModeDragging, ModeResizing, ModePanning:
		fx := m.finish()
		m.reset()
		return fx
	}
	return nil
}

// finish returns the persistence effects of the active gesture.
func (m *Machine) finish() []Effect {
	switch m.mode {
	case ModeDragging:
		if m.drag.moved {
			ids := make([]string, len(m.drag.order))
			copy(ids, m.drag.order)
			return []Effect{PersistCards{IDs: ids}}
		}
	case ModeResizing:
		if m.resize.moved {
			return []Effect{PersistCards{IDs: []string{m.resize.cardID}}}
		}
	case ModePanning:
		if m.pan.moved {
			return []Effect{PersistViewport{}}
		}
	}
	return nil
}

// Escape returns to idle, dropping any connection in progress and clearing
// the selection. Geometry already changed by a drag or resize is persisted.
func (m *Machine) Escape() []Effect {
	fx := m.finish()
	m.reset()
	m.scene.ClearSelection()
	return append(fx, SelectionCleared{})
}

// Wheel zooms around the canvas origin: a negative deltaY zooms in.
func (m *Machine) Wheel(deltaY float64) []Effect {
	var f float64
	switch {
	case deltaY < 0:
		f = ZoomInFactor
	case deltaY > 0:
		f = ZoomOutFactor
	default:
		return nil
	}
	before := m.scene.Viewport.Zoom
	m.scene.Viewport.Zoom = models.ClampZoom(before * f)
	if m.scene.Viewport.Zoom == before {
		return nil
	}
	return []Effect{PersistViewport{}}
}

func (m *Machine) reset() {
	m.mode = ModeIdle
	m.drag = dragState{}
	m.resize = resizeState{}
	m.pan = panState{}
	m.connect = connectState{}
}
