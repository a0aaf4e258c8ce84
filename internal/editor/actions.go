package editor

import (
	"fmt"
	"strings"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/interaction"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/scene"
)

// Key names understood by HandleKey.
const (
	KeyDelete    = "Delete"
	KeyBackspace = "Backspace"
	KeyEscape    = "Escape"
)

// Key is a key press. Ctrl stands for Ctrl on most systems and Cmd on macOS.
type Key struct {
	Name string
	Ctrl bool
}

// EntityKind tells cards from connections in delete requests.
type EntityKind int

const (
	EntityCard EntityKind = iota
	EntityConnection
)

// DeleteTarget is the subject of a delete confirmation.
type DeleteTarget struct {
	Kind EntityKind
	ID   string
}

// apply carries out the machine's effects.
func (e *Editor) apply(fx []interaction.Effect) {
	for _, f := range fx {
		switch f := f.(type) {
		case interaction.PersistCards:
			for _, id := range f.IDs {
				e.persistCard(id)
			}
		case interaction.PersistViewport:
			e.persistViewport()
		case interaction.CreateConnection:
			_, _ = e.connect(f.From, f.To, "", "")
		case interaction.SelectionCleared:
			e.selectedConn = ""
		}
	}
}

// PointerDown feeds a pointer press to the interaction machine. Presses on
// cards that are still being created are ignored.
func (e *Editor) PointerDown(ev interaction.PointerEvent) {
	e.call(func() {
		if ev.Target.Kind != interaction.TargetEmpty {
			if c := e.sc.Card(ev.Target.CardID); c != nil && c.Status == scene.Pending {
				return
			}
		}
		if ev.Target.Kind == interaction.TargetCard && e.mc.Mode() == interaction.ModeIdle {
			e.selectedConn = ""
		}
		e.apply(e.mc.PointerDown(ev))
	})
}

// PointerMove feeds a pointer move to the interaction machine.
func (e *Editor) PointerMove(ev interaction.PointerEvent) {
	e.call(func() { e.apply(e.mc.PointerMove(ev)) })
}

// PointerUp feeds a pointer release to the interaction machine.
func (e *Editor) PointerUp(ev interaction.PointerEvent) {
	e.call(func() { e.apply(e.mc.PointerUp(ev)) })
}

// Wheel zooms by one tick per call.
func (e *Editor) Wheel(deltaY float64) {
	e.call(func() { e.apply(e.mc.Wheel(deltaY)) })
}

// ToggleConnect enters or leaves connect mode.
func (e *Editor) ToggleConnect() {
	e.call(func() { e.apply(e.mc.ToggleConnect()) })
}

// SetConnectionType sets the type used by the connect gesture.
func (e *Editor) SetConnectionType(t models.ConnectionType) {
	e.call(func() { e.connType = t })
}

// SetSurface updates the drawing surface after a layout change.
func (e *Editor) SetSurface(origin geometry.Point, width, height float64) {
	e.call(func() {
		e.origin = origin
		e.surfaceW, e.surfaceH = width, height
		e.mc.SetOrigin(origin)
	})
}

// HandleKey runs a keyboard shortcut and reports whether it was consumed.
func (e *Editor) HandleKey(k Key) bool {
	handled := false
	e.call(func() { handled = e.key(k) })
	return handled
}

func (e *Editor) key(k Key) bool {
	if k.Ctrl {
		switch strings.ToLower(k.Name) {
		case "a":
			e.sc.SelectAll()
			return true
		case "g":
			e.sc.GridSnap = !e.sc.GridSnap
			return true
		}
		return false
	}

	switch k.Name {
	case KeyDelete, KeyBackspace:
		if e.editing != "" {
			return false
		}
		if e.selectedConn != "" {
			_ = e.requestDelete(DeleteTarget{Kind: EntityConnection, ID: e.selectedConn})
			return true
		}
		if sel := e.sc.Selected(); len(sel) > 0 {
			_ = e.requestDelete(DeleteTarget{Kind: EntityCard, ID: sel[0]})
			return true
		}
	case KeyEscape:
		switch {
		case e.confirm != nil:
			e.confirm = nil
		case e.editing != "":
			e.editing = ""
		default:
			e.apply(e.mc.Escape())
		}
		return true
	}
	return false
}

// SelectCard selects a confirmed card, adding to the selection when
// additive is set.
func (e *Editor) SelectCard(id string, additive bool) error {
	var err error
	e.call(func() {
		c := e.sc.Card(id)
		switch {
		case c == nil:
			err = fmt.Errorf("editor: card %s: %w", id, apperr.ErrNotFound)
		case c.Status == scene.Pending:
			err = fmt.Errorf("editor: card %s: %w", id, apperr.ErrNotYetPersisted)
		case additive:
			e.sc.Toggle(id)
		default:
			e.sc.Select(id)
		}
	})
	return err
}

// SelectConnection selects a connection for editing or deletion.
func (e *Editor) SelectConnection(id string) error {
	var err error
	e.call(func() {
		c := e.sc.Connection(id)
		switch {
		case c == nil:
			err = fmt.Errorf("editor: connection %s: %w", id, apperr.ErrNotFound)
		case c.Status == scene.Pending:
			err = fmt.Errorf("editor: connection %s: %w", id, apperr.ErrNotYetPersisted)
		default:
			e.selectedConn = id
		}
	})
	return err
}

// AddCard creates a card at its snapped position and returns the temporary
// id it carries until the store confirms it.
func (e *Editor) AddCard(in models.NewCard) string {
	var id string
	e.call(func() { id = e.addCard(in) })
	return id
}

func (e *Editor) addCard(in models.NewCard) string {
	tmp := e.sc.NextTempID()
	card := in.Build(tmp, e.sc.MinWidth, e.sc.MinHeight)
	card.X, card.Y = e.sc.Snap(card.X), e.sc.Snap(card.Y)
	e.sc.AddCard(scene.Card{Card: card, Status: scene.Pending})
	e.sendCreateCard(tmp)
	return tmp
}

// DoubleClick at a screen point opens the title editor of the card under the
// pointer, or creates a default-sized card there when the canvas is empty at
// that point. It returns the id of the card being edited.
func (e *Editor) DoubleClick(x, y float64) string {
	var id string
	e.call(func() {
		p := e.mc.ToCanvas(geometry.Point{X: x, Y: y})
		if c := e.sc.CardAt(p); c != nil {
			id = c.ID
		} else {
			id = e.addCard(models.NewCard{
				X:      p.X,
				Y:      p.Y,
				Width:  models.DefaultCardWidth,
				Height: models.DefaultCardHeight,
			})
		}
		e.editing = id
	})
	return id
}

// CommitTitle ends inline editing, saving title on the edited card.
func (e *Editor) CommitTitle(title string) {
	e.call(func() {
		id := e.editing
		e.editing = ""
		if c := e.sc.Card(id); c != nil {
			c.Title = title
			e.persistCard(id)
		}
	})
}

// EditCard applies a local patch and saves it. Size is kept above the
// minimum.
func (e *Editor) EditCard(id string, p models.CardPatch) error {
	var err error
	e.call(func() {
		c := e.sc.Card(id)
		if c == nil {
			err = fmt.Errorf("editor: card %s: %w", id, apperr.ErrNotFound)
			return
		}
		p.Apply(&c.Card)
		c.ClampSize(e.sc.MinWidth, e.sc.MinHeight)
		e.persistCard(id)
	})
	return err
}

// Connect requests a connection. Self, duplicate and dangling connections
// return apperr.ErrInvariant; pending endpoints return
// apperr.ErrNotYetPersisted. The returned id is temporary.
func (e *Editor) Connect(from, to string, typ models.ConnectionType) (string, error) {
	var (
		id  string
		err error
	)
	if !e.call(func() { id, err = e.connect(from, to, typ, "") }) {
		return "", ErrClosed
	}
	return id, err
}

// EditConnection applies a local patch to a connection and saves it.
func (e *Editor) EditConnection(id string, p models.ConnectionPatch) error {
	var err error
	e.call(func() {
		c := e.sc.Connection(id)
		if c == nil {
			err = fmt.Errorf("editor: connection %s: %w", id, apperr.ErrNotFound)
			return
		}
		p.Apply(&c.Connection)
		e.persistConnection(id)
	})
	return err
}

// RequestDelete asks for confirmation before deleting t.
func (e *Editor) RequestDelete(t DeleteTarget) error {
	var err error
	e.call(func() { err = e.requestDelete(t) })
	return err
}

func (e *Editor) requestDelete(t DeleteTarget) error {
	var status scene.Status
	switch t.Kind {
	case EntityCard:
		c := e.sc.Card(t.ID)
		if c == nil {
			return fmt.Errorf("editor: card %s: %w", t.ID, apperr.ErrNotFound)
		}
		status = c.Status
	case EntityConnection:
		c := e.sc.Connection(t.ID)
		if c == nil {
			return fmt.Errorf("editor: connection %s: %w", t.ID, apperr.ErrNotFound)
		}
		status = c.Status
	}
	if status == scene.Pending {
		return fmt.Errorf("editor: %s: %w", t.ID, apperr.ErrNotYetPersisted)
	}
	e.confirm = &t
	return nil
}

// CancelDelete dismisses the delete confirmation.
func (e *Editor) CancelDelete() {
	e.call(func() { e.confirm = nil })
}

// ConfirmDelete deletes the entity awaiting confirmation. Deleting a card
// removes its connections locally right away.
func (e *Editor) ConfirmDelete() {
	e.call(func() {
		t := e.confirm
		e.confirm = nil
		if t == nil {
			return
		}
		switch t.Kind {
		case EntityCard:
			card, dropped, ok := e.sc.RemoveCard(t.ID)
			if !ok {
				return
			}
			if e.editing == t.ID {
				e.editing = ""
			}
			conns := make([]models.Connection, len(dropped))
			for i, c := range dropped {
				conns[i] = c.Connection
				if e.selectedConn == c.ID {
					e.selectedConn = ""
				}
			}
			e.sendDeleteCard(card.Card, conns)
		case EntityConnection:
			conn, ok := e.sc.RemoveConnection(t.ID)
			if !ok {
				return
			}
			if e.selectedConn == t.ID {
				e.selectedConn = ""
			}
			e.sendDeleteConnection(conn.Connection)
		}
	})
}
