package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/notify"
	"github.com/starford/tessera/internal/scene"
)

type failure int

const (
	failTransport failure = iota
	failNotFound
	failInvariant
	failInvalid
)

func classify(err error) failure {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return failNotFound
	case errors.Is(err, apperr.ErrInvariant):
		return failInvariant
	case errors.Is(err, apperr.ErrInvalidInput):
		return failInvalid
	}
	return failTransport
}

func (e *Editor) callCtx() (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(e.ctx, e.timeout)
	}
	return context.WithCancel(e.ctx)
}

// exec runs call on its own goroutine and hands the result to done on the
// loop.
func (e *Editor) exec(call func(ctx context.Context) error, done func(error)) {
	e.inflight++
	go func() {
		ctx, cancel := e.callCtx()
		err := call(ctx)
		cancel()
		e.post(func() {
			e.inflight--
			done(err)
			if e.inflight == 0 {
				for _, ch := range e.flushers {
					close(ch)
				}
				e.flushers = nil
			}
		})
	}()
}

// serial runs send now unless a call under key is still in flight; then it
// replaces any queued call for key and runs when the current one settles.
func (e *Editor) serial(key string, send func()) {
	if e.busy[key] {
		e.again[key] = send
		return
	}
	e.busy[key] = true
	send()
}

func (e *Editor) settle(key string) {
	if next, ok := e.again[key]; ok {
		delete(e.again, key)
		next()
		return
	}
	delete(e.busy, key)
}

// fail applies the failure policy. NotFound and invalid input revert and
// toast without a retry, invariant violations revert silently, anything else
// toasts with a retry action and keeps the local state.
func (e *Editor) fail(op string, err error, revert, retry func()) {
	switch classify(err) {
	case failInvariant:
		e.logger.Debug("editor: rejected", slog.String("op", op), slog.String("error", err.Error()))
		if revert != nil {
			revert()
		}
		return
	case failNotFound:
		e.logger.Info("editor: not found", slog.String("op", op), slog.String("error", err.Error()))
		if revert != nil {
			revert()
		}
		e.notes.Error(fmt.Sprintf("Could not %s: not found", op))
		return
	case failInvalid:
		e.logger.Info("editor: invalid", slog.String("op", op), slog.String("error", err.Error()))
		if revert != nil {
			revert()
		}
		e.notes.Error(fmt.Sprintf("Could not %s: invalid value", op))
		return
	}

	e.logger.Warn("editor: persist failed", slog.String("op", op), slog.String("error", err.Error()))
	var actions []notify.Action
	if retry != nil {
		actions = append(actions, notify.Action{
			Label: notify.ActionRetry,
			Run:   func() { e.post(retry) },
		})
	}
	e.notes.Error(fmt.Sprintf("Could not %s: %v", op, err), actions...)
}

func fullPatch(c models.Card) models.CardPatch {
	return models.CardPatch{
		Type:    models.Ptr(c.Type),
		Title:   models.Ptr(c.Title),
		Content: models.Ptr(c.Content),
		X:       models.Ptr(c.X),
		Y:       models.Ptr(c.Y),
		Width:   models.Ptr(c.Width),
		Height:  models.Ptr(c.Height),
		Color:   models.Ptr(c.Color),
	}
}

// Cards.

func (e *Editor) sendCreateCard(tmp string) {
	c := e.sc.Card(tmp)
	if c == nil || c.Status != scene.Pending {
		return
	}
	in := models.NewCard{
		Type:    c.Type,
		Title:   c.Title,
		Content: c.Content,
		X:       c.X,
		Y:       c.Y,
		Width:   c.Width,
		Height:  c.Height,
		Color:   c.Color,
	}
	var out *models.Card
	e.exec(func(ctx context.Context) error {
		var err error
		out, err = e.store.CreateCard(ctx, e.canvasID, in)
		return err
	}, func(err error) {
		if err != nil {
			e.fail("create card", err, func() { e.dropPendingCard(tmp) }, func() { e.retryCreateCard(tmp, in) })
			return
		}
		e.cardCreated(tmp, *out)
	})
}

// retryCreateCard re-sends a failed creation unless the earlier attempt
// reached the store anyway, in which case that card is adopted.
func (e *Editor) retryCreateCard(tmp string, in models.NewCard) {
	if c := e.sc.Card(tmp); c == nil || c.Status != scene.Pending {
		return
	}
	var stored *models.Canvas
	e.exec(func(ctx context.Context) error {
		var err error
		stored, err = e.store.GetCanvas(ctx, e.canvasID)
		return err
	}, func(err error) {
		if err != nil {
			e.fail("create card", err, func() { e.dropPendingCard(tmp) }, func() { e.retryCreateCard(tmp, in) })
			return
		}
		if found, ok := e.unclaimedCard(stored, in.Build("", e.sc.MinWidth, e.sc.MinHeight)); ok {
			e.cardCreated(tmp, found)
			return
		}
		e.sendCreateCard(tmp)
	})
}

// unclaimedCard finds a stored card this editor has not confirmed yet whose
// fields match want.
func (e *Editor) unclaimedCard(stored *models.Canvas, want models.Card) (models.Card, bool) {
	for _, c := range stored.Cards {
		if _, known := e.ackCards[c.ID]; known {
			continue
		}
		if c.Type == want.Type && c.Title == want.Title && c.Content == want.Content &&
			c.X == want.X && c.Y == want.Y && c.Color == want.Color {
			return c, true
		}
	}
	return models.Card{}, false
}

func (e *Editor) cardCreated(tmp string, stored models.Card) {
	dirty, ok := e.sc.ConfirmCard(tmp, stored)
	if !ok {
		return
	}
	e.ackCards[stored.ID] = stored
	if e.editing == tmp {
		e.editing = stored.ID
	}
	if dirty {
		e.persistCard(stored.ID)
	}
	e.submitQueued()
}

// dropPendingCard removes a card whose creation the store refused.
func (e *Editor) dropPendingCard(tmp string) {
	_, dropped, ok := e.sc.RemoveCard(tmp)
	if !ok {
		return
	}
	for _, conn := range dropped {
		delete(e.queued, conn.ID)
	}
	if e.editing == tmp {
		e.editing = ""
	}
}

// persistCard saves the card's current local state. Pending cards are saved
// once their creation is confirmed.
func (e *Editor) persistCard(id string) {
	c := e.sc.Card(id)
	if c == nil || c.Status == scene.Pending {
		return
	}
	key := "card:" + id
	e.serial(key, func() { e.sendCard(id, key) })
}

func (e *Editor) sendCard(id, key string) {
	c := e.sc.Card(id)
	if c == nil {
		e.settle(key)
		return
	}
	patch := fullPatch(c.Card)
	var out *models.Card
	e.exec(func(ctx context.Context) error {
		var err error
		out, err = e.store.UpdateCard(ctx, e.canvasID, id, patch)
		return err
	}, func(err error) {
		defer e.settle(key)
		if err != nil {
			e.fail("save card", err, func() { e.revertCard(id) }, func() { e.persistCard(id) })
			return
		}
		e.ackCards[id] = *out
	})
}

func (e *Editor) revertCard(id string) {
	c := e.sc.Card(id)
	acked, ok := e.ackCards[id]
	if c == nil || !ok {
		return
	}
	c.Card = acked
}

func (e *Editor) sendDeleteCard(card models.Card, conns []models.Connection) {
	e.exec(func(ctx context.Context) error {
		return e.store.DeleteCard(ctx, e.canvasID, card.ID)
	}, func(err error) {
		if err != nil {
			e.fail("delete card", err,
				func() { e.restoreCard(card, conns) },
				func() { e.sendDeleteCard(card, conns) })
			return
		}
		delete(e.ackCards, card.ID)
		for _, conn := range conns {
			delete(e.ackConns, conn.ID)
		}
		e.notes.Success(fmt.Sprintf("Deleted card %q", card.Title), notify.Action{
			Label: notify.ActionUndo,
			Run:   func() { e.post(func() { e.undoCard(card, conns) }) },
		})
	})
}

// restoreCard puts back a card, as confirmed, whose delete was refused.
func (e *Editor) restoreCard(card models.Card, conns []models.Connection) {
	if e.sc.Card(card.ID) != nil {
		return
	}
	e.sc.AddCard(scene.Card{Card: card})
	for _, conn := range conns {
		_ = e.sc.AddConnection(scene.Connection{Connection: conn})
	}
}

// undoCard re-creates a deleted card and then its connections. The store
// assigns new ids; connections follow the card to its new id.
func (e *Editor) undoCard(card models.Card, conns []models.Connection) {
	tmp := e.sc.NextTempID()
	restored := card
	restored.ID = tmp
	e.sc.AddCard(scene.Card{Card: restored, Status: scene.Pending})

	for _, conn := range conns {
		other := conn.ToID
		if other == card.ID {
			other = conn.FromID
		}
		if e.sc.Card(other) == nil || e.joined(tmp, other) {
			continue
		}
		c := conn
		c.ID = e.sc.NextTempID()
		if c.FromID == card.ID {
			c.FromID = tmp
		}
		if c.ToID == card.ID {
			c.ToID = tmp
		}
		e.sc.Connections = append(e.sc.Connections, scene.Connection{Connection: c, Status: scene.Pending})
		e.queued[c.ID] = true
	}
	e.sendCreateCard(tmp)
}

func (e *Editor) joined(a, b string) bool {
	for _, c := range e.sc.Connections {
		if c.Joins(a, b) {
			return true
		}
	}
	return false
}

// Connections.

// connect adds a pending connection and asks the store for it.
func (e *Editor) connect(from, to string, typ models.ConnectionType, label string) (string, error) {
	if err := e.sc.CanConnect(from, to); err != nil {
		return "", err
	}
	if typ == "" {
		typ = e.connType
	}
	tmp := e.sc.NextTempID()
	e.sc.Connections = append(e.sc.Connections, scene.Connection{
		Connection: models.Connection{ID: tmp, FromID: from, ToID: to, Type: typ, Label: label},
		Status:     scene.Pending,
	})
	e.sendCreateConnection(tmp)
	return tmp, nil
}

// submitQueued sends queued connections whose endpoints are both confirmed.
func (e *Editor) submitQueued() {
	for id := range e.queued {
		conn := e.sc.Connection(id)
		if conn == nil {
			delete(e.queued, id)
			continue
		}
		from, to := e.sc.Card(conn.FromID), e.sc.Card(conn.ToID)
		if from == nil || to == nil {
			delete(e.queued, id)
			e.sc.RemoveConnection(id)
			continue
		}
		if from.Status == scene.Pending || to.Status == scene.Pending {
			continue
		}
		delete(e.queued, id)
		e.sendCreateConnection(id)
	}
}

func (e *Editor) sendCreateConnection(tmp string) {
	c := e.sc.Connection(tmp)
	if c == nil || c.Status != scene.Pending {
		return
	}
	in := models.NewConnection{FromID: c.FromID, ToID: c.ToID, Type: c.Type, Label: c.Label}
	var out *models.Connection
	e.exec(func(ctx context.Context) error {
		var err error
		out, err = e.store.CreateConnection(ctx, e.canvasID, in)
		return err
	}, func(err error) {
		if err != nil {
			e.fail("create connection", err,
				func() { e.sc.RemoveConnection(tmp) },
				func() { e.retryCreateConnection(tmp, in) })
			return
		}
		e.connectionCreated(tmp, *out)
	})
}

func (e *Editor) connectionCreated(tmp string, stored models.Connection) {
	dirty, ok := e.sc.ConfirmConnection(tmp, stored)
	if !ok {
		return
	}
	e.ackConns[stored.ID] = stored
	if e.selectedConn == tmp {
		e.selectedConn = stored.ID
	}
	if dirty {
		e.persistConnection(stored.ID)
	}
}

// retryCreateConnection adopts a stored connection between the same cards
// if the failed attempt went through, and re-sends otherwise.
func (e *Editor) retryCreateConnection(tmp string, in models.NewConnection) {
	if c := e.sc.Connection(tmp); c == nil || c.Status != scene.Pending {
		return
	}
	var stored *models.Canvas
	e.exec(func(ctx context.Context) error {
		var err error
		stored, err = e.store.GetCanvas(ctx, e.canvasID)
		return err
	}, func(err error) {
		if err != nil {
			e.fail("create connection", err,
				func() { e.sc.RemoveConnection(tmp) },
				func() { e.retryCreateConnection(tmp, in) })
			return
		}
		for _, c := range stored.Connections {
			if _, known := e.ackConns[c.ID]; !known && c.Joins(in.FromID, in.ToID) {
				e.connectionCreated(tmp, c)
				return
			}
		}
		e.sendCreateConnection(tmp)
	})
}

func (e *Editor) persistConnection(id string) {
	c := e.sc.Connection(id)
	if c == nil || c.Status == scene.Pending {
		return
	}
	key := "conn:" + id
	e.serial(key, func() { e.sendConnection(id, key) })
}

func (e *Editor) sendConnection(id, key string) {
	c := e.sc.Connection(id)
	if c == nil {
		e.settle(key)
		return
	}
	patch := models.ConnectionPatch{Type: models.Ptr(c.Type), Label: models.Ptr(c.Label)}
	var out *models.Connection
	e.exec(func(ctx context.Context) error {
		var err error
		out, err = e.store.UpdateConnection(ctx, e.canvasID, id, patch)
		return err
	}, func(err error) {
		defer e.settle(key)
		if err != nil {
			e.fail("save connection", err, func() {
				if c := e.sc.Connection(id); c != nil {
					if acked, ok := e.ackConns[id]; ok {
						c.Connection = acked
					}
				}
			}, func() { e.persistConnection(id) })
			return
		}
		e.ackConns[id] = *out
	})
}

func (e *Editor) sendDeleteConnection(conn models.Connection) {
	e.exec(func(ctx context.Context) error {
		return e.store.DeleteConnection(ctx, e.canvasID, conn.ID)
	}, func(err error) {
		if err != nil {
			e.fail("delete connection", err,
				func() { _ = e.sc.AddConnection(scene.Connection{Connection: conn}) },
				func() { e.sendDeleteConnection(conn) })
			return
		}
		delete(e.ackConns, conn.ID)
		e.notes.Success("Deleted connection", notify.Action{
			Label: notify.ActionUndo,
			Run:   func() { e.post(func() { e.undoConnection(conn) }) },
		})
	})
}

func (e *Editor) undoConnection(conn models.Connection) {
	_, err := e.connect(conn.FromID, conn.ToID, conn.Type, conn.Label)
	if !errors.Is(err, apperr.ErrNotYetPersisted) || e.joined(conn.FromID, conn.ToID) {
		return
	}
	// An endpoint is itself being re-created; wait for its id.
	c := conn
	c.ID = e.sc.NextTempID()
	e.sc.Connections = append(e.sc.Connections, scene.Connection{Connection: c, Status: scene.Pending})
	e.queued[c.ID] = true
}

// Viewport.

func (e *Editor) persistViewport() {
	e.serial("viewport", e.sendViewport)
}

func (e *Editor) sendViewport() {
	vp := e.sc.Viewport
	e.exec(func(ctx context.Context) error {
		return e.store.UpdateViewport(ctx, e.canvasID, vp)
	}, func(err error) {
		defer e.settle("viewport")
		if err != nil {
			e.fail("save viewport", err,
				func() { e.sc.Viewport = e.ackViewport },
				e.persistViewport)
			return
		}
		e.ackViewport = vp
	})
}
