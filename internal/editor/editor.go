// Package editor composes the scene, the interaction machine and a document
// store into an interactive canvas editor with optimistic persistence.
//
// All editor state is owned by one event-loop goroutine. Public methods hand
// closures to the loop and wait for them; store calls run on their own
// goroutines and post their results back to the loop, so pointer input keeps
// flowing while earlier changes are still being saved.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/interaction"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/notify"
	"github.com/starford/tessera/internal/scene"
	"github.com/starford/tessera/internal/style"
)

// ErrClosed is returned by methods called after Close.
var ErrClosed = errors.New("editor: closed")

// Store is the document store the editor persists through. Both the local
// canvasstore.Service and the HTTP client implement it.
type Store interface {
	GetCanvas(ctx context.Context, id string) (*models.Canvas, error)
	CreateCard(ctx context.Context, canvasID string, in models.NewCard) (*models.Card, error)
	UpdateCard(ctx context.Context, canvasID, cardID string, p models.CardPatch) (*models.Card, error)
	DeleteCard(ctx context.Context, canvasID, cardID string) error
	CreateConnection(ctx context.Context, canvasID string, in models.NewConnection) (*models.Connection, error)
	UpdateConnection(ctx context.Context, canvasID, connID string, p models.ConnectionPatch) (*models.Connection, error)
	DeleteConnection(ctx context.Context, canvasID, connID string) error
	UpdateViewport(ctx context.Context, canvasID string, vp models.Viewport) error
}

// Option configures an Editor.
type Option func(*Editor)

// WithNotifier sets where toasts go. The default drops them.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Editor) { e.notes = n }
}

// WithStyle sets the kind registry used for views.
func WithStyle(r *style.Registry) Option {
	return func(e *Editor) { e.style = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// WithSettings sets the grid and minimum card size.
func WithSettings(s scene.Settings) Option {
	return func(e *Editor) { e.settings = s }
}

// WithPersistTimeout bounds every store call. Zero waits forever. A create
// that times out may still have been applied; its retry looks the entity up
// in the stored canvas before sending it again.
func WithPersistTimeout(d time.Duration) Option {
	return func(e *Editor) { e.timeout = d }
}

// WithSurface sets the screen origin and size of the drawing surface.
func WithSurface(origin geometry.Point, width, height float64) Option {
	return func(e *Editor) {
		e.origin = origin
		e.surfaceW, e.surfaceH = width, height
	}
}

// Editor edits one canvas.
type Editor struct {
	store    Store
	canvasID string
	notes    notify.Notifier
	style    *style.Registry
	logger   *slog.Logger
	timeout  time.Duration
	settings scene.Settings

	ctx       context.Context
	cancel    context.CancelFunc
	ops       chan func()
	stopped   chan struct{}
	closeOnce sync.Once

	// Everything below is owned by the loop goroutine.
	sc           *scene.Scene
	mc           *interaction.Machine
	origin       geometry.Point
	surfaceW     float64
	surfaceH     float64
	ackCards     map[string]models.Card
	ackConns     map[string]models.Connection
	ackViewport  models.Viewport
	connType     models.ConnectionType
	selectedConn string
	editing      string
	confirm      *DeleteTarget
	queued       map[string]bool // pending connections waiting for endpoint ids
	busy         map[string]bool
	again        map[string]func()
	inflight     int
	flushers     []chan struct{}
}

// Open fetches the canvas and starts the editor. An error wrapping
// apperr.ErrNotFound means the canvas does not exist and the caller should
// navigate away.
func Open(ctx context.Context, store Store, canvasID string, opts ...Option) (*Editor, error) {
	e := &Editor{
		store:    store,
		canvasID: canvasID,
		notes:    notify.Discard{},
		style:    style.Default(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		settings: scene.DefaultSettings(),
		surfaceW: 1280,
		surfaceH: 800,
		connType: models.ConnectionSimple,
		ackCards: make(map[string]models.Card),
		ackConns: make(map[string]models.Connection),
		queued:   make(map[string]bool),
		busy:     make(map[string]bool),
		again:    make(map[string]func()),
		ops:      make(chan func()),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}

	c, err := store.GetCanvas(ctx, canvasID)
	if err != nil {
		return nil, fmt.Errorf("editor: open canvas %s: %w", canvasID, err)
	}
	e.sc = scene.New(c, e.settings)
	e.mc = interaction.New(e.sc, e.origin)
	for _, card := range c.Cards {
		e.ackCards[card.ID] = card
	}
	for _, conn := range c.Connections {
		e.ackConns[conn.ID] = conn
	}
	e.ackViewport = e.sc.Viewport

	e.ctx, e.cancel = context.WithCancel(context.Background())
	go e.loop()
	e.logger.Debug("editor: opened", slog.String("canvas", canvasID))
	return e, nil
}

func (e *Editor) loop() {
	defer close(e.stopped)
	for {
		select {
		case fn := <-e.ops:
			fn()
		case <-e.ctx.Done():
			for _, ch := range e.flushers {
				close(ch)
			}
			return
		}
	}
}

// call runs fn on the loop and waits for it. It reports false once the
// editor is closed.
func (e *Editor) call(fn func()) bool {
	done := make(chan struct{})
	select {
	case e.ops <- func() { fn(); close(done) }:
	case <-e.stopped:
		return false
	}
	<-done
	return true
}

// post hands fn to the loop without waiting for it to run.
func (e *Editor) post(fn func()) {
	select {
	case e.ops <- fn:
	case <-e.stopped:
	}
}

// Flush waits until every store call issued so far, and every follow-up
// call they trigger, has completed.
func (e *Editor) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	ok := e.call(func() {
		if e.inflight == 0 {
			close(ch)
			return
		}
		e.flushers = append(e.flushers, ch)
	})
	if !ok {
		return ErrClosed
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop and cancels store calls still in flight.
func (e *Editor) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		<-e.stopped
		e.logger.Debug("editor: closed", slog.String("canvas", e.canvasID))
	})
}

// CanvasID returns the id of the open canvas.
func (e *Editor) CanvasID() string { return e.canvasID }
