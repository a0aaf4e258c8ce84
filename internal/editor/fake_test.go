package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/models"
)

// fakeStore is an in-memory Store with failure injection.
type fakeStore struct {
	mu       sync.Mutex
	canvas   models.Canvas
	seq      int
	failures map[string][]error
	// lost holds errors returned after the write has been applied.
	lost  map[string][]error
	calls map[string]int
	// gate, when set, holds CreateCard until it is closed or the call's
	// context ends.
	gate chan struct{}
}

func newFakeStore(cards ...models.Card) *fakeStore {
	return &fakeStore{
		canvas: models.Canvas{
			ID:          "canvas-1",
			Name:        "Board",
			Cards:       cards,
			Connections: []models.Connection{},
			Viewport:    models.DefaultViewport(),
		},
		failures: make(map[string][]error),
		lost:     make(map[string][]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeStore) failNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = append(f.failures[op], err)
}

// loseReply makes the next op succeed in the store but report err.
func (f *fakeStore) loseReply(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lost[op] = append(f.lost[op], err)
}

// takeLost pops the error for a lost reply. Callers hold f.mu.
func (f *fakeStore) takeLost(op string) error {
	q := f.lost[op]
	if len(q) == 0 {
		return nil
	}
	f.lost[op] = q[1:]
	return q[0]
}

// take records a call and pops its injected failure. Callers hold f.mu.
func (f *fakeStore) take(op string) error {
	f.calls[op]++
	q := f.failures[op]
	if len(q) == 0 {
		return nil
	}
	f.failures[op] = q[1:]
	return q[0]
}

func (f *fakeStore) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) snapshot() models.Canvas {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.canvas
	c.Cards = append([]models.Card(nil), f.canvas.Cards...)
	c.Connections = append([]models.Connection(nil), f.canvas.Connections...)
	return c
}

// removeBehindBack deletes a card without telling the editor.
func (f *fakeStore) removeBehindBack(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canvas.RemoveCard(id)
}

func (f *fakeStore) check(canvasID string) error {
	if canvasID != f.canvas.ID {
		return fmt.Errorf("fake: canvas %s: %w", canvasID, apperr.ErrNotFound)
	}
	return nil
}

func (f *fakeStore) GetCanvas(_ context.Context, id string) (*models.Canvas, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take("GetCanvas"); err != nil {
		return nil, err
	}
	if err := f.check(id); err != nil {
		return nil, err
	}
	c := f.canvas
	c.Cards = append([]models.Card(nil), f.canvas.Cards...)
	c.Connections = append([]models.Connection(nil), f.canvas.Connections...)
	return &c, nil
}

func (f *fakeStore) CreateCard(ctx context.Context, canvasID string, in models.NewCard) (*models.Card, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take("CreateCard"); err != nil {
		return nil, err
	}
	if err := f.check(canvasID); err != nil {
		return nil, err
	}
	f.seq++
	card := in.Build(fmt.Sprintf("card-%d", f.seq), models.MinCardWidth, models.MinCardHeight)
	f.canvas.Cards = append(f.canvas.Cards, card)
	if err := f.takeLost("CreateCard"); err != nil {
		return nil, err
	}
	return &card, nil
}

func (f *fakeStore) UpdateCard(_ context.Context, canvasID, cardID string, p models.CardPatch) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take("UpdateCard"); err != nil {
		return nil, err
	}
	if err := f.check(canvasID); err != nil {
		return nil, err
	}
	c := f.canvas.Card(cardID)
	if c == nil {
		return nil, fmt.Errorf("fake: card %s: %w", cardID, apperr.ErrNotFound)
	}
	p.Apply(c)
	c.ClampSize(models.MinCardWidth, models.MinCardHeight)
	out := *c
	return &out, nil
}

func (f *fakeStore) DeleteCard(_ context.Context, canvasID, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take("DeleteCard"); err != nil {
		return err
	}
	if err := f.check(canvasID); err != nil {
		return err
	}
	if _, _, ok := f.canvas.RemoveCard(cardID); !ok {
		return fmt.Errorf("fake: card %s: %w", cardID, apperr.ErrNotFound)
	}
	return nil
}

func (f *fakeStore) CreateConnection(_ context.Context, canvasID string, in models.NewConnection) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take("CreateConnection"); err != nil {
		return nil, err
	}
	if err := f.check(canvasID); err != nil {
		return nil, err
	}
	f.seq++
	conn := in.Build(fmt.Sprintf("conn-%d", f.seq))
	if err := f.canvas.AddConnection(conn); err != nil {
		return nil, err
	}
	if err := f.takeLost("CreateConnection"); err != nil {
		return nil, err
	}
	return &conn, nil
}

func (f *fakeStore) UpdateConnection(_ context.Context, canvasID, connID string, p models.ConnectionPatch) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take("UpdateConnection"); err != nil {
		return nil, err
	}
	if err := f.check(canvasID); err != nil {
		return nil, err
	}
	c := f.canvas.Connection(connID)
	if c == nil {
		return nil, fmt.Errorf("fake: connection %s: %w", connID, apperr.ErrNotFound)
	}
	p.Apply(c)
	out := *c
	return &out, nil
}

func (f *fakeStore) DeleteConnection(_ context.Context, canvasID, connID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take("DeleteConnection"); err != nil {
		return err
	}
	if err := f.check(canvasID); err != nil {
		return err
	}
	if _, ok := f.canvas.RemoveConnection(connID); !ok {
		return fmt.Errorf("fake: connection %s: %w", connID, apperr.ErrNotFound)
	}
	return nil
}

func (f *fakeStore) UpdateViewport(_ context.Context, canvasID string, vp models.Viewport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.take("UpdateViewport"); err != nil {
		return err
	}
	if err := f.check(canvasID); err != nil {
		return err
	}
	f.canvas.Viewport = vp.Normalize()
	return nil
}
