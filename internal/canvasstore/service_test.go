package canvasstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/storage"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+id)
}

func newTestService(t *testing.T, opts ...Option) (*Service, storage.Provider) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(store, db, opts...), store
}

func mustCanvas(t *testing.T, s *Service) *models.Canvas {
	t.Helper()
	c, err := s.CreateCanvas(context.Background(), "Board", "")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func mustCard(t *testing.T, s *Service, canvasID string, x, y float64) *models.Card {
	t.Helper()
	card, err := s.CreateCard(context.Background(), canvasID, models.NewCard{Title: "card", X: x, Y: y, Width: 240, Height: 180})
	if err != nil {
		t.Fatal(err)
	}
	return card
}

func TestCreateCanvasAndGet(t *testing.T) {
	rec := &recorder{}
	s, _ := newTestService(t, WithEventFunc(rec.record))
	ctx := context.Background()

	c, err := s.CreateCanvas(ctx, "Roadmap", "Q3")
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.GetCanvas(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Roadmap" || got.Description != "Q3" || got.Viewport.Zoom != 1 {
		t.Errorf("canvas = %+v", got)
	}
	if len(got.Cards) != 0 || len(got.Connections) != 0 {
		t.Errorf("new canvas not empty: %+v", got)
	}
	if len(rec.events) != 1 || rec.events[0] != EventCanvasCreated+":"+c.ID {
		t.Errorf("events = %v", rec.events)
	}

	items, total, err := s.ListCanvases(ctx, 10, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 || items[0].Name != "Roadmap" {
		t.Errorf("list = %+v total %d", items, total)
	}
}

func TestCreateCanvasRequiresName(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.CreateCanvas(context.Background(), "", "")
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGetCanvasNotFound(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.GetCanvas(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateCardDefaults(t *testing.T) {
	s, _ := newTestService(t)
	c := mustCanvas(t, s)

	card, err := s.CreateCard(context.Background(), c.ID, models.NewCard{Title: "x", X: -40, Y: 12})
	if err != nil {
		t.Fatal(err)
	}
	if card.ID == "" || card.Type != models.CardNote {
		t.Errorf("card = %+v", card)
	}
	if card.Width != 240 || card.Height != 180 {
		t.Errorf("size = %vx%v, want 240x180", card.Width, card.Height)
	}
	if card.X != -40 {
		t.Errorf("x = %v, want -40", card.X)
	}
}

func TestCreateCardRejectsUnknownType(t *testing.T) {
	s, _ := newTestService(t)
	c := mustCanvas(t, s)
	_, err := s.CreateCard(context.Background(), c.ID, models.NewCard{Type: "sticker"})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	_, err = s.CreateCard(context.Background(), c.ID, models.NewCard{Color: "chartreuse"})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestScenarioConnectAndCascade(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := mustCanvas(t, s)
	a := mustCard(t, s, c.ID, 100, 100)
	b := mustCard(t, s, c.ID, 500, 100)

	conn, err := s.CreateConnection(ctx, c.ID, models.NewConnection{FromID: a.ID, ToID: b.ID, Type: models.ConnectionDirectional})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetCanvas(ctx, c.ID)
	if len(got.Connections) != 1 {
		t.Fatalf("connections = %+v", got.Connections)
	}
	if cn := got.Connections[0]; cn.ID != conn.ID || cn.FromID != a.ID || cn.ToID != b.ID || cn.Type != models.ConnectionDirectional {
		t.Errorf("connection = %+v", cn)
	}

	if err := s.DeleteCard(ctx, c.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetCanvas(ctx, c.ID)
	if len(got.Cards) != 1 || got.Cards[0].ID != b.ID {
		t.Errorf("cards = %+v, want [B]", got.Cards)
	}
	if len(got.Connections) != 0 {
		t.Errorf("connections = %+v, want none", got.Connections)
	}
}

func TestCreateConnectionInvariants(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := mustCanvas(t, s)
	a := mustCard(t, s, c.ID, 0, 0)
	b := mustCard(t, s, c.ID, 400, 0)

	if _, err := s.CreateConnection(ctx, c.ID, models.NewConnection{FromID: a.ID, ToID: b.ID}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name     string
		from, to string
	}{
		{"self loop", a.ID, a.ID},
		{"duplicate", a.ID, b.ID},
		{"reverse duplicate", b.ID, a.ID},
		{"missing endpoint", a.ID, "ghost"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateConnection(ctx, c.ID, models.NewConnection{FromID: tc.from, ToID: tc.to, Type: models.ConnectionSimple})
			if !errors.Is(err, apperr.ErrInvariant) {
				t.Errorf("err = %v, want ErrInvariant", err)
			}
		})
	}

	got, _ := s.GetCanvas(ctx, c.ID)
	if len(got.Connections) != 1 {
		t.Errorf("connections = %d, want 1", len(got.Connections))
	}
}

func TestUpdateCardClampsSize(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := mustCanvas(t, s)
	a := mustCard(t, s, c.ID, 0, 0)

	card, err := s.UpdateCard(ctx, c.ID, a.ID, models.CardPatch{Width: models.Ptr(10.0), Height: models.Ptr(-5.0), Title: models.Ptr("renamed")})
	if err != nil {
		t.Fatal(err)
	}
	if card.Width != models.MinCardWidth || card.Height != models.MinCardHeight || card.Title != "renamed" {
		t.Errorf("card = %+v", card)
	}
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := mustCanvas(t, s)

	if _, err := s.UpdateCard(ctx, c.ID, "ghost", models.CardPatch{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update card err = %v", err)
	}
	if err := s.DeleteCard(ctx, c.ID, "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("delete card err = %v", err)
	}
	if _, err := s.UpdateConnection(ctx, c.ID, "ghost", models.ConnectionPatch{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update connection err = %v", err)
	}
	if err := s.DeleteConnection(ctx, c.ID, "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("delete connection err = %v", err)
	}
	if err := s.UpdateViewport(ctx, "ghost", models.Viewport{Zoom: 1}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("viewport err = %v", err)
	}
}

func TestUpdateConnection(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := mustCanvas(t, s)
	a := mustCard(t, s, c.ID, 0, 0)
	b := mustCard(t, s, c.ID, 400, 0)
	conn, _ := s.CreateConnection(ctx, c.ID, models.NewConnection{FromID: a.ID, ToID: b.ID})

	typ := models.ConnectionBidirectional
	got, err := s.UpdateConnection(ctx, c.ID, conn.ID, models.ConnectionPatch{Type: &typ, Label: models.Ptr("depends on")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != typ || got.Label != "depends on" {
		t.Errorf("connection = %+v", got)
	}
	if err := s.DeleteConnection(ctx, c.ID, conn.ID); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateViewportClampsZoom(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := mustCanvas(t, s)

	if err := s.UpdateViewport(ctx, c.ID, models.Viewport{X: 12, Y: -8, Zoom: 9}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetCanvas(ctx, c.ID)
	if got.Viewport.Zoom != models.MaxZoom || got.Viewport.X != 12 || got.Viewport.Y != -8 {
		t.Errorf("viewport = %+v", got.Viewport)
	}
}

func TestUpdateCanvasIfMatch(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := mustCanvas(t, s)

	_, cs, err := s.Document(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateCanvas(ctx, c.ID, models.CanvasPatch{Name: models.Ptr("Renamed")}, "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	got, err := s.UpdateCanvas(ctx, c.ID, models.CanvasPatch{Name: models.Ptr("Renamed")}, cs)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Renamed" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestDeleteCanvasMovesToTrash(t *testing.T) {
	rec := &recorder{}
	s, store := newTestService(t, WithEventFunc(rec.record))
	ctx := context.Background()
	c := mustCanvas(t, s)

	if err := s.DeleteCanvas(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetCanvas(ctx, c.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
	trashed, err := os.ReadDir(filepath.Join(store.Root(), TrashDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(trashed) != 1 || !strings.HasPrefix(trashed[0].Name(), c.ID+"-") {
		t.Errorf("trash = %v", trashed)
	}
	items, total, _ := s.ListCanvases(ctx, 10, 0, "")
	if total != 0 || len(items) != 0 {
		t.Errorf("list after delete = %+v", items)
	}
	if err := s.DeleteCanvas(ctx, c.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	last := rec.events[len(rec.events)-1]
	if last != EventCanvasDeleted+":"+c.ID {
		t.Errorf("last event = %s", last)
	}
}

func TestSearchAndNeighbors(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := mustCanvas(t, s)
	a, _ := s.CreateCard(ctx, c.ID, models.NewCard{Title: "Launch plan", Content: "ship the **beta**"})
	b := mustCard(t, s, c.ID, 400, 0)
	mustCard(t, s, c.ID, 800, 0)
	if _, err := s.CreateConnection(ctx, c.ID, models.NewConnection{FromID: b.ID, ToID: a.ID}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "launch", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].CardID != a.ID || hits[0].CanvasID != c.ID {
		t.Errorf("hits = %+v", hits)
	}

	ns, err := s.Neighbors(ctx, c.ID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ns) != 1 || ns[0].ID != b.ID {
		t.Errorf("neighbors = %+v", ns)
	}
	if _, err := s.Neighbors(ctx, c.ID, "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestConcurrentCardCreates(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	c := mustCanvas(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.CreateCard(ctx, c.ID, models.NewCard{X: float64(i * 10)}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := s.GetCanvas(ctx, c.ID)
	if len(got.Cards) != 20 {
		t.Errorf("cards = %d, want 20", len(got.Cards))
	}
}
