package scene

import (
	"errors"
	"testing"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/models"
)

func testScene() *Scene {
	return New(&models.Canvas{
		ID: "c1",
		Cards: []models.Card{
			{ID: "a", X: 0, Y: 0, Width: 240, Height: 180},
			{ID: "b", X: 400, Y: 0, Width: 240, Height: 180},
			{ID: "c", X: 100, Y: 100, Width: 240, Height: 180},
		},
		Connections: []models.Connection{{ID: "ab", FromID: "a", ToID: "b"}},
		Viewport:    models.Viewport{Zoom: 10},
	}, DefaultSettings())
}

func TestNewNormalizesViewport(t *testing.T) {
	s := testScene()
	if s.Viewport.Zoom != models.MaxZoom {
		t.Errorf("zoom = %v", s.Viewport.Zoom)
	}
	if s.Cards[0].Status != Confirmed {
		t.Errorf("status = %v", s.Cards[0].Status)
	}
}

func TestRemoveCardCascades(t *testing.T) {
	s := testScene()
	s.Select("a")
	card, dropped, ok := s.RemoveCard("a")
	if !ok || card.ID != "a" || len(dropped) != 1 || dropped[0].ID != "ab" {
		t.Fatalf("removed = %+v, %+v, %v", card, dropped, ok)
	}
	if len(s.Connections) != 0 || s.IsSelected("a") {
		t.Errorf("connections = %+v, selected = %v", s.Connections, s.Selected())
	}
	if _, _, ok := s.RemoveCard("a"); ok {
		t.Error("second remove should fail")
	}
}

func TestCanConnect(t *testing.T) {
	s := testScene()
	s.AddCard(Card{Card: models.Card{ID: s.NextTempID()}, Status: Pending})

	cases := []struct {
		name     string
		from, to string
		want     error
	}{
		{"ok", "a", "c", nil},
		{"self", "a", "a", apperr.ErrInvariant},
		{"duplicate reversed", "b", "a", apperr.ErrInvariant},
		{"missing", "a", "zz", apperr.ErrInvariant},
		{"pending", "a", "tmp-1", apperr.ErrNotYetPersisted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.CanConnect(tc.from, tc.to)
			if tc.want == nil && err != nil {
				t.Errorf("err = %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestConfirmCardRemapsAndKeepsLocalGeometry(t *testing.T) {
	s := testScene()
	tmp := s.NextTempID()
	if !IsTemp(tmp) {
		t.Fatalf("id %q not temporary", tmp)
	}
	s.AddCard(Card{Card: models.Card{ID: tmp, Title: "draft", X: 20, Y: 20, Width: 240, Height: 180}, Status: Pending})
	s.Select(tmp)
	s.Connections = append(s.Connections, Connection{Connection: models.Connection{ID: "tc", FromID: tmp, ToID: "c"}})

	// The user dragged the card while it was pending.
	s.Card(tmp).X = 60

	dirty, ok := s.ConfirmCard(tmp, models.Card{ID: "real", Title: "draft", X: 20, Y: 20, Width: 240, Height: 180})
	if !ok || !dirty {
		t.Fatalf("dirty = %v, ok = %v", dirty, ok)
	}
	c := s.Card("real")
	if c == nil || c.Status != Confirmed || c.X != 60 || c.Title != "draft" {
		t.Errorf("card = %+v", c)
	}
	if s.Connection("tc").FromID != "real" || !s.IsSelected("real") {
		t.Errorf("remap failed: %+v %v", s.Connection("tc"), s.Selected())
	}
}

func TestSelection(t *testing.T) {
	s := testScene()
	s.Select("a")
	s.Toggle("b")
	s.Toggle("a")
	if got := s.Selected(); len(got) != 1 || got[0] != "b" {
		t.Errorf("selected = %v", got)
	}
	s.AddCard(Card{Card: models.Card{ID: s.NextTempID()}, Status: Pending})
	s.SelectAll()
	if len(s.Selected()) != 3 {
		t.Errorf("select all = %v", s.Selected())
	}
	s.ClearSelection()
	if len(s.Selected()) != 0 {
		t.Error("clear failed")
	}
}

func TestCardAtPicksTopmost(t *testing.T) {
	s := testScene()
	if c := s.CardAt(geometry.Point{X: 150, Y: 150}); c == nil || c.ID != "c" {
		t.Errorf("card = %+v", c)
	}
	if c := s.CardAt(geometry.Point{X: -10, Y: -10}); c != nil {
		t.Errorf("hit empty space: %+v", c)
	}
}

func TestSnap(t *testing.T) {
	s := testScene()
	if got := s.Snap(103); got != 100 {
		t.Errorf("snap = %v", got)
	}
	s.GridSnap = false
	if got := s.Snap(103); got != 103 {
		t.Errorf("snap off = %v", got)
	}
}

func TestConfirmConnectionKeepsLocalLabel(t *testing.T) {
	s := testScene()
	s.Connections = append(s.Connections, Connection{Connection: models.Connection{ID: "tmp-9", FromID: "a", ToID: "c", Label: "edited"}, Status: Pending})
	dirty, ok := s.ConfirmConnection("tmp-9", models.Connection{ID: "ac", FromID: "a", ToID: "c"})
	if !ok || !dirty {
		t.Fatalf("dirty = %v, ok = %v", dirty, ok)
	}
	if c := s.Connection("ac"); c == nil || c.Label != "edited" || c.Status != Confirmed {
		t.Errorf("connection = %+v", c)
	}
	if _, ok := s.ConfirmConnection("tmp-9", models.Connection{}); ok {
		t.Error("confirmed twice")
	}
}
