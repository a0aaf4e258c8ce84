package models

import (
	"errors"
	"testing"

	"github.com/starford/tessera/internal/apperr"
)

func testCanvas() *Canvas {
	return &Canvas{
		ID: "c1",
		Cards: []Card{
			{ID: "a", Width: 240, Height: 180},
			{ID: "b", X: 400, Width: 240, Height: 180},
			{ID: "c", X: 800, Width: 240, Height: 180},
		},
		Connections: []Connection{
			{ID: "ab", FromID: "a", ToID: "b", Type: ConnectionDirectional},
			{ID: "bc", FromID: "b", ToID: "c", Type: ConnectionSimple},
		},
	}
}

func TestCheckConnection(t *testing.T) {
	c := testCanvas()
	cases := []struct {
		name     string
		from, to string
		wantErr  bool
	}{
		{"self loop", "a", "a", true},
		{"missing endpoint", "a", "zzz", true},
		{"duplicate same direction", "a", "b", true},
		{"duplicate reversed", "b", "a", true},
		{"new pair", "a", "c", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.CheckConnection(tc.from, tc.to)
			if tc.wantErr {
				if !errors.Is(err, apperr.ErrInvariant) {
					t.Errorf("err = %v, want ErrInvariant", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRemoveCardCascades(t *testing.T) {
	c := testCanvas()
	card, dropped, ok := c.RemoveCard("b")
	if !ok || card.ID != "b" {
		t.Fatalf("RemoveCard = %v, %v", card, ok)
	}
	if len(dropped) != 2 {
		t.Errorf("dropped = %d, want 2", len(dropped))
	}
	for _, conn := range c.Connections {
		if conn.Touches("b") {
			t.Errorf("dangling connection %s", conn.ID)
		}
	}
	if len(c.Cards) != 2 {
		t.Errorf("cards = %d, want 2", len(c.Cards))
	}
	if _, _, ok := c.RemoveCard("b"); ok {
		t.Error("second remove should report not found")
	}
}

func TestNewCardDefaults(t *testing.T) {
	card := NewCard{Title: "x", X: 10, Y: 20}.Build("id1", MinCardWidth, MinCardHeight)
	if card.Type != CardNote {
		t.Errorf("type = %q, want note", card.Type)
	}
	if card.Width != DefaultCardWidth || card.Height != DefaultCardHeight {
		t.Errorf("size = %vx%v", card.Width, card.Height)
	}

	small := NewCard{Width: 10, Height: 10}.Build("id2", MinCardWidth, MinCardHeight)
	if small.Width != MinCardWidth || small.Height != MinCardHeight {
		t.Errorf("size = %vx%v, want clamped", small.Width, small.Height)
	}
}

func TestViewportNormalize(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 1},
		{0.1, MinZoom},
		{10, MaxZoom},
		{1.5, 1.5},
	}
	for _, tc := range cases {
		if got := (Viewport{Zoom: tc.in}).Normalize().Zoom; got != tc.want {
			t.Errorf("Normalize(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCardPatchApply(t *testing.T) {
	c := Card{ID: "a", Title: "old", X: 1}
	CardPatch{Title: Ptr("new"), Color: Ptr("red")}.Apply(&c)
	if c.Title != "new" || c.Color != "red" || c.X != 1 {
		t.Errorf("card = %+v", c)
	}
}

func TestValidColor(t *testing.T) {
	if !ValidColor("") || !ValidColor("blue") {
		t.Error("expected valid colours")
	}
	if ValidColor("chartreuse") {
		t.Error("expected invalid colour")
	}
}
