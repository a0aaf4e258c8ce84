package style

import (
	"math"
	"testing"

	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/models"
)

func TestDefaultConnectionKinds(t *testing.T) {
	r := Default()
	route := geometry.RouteConnection(
		geometry.Rect{X: 0, Y: 0, W: 100, H: 100},
		geometry.Rect{X: 300, Y: 0, W: 100, H: 100},
	)

	cases := []struct {
		typ    models.ConnectionType
		dashed bool
		heads  int
	}{
		{models.ConnectionSimple, true, 0},
		{models.ConnectionDirectional, false, 1},
		{models.ConnectionBidirectional, false, 2},
	}
	for _, tc := range cases {
		t.Run(string(tc.typ), func(t *testing.T) {
			k := r.Connection(tc.typ)
			if k.Dashed != tc.dashed {
				t.Errorf("dashed = %v, want %v", k.Dashed, tc.dashed)
			}
			if got := len(k.Arrowheads(route)); got != tc.heads {
				t.Errorf("arrowheads = %d, want %d", got, tc.heads)
			}
		})
	}
}

func TestArrowheadTipsAtEndpoints(t *testing.T) {
	route := geometry.RouteConnection(
		geometry.Rect{X: 0, Y: 0, W: 100, H: 100},
		geometry.Rect{X: 300, Y: 0, W: 100, H: 100},
	)
	heads := Default().Connection(models.ConnectionBidirectional).Arrowheads(route)
	if heads[0][1] != (geometry.Point{X: route.X2, Y: route.Y2}) {
		t.Errorf("to tip = %+v", heads[0][1])
	}
	if heads[1][1] != (geometry.Point{X: route.X1, Y: route.Y1}) {
		t.Errorf("from tip = %+v", heads[1][1])
	}
	// The "from" head points back toward the first card, so its wings sit
	// to the right of the tip.
	if heads[1][0].X <= route.X1 || math.IsNaN(heads[1][0].X) {
		t.Errorf("from wing = %+v", heads[1][0])
	}
}

func TestUnknownKindsFallBack(t *testing.T) {
	r := Default()
	if k := r.Card("sticker"); k.Type != models.CardNote {
		t.Errorf("card fallback = %+v", k)
	}
	if k := r.Connection("zigzag"); k.Type != models.ConnectionSimple {
		t.Errorf("connection fallback = %+v", k)
	}

	r.RegisterCard(CardKind{Type: "sticker", Label: "Sticker", Glyph: "*", Accent: "yellow"})
	if k := r.Card("sticker"); k.Label != "Sticker" {
		t.Errorf("registered kind not returned: %+v", k)
	}
}

func TestCardColor(t *testing.T) {
	r := Default()
	if got := r.CardColor(models.Card{Type: models.CardTask}); got != "green" {
		t.Errorf("accent = %q, want green", got)
	}
	if got := r.CardColor(models.Card{Type: models.CardTask, Color: "red"}); got != "red" {
		t.Errorf("own colour = %q, want red", got)
	}
	if c := RGBA("red"); c.R != 0xef || c.G != 0x44 || c.B != 0x44 {
		t.Errorf("RGBA(red) = %+v", c)
	}
	if Hex("nope") != Hex("gray") {
		t.Error("unknown colour should map to gray")
	}
}
