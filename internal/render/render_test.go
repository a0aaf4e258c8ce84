package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/starford/tessera/internal/models"
)

func sampleCanvas() *models.Canvas {
	return &models.Canvas{
		ID: "c1",
		Cards: []models.Card{
			{ID: "a", Type: models.CardNote, Title: "Plan", Content: "# Goals\n- ship **beta**", X: 100, Y: 100, Width: 240, Height: 180, Color: "blue"},
			{ID: "b", Type: models.CardTask, Title: "Build", X: 500, Y: 100, Width: 240, Height: 180},
		},
		Connections: []models.Connection{
			{ID: "ab", FromID: "a", ToID: "b", Type: models.ConnectionDirectional, Label: "then"},
			{ID: "bad", FromID: "a", ToID: "ghost", Type: models.ConnectionSimple},
		},
	}
}

func TestImageBoundsIncludePadding(t *testing.T) {
	img, err := Image(sampleCanvas(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	// Cards span x 100..740, y 100..280; padding 100 on each side.
	b := img.Bounds()
	if b.Dx() != 840 || b.Dy() != 380 {
		t.Errorf("size = %dx%d, want 840x380", b.Dx(), b.Dy())
	}
}

func TestImageScale(t *testing.T) {
	img, err := Image(sampleCanvas(), Options{Scale: 0.5, Grid: true})
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 420 || b.Dy() != 190 {
		t.Errorf("size = %dx%d, want 420x190", b.Dx(), b.Dy())
	}
}

func TestEmptyCanvas(t *testing.T) {
	img, err := Image(&models.Canvas{ID: "empty"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
		t.Errorf("size = %dx%d", b.Dx(), b.Dy())
	}
}

func TestPNGDecodes(t *testing.T) {
	var buf bytes.Buffer
	if err := PNG(&buf, sampleCanvas(), Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
}

func TestOversizedRejected(t *testing.T) {
	c := sampleCanvas()
	c.Cards[1].X = 100000
	if _, err := Image(c, Options{}); err == nil {
		t.Error("expected size error")
	}
}
