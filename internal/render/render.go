// Package render draws canvases to raster images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/markup"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/style"
)

const (
	headerHeight = 28.0
	textInset    = 10.0
	cornerRadius = 6.0
	maxPixels    = 8000
)

// Options controls an export.
type Options struct {
	Scale    float64 // output pixels per canvas unit; 0 means 1
	Padding  float64 // canvas units around the content; 0 means MinimapPadding
	Grid     bool
	GridSize float64
	Style    *style.Registry
	FontSize float64
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.Padding <= 0 {
		o.Padding = models.MinimapPadding
	}
	if o.GridSize <= 0 {
		o.GridSize = models.DefaultGridSize
	}
	if o.Style == nil {
		o.Style = style.Default()
	}
	if o.FontSize <= 0 {
		o.FontSize = 13
	}
	return o
}

// Image draws c. An empty canvas yields a small blank image.
func Image(c *models.Canvas, opts Options) (image.Image, error) {
	opts = opts.withDefaults()

	rects := make([]geometry.Rect, len(c.Cards))
	for i, card := range c.Cards {
		rects[i] = card.Rect()
	}
	bounds, ok := geometry.Bounds(rects, opts.Padding)
	if !ok {
		bounds = geometry.Rect{W: 400, H: 300}
	}

	w := int(bounds.W * opts.Scale)
	h := int(bounds.H * opts.Scale)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("render: empty bounds")
	}
	if w > maxPixels || h > maxPixels {
		return nil, fmt.Errorf("render: image %dx%d exceeds %d pixels per side", w, h, maxPixels)
	}

	face, err := loadFace(opts.FontSize)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()
	dc.Scale(opts.Scale, opts.Scale)
	dc.Translate(-bounds.X, -bounds.Y)
	dc.SetFontFace(face)

	if opts.Grid {
		drawGrid(dc, bounds, opts.GridSize)
	}

	// Connections first so cards cover their ends.
	for _, conn := range c.Connections {
		from, to := c.Card(conn.FromID), c.Card(conn.ToID)
		if from == nil || to == nil {
			continue
		}
		drawConnection(dc, opts.Style, conn, geometry.RouteConnection(from.Rect(), to.Rect()))
	}
	for _, card := range c.Cards {
		drawCard(dc, opts.Style, card)
	}

	return dc.Image(), nil
}

// PNG encodes the rendering of c to w.
func PNG(w io.Writer, c *models.Canvas, opts Options) error {
	img, err := Image(c, opts)
	if err != nil {
		return err
	}
	dc := gg.NewContextForImage(img)
	return dc.EncodePNG(w)
}

func loadFace(size float64) (font.Face, error) {
	f, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse font: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

func drawGrid(dc *gg.Context, b geometry.Rect, grid float64) {
	dc.SetRGB(0.88, 0.88, 0.88)
	start := geometry.Snap(b.X, grid)
	for x := start; x <= b.X+b.W; x += grid {
		for y := geometry.Snap(b.Y, grid); y <= b.Y+b.H; y += grid {
			dc.DrawPoint(x, y, 1)
		}
	}
	dc.Fill()
}

func drawConnection(dc *gg.Context, reg *style.Registry, conn models.Connection, r geometry.Route) {
	kind := reg.Connection(conn.Type)

	dc.SetRGB(0.35, 0.35, 0.4)
	dc.SetLineWidth(2)
	if kind.Dashed {
		dc.SetDash(6, 4)
	} else {
		dc.SetDash()
	}
	dc.DrawLine(r.X1, r.Y1, r.X2, r.Y2)
	dc.Stroke()
	dc.SetDash()

	for _, head := range kind.Arrowheads(r) {
		dc.MoveTo(head[0].X, head[0].Y)
		dc.LineTo(head[1].X, head[1].Y)
		dc.LineTo(head[2].X, head[2].Y)
		dc.ClosePath()
		dc.Fill()
	}

	if conn.Label != "" {
		tw, th := dc.MeasureString(conn.Label)
		dc.SetRGB(1, 1, 1)
		dc.DrawRectangle(r.MidX-tw/2-4, r.MidY-th/2-3, tw+8, th+6)
		dc.Fill()
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(conn.Label, r.MidX, r.MidY, 0.5, 0.5)
	}
}

func drawCard(dc *gg.Context, reg *style.Registry, card models.Card) {
	x, y, w, h := card.X, card.Y, card.Width, card.Height

	dc.SetRGB(1, 1, 1)
	dc.DrawRoundedRectangle(x, y, w, h, cornerRadius)
	dc.Fill()

	accent := style.RGBA(reg.CardColor(card))
	dc.SetColor(accent)
	dc.DrawRoundedRectangle(x, y, w, headerHeight, cornerRadius)
	dc.Fill()
	dc.DrawRectangle(x, y+headerHeight/2, w, headerHeight/2)
	dc.Fill()

	dc.SetRGB(0.6, 0.6, 0.65)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y, w, h, cornerRadius)
	dc.Stroke()

	kind := reg.Card(card.Type)
	dc.SetRGB(1, 1, 1)
	title := truncate(dc, kind.Glyph+" "+card.Title, w-2*textInset)
	dc.DrawStringAnchored(title, x+textInset, y+headerHeight/2, 0, 0.35)

	body := markup.PlainText(card.Content)
	if body == "" {
		return
	}
	dc.SetRGB(0.15, 0.15, 0.2)
	lineHeight := dc.FontHeight() * 1.3
	top := y + headerHeight + textInset + dc.FontHeight()
	for _, para := range strings.Split(body, "\n") {
		for _, line := range dc.WordWrap(para, w-2*textInset) {
			if top > y+h-textInset {
				return
			}
			dc.DrawString(line, x+textInset, top)
			top += lineHeight
		}
	}
}

// truncate shortens s with an ellipsis until it fits width.
func truncate(dc *gg.Context, s string, width float64) string {
	if tw, _ := dc.MeasureString(s); tw <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 {
		r = r[:len(r)-1]
		if tw, _ := dc.MeasureString(string(r) + "…"); tw <= width {
			return string(r) + "…"
		}
	}
	return ""
}
