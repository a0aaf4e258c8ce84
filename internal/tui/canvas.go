package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/tessera/internal/editor"
	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/interaction"
	"github.com/starford/tessera/internal/markup"
	"github.com/starford/tessera/internal/style"
)

// One terminal cell stands for cellW x cellH screen pixels.
const (
	cellW = 8.0
	cellH = 16.0

	minimapW = 24
	minimapH = 8
)

type cell struct {
	r  rune
	st string
}

// grid is a character canvas with a style key per cell.
type grid struct {
	w, h  int
	cells []cell
}

func newGrid(w, h int) *grid {
	g := &grid{w: w, h: h, cells: make([]cell, w*h)}
	for i := range g.cells {
		g.cells[i] = cell{r: ' '}
	}
	return g
}

func (g *grid) set(x, y int, r rune, st string) {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return
	}
	g.cells[y*g.w+x] = cell{r: r, st: st}
}

func (g *grid) at(x, y int) rune {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return 0
	}
	return g.cells[y*g.w+x].r
}

func (g *grid) text(x, y int, s string, max int, st string) {
	i := 0
	for _, r := range s {
		if i >= max {
			return
		}
		g.set(x+i, y, r, st)
		i++
	}
}

// lines renders each row, merging runs that share a style.
func (g *grid) lines(styles func(string) lipgloss.Style) []string {
	out := make([]string, g.h)
	for y := 0; y < g.h; y++ {
		var (
			b   strings.Builder
			run strings.Builder
			cur string
		)
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if cur == "" {
				b.WriteString(run.String())
			} else {
				b.WriteString(styles(cur).Render(run.String()))
			}
			run.Reset()
		}
		for x := 0; x < g.w; x++ {
			c := g.cells[y*g.w+x]
			if c.st != cur {
				flush()
				cur = c.st
			}
			run.WriteRune(c.r)
		}
		flush()
		out[y] = b.String()
	}
	return out
}

// cellOf maps a screen point to the grid cell under it. Row 0 of the grid is
// the top of the drawing surface.
func cellOf(v editor.View, p geometry.Point) (int, int) {
	x, y := fracCell(v, p)
	return cellIndex(math.Floor(x)), cellIndex(math.Floor(y))
}

// fracCell is cellOf before flooring.
func fracCell(v editor.View, p geometry.Point) (float64, float64) {
	return (p.X - v.Origin.X) / cellW, (p.Y - v.Origin.Y) / cellH
}

// cellLimit bounds cell coordinates so far-away geometry stays in int range.
const cellLimit = 1 << 30

func cellIndex(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > cellLimit:
		return cellLimit
	case f < -cellLimit:
		return -cellLimit
	}
	return int(f)
}

func screenOf(v editor.View, p geometry.Point) geometry.Point {
	return geometry.ToScreen(p, v.Origin, geometry.Point{X: v.Viewport.X, Y: v.Viewport.Y}, v.Viewport.Zoom)
}

// cardCells returns the inclusive cell rectangle a card covers.
func cardCells(v editor.View, c editor.CardView) (x0, y0, x1, y1 int) {
	tl := screenOf(v, geometry.Point{X: c.X, Y: c.Y})
	br := screenOf(v, geometry.Point{X: c.X + c.Width, Y: c.Y + c.Height})
	x0 = cellIndex(math.Floor((tl.X - v.Origin.X) / cellW))
	y0 = cellIndex(math.Floor((tl.Y - v.Origin.Y) / cellH))
	x1 = cellIndex(math.Ceil((br.X-v.Origin.X)/cellW)) - 1
	y1 = cellIndex(math.Ceil((br.Y-v.Origin.Y)/cellH)) - 1
	if x1 < x0+1 {
		x1 = x0 + 1
	}
	if y1 < y0+1 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}

// hitTest finds what a press at screen point p lands on. The bottom-right
// cell of a card is its resize handle.
func hitTest(v editor.View, p geometry.Point) interaction.Target {
	cx, cy := cellOf(v, p)
	for i := len(v.Cards) - 1; i >= 0; i-- {
		c := v.Cards[i]
		x0, y0, x1, y1 := cardCells(v, c)
		if cx < x0 || cx > x1 || cy < y0 || cy > y1 {
			continue
		}
		if cx == x1 && cy == y1 {
			return interaction.Target{Kind: interaction.TargetResizeHandle, CardID: c.ID, Direction: interaction.SE}
		}
		return interaction.Target{Kind: interaction.TargetCard, CardID: c.ID}
	}
	return interaction.Target{Kind: interaction.TargetEmpty}
}

// connectionAt returns the connection drawn through the cell under p on a
// surface of w x h cells.
func connectionAt(v editor.View, p geometry.Point, w, h int) string {
	cx, cy := cellOf(v, p)
	for i := len(v.Connections) - 1; i >= 0; i-- {
		c := v.Connections[i]
		for _, pt := range routeCells(v, c.Route, w, h) {
			if pt[0] == cx && pt[1] == cy {
				return c.ID
			}
		}
	}
	return ""
}

// routeCells returns the visible cells of a routed connection.
func routeCells(v editor.View, r geometry.Route, w, h int) [][2]int {
	return segmentCells(v, geometry.Point{X: r.X1, Y: r.Y1}, geometry.Point{X: r.X2, Y: r.Y2}, w, h)
}

// segmentCells rasterises the canvas segment a-b after clipping it to the
// surface, so the work is bounded by the terminal size.
func segmentCells(v editor.View, a, b geometry.Point, w, h int) [][2]int {
	ax, ay := fracCell(v, screenOf(v, a))
	bx, by := fracCell(v, screenOf(v, b))
	x0, y0, x1, y1, ok := clipSegment(ax, ay, bx, by, w, h)
	if !ok {
		return nil
	}
	return line(x0, y0, x1, y1)
}

// clipSegment clips a segment in fractional cell units to a w x h surface
// with a one-cell margin (Liang-Barsky) and returns the end cells. A segment
// already inside keeps its exact end cells.
func clipSegment(ax, ay, bx, by float64, w, h int) (x0, y0, x1, y1 int, ok bool) {
	for _, f := range [4]float64{ax, ay, bx, by} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, 0, 0, 0, false
		}
	}
	minX, minY := -1.0, -1.0
	maxX, maxY := float64(w)+1, float64(h)+1
	dx, dy := bx-ax, by-ay
	t0, t1 := 0.0, 1.0
	for _, e := range [4][2]float64{
		{-dx, ax - minX},
		{dx, maxX - ax},
		{-dy, ay - minY},
		{dy, maxY - ay},
	} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return 0, 0, 0, 0, false
			}
			t0 = max(t0, r)
		} else {
			if r < t0 {
				return 0, 0, 0, 0, false
			}
			t1 = min(t1, r)
		}
	}
	sx, sy, ex, ey := ax, ay, bx, by
	if t0 > 0 {
		sx, sy = ax+t0*dx, ay+t0*dy
	}
	if t1 < 1 {
		ex, ey = ax+t1*dx, ay+t1*dy
	}
	return int(math.Floor(sx)), int(math.Floor(sy)), int(math.Floor(ex)), int(math.Floor(ey)), true
}

// line returns the cells of a Bresenham line, both ends included.
func line(x0, y0, x1, y1 int) [][2]int {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	var out [][2]int
	e := dx + dy
	for {
		out = append(out, [2]int{x0, y0})
		if x0 == x1 && y0 == y1 {
			return out
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

var arrowGlyphs = []rune{'→', '↘', '↓', '↙', '←', '↖', '↑', '↗'}

// arrowGlyph picks the arrow nearest to angle, in screen orientation.
func arrowGlyph(angle float64) rune {
	oct := int(math.Round(angle/(math.Pi/4))) % 8
	if oct < 0 {
		oct += 8
	}
	return arrowGlyphs[oct]
}

// draw paints connections, cards, the connection preview and the minimap.
func draw(v editor.View, w, h int) *grid {
	g := newGrid(w, h)

	for _, c := range v.Connections {
		st, r := "line", '•'
		if c.Dashed {
			r = '·'
		}
		if c.Selected {
			st = "line:sel"
		}
		if c.Pending {
			st = "pending"
		}
		for _, pt := range routeCells(v, c.Route, w, h) {
			g.set(pt[0], pt[1], r, st)
		}
	}

	for _, c := range v.Cards {
		drawCard(g, v, c)
	}

	// Arrowheads sit on card borders, so they go over the cards.
	for _, c := range v.Connections {
		st := "line"
		if c.Selected {
			st = "line:sel"
		}
		if c.Pending {
			st = "pending"
		}
		for _, head := range c.Arrowheads {
			tip := screenOf(v, head[1])
			base := screenOf(v, geometry.Point{X: (head[0].X + head[2].X) / 2, Y: (head[0].Y + head[2].Y) / 2})
			x, y := cellOf(v, tip)
			g.set(x, y, arrowGlyph(math.Atan2(tip.Y-base.Y, tip.X-base.X)), st)
		}
		if c.Label != "" {
			mx, my := cellOf(v, screenOf(v, geometry.Point{X: c.Route.MidX, Y: c.Route.MidY}))
			g.text(mx-len([]rune(c.Label))/2, my, c.Label, w, st)
		}
	}

	if v.Preview != nil {
		for _, pt := range segmentCells(v, v.Preview.From, v.Preview.To, w, h) {
			g.set(pt[0], pt[1], '∙', "preview")
		}
	}

	if !v.Minimap.Empty && w >= minimapW*3 && h >= minimapH*2 {
		drawMinimap(g, v, w-minimapW, 0)
	}
	return g
}

func drawCard(g *grid, v editor.View, c editor.CardView) {
	x0, y0, x1, y1 := cardCells(v, c)
	st := "card:" + c.Color
	switch {
	case c.Pending:
		st = "pending"
	case c.Selected:
		st += ":sel"
	}

	// Only the visible part of the card is walked.
	vx0, vx1 := max(x0+1, 0), min(x1-1, g.w-1)
	vy0, vy1 := max(y0+1, 0), min(y1-1, g.h-1)
	for y := vy0; y <= vy1; y++ {
		for x := vx0; x <= vx1; x++ {
			g.set(x, y, ' ', "")
		}
	}
	h, vt, tl, tr, bl, br := '─', '│', '┌', '┐', '└', '┘'
	if c.Selected {
		h, vt, tl, tr, bl, br = '═', '║', '╔', '╗', '╚', '╝'
	}
	for x := vx0; x <= vx1; x++ {
		g.set(x, y0, h, st)
		g.set(x, y1, h, st)
	}
	for y := vy0; y <= vy1; y++ {
		g.set(x0, y, vt, st)
		g.set(x1, y, vt, st)
	}
	g.set(x0, y0, tl, st)
	g.set(x1, y0, tr, st)
	g.set(x0, y1, bl, st)
	g.set(x1, y1, br, st)
	if c.Selected {
		g.set(x1, y1, '◢', st)
	}

	inner := x1 - x0 - 1
	if inner <= 0 || y1-y0 < 2 {
		return
	}
	title := c.Title
	if c.Editing {
		title += "▏"
	}
	g.text(x0+1, y0+1, c.Kind.Glyph+" "+title, inner, st+":title")
	if y0+2 >= g.h || x0+1 >= g.w {
		return
	}
	for i, ln := range strings.Split(markup.PlainText(c.Content), "\n") {
		row := y0 + 2 + i
		if row >= y1 || row >= g.h {
			break
		}
		g.text(x0+1, row, ln, inner, "")
	}
}

func drawMinimap(g *grid, v editor.View, ox, oy int) {
	for y := oy; y < oy+minimapH; y++ {
		for x := ox; x < ox+minimapW; x++ {
			g.set(x, y, ' ', "minimap")
		}
	}
	b := v.Minimap.Bounds
	sx := float64(minimapW-2) / b.W
	sy := float64(minimapH-2) / b.H
	project := func(p geometry.Point) (int, int) {
		return ox + 1 + int((p.X-b.X)*sx), oy + 1 + int((p.Y-b.Y)*sy)
	}

	vp := v.Minimap.Viewport
	ax, ay := project(geometry.Point{X: vp.X, Y: vp.Y})
	bx, by := project(geometry.Point{X: vp.X + vp.W, Y: vp.Y + vp.H})
	clampX := func(x int) int { return max(ox, min(ox+minimapW-1, x)) }
	clampY := func(y int) int { return max(oy, min(oy+minimapH-1, y)) }
	ax, bx, ay, by = clampX(ax), clampX(bx), clampY(ay), clampY(by)
	for x := ax; x <= bx; x++ {
		g.set(x, ay, '▔', "minimap")
		g.set(x, by, '▁', "minimap")
	}

	for _, c := range v.Cards {
		x, y := project(c.Rect().Center())
		g.set(clampX(x), clampY(y), '■', "card:"+c.Color)
	}
}

// styles resolves the style keys used by draw.
func styles(key string) lipgloss.Style {
	parts := strings.Split(key, ":")
	s := lipgloss.NewStyle()
	switch parts[0] {
	case "card":
		if len(parts) > 1 {
			s = s.Foreground(lipgloss.Color(style.Hex(parts[1])))
		}
		for _, p := range parts[2:] {
			switch p {
			case "sel":
				s = s.Bold(true)
			case "title":
				s = s.Bold(true)
			}
		}
	case "pending":
		s = s.Faint(true)
	case "line":
		s = s.Foreground(lipgloss.Color("#6b7280"))
		if len(parts) > 1 {
			s = s.Foreground(lipgloss.Color("#f59e0b")).Bold(true)
		}
	case "preview":
		s = s.Foreground(lipgloss.Color("#f59e0b"))
	case "minimap":
		s = s.Background(lipgloss.Color("#1f2937")).Foreground(lipgloss.Color("#9ca3af"))
	}
	return s
}
