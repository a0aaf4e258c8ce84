package style

import (
	"image/color"
	"strconv"

	"github.com/starford/tessera/internal/models"
)

var paletteHex = map[string]string{
	"gray":   "#9ca3af",
	"red":    "#ef4444",
	"orange": "#f97316",
	"yellow": "#eab308",
	"green":  "#22c55e",
	"blue":   "#3b82f6",
	"purple": "#a855f7",
	"pink":   "#ec4899",
}

// Hex returns the hex code of a palette colour, or the gray entry for
// unknown and empty names.
func Hex(name string) string {
	if h, ok := paletteHex[name]; ok {
		return h
	}
	return paletteHex["gray"]
}

// RGBA parses the palette colour into an image colour.
func RGBA(name string) color.RGBA {
	h := Hex(name)
	v, err := strconv.ParseUint(h[1:], 16, 32)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// CardColor resolves the header colour of a card: its own colour, else the
// accent of its kind.
func (r *Registry) CardColor(c models.Card) string {
	if c.Color != "" {
		return c.Color
	}
	return r.Card(c.Type).Accent
}
