package services

import (
	"fmt"
	"image/color"
)

// Canvas colours
var (
	BackgroundColor = mustHex("#1a202c")
	GridLineColor   = mustHex("#2d3748")
	FallbackColor   = mustHex("#a0aec0")
	SelectedColor   = mustHex("#fbbf24")
	HoveredColor    = mustHex("#60a5fa")
	GlyphColor      = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// defaultPalette maps well-known symbols to display colours
var defaultPalette = map[rune]string{
	'#': "#4a5568", '█': "#2d3748", '▓': "#4a5568", '■': "#1a202c", '▒': "#718096",
	'~': "#4299e1", '│': "#4a5568", '─': "#4a5568", 'P': "#48bb78", '@': "#48bb78",
	'E': "#f56565", 'M': "#e53e3e", 'X': "#e53e3e", '$': "#ecc94b", '◊': "#ecc94b",
	'♦': "#d69e2e", 'T': "#ed8936", 'H': "#9ae6b4", '+': "#9ae6b4", '⌂': "#805ad5",
	'♣': "#38a169", '♠': "#2f855a", 'Ω': "#e53e3e", '*': "#fbd38d", '!': "#fc8181",
	'A': "#667eea", 'B': "#f687b3",
}

// Palette resolves symbol colours
type Palette struct {
	colors   map[rune]color.RGBA
	fallback color.RGBA
}

// NewPalette builds the default palette
func NewPalette() *Palette {
	p := &Palette{colors: make(map[rune]color.RGBA, len(defaultPalette)), fallback: FallbackColor}
	for r, hex := range defaultPalette {
		p.colors[r] = mustHex(hex)
	}
	return p
}

// Set overrides the colour of a symbol
func (p *Palette) Set(symbol rune, hex string) error {
	c, err := ParseHexColor(hex)
	if err != nil {
		return err
	}
	p.colors[symbol] = c
	return nil
}

// ColorFor returns the colour of a symbol or the fallback grey
func (p *Palette) ColorFor(symbol rune) color.RGBA {
	if c, ok := p.colors[symbol]; ok {
		return c
	}
	return p.fallback
}

// ParseHexColor parses "#rrggbb"
func ParseHexColor(s string) (color.RGBA, error) {
	var r, g, b uint8
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q", s)
	}
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

func mustHex(s string) color.RGBA {
	c, err := ParseHexColor(s)
	if err != nil {
		panic(err)
	}
	return c
}
