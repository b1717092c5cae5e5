package models

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// MaxDimension bounds the width and height of a generated map
const MaxDimension = 2000

// MaxCoordinate bounds line endpoints, rectangle origins and extents. Shapes
// may hang off the map but not arbitrarily far.
const MaxCoordinate = 2 * MaxDimension

// DefaultConfigName is the store key of the configuration used for new sessions
const DefaultConfigName = "default"

// ErrInvalidConfig wraps every configuration validation or parse failure
var ErrInvalidConfig = errors.New("invalid map config")

// BarrierType selects how a barrier is laid out
type BarrierType string

const (
	BarrierPerimeter BarrierType = "perimeter"
	BarrierRandom    BarrierType = "random"
	BarrierLine      BarrierType = "line"
	BarrierRectangle BarrierType = "rectangle"
)

// Placement selects how element candidates are sampled
type Placement string

const (
	PlacementRandom    Placement = "random"
	PlacementClustered Placement = "clustered"
	PlacementScattered Placement = "scattered"
)

// Fallbacks applied when a config entry leaves a field out
const (
	DefaultBarrierSymbol    = "#"
	DefaultRandomCount      = 10
	DefaultElementCount     = 1
	DefaultMinDistance      = 1
	DefaultElementSymbol    = "X"
	DefaultNewElementCount  = 5
	DefaultLineEndX         = 10
	DefaultLineEndY         = 10
	DefaultRectangleOrigin  = 5
	DefaultRectangleExtent  = 10
	DefaultDimensionsWidth  = 50
	DefaultDimensionsHeight = 30
)

// Dimensions is the size of the map to generate
type Dimensions struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// BarrierConfig describes one barrier layout step. Only the fields used by the
// selected type are read.
type BarrierConfig struct {
	Type   BarrierType `json:"type" yaml:"type"`
	Symbol string      `json:"symbol,omitempty" yaml:"symbol,omitempty"`

	// random
	Count int `json:"count,omitempty" yaml:"count,omitempty"`

	// line
	Start *Position `json:"start,omitempty" yaml:"start,omitempty"`
	End   *Position `json:"end,omitempty" yaml:"end,omitempty"`

	// rectangle
	X      int  `json:"x,omitempty" yaml:"x,omitempty"`
	Y      int  `json:"y,omitempty" yaml:"y,omitempty"`
	Width  int  `json:"width,omitempty" yaml:"width,omitempty"`
	Height int  `json:"height,omitempty" yaml:"height,omitempty"`
	Filled bool `json:"filled,omitempty" yaml:"filled,omitempty"`
}

// ElementConfig describes an entity symbol to scatter over the map
type ElementConfig struct {
	Symbol    string    `json:"symbol" yaml:"symbol"`
	Count     int       `json:"count,omitempty" yaml:"count,omitempty"`
	Placement Placement `json:"placement,omitempty" yaml:"placement,omitempty"`
}

// Restriction keeps an element at least MinDistance cells (Chebyshev) away
// from any of the CannotTouch symbols
type Restriction struct {
	Element     string   `json:"element" yaml:"element"`
	CannotTouch []string `json:"cannot_touch" yaml:"cannot_touch"`
	MinDistance int      `json:"min_distance,omitempty" yaml:"min_distance,omitempty"`
}

// MapConfig is the authoring input for the generator
type MapConfig struct {
	Name         string          `json:"name,omitempty" yaml:"name,omitempty"`
	Seed         int64           `json:"seed,omitempty" yaml:"seed,omitempty"`
	Dimensions   Dimensions      `json:"dimensions" yaml:"dimensions"`
	Barriers     []BarrierConfig `json:"barriers" yaml:"barriers"`
	Elements     []ElementConfig `json:"elements" yaml:"elements"`
	Restrictions []Restriction   `json:"restrictions" yaml:"restrictions"`
}

// DefaultMapConfig returns the configuration a fresh editor starts with
func DefaultMapConfig() *MapConfig {
	return &MapConfig{
		Dimensions:   Dimensions{Width: DefaultDimensionsWidth, Height: DefaultDimensionsHeight},
		Barriers:     []BarrierConfig{{Type: BarrierPerimeter, Symbol: DefaultBarrierSymbol}},
		Elements:     []ElementConfig{},
		Restrictions: []Restriction{},
	}
}

// NewBarrier returns the entry added by "add barrier"
func NewBarrier() BarrierConfig {
	return BarrierConfig{Type: BarrierRandom, Symbol: DefaultBarrierSymbol, Count: DefaultRandomCount}
}

// NewElement returns the entry added by "add element"
func NewElement() ElementConfig {
	return ElementConfig{Symbol: DefaultElementSymbol, Count: DefaultNewElementCount, Placement: PlacementRandom}
}

// NewRestriction returns the entry added by "add restriction"
func NewRestriction() Restriction {
	return Restriction{Element: DefaultElementSymbol, CannotTouch: []string{DefaultBarrierSymbol}, MinDistance: DefaultMinDistance}
}

// Clone returns a deep copy of the config
func (c *MapConfig) Clone() *MapConfig {
	out := *c
	out.Barriers = make([]BarrierConfig, len(c.Barriers))
	for i, b := range c.Barriers {
		if b.Start != nil {
			s := *b.Start
			b.Start = &s
		}
		if b.End != nil {
			e := *b.End
			b.End = &e
		}
		out.Barriers[i] = b
	}
	out.Elements = append([]ElementConfig{}, c.Elements...)
	out.Restrictions = make([]Restriction, len(c.Restrictions))
	for i, r := range c.Restrictions {
		r.CannotTouch = append([]string{}, r.CannotTouch...)
		out.Restrictions[i] = r
	}
	return &out
}

// SymbolRune returns the barrier symbol, defaulting to '#'
func (b BarrierConfig) SymbolRune() rune {
	return symbolOr(b.Symbol, '#')
}

// RandomCount returns the number of random barriers to place
func (b BarrierConfig) RandomCount() int {
	if b.Count <= 0 {
		return DefaultRandomCount
	}
	return b.Count
}

// SymbolRune returns the element symbol
func (e ElementConfig) SymbolRune() rune {
	return symbolOr(e.Symbol, 0)
}

// Requested returns the number of elements to place
func (e ElementConfig) Requested() int {
	if e.Count <= 0 {
		return DefaultElementCount
	}
	return e.Count
}

// Strategy returns the placement strategy; empty or unknown values mean random
func (e ElementConfig) Strategy() Placement {
	switch e.Placement {
	case PlacementClustered, PlacementScattered:
		return e.Placement
	default:
		return PlacementRandom
	}
}

// Distance returns the effective minimum distance
func (r Restriction) Distance() int {
	if r.MinDistance <= 0 {
		return DefaultMinDistance
	}
	return r.MinDistance
}

// ElementRune returns the restricted element symbol
func (r Restriction) ElementRune() rune {
	return symbolOr(r.Element, 0)
}

// Forbidden returns the cannot-touch symbols as runes
func (r Restriction) Forbidden() []rune {
	out := make([]rune, 0, len(r.CannotTouch))
	for _, s := range r.CannotTouch {
		if s == "" {
			continue
		}
		c, _ := utf8.DecodeRuneInString(s)
		out = append(out, c)
	}
	return out
}

// RestrictionsFor returns every restriction that applies to the symbol
func (c *MapConfig) RestrictionsFor(symbol rune) []Restriction {
	var out []Restriction
	for _, r := range c.Restrictions {
		if r.ElementRune() == symbol {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks the config and reports every problem found. Unknown barrier
// types and placements are not errors: the generator skips the former and
// places the latter at random.
func (c *MapConfig) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Dimensions.Width < 1 || c.Dimensions.Width > MaxDimension {
		add("dimensions.width %d outside 1..%d", c.Dimensions.Width, MaxDimension)
	}
	if c.Dimensions.Height < 1 || c.Dimensions.Height > MaxDimension {
		add("dimensions.height %d outside 1..%d", c.Dimensions.Height, MaxDimension)
	}

	for i, b := range c.Barriers {
		if b.Symbol != "" && utf8.RuneCountInString(b.Symbol) != 1 {
			add("barriers[%d].symbol %q must be a single character", i, b.Symbol)
		}
		switch b.Type {
		case BarrierRandom:
			if b.Count < 0 {
				add("barriers[%d].count must not be negative", i)
			}
		case BarrierLine:
			if b.Start == nil || b.End == nil {
				add("barriers[%d] line needs start and end", i)
				break
			}
			for _, p := range []Position{*b.Start, *b.End} {
				if !coordinateOK(p.X) || !coordinateOK(p.Y) {
					add("barriers[%d] line point (%d, %d) outside ±%d", i, p.X, p.Y, MaxCoordinate)
				}
			}
		case BarrierRectangle:
			if b.Width < 1 || b.Height < 1 {
				add("barriers[%d] rectangle needs width and height of at least 1", i)
			}
			if b.Width > MaxCoordinate || b.Height > MaxCoordinate {
				add("barriers[%d] rectangle %dx%d larger than %d", i, b.Width, b.Height, MaxCoordinate)
			}
			if !coordinateOK(b.X) || !coordinateOK(b.Y) {
				add("barriers[%d] rectangle origin (%d, %d) outside ±%d", i, b.X, b.Y, MaxCoordinate)
			}
		}
	}

	for i, e := range c.Elements {
		if utf8.RuneCountInString(e.Symbol) != 1 {
			add("elements[%d].symbol %q must be a single character", i, e.Symbol)
		}
		if e.Count < 0 {
			add("elements[%d].count must not be negative", i)
		}
	}

	for i, r := range c.Restrictions {
		if utf8.RuneCountInString(r.Element) != 1 {
			add("restrictions[%d].element %q must be a single character", i, r.Element)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func coordinateOK(v int) bool {
	return v >= -MaxCoordinate && v <= MaxCoordinate
}

func symbolOr(s string, def rune) rune {
	if s == "" {
		return def
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
