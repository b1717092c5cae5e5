package models

import (
	"math"
	"unicode/utf8"
)

// View limits and defaults
const (
	MinZoom         = 0.1
	MaxZoom         = 10.0
	ZoomStep        = 1.5
	DefaultCellSize = 16
	FilterAll       = "all"

	// GridLineZoom is the zoom above which cell outlines are drawn
	GridLineZoom = 0.5
	// GlyphZoom is the zoom above which symbols are drawn on cells
	GlyphZoom = 1.5
)

// CellSizes lists the selectable cell sizes in pixels
var CellSizes = []int{8, 12, 16, 20, 24}

// Point is a pan offset in canvas pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CellInfo describes a hovered or selected cell
type CellInfo struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Value string `json:"value"`
}

// ViewState is the per-viewer camera. It never touches the grid.
type ViewState struct {
	Zoom     float64   `json:"zoom"`
	Pan      Point     `json:"pan"`
	CellSize int       `json:"cell_size"`
	ShowGrid bool      `json:"show_grid"`
	Filter   string    `json:"filter"`
	Selected *CellInfo `json:"selected,omitempty"`
	Hovered  *CellInfo `json:"hovered,omitempty"`
}

// NewViewState returns the initial camera
func NewViewState() *ViewState {
	return &ViewState{Zoom: 1, CellSize: DefaultCellSize, ShowGrid: true, Filter: FilterAll}
}

// Reset restores zoom, pan, filter and selection
func (v *ViewState) Reset() {
	v.Zoom = 1
	v.Pan = Point{}
	v.Filter = FilterAll
	v.Selected = nil
}

// ZoomIn multiplies zoom by the step, capped at MaxZoom
func (v *ViewState) ZoomIn() {
	v.Zoom = math.Min(v.Zoom*ZoomStep, MaxZoom)
}

// ZoomOut divides zoom by the step, floored at MinZoom
func (v *ViewState) ZoomOut() {
	v.Zoom = math.Max(v.Zoom/ZoomStep, MinZoom)
}

// PanBy shifts the camera by a pixel delta
func (v *ViewState) PanBy(dx, dy float64) {
	v.Pan.X += dx
	v.Pan.Y += dy
}

// SetCellSize accepts only the sizes in CellSizes
func (v *ViewState) SetCellSize(size int) bool {
	for _, s := range CellSizes {
		if s == size {
			v.CellSize = size
			return true
		}
	}
	return false
}

// SetFilter shows only the given symbol; "" or "all" shows everything
func (v *ViewState) SetFilter(filter string) {
	if filter == "" || filter == FilterAll {
		v.Filter = FilterAll
		return
	}
	r, _ := utf8.DecodeRuneInString(filter)
	v.Filter = string(r)
}

// Visible reports whether a symbol passes the filter
func (v *ViewState) Visible(symbol rune) bool {
	return v.Filter == FilterAll || v.Filter == string(symbol)
}

// Scale is the on-canvas size of one cell in pixels
func (v *ViewState) Scale() float64 {
	return float64(v.CellSize) * v.Zoom
}

// ScreenToCell converts a canvas pixel to grid coordinates
func (v *ViewState) ScreenToCell(px, py float64) (int, int) {
	s := v.Scale()
	return int(math.Floor((px - v.Pan.X) / s)), int(math.Floor((py - v.Pan.Y) / s))
}

// CenterOn pans so that cell (x, y) sits in the middle of the canvas
func (v *ViewState) CenterOn(x, y int, canvasW, canvasH float64) {
	s := v.Scale()
	v.Pan = Point{X: canvasW/2 - float64(x)*s, Y: canvasH/2 - float64(y)*s}
}
