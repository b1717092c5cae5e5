package services

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"mapsmith/models"
)

// Canvas size limits for rendered images
const (
	MaxCanvasSide     = 4096
	DefaultCanvasSide = 800
)

// GridRenderer draws a grid through a view, either to an image canvas or to
// rows of text
type GridRenderer struct {
	palette *Palette
	face    font.Face
}

// NewGridRenderer creates a renderer with the default palette
func NewGridRenderer() *GridRenderer {
	return &GridRenderer{palette: NewPalette(), face: basicfont.Face7x13}
}

// Palette exposes the renderer palette
func (gr *GridRenderer) Palette() *Palette { return gr.palette }

// RenderCanvas draws the grid onto a canvasW x canvasH image: pan translates,
// zoom scales, empty and filtered cells are left as background.
func (gr *GridRenderer) RenderCanvas(grid *models.Grid, view *models.ViewState, canvasW, canvasH int) *image.RGBA {
	canvasW = clampSide(canvasW)
	canvasH = clampSide(canvasH)
	img := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(img, img.Bounds(), image.NewUniform(BackgroundColor), image.Point{}, draw.Src)
	if grid == nil || grid.Width == 0 || grid.Height == 0 {
		return img
	}

	scale := view.Scale()
	x0 := max(0, int(math.Floor(-view.Pan.X/scale)))
	y0 := max(0, int(math.Floor(-view.Pan.Y/scale)))
	x1 := min(grid.Width-1, int(math.Floor((float64(canvasW)-view.Pan.X)/scale)))
	y1 := min(grid.Height-1, int(math.Floor((float64(canvasH)-view.Pan.Y)/scale)))

	showGrid := view.ShowGrid && view.Zoom > models.GridLineZoom
	showGlyph := view.Zoom > models.GlyphZoom

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			cell := grid.Get(x, y)
			if models.IsEmptySymbol(cell) || !view.Visible(cell) {
				continue
			}

			r := cellRect(view, x, y)
			fillRect(img, r, gr.palette.ColorFor(cell))
			if showGrid {
				strokeRect(img, r, 1, GridLineColor)
			}
			if showGlyph {
				gr.drawGlyph(img, r, cell)
			}
		}
	}

	if view.Selected != nil {
		strokeRect(img, cellRect(view, view.Selected.X, view.Selected.Y), 3, SelectedColor)
	}
	if view.Hovered != nil && view.Zoom > models.GridLineZoom {
		strokeRect(img, cellRect(view, view.Hovered.X, view.Hovered.Y), 2, HoveredColor)
	}
	return img
}

// EncodePNG writes the canvas as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// SampleCell maps a text cell of the viewport to the grid. Each text cell
// covers CellSize canvas pixels and takes the grid cell under its centre.
func (gr *GridRenderer) SampleCell(grid *models.Grid, view *models.ViewState, col, row int) (models.Position, rune, bool) {
	half := float64(view.CellSize) / 2
	px := float64(col*view.CellSize) + half
	py := float64(row*view.CellSize) + half
	x, y := view.ScreenToCell(px, py)
	pos := models.Position{X: x, Y: y}
	if grid == nil || !grid.InBounds(x, y) {
		return pos, 0, false
	}
	cell := grid.Get(x, y)
	if models.IsEmptySymbol(cell) || !view.Visible(cell) {
		return pos, ' ', true
	}
	return pos, cell, true
}

// ViewportCell is one character of a text viewport
type ViewportCell struct {
	Pos    models.Position
	Symbol rune
	InGrid bool
}

// Viewport samples a cols x rows text viewport. Empty and filtered cells
// hold ' ', cells off the grid hold 0.
func (gr *GridRenderer) Viewport(grid *models.Grid, view *models.ViewState, cols, rows int) [][]ViewportCell {
	out := make([][]ViewportCell, rows)
	for row := 0; row < rows; row++ {
		line := make([]ViewportCell, cols)
		for col := 0; col < cols; col++ {
			pos, r, ok := gr.SampleCell(grid, view, col, row)
			line[col] = ViewportCell{Pos: pos, Symbol: r, InGrid: ok}
		}
		out[row] = line
	}
	return out
}

// RenderText renders a cols x rows text viewport
func (gr *GridRenderer) RenderText(grid *models.Grid, view *models.ViewState, cols, rows int) []string {
	cells := gr.Viewport(grid, view, cols, rows)
	out := make([]string, rows)
	line := make([]rune, cols)
	for row, cellRow := range cells {
		for col, c := range cellRow {
			line[col] = c.Symbol
			if !c.InGrid {
				line[col] = ' '
			}
		}
		out[row] = string(line)
	}
	return out
}

func (gr *GridRenderer) drawGlyph(img *image.RGBA, r image.Rectangle, symbol rune) {
	d := &font.Drawer{Dst: img, Src: image.NewUniform(GlyphColor), Face: gr.face}
	s := string(symbol)
	adv := d.MeasureString(s).Ceil()
	m := gr.face.Metrics()
	cx := (r.Min.X + r.Max.X) / 2
	cy := (r.Min.Y + r.Max.Y) / 2
	baseline := cy + (m.Ascent.Ceil()-m.Descent.Ceil())/2
	d.Dot = fixed.P(cx-adv/2, baseline)
	d.DrawString(s)
}

func cellRect(view *models.ViewState, x, y int) image.Rectangle {
	s := view.Scale()
	minX := view.Pan.X + float64(x)*s
	minY := view.Pan.Y + float64(y)*s
	return image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Floor(minX+s)), int(math.Floor(minY+s)),
	)
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func strokeRect(img *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return
	}
	width = min(width, r.Dx(), r.Dy())
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), c)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), c)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), c)
	fillRect(img, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func clampSide(n int) int {
	if n <= 0 {
		return DefaultCanvasSide
	}
	return min(n, MaxCanvasSide)
}
