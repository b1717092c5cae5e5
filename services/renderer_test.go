package services

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapsmith/models"
)

func TestRenderCanvasColoursCells(t *testing.T) {
	grid := models.GridFromRows([]string{"#.", ".X"})
	view := models.NewViewState()
	view.ShowGrid = false

	img := NewGridRenderer().RenderCanvas(grid, view, 64, 64)
	require.Equal(t, 64, img.Bounds().Dx())

	assert.Equal(t, mustHex("#4a5568"), img.RGBAAt(8, 8))
	assert.Equal(t, BackgroundColor, img.RGBAAt(24, 8))
	assert.Equal(t, mustHex("#e53e3e"), img.RGBAAt(24, 24))
	assert.Equal(t, BackgroundColor, img.RGBAAt(40, 40))
}

func TestRenderCanvasGridLinesAndSelection(t *testing.T) {
	grid := models.GridFromRows([]string{"##", "##"})
	view := models.NewViewState()

	img := NewGridRenderer().RenderCanvas(grid, view, 32, 32)
	assert.Equal(t, GridLineColor, img.RGBAAt(0, 5))
	assert.Equal(t, mustHex("#4a5568"), img.RGBAAt(5, 5))

	view.Selected = &models.CellInfo{X: 1, Y: 1, Value: "#"}
	img = NewGridRenderer().RenderCanvas(grid, view, 32, 32)
	assert.Equal(t, SelectedColor, img.RGBAAt(17, 20))
}

func TestRenderCanvasHonoursPanZoomAndFilter(t *testing.T) {
	grid := models.GridFromRows([]string{"#X"})
	view := models.NewViewState()
	view.ShowGrid = false
	view.Zoom = 0.5
	view.Pan = models.Point{X: 10, Y: 10}

	img := NewGridRenderer().RenderCanvas(grid, view, 40, 40)
	assert.Equal(t, BackgroundColor, img.RGBAAt(5, 12))
	assert.Equal(t, mustHex("#4a5568"), img.RGBAAt(12, 12))
	assert.Equal(t, mustHex("#e53e3e"), img.RGBAAt(20, 12))

	view.SetFilter("X")
	img = NewGridRenderer().RenderCanvas(grid, view, 40, 40)
	assert.Equal(t, BackgroundColor, img.RGBAAt(12, 12))
	assert.Equal(t, mustHex("#e53e3e"), img.RGBAAt(20, 12))
}

func TestRenderCanvasUnknownSymbolUsesFallback(t *testing.T) {
	view := models.NewViewState()
	view.ShowGrid = false
	img := NewGridRenderer().RenderCanvas(models.GridFromRows([]string{"q"}), view, 16, 16)
	assert.Equal(t, FallbackColor, img.RGBAAt(8, 8))
}

func TestRenderCanvasDrawsGlyphsWhenZoomed(t *testing.T) {
	view := models.NewViewState()
	view.ShowGrid = false
	view.Zoom = 4
	img := NewGridRenderer().RenderCanvas(models.GridFromRows([]string{"X"}), view, 64, 64)

	white := 0
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if img.RGBAAt(x, y) == GlyphColor {
				white++
			}
		}
	}
	assert.Greater(t, white, 0)
}

func TestRenderCanvasClampsSize(t *testing.T) {
	img := NewGridRenderer().RenderCanvas(nil, models.NewViewState(), 0, MaxCanvasSide*2)
	assert.Equal(t, DefaultCanvasSide, img.Bounds().Dx())
	assert.Equal(t, MaxCanvasSide, img.Bounds().Dy())
}

func TestEncodePNG(t *testing.T) {
	img := NewGridRenderer().RenderCanvas(models.GridFromRows([]string{"#"}), models.NewViewState(), 20, 10)
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, img))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 20, decoded.Bounds().Dx())
	assert.Equal(t, 10, decoded.Bounds().Dy())
}

func TestRenderText(t *testing.T) {
	grid := models.GridFromRows([]string{
		"#####",
		"#.X.#",
		"#####",
	})
	view := models.NewViewState()
	r := NewGridRenderer()

	assert.Equal(t, []string{
		"#####  ",
		"# X #  ",
		"#####  ",
		"       ",
	}, r.RenderText(grid, view, 7, 4))

	view.Pan = models.Point{X: -32, Y: -16}
	assert.Equal(t, []string{"X #", "###"}, r.RenderText(grid, view, 3, 2))

	view.Pan = models.Point{}
	view.SetFilter("X")
	assert.Equal(t, []string{"     ", "  X  "}, r.RenderText(grid, view, 5, 2))
}

func TestRenderTextZoomedOut(t *testing.T) {
	grid := models.GridFromRows([]string{"....", ".#.#", "....", ".#.#"})
	view := models.NewViewState()
	view.Zoom = 0.5

	assert.Equal(t, []string{"##", "##"}, NewGridRenderer().RenderText(grid, view, 2, 2))
}

func TestSampleCell(t *testing.T) {
	grid := models.GridFromRows([]string{"#X"})
	view := models.NewViewState()
	r := NewGridRenderer()

	pos, sym, ok := r.SampleCell(grid, view, 1, 0)
	assert.True(t, ok)
	assert.Equal(t, models.Position{X: 1, Y: 0}, pos)
	assert.Equal(t, 'X', sym)

	_, _, ok = r.SampleCell(grid, view, 2, 0)
	assert.False(t, ok)
}

func TestPaletteOverrides(t *testing.T) {
	p := NewPalette()
	require.NoError(t, p.Set('q', "#010203"))
	assert.Equal(t, uint8(2), p.ColorFor('q').G)
	assert.Error(t, p.Set('q', "blue"))

	_, err := ParseHexColor("#12345")
	assert.Error(t, err)
}
