package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestZoomClamps(t *testing.T) {
	v := NewViewState()
	v.ZoomIn()
	assert.InDelta(t, 1.5, v.Zoom, 1e-9)

	for i := 0; i < 20; i++ {
		v.ZoomIn()
	}
	assert.Equal(t, MaxZoom, v.Zoom)

	for i := 0; i < 40; i++ {
		v.ZoomOut()
	}
	assert.Equal(t, MinZoom, v.Zoom)
}

func TestSetCellSizeAcceptsOnlyKnownSizes(t *testing.T) {
	v := NewViewState()
	assert.True(t, v.SetCellSize(24))
	assert.Equal(t, 24, v.CellSize)
	assert.False(t, v.SetCellSize(17))
	assert.Equal(t, 24, v.CellSize)
}

func TestScreenToCellAndCenterOn(t *testing.T) {
	v := NewViewState()
	v.Zoom = 2
	v.Pan = Point{X: 10, Y: -6}

	x, y := v.ScreenToCell(10+32*3+1, -6+32*2)
	assert.Equal(t, 3, x)
	assert.Equal(t, 2, y)

	x, y = v.ScreenToCell(9, 0)
	assert.Equal(t, -1, x)
	assert.Equal(t, 0, y)

	v.CenterOn(5, 4, 800, 600)
	assert.Equal(t, Point{X: 400 - 5*32, Y: 300 - 4*32}, v.Pan)
}

func TestFilterAndReset(t *testing.T) {
	v := NewViewState()
	assert.True(t, v.Visible('#'))

	v.SetFilter("X")
	assert.True(t, v.Visible('X'))
	assert.False(t, v.Visible('#'))

	v.Zoom = 3
	v.Pan = Point{X: 5, Y: 5}
	v.Selected = &CellInfo{X: 1, Y: 1, Value: "X"}
	v.CellSize = 8
	v.Reset()
	assert.Equal(t, 1.0, v.Zoom)
	assert.Equal(t, Point{}, v.Pan)
	assert.Equal(t, FilterAll, v.Filter)
	assert.Nil(t, v.Selected)
	assert.Equal(t, 8, v.CellSize)
}

func TestNewAnalysis(t *testing.T) {
	stats := Statistics{Width: 3, Height: 2, Cells: 6, Elements: map[string]int{"#": 2}, Total: 2, Empty: 4}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

	a := NewAnalysis(stats, now)
	assert.Equal(t, Dimensions{Width: 3, Height: 2}, a.Dimensions)
	assert.Equal(t, "2024-05-01T11:00:00Z", a.Timestamp)
	assert.Equal(t, 2, a.Statistics.Elements["#"])
}

func TestStatisticsSorted(t *testing.T) {
	stats := Statistics{Cells: 10, Elements: map[string]int{"X": 1, "#": 4}}
	rows := stats.Sorted()
	assert.Equal(t, []SymbolCount{
		{Symbol: "#", Count: 4, Percent: 40},
		{Symbol: "X", Count: 1, Percent: 10},
	}, rows)
}
