package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapsmith/models"
)

func emptyConfig(w, h int) *models.MapConfig {
	return &models.MapConfig{
		Dimensions:   models.Dimensions{Width: w, Height: h},
		Barriers:     []models.BarrierConfig{},
		Elements:     []models.ElementConfig{},
		Restrictions: []models.Restriction{},
	}
}

func TestBresenhamLine(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Position
		want []models.Position
	}{
		{"single point", models.Position{X: 2, Y: 2}, models.Position{X: 2, Y: 2},
			[]models.Position{{X: 2, Y: 2}}},
		{"horizontal", models.Position{X: 0, Y: 1}, models.Position{X: 3, Y: 1},
			[]models.Position{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 1}}},
		{"diagonal backwards", models.Position{X: 3, Y: 3}, models.Position{X: 0, Y: 0},
			[]models.Position{{X: 3, Y: 3}, {X: 2, Y: 2}, {X: 1, Y: 1}, {X: 0, Y: 0}}},
		{"shallow", models.Position{X: 0, Y: 0}, models.Position{X: 4, Y: 2},
			[]models.Position{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 1}, {X: 3, Y: 1}, {X: 4, Y: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, BresenhamLine(tt.a, tt.b)); diff != "" {
				t.Errorf("line mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGenerateRectangles(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		filled bool
		want   int
	}{
		{"outline", 4, 3, false, 10},
		{"filled", 4, 3, true, 12},
		{"single cell", 1, 1, false, 1},
		{"thin outline", 4, 2, false, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := emptyConfig(10, 10)
			cfg.Barriers = []models.BarrierConfig{
				{Type: models.BarrierRectangle, Symbol: "#", X: 2, Y: 2, Width: tt.w, Height: tt.h, Filled: tt.filled},
			}
			g := NewMapGenerator(cfg, WithSeed(1))
			grid, report, err := g.Generate()
			require.NoError(t, err)
			assert.Len(t, grid.PositionsOf('#'), tt.want)
			assert.Equal(t, tt.want, g.Occupied())
			assert.Equal(t, 100-tt.want, report.FreeCells)
		})
	}
}

func TestGenerateHugeShapesStayCheap(t *testing.T) {
	cfg := emptyConfig(50, 30)
	cfg.Barriers = []models.BarrierConfig{
		{Type: models.BarrierLine, Symbol: "~", Start: &models.Position{X: 0, Y: 5}, End: &models.Position{X: models.MaxCoordinate, Y: 5}},
		{Type: models.BarrierLine, Symbol: "~", Start: &models.Position{X: -models.MaxCoordinate, Y: 10}, End: &models.Position{X: models.MaxCoordinate, Y: 10}},
		{Type: models.BarrierRectangle, Symbol: "#", X: -models.MaxCoordinate, Y: -models.MaxCoordinate,
			Width: models.MaxCoordinate, Height: models.MaxCoordinate, Filled: true},
		{Type: models.BarrierRectangle, Symbol: "%", X: 40, Y: 20, Width: models.MaxCoordinate, Height: models.MaxCoordinate},
	}

	allocs := testing.AllocsPerRun(1, func() {
		grid, _, err := NewMapGenerator(cfg, WithSeed(1)).Generate()
		require.NoError(t, err)
		assert.Len(t, grid.PositionsOf('~'), 100)
		assert.Empty(t, grid.PositionsOf('#'))
		// top and left edges from (40, 20); the far edges are off the map
		assert.Len(t, grid.PositionsOf('%'), 10+10-1)
	})
	assert.Less(t, allocs, 10_000.0)
}

func TestGenerateRejectsUnboundedShapes(t *testing.T) {
	cfg := emptyConfig(50, 30)
	cfg.Barriers = []models.BarrierConfig{
		{Type: models.BarrierRectangle, Symbol: "#", Width: 2_000_000_000, Height: 2_000_000_000},
	}
	_, _, err := NewMapGenerator(cfg).Generate()
	assert.ErrorIs(t, err, models.ErrInvalidConfig)

	cfg.Barriers = []models.BarrierConfig{
		{Type: models.BarrierLine, Start: &models.Position{}, End: &models.Position{X: 20_000_000}},
	}
	_, _, err = NewMapGenerator(cfg).Generate()
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestGenerateUnknownTypesFallBack(t *testing.T) {
	cfg := emptyConfig(10, 10)
	cfg.Barriers = []models.BarrierConfig{{Type: "spiral", Symbol: "#"}}
	cfg.Elements = []models.ElementConfig{{Symbol: "X", Count: 4, Placement: "grouped"}}

	grid, report, err := NewMapGenerator(cfg, WithSeed(3)).Generate()
	require.NoError(t, err)
	assert.Empty(t, grid.PositionsOf('#'))
	assert.Len(t, grid.PositionsOf('X'), 4)
	assert.Equal(t, []ElementResult{{Symbol: "X", Requested: 4, Placed: 4}}, report.Elements)
}

func TestGenerateStopsWhenGridIsFull(t *testing.T) {
	cfg := emptyConfig(3, 3)
	cfg.Barriers = []models.BarrierConfig{{Type: models.BarrierRandom, Symbol: "#", Count: 1_000_000}}

	g := NewMapGenerator(cfg, WithSeed(2))
	grid, report, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, 0, report.FreeCells)
	assert.Equal(t, 9, g.Occupied())
	assert.Len(t, grid.PositionsOf('#'), 9)
}

func minPairwiseManhattan(ps []models.Position) int {
	best := -1
	for i := range ps {
		for j := i + 1; j < len(ps); j++ {
			d := abs(ps[i].X-ps[j].X) + abs(ps[i].Y-ps[j].Y)
			if best < 0 || d < best {
				best = d
			}
		}
	}
	return best
}

func TestGenerateScatteredSpreadsOut(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		cfg := emptyConfig(30, 30)
		cfg.Elements = []models.ElementConfig{{Symbol: "$", Count: 6, Placement: models.PlacementScattered}}

		grid, _, err := NewMapGenerator(cfg, WithSeed(seed)).Generate()
		require.NoError(t, err)
		coins := grid.PositionsOf('$')
		require.Len(t, coins, 6)

		// clustered placement puts every copy within Chebyshev 3 (Manhattan 6)
		// of another one; scattered copies land further apart
		assert.Greater(t, minPairwiseManhattan(coins), 2*clusterRadius, "seed %d", seed)
	}
}

func TestGeneratePerimeter(t *testing.T) {
	cfg := emptyConfig(5, 4)
	cfg.Barriers = []models.BarrierConfig{{Type: models.BarrierPerimeter, Symbol: "█"}}

	grid, _, err := NewMapGenerator(cfg, WithSeed(1)).Generate()
	require.NoError(t, err)

	want := []string{
		"█████",
		"█...█",
		"█...█",
		"█████",
	}
	assert.Equal(t, want, grid.Rows())
}

func TestGenerateLineAndRectangleAreClipped(t *testing.T) {
	cfg := emptyConfig(6, 4)
	cfg.Barriers = []models.BarrierConfig{
		{Type: models.BarrierLine, Symbol: "~", Start: &models.Position{X: 0, Y: 0}, End: &models.Position{X: 9, Y: 0}},
		{Type: models.BarrierRectangle, Symbol: "#", X: 3, Y: 2, Width: 10, Height: 10},
	}

	grid, _, err := NewMapGenerator(cfg, WithSeed(1)).Generate()
	require.NoError(t, err)

	want := []string{
		"~~~~~~",
		"......",
		"...###",
		"...#..",
	}
	assert.Equal(t, want, grid.Rows())
}

func TestGenerateRandomBarriers(t *testing.T) {
	cfg := emptyConfig(20, 20)
	cfg.Barriers = []models.BarrierConfig{{Type: models.BarrierRandom, Symbol: "#", Count: 25}}

	g := NewMapGenerator(cfg, WithSeed(7))
	grid, _, err := g.Generate()
	require.NoError(t, err)
	assert.Len(t, grid.PositionsOf('#'), 25)
	assert.Equal(t, 25, g.Occupied())
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	cfg := models.DefaultMapConfig()
	cfg.Barriers = append(cfg.Barriers, models.NewBarrier())
	cfg.Elements = []models.ElementConfig{
		{Symbol: "X", Count: 8, Placement: models.PlacementRandom},
		{Symbol: "$", Count: 6, Placement: models.PlacementScattered},
		{Symbol: "♣", Count: 10, Placement: models.PlacementClustered},
	}

	a, ra, err := NewMapGenerator(cfg, WithSeed(42)).Generate()
	require.NoError(t, err)
	b, rb, err := NewMapGenerator(cfg, WithSeed(42)).Generate()
	require.NoError(t, err)

	assert.Equal(t, a.Rows(), b.Rows())
	assert.Equal(t, ra.Elements, rb.Elements)
	assert.Equal(t, int64(42), ra.Seed)
}

func TestGenerateSeedFromConfig(t *testing.T) {
	cfg := emptyConfig(10, 10)
	cfg.Seed = 99
	cfg.Elements = []models.ElementConfig{{Symbol: "X", Count: 3}}

	_, report, err := NewMapGenerator(cfg).Generate()
	require.NoError(t, err)
	assert.Equal(t, int64(99), report.Seed)
}

func TestGenerateElementsRespectRestrictions(t *testing.T) {
	cfg := models.DefaultMapConfig()
	cfg.Dimensions = models.Dimensions{Width: 30, Height: 20}
	cfg.Elements = []models.ElementConfig{{Symbol: "X", Count: 15, Placement: models.PlacementRandom}}
	cfg.Restrictions = []models.Restriction{{Element: "X", CannotTouch: []string{"#"}, MinDistance: 2}}

	grid, report, err := NewMapGenerator(cfg, WithSeed(3)).Generate()
	require.NoError(t, err)

	positions := grid.PositionsOf('X')
	require.NotEmpty(t, positions)
	for _, p := range positions {
		assert.GreaterOrEqual(t, p.X, 3)
		assert.GreaterOrEqual(t, p.Y, 3)
		assert.LessOrEqual(t, p.X, 26)
		assert.LessOrEqual(t, p.Y, 16)
	}
	assert.Empty(t, report.Violations)
	require.Len(t, report.Elements, 1)
	assert.Equal(t, len(positions), report.Elements[0].Placed)
}

func TestGenerateReportsShortfall(t *testing.T) {
	cfg := emptyConfig(3, 3)
	cfg.Barriers = []models.BarrierConfig{{Type: models.BarrierPerimeter, Symbol: "#"}}
	cfg.Elements = []models.ElementConfig{{Symbol: "X", Count: 5}}

	grid, report, err := NewMapGenerator(cfg, WithSeed(5)).Generate()
	require.NoError(t, err)

	assert.Len(t, grid.PositionsOf('X'), 1)
	short := report.Shortfalls()
	require.Len(t, short, 1)
	assert.Equal(t, ElementResult{Symbol: "X", Requested: 5, Placed: 1}, short[0])
}

func TestGenerateClusteredStaysClose(t *testing.T) {
	cfg := emptyConfig(40, 40)
	cfg.Elements = []models.ElementConfig{{Symbol: "♣", Count: 12, Placement: models.PlacementClustered}}

	grid, _, err := NewMapGenerator(cfg, WithSeed(11)).Generate()
	require.NoError(t, err)

	positions := grid.PositionsOf('♣')
	require.Len(t, positions, 12)
	for _, p := range positions {
		near := false
		for _, q := range positions {
			if p != q && abs(p.X-q.X) <= 3 && abs(p.Y-q.Y) <= 3 {
				near = true
				break
			}
		}
		assert.True(t, near, "%v has no neighbour within the cluster radius", p)
	}
}

func TestGenerateRejectsInvalidConfig(t *testing.T) {
	cfg := emptyConfig(0, 10)
	_, _, err := NewMapGenerator(cfg).Generate()
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestCheckDistance(t *testing.T) {
	grid := models.GridFromRows([]string{
		".....",
		".....",
		"..#..",
		".....",
		".....",
	})
	forbidden := []rune{'#'}

	assert.False(t, CheckDistance(grid, models.Position{X: 1, Y: 1}, forbidden, 1))
	assert.True(t, CheckDistance(grid, models.Position{X: 0, Y: 0}, forbidden, 1))
	assert.False(t, CheckDistance(grid, models.Position{X: 0, Y: 0}, forbidden, 2))
	assert.True(t, CheckDistance(grid, models.Position{X: 1, Y: 1}, nil, 5))
}

func TestFindViolations(t *testing.T) {
	grid := models.GridFromRows([]string{
		"#X...",
		".....",
		"...X.",
	})
	cfg := emptyConfig(5, 3)
	cfg.Restrictions = []models.Restriction{{Element: "X", CannotTouch: []string{"#"}, MinDistance: 1}}

	assert.Equal(t, []Violation{{Symbol: "X", X: 1, Y: 0}}, FindViolations(grid, cfg))
}

func TestFindViolationsIgnoresOwnCell(t *testing.T) {
	grid := models.GridFromRows([]string{
		"X...X",
		".X...",
	})
	cfg := emptyConfig(5, 2)
	cfg.Restrictions = []models.Restriction{{Element: "X", CannotTouch: []string{"X"}, MinDistance: 1}}

	assert.Equal(t, []Violation{
		{Symbol: "X", X: 0, Y: 0},
		{Symbol: "X", X: 1, Y: 1},
	}, FindViolations(grid, cfg))
}
