package services

import (
	"math/rand/v2"
	"time"

	"github.com/zyedidia/generic/mapset"
	"go.uber.org/zap"

	"mapsmith/models"
)

// Sampling budgets for the rejection loops
const (
	randomBarrierAttemptFactor = 10
	elementAttemptFactor       = 20
	freeCellSamples            = 100
	scatterCandidates          = 20
	clusterRadius              = 3
)

// ElementResult records how many copies of an element were placed
type ElementResult struct {
	Symbol    string `json:"symbol"`
	Requested int    `json:"requested"`
	Placed    int    `json:"placed"`
}

// Violation is a placed element that breaks one of its restrictions
type Violation struct {
	Symbol string `json:"symbol"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// GenerationReport summarises a generator run
type GenerationReport struct {
	Seed       int64           `json:"seed"`
	Elements   []ElementResult `json:"elements"`
	Violations []Violation     `json:"violations"`
	FreeCells  int             `json:"free_cells"`
	Duration   time.Duration   `json:"duration"`
}

// Shortfalls lists the elements that were not fully placed
func (r *GenerationReport) Shortfalls() []ElementResult {
	var out []ElementResult
	for _, e := range r.Elements {
		if e.Placed < e.Requested {
			out = append(out, e)
		}
	}
	return out
}

// GeneratorOption customises a MapGenerator
type GeneratorOption func(*MapGenerator)

// WithLogger sets the logger used for warnings
func WithLogger(logger *zap.Logger) GeneratorOption {
	return func(g *MapGenerator) { g.logger = logger }
}

// WithSeed overrides the seed from the config
func WithSeed(seed int64) GeneratorOption {
	return func(g *MapGenerator) { g.seed = seed }
}

// MapGenerator builds a grid from a MapConfig: barriers first, then elements
type MapGenerator struct {
	config   *models.MapConfig
	grid     *models.Grid
	occupied mapset.Set[models.Position]
	rng      *rand.Rand
	seed     int64
	logger   *zap.Logger
}

// NewMapGenerator creates a generator for the config
func NewMapGenerator(cfg *models.MapConfig, opts ...GeneratorOption) *MapGenerator {
	g := &MapGenerator{
		config: cfg,
		seed:   cfg.Seed,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.seed == 0 {
		g.seed = time.Now().UnixNano()
	}
	return g
}

// Generate runs the full pipeline and returns the grid with a report
func (g *MapGenerator) Generate() (*models.Grid, *GenerationReport, error) {
	if err := g.config.Validate(); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	g.grid = models.NewGrid(g.config.Dimensions.Width, g.config.Dimensions.Height)
	g.occupied = mapset.New[models.Position]()
	g.rng = rand.New(rand.NewPCG(uint64(g.seed), uint64(g.seed)>>32|1))

	report := &GenerationReport{Seed: g.seed}

	g.generateBarriers()
	report.Elements = g.generateElements()
	report.Violations = g.validateRestrictions()
	report.FreeCells = g.freeCells()
	report.Duration = time.Since(start)

	for _, s := range report.Shortfalls() {
		g.logger.Warn("element only partially placed",
			zap.String("symbol", s.Symbol),
			zap.Int("placed", s.Placed),
			zap.Int("requested", s.Requested))
	}
	for _, v := range report.Violations {
		g.logger.Warn("restriction violated",
			zap.String("symbol", v.Symbol),
			zap.Int("x", v.X),
			zap.Int("y", v.Y))
	}
	g.logger.Debug("map generated",
		zap.Int("width", g.grid.Width),
		zap.Int("height", g.grid.Height),
		zap.Int64("seed", g.seed),
		zap.Int("free", report.FreeCells),
		zap.Duration("took", report.Duration))

	return g.grid, report, nil
}

// generateBarriers lays out the barriers in order; unknown types are skipped
func (g *MapGenerator) generateBarriers() {
	for _, b := range g.config.Barriers {
		switch b.Type {
		case models.BarrierPerimeter:
			g.createPerimeter(b.SymbolRune())
		case models.BarrierRandom:
			g.createRandomBarriers(b.RandomCount(), b.SymbolRune())
		case models.BarrierLine:
			g.createLine(*b.Start, *b.End, b.SymbolRune())
		case models.BarrierRectangle:
			g.createRectangle(b.X, b.Y, b.Width, b.Height, b.Filled, b.SymbolRune())
		default:
			g.logger.Debug("skipping unknown barrier type", zap.String("type", string(b.Type)))
		}
	}
}

func (g *MapGenerator) createPerimeter(symbol rune) {
	w, h := g.grid.Width, g.grid.Height
	for x := 0; x < w; x++ {
		g.placeAt(x, 0, symbol)
		g.placeAt(x, h-1, symbol)
	}
	for y := 0; y < h; y++ {
		g.placeAt(0, y, symbol)
		g.placeAt(w-1, y, symbol)
	}
}

func (g *MapGenerator) createRandomBarriers(count int, symbol rune) {
	placed, attempts := 0, 0
	maxAttempts := count * randomBarrierAttemptFactor
	for placed < count && attempts < maxAttempts && g.freeCells() > 0 {
		x, y := g.rng.IntN(g.grid.Width), g.rng.IntN(g.grid.Height)
		if g.isFree(x, y) {
			g.placeAt(x, y, symbol)
			placed++
		}
		attempts++
	}
}

// createLine draws the line cell by cell. The grid is convex, so once the
// walk has been inside and steps out it cannot come back.
func (g *MapGenerator) createLine(from, to models.Position, symbol rune) {
	entered := false
	walkLine(from, to, func(x, y int) bool {
		if !g.grid.InBounds(x, y) {
			return !entered
		}
		entered = true
		g.placeAt(x, y, symbol)
		return true
	})
}

// createRectangle visits only the part of the rectangle inside the grid;
// the outline test uses the unclipped edges
func (g *MapGenerator) createRectangle(x, y, width, height int, filled bool, symbol rune) {
	if width < 1 || height < 1 {
		return
	}
	right, bottom := x+width-1, y+height-1
	for cy := max(y, 0); cy <= min(bottom, g.grid.Height-1); cy++ {
		for cx := max(x, 0); cx <= min(right, g.grid.Width-1); cx++ {
			if filled || cx == x || cx == right || cy == y || cy == bottom {
				g.placeAt(cx, cy, symbol)
			}
		}
	}
}

// BresenhamLine returns every cell on the line from a to b, both ends included
func BresenhamLine(a, b models.Position) []models.Position {
	points := make([]models.Position, 0, max(abs(b.X-a.X), abs(b.Y-a.Y))+1)
	walkLine(a, b, func(x, y int) bool {
		points = append(points, models.Position{X: x, Y: y})
		return true
	})
	return points
}

// walkLine steps from a to b with Bresenham's algorithm, calling visit for
// each cell until it returns false
func walkLine(a, b models.Position, visit func(x, y int) bool) {
	dx := abs(b.X - a.X)
	dy := abs(b.Y - a.Y)
	sx, sy := -1, -1
	if a.X < b.X {
		sx = 1
	}
	if a.Y < b.Y {
		sy = 1
	}
	err := dx - dy

	x, y := a.X, a.Y
	for {
		if !visit(x, y) || (x == b.X && y == b.Y) {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

func (g *MapGenerator) generateElements() []ElementResult {
	results := make([]ElementResult, 0, len(g.config.Elements))
	for _, e := range g.config.Elements {
		results = append(results, g.placeElement(e))
	}
	return results
}

func (g *MapGenerator) placeElement(e models.ElementConfig) ElementResult {
	symbol := e.SymbolRune()
	count := e.Requested()
	restrictions := g.config.RestrictionsFor(symbol)

	placed, attempts := 0, 0
	maxAttempts := count * elementAttemptFactor
	for placed < count && attempts < maxAttempts && g.freeCells() > 0 {
		var pos *models.Position
		switch e.Strategy() {
		case models.PlacementClustered:
			pos = g.clusteredPosition(symbol)
		case models.PlacementScattered:
			pos = g.scatteredPosition(symbol)
		default:
			pos = g.randomFreePosition()
		}

		if pos != nil && g.canPlace(*pos, restrictions) {
			g.placeAt(pos.X, pos.Y, symbol)
			placed++
		}
		attempts++
	}

	return ElementResult{Symbol: string(symbol), Requested: count, Placed: placed}
}

func (g *MapGenerator) randomFreePosition() *models.Position {
	for i := 0; i < freeCellSamples; i++ {
		x, y := g.rng.IntN(g.grid.Width), g.rng.IntN(g.grid.Height)
		if g.isFree(x, y) {
			return &models.Position{X: x, Y: y}
		}
	}
	return nil
}

func (g *MapGenerator) clusteredPosition(symbol rune) *models.Position {
	existing := g.grid.PositionsOf(symbol)
	if len(existing) == 0 {
		return g.randomFreePosition()
	}

	ref := existing[g.rng.IntN(len(existing))]
	for dx := -clusterRadius; dx <= clusterRadius; dx++ {
		for dy := -clusterRadius; dy <= clusterRadius; dy++ {
			x, y := ref.X+dx, ref.Y+dy
			if g.isFree(x, y) {
				return &models.Position{X: x, Y: y}
			}
		}
	}
	return g.randomFreePosition()
}

func (g *MapGenerator) scatteredPosition(symbol rune) *models.Position {
	existing := g.grid.PositionsOf(symbol)

	var best *models.Position
	bestDist := 0
	for i := 0; i < scatterCandidates; i++ {
		pos := g.randomFreePosition()
		if pos == nil {
			continue
		}
		if len(existing) == 0 {
			return pos
		}

		minDist := -1
		for _, e := range existing {
			d := abs(pos.X-e.X) + abs(pos.Y-e.Y)
			if minDist < 0 || d < minDist {
				minDist = d
			}
		}
		if minDist > bestDist {
			bestDist = minDist
			best = pos
		}
	}
	if best != nil {
		return best
	}
	return g.randomFreePosition()
}

func (g *MapGenerator) canPlace(pos models.Position, restrictions []models.Restriction) bool {
	if !g.isFree(pos.X, pos.Y) {
		return false
	}
	for _, r := range restrictions {
		if !CheckDistance(g.grid, pos, r.Forbidden(), r.Distance()) {
			return false
		}
	}
	return true
}

// CheckDistance reports whether no forbidden symbol lies within the Chebyshev
// box of radius minDist around pos. The cell at pos itself is not checked.
func CheckDistance(grid *models.Grid, pos models.Position, forbidden []rune, minDist int) bool {
	if len(forbidden) == 0 {
		return true
	}
	for dx := -minDist; dx <= minDist; dx++ {
		for dy := -minDist; dy <= minDist; dy++ {
			x, y := pos.X+dx, pos.Y+dy
			if (dx == 0 && dy == 0) || !grid.InBounds(x, y) {
				continue
			}
			cell := grid.Get(x, y)
			for _, f := range forbidden {
				if cell == f {
					return false
				}
			}
		}
	}
	return true
}

func (g *MapGenerator) validateRestrictions() []Violation {
	return FindViolations(g.grid, g.config)
}

// FindViolations checks every element on the grid against its restrictions
func FindViolations(grid *models.Grid, cfg *models.MapConfig) []Violation {
	var out []Violation
	for _, r := range cfg.Restrictions {
		symbol := r.ElementRune()
		forbidden := r.Forbidden()
		for _, pos := range grid.PositionsOf(symbol) {
			if !CheckDistance(grid, pos, forbidden, r.Distance()) {
				out = append(out, Violation{Symbol: string(symbol), X: pos.X, Y: pos.Y})
			}
		}
	}
	return out
}

// placeAt writes a symbol and marks the cell occupied
func (g *MapGenerator) placeAt(x, y int, symbol rune) {
	if g.grid.Set(x, y, symbol) {
		g.occupied.Put(models.Position{X: x, Y: y})
	}
}

// isFree reports whether (x, y) is on the grid and nothing has been placed there
func (g *MapGenerator) isFree(x, y int) bool {
	return g.grid.InBounds(x, y) && !g.occupied.Has(models.Position{X: x, Y: y})
}

// freeCells is the number of cells nothing has been placed on
func (g *MapGenerator) freeCells() int {
	return g.grid.Width*g.grid.Height - g.occupied.Size()
}

// Occupied returns the number of cells written during the last run
func (g *MapGenerator) Occupied() int {
	if g.grid == nil {
		return 0
	}
	return g.occupied.Size()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
