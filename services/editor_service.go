package services

import (
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"mapsmith/models"
	"mapsmith/persistence"
)

var (
	// ErrNoMap is returned by operations that need a generated or loaded map
	ErrNoMap = errors.New("no map loaded")
	// ErrIndexOutOfRange is returned when a config list index does not exist
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrOutOfBounds is returned for coordinates outside the map
	ErrOutOfBounds = errors.New("position outside the map")
	// ErrUnknownField is returned when an update names a field the entry lacks
	ErrUnknownField = errors.New("unknown field")
)

// EditorService holds one editing session: the config being edited, the
// current grid with its statistics, and the viewer camera
type EditorService struct {
	config   *models.MapConfig
	grid     *models.Grid
	stats    models.Statistics
	report   *GenerationReport
	view     *models.ViewState
	db       persistence.Storage
	renderer *GridRenderer
	calc     *StatsCalculator
	chunks   *ChunkManager
	logger   *zap.Logger
	mutex    sync.RWMutex
}

// NewEditorService creates a session starting from the default config
func NewEditorService(db persistence.Storage, logger *zap.Logger) *EditorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EditorService{
		config:   models.DefaultMapConfig(),
		view:     models.NewViewState(),
		db:       db,
		renderer: NewGridRenderer(),
		calc:     NewStatsCalculator(),
		chunks:   NewChunkManager(DefaultChunkSize, 1),
		logger:   logger,
	}
}

// Config returns a copy of the current config
func (es *EditorService) Config() *models.MapConfig {
	es.mutex.RLock()
	defer es.mutex.RUnlock()
	return es.config.Clone()
}

// Grid returns a copy of the current grid, or nil
func (es *EditorService) Grid() *models.Grid {
	es.mutex.RLock()
	defer es.mutex.RUnlock()
	if es.grid == nil {
		return nil
	}
	return es.grid.Clone()
}

// Stats returns the statistics of the current grid
func (es *EditorService) Stats() (models.Statistics, error) {
	es.mutex.RLock()
	defer es.mutex.RUnlock()
	if es.grid == nil {
		return models.Statistics{}, ErrNoMap
	}
	return es.stats, nil
}

// Report returns the report of the last generation, or nil
func (es *EditorService) Report() *GenerationReport {
	es.mutex.RLock()
	defer es.mutex.RUnlock()
	return es.report
}

// View returns a copy of the camera
func (es *EditorService) View() models.ViewState {
	es.mutex.RLock()
	defer es.mutex.RUnlock()
	return *es.view
}

// SetConfig replaces the config after validating it
func (es *EditorService) SetConfig(cfg *models.MapConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	es.mutex.Lock()
	es.config = cfg.Clone()
	es.mutex.Unlock()
	return nil
}

// SetDimensions sets the map size; non-positive values fall back to 50x30
func (es *EditorService) SetDimensions(width, height int) error {
	if width <= 0 {
		width = models.DefaultDimensionsWidth
	}
	if height <= 0 {
		height = models.DefaultDimensionsHeight
	}
	if width > models.MaxDimension || height > models.MaxDimension {
		return fmt.Errorf("%w: dimensions %dx%d exceed %d", models.ErrInvalidConfig, width, height, models.MaxDimension)
	}

	es.mutex.Lock()
	es.config.Dimensions = models.Dimensions{Width: width, Height: height}
	es.mutex.Unlock()
	return nil
}

// AddBarrier appends a random barrier entry
func (es *EditorService) AddBarrier() int {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	es.config.Barriers = append(es.config.Barriers, models.NewBarrier())
	return len(es.config.Barriers) - 1
}

// RemoveBarrier deletes the barrier at index
func (es *EditorService) RemoveBarrier(index int) error {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	out, err := removeAt(es.config.Barriers, index)
	if err != nil {
		return err
	}
	es.config.Barriers = out
	return nil
}

// UpdateBarrier sets one field of the barrier at index from its text value.
// Numbers that do not parse take the editor defaults.
func (es *EditorService) UpdateBarrier(index int, field, value string) error {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	if index < 0 || index >= len(es.config.Barriers) {
		return fmt.Errorf("barrier %d: %w", index, ErrIndexOutOfRange)
	}
	b := &es.config.Barriers[index]

	switch field {
	case "type":
		b.Type = models.BarrierType(value)
		switch b.Type {
		case models.BarrierLine:
			if b.Start == nil {
				b.Start = &models.Position{}
			}
			if b.End == nil {
				b.End = &models.Position{X: models.DefaultLineEndX, Y: models.DefaultLineEndY}
			}
		case models.BarrierRectangle:
			if b.Width < 1 || b.Height < 1 {
				b.X, b.Y = models.DefaultRectangleOrigin, models.DefaultRectangleOrigin
				b.Width, b.Height = models.DefaultRectangleExtent, models.DefaultRectangleExtent
			}
		}
	case "symbol":
		b.Symbol = firstSymbol(value)
	case "count":
		b.Count = atoiOr(value, models.DefaultRandomCount)
	case "start.x", "start_x":
		b.Start = withX(b.Start, atoiOr(value, 0))
	case "start.y", "start_y":
		b.Start = withY(b.Start, atoiOr(value, 0))
	case "end.x", "end_x":
		b.End = withX(b.End, atoiOr(value, models.DefaultLineEndX))
	case "end.y", "end_y":
		b.End = withY(b.End, atoiOr(value, models.DefaultLineEndY))
	case "x":
		b.X = atoiOr(value, models.DefaultRectangleOrigin)
	case "y":
		b.Y = atoiOr(value, models.DefaultRectangleOrigin)
	case "width":
		b.Width = atoiOr(value, models.DefaultRectangleExtent)
	case "height":
		b.Height = atoiOr(value, models.DefaultRectangleExtent)
	case "filled":
		b.Filled, _ = strconv.ParseBool(value)
	default:
		return fmt.Errorf("barrier %q: %w", field, ErrUnknownField)
	}
	return nil
}

// AddElement appends an element entry
func (es *EditorService) AddElement() int {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	es.config.Elements = append(es.config.Elements, models.NewElement())
	return len(es.config.Elements) - 1
}

// RemoveElement deletes the element at index
func (es *EditorService) RemoveElement(index int) error {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	out, err := removeAt(es.config.Elements, index)
	if err != nil {
		return err
	}
	es.config.Elements = out
	return nil
}

// UpdateElement sets one field of the element at index
func (es *EditorService) UpdateElement(index int, field, value string) error {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	if index < 0 || index >= len(es.config.Elements) {
		return fmt.Errorf("element %d: %w", index, ErrIndexOutOfRange)
	}
	e := &es.config.Elements[index]

	switch field {
	case "symbol":
		e.Symbol = firstSymbol(value)
	case "count":
		e.Count = atoiOr(value, models.DefaultElementCount)
	case "placement":
		e.Placement = models.Placement(value)
	default:
		return fmt.Errorf("element %q: %w", field, ErrUnknownField)
	}
	return nil
}

// AddRestriction appends a restriction entry
func (es *EditorService) AddRestriction() int {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	es.config.Restrictions = append(es.config.Restrictions, models.NewRestriction())
	return len(es.config.Restrictions) - 1
}

// RemoveRestriction deletes the restriction at index
func (es *EditorService) RemoveRestriction(index int) error {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	out, err := removeAt(es.config.Restrictions, index)
	if err != nil {
		return err
	}
	es.config.Restrictions = out
	return nil
}

// UpdateRestriction sets one field of the restriction at index. cannot_touch
// takes comma separated symbols.
func (es *EditorService) UpdateRestriction(index int, field, value string) error {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	if index < 0 || index >= len(es.config.Restrictions) {
		return fmt.Errorf("restriction %d: %w", index, ErrIndexOutOfRange)
	}
	r := &es.config.Restrictions[index]

	switch field {
	case "element":
		r.Element = firstSymbol(value)
	case "cannot_touch":
		r.CannotTouch = ParseSymbolList(value)
	case "min_distance":
		r.MinDistance = atoiOr(value, models.DefaultMinDistance)
	default:
		return fmt.Errorf("restriction %q: %w", field, ErrUnknownField)
	}
	return nil
}

// ParseSymbolList splits comma separated text, trimming items and dropping
// empty ones
func ParseSymbolList(text string) []string {
	out := []string{}
	for _, part := range strings.Split(text, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Generate builds a new grid from the config and resets the view
func (es *EditorService) Generate() (*GenerationReport, error) {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	gen := NewMapGenerator(es.config, WithLogger(es.logger))
	grid, report, err := gen.Generate()
	if err != nil {
		return nil, err
	}

	es.report = report
	es.setGrid(grid)
	es.logger.Info("map generated",
		zap.Int("width", grid.Width),
		zap.Int("height", grid.Height),
		zap.Int64("seed", report.Seed),
		zap.Int("violations", len(report.Violations)))
	return report, nil
}

// LoadMapText replaces the grid with one parsed from text
func (es *EditorService) LoadMapText(r io.Reader) error {
	grid, err := models.ParseGrid(r)
	if err != nil {
		return err
	}
	es.mutex.Lock()
	defer es.mutex.Unlock()
	es.report = nil
	es.setGrid(grid)
	return nil
}

// setGrid installs a grid; callers hold the write lock
func (es *EditorService) setGrid(grid *models.Grid) {
	es.grid = grid
	es.stats = es.calc.Calculate(grid)
	es.chunks.SetGrid(grid)
	es.view.Reset()
	es.view.Hovered = nil
}

// SetCell paints one cell; an empty symbol erases it
func (es *EditorService) SetCell(x, y int, symbol string) error {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	if es.grid == nil {
		return ErrNoMap
	}
	r := models.EmptySymbol
	if s := firstSymbol(symbol); s != "" {
		r, _ = utf8.DecodeRuneInString(s)
	}
	if !es.grid.Set(x, y, r) {
		return fmt.Errorf("cell (%d, %d): %w", x, y, ErrOutOfBounds)
	}
	es.stats = es.calc.Calculate(es.grid)
	es.chunks.Invalidate(x, y)
	return nil
}

// ImportConfig replaces the config with one read from JSON
func (es *EditorService) ImportConfig(r io.Reader) error {
	cfg, err := persistence.ImportConfig(r)
	if err != nil {
		return err
	}
	es.mutex.Lock()
	es.config = cfg
	es.mutex.Unlock()
	return nil
}

// ExportConfig writes the config as JSON
func (es *EditorService) ExportConfig(w io.Writer) error {
	return persistence.ExportConfig(w, es.Config())
}

// SaveDefault stores the config as the default
func (es *EditorService) SaveDefault() error {
	if err := es.db.SaveConfig(models.DefaultConfigName, es.Config()); err != nil {
		return fmt.Errorf("save default config: %w", err)
	}
	return nil
}

// LoadDefault replaces the config with the stored default
func (es *EditorService) LoadDefault() error {
	cfg, err := es.db.LoadConfig(models.DefaultConfigName)
	if err != nil {
		return fmt.Errorf("load default config: %w", err)
	}
	es.mutex.Lock()
	es.config = cfg
	es.mutex.Unlock()
	return nil
}

// SaveMap stores the current grid under a name
func (es *EditorService) SaveMap(name string) (*models.StoredMap, error) {
	es.mutex.RLock()
	if es.grid == nil {
		es.mutex.RUnlock()
		return nil, ErrNoMap
	}
	m := &models.StoredMap{
		Name:   name,
		Width:  es.grid.Width,
		Height: es.grid.Height,
		Rows:   es.grid.Rows(),
	}
	es.mutex.RUnlock()

	if err := es.db.SaveMap(m); err != nil {
		return nil, fmt.Errorf("save map: %w", err)
	}
	return m, nil
}

// LoadSavedMap replaces the grid with a stored map
func (es *EditorService) LoadSavedMap(name string) error {
	m, err := es.db.LoadMap(name)
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	es.mutex.Lock()
	defer es.mutex.Unlock()
	es.report = nil
	es.setGrid(m.Grid())
	return nil
}

// ListMaps lists the stored map names
func (es *EditorService) ListMaps() ([]string, error) {
	return es.db.ListMaps()
}

// ZoomIn zooms the camera in one step
func (es *EditorService) ZoomIn() models.ViewState {
	return es.updateView(func(v *models.ViewState) { v.ZoomIn() })
}

// ZoomOut zooms the camera out one step
func (es *EditorService) ZoomOut() models.ViewState {
	return es.updateView(func(v *models.ViewState) { v.ZoomOut() })
}

// Pan moves the camera by a pixel delta
func (es *EditorService) Pan(dx, dy float64) models.ViewState {
	return es.updateView(func(v *models.ViewState) { v.PanBy(dx, dy) })
}

// SetPan places the camera at an absolute offset
func (es *EditorService) SetPan(x, y float64) models.ViewState {
	return es.updateView(func(v *models.ViewState) { v.Pan = models.Point{X: x, Y: y} })
}

// SetCellSize changes the base cell size; sizes outside CellSizes are rejected
func (es *EditorService) SetCellSize(size int) (models.ViewState, error) {
	ok := true
	view := es.updateView(func(v *models.ViewState) { ok = v.SetCellSize(size) })
	if !ok {
		return view, fmt.Errorf("cell size %d is not one of %v", size, models.CellSizes)
	}
	return view, nil
}

// ToggleGrid flips grid lines
func (es *EditorService) ToggleGrid() models.ViewState {
	return es.updateView(func(v *models.ViewState) { v.ShowGrid = !v.ShowGrid })
}

// SetFilter shows only one symbol, or everything for "all"
func (es *EditorService) SetFilter(filter string) models.ViewState {
	return es.updateView(func(v *models.ViewState) { v.SetFilter(filter) })
}

// ResetView restores the camera defaults
func (es *EditorService) ResetView() models.ViewState {
	return es.updateView(func(v *models.ViewState) { v.Reset() })
}

func (es *EditorService) updateView(fn func(*models.ViewState)) models.ViewState {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	fn(es.view)
	return *es.view
}

// GoTo centres the camera on a cell of a canvasW x canvasH canvas and
// selects it
func (es *EditorService) GoTo(x, y int, canvasW, canvasH float64) (*models.CellInfo, error) {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	info, err := es.cellInfo(x, y)
	if err != nil {
		return nil, err
	}
	es.view.CenterOn(x, y, canvasW, canvasH)
	es.view.Selected = info
	return info, nil
}

// Select marks a cell as selected
func (es *EditorService) Select(x, y int) (*models.CellInfo, error) {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	info, err := es.cellInfo(x, y)
	if err != nil {
		return nil, err
	}
	es.view.Selected = info
	return info, nil
}

// Hover maps a canvas pixel to a cell. It returns nil when the pixel is
// outside the map.
func (es *EditorService) Hover(px, py float64) *models.CellInfo {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	x, y := es.view.ScreenToCell(px, py)
	info, err := es.cellInfo(x, y)
	if err != nil {
		es.view.Hovered = nil
		return nil
	}
	es.view.Hovered = info
	return info
}

// cellInfo describes a cell; callers hold the lock
func (es *EditorService) cellInfo(x, y int) (*models.CellInfo, error) {
	if es.grid == nil {
		return nil, ErrNoMap
	}
	if !es.grid.InBounds(x, y) {
		return nil, fmt.Errorf("cell (%d, %d): %w", x, y, ErrOutOfBounds)
	}
	return &models.CellInfo{X: x, Y: y, Value: string(es.grid.Get(x, y))}, nil
}

// RenderCanvas draws the session canvas
func (es *EditorService) RenderCanvas(width, height int) (*image.RGBA, error) {
	es.mutex.RLock()
	defer es.mutex.RUnlock()
	if es.grid == nil {
		return nil, ErrNoMap
	}
	return es.renderer.RenderCanvas(es.grid, es.view, width, height), nil
}

// RenderText renders a text viewport of the session
func (es *EditorService) RenderText(cols, rows int) ([]string, error) {
	es.mutex.RLock()
	defer es.mutex.RUnlock()
	if es.grid == nil {
		return nil, ErrNoMap
	}
	return es.renderer.RenderText(es.grid, es.view, cols, rows), nil
}

// Viewport samples a text viewport of the session
func (es *EditorService) Viewport(cols, rows int) ([][]ViewportCell, error) {
	es.mutex.RLock()
	defer es.mutex.RUnlock()
	if es.grid == nil {
		return nil, ErrNoMap
	}
	return es.renderer.Viewport(es.grid, es.view, cols, rows), nil
}

// Palette returns the colours used to draw symbols
func (es *EditorService) Palette() *Palette {
	return es.renderer.Palette()
}

// Chunks returns the grid chunks around a cell
func (es *EditorService) Chunks(x, y int) ([]*Chunk, error) {
	es.mutex.RLock()
	defer es.mutex.RUnlock()
	if es.grid == nil {
		return nil, ErrNoMap
	}
	return es.chunks.LoadChunksAround(x, y), nil
}

// Analysis builds the export document for the current grid
func (es *EditorService) Analysis(now time.Time) (models.Analysis, error) {
	es.mutex.RLock()
	defer es.mutex.RUnlock()
	if es.grid == nil {
		return models.Analysis{}, ErrNoMap
	}
	return models.NewAnalysis(es.stats, now), nil
}

// WriteStatsChart writes the statistics chart page
func (es *EditorService) WriteStatsChart(w io.Writer) error {
	stats, err := es.Stats()
	if err != nil {
		return err
	}
	return RenderStatsChart(w, stats)
}

func removeAt[T any](items []T, index int) ([]T, error) {
	if index < 0 || index >= len(items) {
		return items, fmt.Errorf("remove %d of %d: %w", index, len(items), ErrIndexOutOfRange)
	}
	return append(items[:index:index], items[index+1:]...), nil
}

func firstSymbol(s string) string {
	if s == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n == 0 {
		return def
	}
	return n
}

func withX(p *models.Position, x int) *models.Position {
	out := models.Position{}
	if p != nil {
		out = *p
	}
	out.X = x
	return &out
}

func withY(p *models.Position, y int) *models.Position {
	out := models.Position{}
	if p != nil {
		out = *p
	}
	out.Y = y
	return &out
}
