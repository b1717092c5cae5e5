// Package tui draws an editing session in a terminal with tcell.
package tui

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"mapsmith/models"
	"mapsmith/services"
)

// Rows reserved above and below the map
const (
	headerRows = 1
	footerRows = 2
)

type mode int

const (
	modeView mode = iota
	modeGoto
	modePaint
)

// Viewer renders an EditorService to a tcell screen and maps keys and mouse
// events to editor operations
type Viewer struct {
	screen   tcell.Screen
	editor   *services.EditorService
	logger   *zap.Logger
	mode     mode
	prompt   string
	brush    rune
	status   string
	saveName string
}

// NewViewer creates a viewer on an initialised screen
func NewViewer(screen tcell.Screen, editor *services.EditorService, logger *zap.Logger) *Viewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Viewer{
		screen:   screen,
		editor:   editor,
		logger:   logger,
		brush:    '#',
		saveName: "untitled",
	}
}

// SetSaveName sets the name used by the save key
func (v *Viewer) SetSaveName(name string) { v.saveName = name }

// Status returns the last status line message
func (v *Viewer) Status() string { return v.status }

// Run polls events and redraws until the user quits
func (v *Viewer) Run() {
	v.screen.EnableMouse()
	v.Draw()
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return
		}
		if !v.HandleEvent(ev) {
			return
		}
		v.Draw()
	}
}

// HandleEvent applies one event; it returns false when the viewer should exit
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return v.handleKey(ev)
	case *tcell.EventMouse:
		x, y := ev.Position()
		if ev.Buttons()&tcell.Button1 != 0 {
			v.Click(x, y)
		} else {
			v.HoverAt(x, y)
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *Viewer) handleKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlC {
		return false
	}
	if v.mode == modeGoto {
		v.handlePromptKey(ev)
		return true
	}

	switch ev.Key() {
	case tcell.KeyEscape:
		if v.mode == modePaint {
			v.mode = modeView
			v.status = "view mode"
			return true
		}
		return false
	case tcell.KeyLeft:
		v.PanCells(1, 0)
	case tcell.KeyRight:
		v.PanCells(-1, 0)
	case tcell.KeyUp:
		v.PanCells(0, 1)
	case tcell.KeyDown:
		v.PanCells(0, -1)
	case tcell.KeyRune:
		return v.handleRune(ev.Rune())
	}
	return true
}

func (v *Viewer) handleRune(r rune) bool {
	if v.mode == modePaint {
		v.brush = r
		v.status = fmt.Sprintf("brush %q", r)
		return true
	}

	switch r {
	case 'q':
		return false
	case 'h':
		v.PanCells(1, 0)
	case 'l':
		v.PanCells(-1, 0)
	case 'k':
		v.PanCells(0, 1)
	case 'j':
		v.PanCells(0, -1)
	case '+', '=':
		v.editor.ZoomIn()
	case '-':
		v.editor.ZoomOut()
	case '0':
		v.editor.ResetView()
	case 'g':
		v.editor.ToggleGrid()
	case 'c':
		v.CycleCellSize()
	case 'f':
		v.CycleFilter()
	case 'r':
		v.Generate()
	case 's':
		v.Save()
	case 'p':
		v.mode = modePaint
		v.status = fmt.Sprintf("paint mode, brush %q; type a symbol to change it, Esc to leave", v.brush)
	case ':':
		v.mode = modeGoto
		v.prompt = ""
	}
	return true
}

func (v *Viewer) handlePromptKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		v.mode = modeView
	case tcell.KeyEnter:
		v.mode = modeView
		v.GotoText(v.prompt)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if n := len(v.prompt); n > 0 {
			v.prompt = v.prompt[:n-1]
		}
	case tcell.KeyRune:
		v.prompt += string(ev.Rune())
	}
}

// mapArea is the size of the map viewport in terminal cells
func (v *Viewer) mapArea() (int, int) {
	w, h := v.screen.Size()
	return w, max(0, h-headerRows-footerRows)
}

// PanCells moves the camera by whole viewport characters
func (v *Viewer) PanCells(dx, dy int) {
	view := v.editor.View()
	step := float64(view.CellSize)
	v.editor.Pan(float64(dx)*step, float64(dy)*step)
}

// CycleCellSize steps through the selectable cell sizes
func (v *Viewer) CycleCellSize() {
	view := v.editor.View()
	next := models.CellSizes[0]
	for i, s := range models.CellSizes {
		if s == view.CellSize {
			next = models.CellSizes[(i+1)%len(models.CellSizes)]
			break
		}
	}
	if _, err := v.editor.SetCellSize(next); err != nil {
		v.status = err.Error()
	}
}

// CycleFilter steps the filter through "all" and every symbol on the map
func (v *Viewer) CycleFilter() {
	stats, err := v.editor.Stats()
	if err != nil {
		v.status = err.Error()
		return
	}
	options := []string{models.FilterAll}
	for _, row := range stats.Sorted() {
		options = append(options, row.Symbol)
	}

	current := v.editor.View().Filter
	next := options[0]
	for i, o := range options {
		if o == current {
			next = options[(i+1)%len(options)]
			break
		}
	}
	v.editor.SetFilter(next)
	v.status = "filter " + next
}

// Generate builds a new map from the session config
func (v *Viewer) Generate() {
	report, err := v.editor.Generate()
	if err != nil {
		v.status = err.Error()
		return
	}
	v.status = fmt.Sprintf("generated with seed %d", report.Seed)
	if n := len(report.Violations); n > 0 {
		v.status += fmt.Sprintf(", %d restriction violations", n)
	}
	for _, s := range report.Shortfalls() {
		v.status += fmt.Sprintf(", %s %d/%d", s.Symbol, s.Placed, s.Requested)
	}
}

// Save stores the current map under the save name
func (v *Viewer) Save() {
	if _, err := v.editor.SaveMap(v.saveName); err != nil {
		v.status = err.Error()
		return
	}
	v.status = "saved " + v.saveName
}

// GotoText parses "x,y" or "x y" and centres the map on that cell
func (v *Viewer) GotoText(text string) {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) != 2 {
		v.status = "goto expects x,y"
		return
	}
	x, errX := strconv.Atoi(fields[0])
	y, errY := strconv.Atoi(fields[1])
	if errX != nil || errY != nil {
		v.status = "goto expects x,y"
		return
	}
	v.Goto(x, y)
}

// Goto centres the viewport on a cell and selects it
func (v *Viewer) Goto(x, y int) {
	cols, rows := v.mapArea()
	cs := float64(v.editor.View().CellSize)
	if _, err := v.editor.GoTo(x, y, float64(cols)*cs, float64(rows)*cs); err != nil {
		v.status = err.Error()
		return
	}
	v.status = fmt.Sprintf("selected (%d, %d)", x, y)
}

// pixelAt converts a screen cell to the canvas pixel at its centre
func (v *Viewer) pixelAt(sx, sy int) (float64, float64, bool) {
	cols, rows := v.mapArea()
	row := sy - headerRows
	if sx < 0 || sx >= cols || row < 0 || row >= rows {
		return 0, 0, false
	}
	cs := float64(v.editor.View().CellSize)
	return float64(sx)*cs + cs/2, float64(row)*cs + cs/2, true
}

// HoverAt updates the hovered cell from a screen position
func (v *Viewer) HoverAt(sx, sy int) {
	px, py, ok := v.pixelAt(sx, sy)
	if !ok {
		return
	}
	v.editor.Hover(px, py)
}

// Click selects the cell under a screen position, or paints it in paint mode
func (v *Viewer) Click(sx, sy int) {
	px, py, ok := v.pixelAt(sx, sy)
	if !ok {
		return
	}
	info := v.editor.Hover(px, py)
	if info == nil {
		return
	}
	if v.mode == modePaint {
		if err := v.editor.SetCell(info.X, info.Y, string(v.brush)); err != nil {
			v.status = err.Error()
		}
		return
	}
	if _, err := v.editor.Select(info.X, info.Y); err != nil {
		v.status = err.Error()
	}
}

// Draw renders the header, the map viewport and the footer
func (v *Viewer) Draw() {
	v.screen.Clear()
	w, _ := v.screen.Size()
	cols, rows := v.mapArea()
	view := v.editor.View()

	bg := tcellColor(services.BackgroundColor)
	base := tcell.StyleDefault.Background(bg).Foreground(tcell.ColorWhite)

	header := fmt.Sprintf(" zoom %.2f  cell %d  filter %s", view.Zoom, view.CellSize, view.Filter)
	if view.Hovered != nil {
		header += fmt.Sprintf("  hover (%d, %d) %q", view.Hovered.X, view.Hovered.Y, view.Hovered.Value)
	}
	if view.Selected != nil {
		header += fmt.Sprintf("  selected (%d, %d) %q", view.Selected.X, view.Selected.Y, view.Selected.Value)
	}
	drawText(v.screen, 0, 0, w, header, base.Reverse(true))

	cells, err := v.editor.Viewport(cols, rows)
	if err != nil {
		drawText(v.screen, 0, headerRows, w, " no map: press r to generate", base)
	}
	palette := v.editor.Palette()
	for row, line := range cells {
		for col, c := range line {
			style := base
			r := ' '
			if c.InGrid {
				r = c.Symbol
				if r != ' ' {
					style = style.Foreground(tcellColor(palette.ColorFor(r)))
				}
				if view.ShowGrid && view.Zoom > models.GridLineZoom && r == ' ' {
					r = '·'
					style = style.Foreground(tcellColor(services.GridLineColor))
				}
			}
			if sameCell(view.Selected, c.Pos) {
				style = style.Background(tcellColor(services.SelectedColor))
			} else if sameCell(view.Hovered, c.Pos) && view.Zoom > models.GridLineZoom {
				style = style.Background(tcellColor(services.HoveredColor))
			}
			v.screen.SetContent(col, row+headerRows, r, nil, style)
		}
	}

	_, h := v.screen.Size()
	drawText(v.screen, 0, h-2, w, v.statsLine(), base.Reverse(true))
	footer := v.status
	if v.mode == modeGoto {
		footer = "goto x,y: " + v.prompt
	}
	drawText(v.screen, 0, h-1, w, footer, base)
	v.screen.Show()
}

func (v *Viewer) statsLine() string {
	stats, err := v.editor.Stats()
	if err != nil {
		return " q quit  r generate  : goto  p paint"
	}
	rows := stats.Sorted()
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	var b strings.Builder
	fmt.Fprintf(&b, " %dx%d", stats.Width, stats.Height)
	for _, row := range rows {
		fmt.Fprintf(&b, "  %s:%d", row.Symbol, row.Count)
	}
	fmt.Fprintf(&b, "  empty:%d", stats.Empty)
	return b.String()
}

func sameCell(info *models.CellInfo, pos models.Position) bool {
	return info != nil && info.X == pos.X && info.Y == pos.Y
}

func drawText(s tcell.Screen, x, y, width int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if col >= width {
			return
		}
		s.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < width; col++ {
		s.SetContent(col, y, ' ', nil, style)
	}
}

func tcellColor(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
