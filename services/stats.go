package services

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"mapsmith/models"
)

// StatsCalculator counts symbols on a grid
type StatsCalculator struct{}

// NewStatsCalculator creates a calculator
func NewStatsCalculator() *StatsCalculator {
	return &StatsCalculator{}
}

// Calculate walks the grid once and derives the statistics. Empty cells
// ('.' and ' ') are not counted as elements.
func (sc *StatsCalculator) Calculate(grid *models.Grid) models.Statistics {
	s := models.Statistics{Elements: map[string]int{}}
	if grid == nil {
		return s
	}

	counts := make(map[rune]int)
	for _, r := range grid.Cells() {
		if models.IsEmptySymbol(r) {
			continue
		}
		counts[r]++
		s.Total++
	}

	s.Width, s.Height = grid.Width, grid.Height
	s.Cells = grid.Width * grid.Height
	s.Empty = s.Cells - s.Total
	if s.Cells > 0 {
		s.Occupancy = float64(s.Total) / float64(s.Cells)
	}

	if len(counts) == 0 {
		return s
	}

	values := make([]float64, 0, len(counts))
	for r, n := range counts {
		s.Elements[string(r)] = n
		values = append(values, float64(n))
	}

	probs := make([]float64, len(values))
	for i, v := range values {
		probs[i] = v / float64(s.Total)
	}
	s.Entropy = stat.Entropy(probs)
	s.MeanCount = stat.Mean(values, nil)
	if len(values) > 1 {
		s.StdDevCount = stat.StdDev(values, nil)
	}
	return s
}

// Analyze builds the exported analysis document for a grid
func (sc *StatsCalculator) Analyze(grid *models.Grid, now time.Time) models.Analysis {
	return models.NewAnalysis(sc.Calculate(grid), now)
}
