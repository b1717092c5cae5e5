package models

import (
	"sort"
	"time"
)

// Statistics summarises a grid. Derived data, recomputed whenever the grid changes.
type Statistics struct {
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Cells    int            `json:"cells"`
	Elements map[string]int `json:"elements"`
	Total    int            `json:"total"`
	Empty    int            `json:"empty"`

	Occupancy   float64 `json:"occupancy"`
	Entropy     float64 `json:"entropy"`
	MeanCount   float64 `json:"mean_count"`
	StdDevCount float64 `json:"stddev_count"`
}

// SymbolCount is one row of the sorted statistics listing
type SymbolCount struct {
	Symbol  string  `json:"symbol"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Sorted lists the per-symbol counts ordered by symbol
func (s Statistics) Sorted() []SymbolCount {
	out := make([]SymbolCount, 0, len(s.Elements))
	for sym, n := range s.Elements {
		pct := 0.0
		if s.Cells > 0 {
			pct = float64(n) * 100 / float64(s.Cells)
		}
		out = append(out, SymbolCount{Symbol: sym, Count: n, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Analysis is the exported analysis document
type Analysis struct {
	Dimensions Dimensions `json:"dimensions"`
	Statistics Statistics `json:"statistics"`
	Timestamp  string     `json:"timestamp"`
}

// NewAnalysis stamps statistics with the export time
func NewAnalysis(stats Statistics, now time.Time) Analysis {
	return Analysis{
		Dimensions: Dimensions{Width: stats.Width, Height: stats.Height},
		Statistics: stats,
		Timestamp:  now.UTC().Format(time.RFC3339),
	}
}
