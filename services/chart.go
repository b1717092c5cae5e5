package services

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"mapsmith/models"
)

// RenderStatsChart writes an HTML page with a bar chart of symbol counts
func RenderStatsChart(w io.Writer, stats models.Statistics) error {
	rows := stats.Sorted()
	x := make([]string, 0, len(rows)+1)
	y := make([]opts.BarData, 0, len(rows)+1)
	for _, r := range rows {
		x = append(x, r.Symbol)
		y = append(y, opts.BarData{Value: r.Count, Name: r.Symbol})
	}
	x = append(x, "empty")
	y = append(y, opts.BarData{Value: stats.Empty, Name: "empty"})

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Map statistics", Theme: "dark", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Symbol counts",
			Subtitle: fmt.Sprintf("%dx%d cells=%d occupied=%d entropy=%.3f", stats.Width, stats.Height, stats.Cells, stats.Total, stats.Entropy),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("cells", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
