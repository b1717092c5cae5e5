// Command mapgen generates or analyses a map from the command line.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"mapsmith/internal/logging"
	"mapsmith/models"
	"mapsmith/persistence"
	"mapsmith/services"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "mapgen:", err)
		os.Exit(1)
	}
}

type options struct {
	config   string
	input    string
	width    int
	height   int
	seed     int64
	output   string
	analysis string
	png      string
	pngW     int
	pngH     int
	zoom     float64
	chart    string
	quiet    bool
	logLevel string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("mapgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.config, "config", "", "config file (.json, .yaml or .yml); built-in defaults when empty")
	fs.StringVar(&o.input, "input", "", "analyse an existing map text file instead of generating")
	fs.IntVar(&o.width, "width", 0, "override the configured width")
	fs.IntVar(&o.height, "height", 0, "override the configured height")
	fs.Int64Var(&o.seed, "seed", 0, "random seed; 0 picks one from the clock")
	fs.StringVar(&o.output, "o", "-", "map text output path, - for stdout, empty to skip")
	fs.StringVar(&o.analysis, "analysis", "", "write the analysis JSON to this path")
	fs.StringVar(&o.png, "png", "", "render the map to this PNG path")
	fs.IntVar(&o.pngW, "png-width", services.DefaultCanvasSide, "PNG width in pixels")
	fs.IntVar(&o.pngH, "png-height", services.DefaultCanvasSide, "PNG height in pixels")
	fs.Float64Var(&o.zoom, "zoom", 1, "PNG zoom")
	fs.StringVar(&o.chart, "chart", "", "write an HTML statistics chart to this path")
	fs.BoolVar(&o.quiet, "q", false, "do not print statistics")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

func run(args []string, stdout io.Writer) error {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	logger, err := logging.New(o.logLevel, "console", "")
	if err != nil {
		return err
	}
	defer logger.Sync()

	grid, err := buildGrid(o, logger)
	if err != nil {
		return err
	}

	stats := services.NewStatsCalculator().Calculate(grid)

	if o.output != "" {
		if err := writeTo(o.output, stdout, func(w io.Writer) error {
			_, err := grid.WriteTo(w)
			return err
		}); err != nil {
			return fmt.Errorf("write map: %w", err)
		}
	}

	if !o.quiet {
		printStats(stdout, stats)
	}

	if o.analysis != "" {
		analysis := models.NewAnalysis(stats, time.Now())
		if err := writeTo(o.analysis, stdout, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		}); err != nil {
			return fmt.Errorf("write analysis: %w", err)
		}
	}

	if o.png != "" {
		view := models.NewViewState()
		view.Zoom = min(max(o.zoom, models.MinZoom), models.MaxZoom)
		img := services.NewGridRenderer().RenderCanvas(grid, view, o.pngW, o.pngH)
		if err := writeTo(o.png, stdout, func(w io.Writer) error {
			return services.EncodePNG(w, img)
		}); err != nil {
			return fmt.Errorf("write png: %w", err)
		}
	}

	if o.chart != "" {
		if err := writeTo(o.chart, stdout, func(w io.Writer) error {
			return services.RenderStatsChart(w, stats)
		}); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}
	return nil
}

func buildGrid(o *options, logger *zap.Logger) (*models.Grid, error) {
	if o.input != "" {
		f, err := os.Open(o.input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return models.ParseGrid(f)
	}

	cfg := models.DefaultMapConfig()
	if o.config != "" {
		loaded, err := persistence.LoadConfigFile(o.config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.width > 0 {
		cfg.Dimensions.Width = o.width
	}
	if o.height > 0 {
		cfg.Dimensions.Height = o.height
	}

	opts := []services.GeneratorOption{services.WithLogger(logger)}
	if o.seed != 0 {
		opts = append(opts, services.WithSeed(o.seed))
	}
	grid, report, err := services.NewMapGenerator(cfg, opts...).Generate()
	if err != nil {
		return nil, err
	}
	logger.Info("generated", zap.Int64("seed", report.Seed), zap.Duration("took", report.Duration))
	return grid, nil
}

func printStats(w io.Writer, stats models.Statistics) {
	fmt.Fprintf(w, "dimensions: %dx%d (%d cells)\n", stats.Width, stats.Height, stats.Cells)
	for _, row := range stats.Sorted() {
		fmt.Fprintf(w, "  %s  %6d  %5.1f%%\n", row.Symbol, row.Count, row.Percent)
	}
	fmt.Fprintf(w, "occupied: %d  empty: %d  entropy: %.3f nats\n", stats.Total, stats.Empty, stats.Entropy)
}

// writeTo writes to a file, or to stdout when path is "-"
func writeTo(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
