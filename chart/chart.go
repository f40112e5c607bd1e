// Package chart draws the aggregated rating series as an ECharts line chart
// with a ±stddev band, and optionally rasterises it through headless Chrome.
package chart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"places-reviews/models"
)

const (
	width  = 800
	height = 400

	maxRating = 5

	// ECharts skips points whose value is "-".
	missing = "-"
)

// Series names, in the order they are added.
const (
	SeriesMean  = "mean rating"
	SeriesUpper = "mean + sd"
	SeriesLower = "mean - sd"
)

// BuildLine builds mean rating per bucket on a 0–5 axis. Each mean point is
// named with its review count; the dashed band series have a gap where the
// deviation is undefined. layout is a time layout for the x-axis labels.
func BuildLine(buckets []models.AggregateBucket, title, layout string) *charts.Line {
	line := charts.NewLine()

	subtitle := fmt.Sprintf("%d buckets", len(buckets))
	if len(buckets) == 0 {
		subtitle = "no data"
	}

	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     fmt.Sprintf("%dpx", width),
			Height:    fmt.Sprintf("%dpx", height),
		}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithYAxisOpts(opts.YAxis{Name: "rating", Min: 0, Max: maxRating}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithAnimation(false),
	)

	labels := make([]string, len(buckets))
	mean := make([]opts.LineData, len(buckets))
	upper := make([]opts.LineData, len(buckets))
	lower := make([]opts.LineData, len(buckets))
	for i, b := range buckets {
		labels[i] = b.BucketStart.Format(layout)
		mean[i] = opts.LineData{Name: fmt.Sprintf("n=%d", b.Count), Value: b.MeanRating}
		upper[i] = opts.LineData{Value: missing}
		lower[i] = opts.LineData{Value: missing}
		if b.StddevRating != nil {
			upper[i].Value = b.MeanRating + *b.StddevRating
			lower[i].Value = b.MeanRating - *b.StddevRating
		}
	}

	band := charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed", Opacity: opts.Float(0.6)})
	line.SetXAxis(labels).
		AddSeries(SeriesMean, mean).
		AddSeries(SeriesUpper, upper, band).
		AddSeries(SeriesLower, lower, band)
	return line
}

// RenderHTML writes the chart page to w.
func RenderHTML(w io.Writer, buckets []models.AggregateBucket, title, layout string) error {
	if err := BuildLine(buckets, title, layout).Render(w); err != nil {
		return fmt.Errorf("chart: render: %w", err)
	}
	return nil
}

// WriteHTML renders the chart page to path and returns the absolute path.
func WriteHTML(path string, buckets []models.AggregateBucket, title, layout string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("chart: resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("chart: create output dir: %w", err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return "", fmt.Errorf("chart: create %s: %w", abs, err)
	}
	defer f.Close()

	if err := RenderHTML(f, buckets, title, layout); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("chart: write %s: %w", abs, err)
	}
	return abs, nil
}
