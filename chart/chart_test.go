package chart

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-echarts/go-echarts/v2/opts"

	"places-reviews/models"
)

func sampleBuckets() []models.AggregateBucket {
	sd := 0.5
	return []models.AggregateBucket{
		{BucketStart: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), MeanRating: 4, StddevRating: &sd, Count: 4},
		{BucketStart: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), MeanRating: 3, Count: 1},
	}
}

func TestBuildLineSeries(t *testing.T) {
	line := BuildLine(sampleBuckets(), "Ratings", "2006")

	if got := len(line.MultiSeries); got != 3 {
		t.Fatalf("series: got %d, want 3", got)
	}
	for i, want := range []string{SeriesMean, SeriesUpper, SeriesLower} {
		if line.MultiSeries[i].Name != want {
			t.Errorf("series %d: got %q, want %q", i, line.MultiSeries[i].Name, want)
		}
	}

	mean := line.MultiSeries[0].Data.([]opts.LineData)
	if mean[0].Value != 4.0 || mean[0].Name != "n=4" {
		t.Errorf("first mean point: got %+v", mean[0])
	}

	upper := line.MultiSeries[1].Data.([]opts.LineData)
	lower := line.MultiSeries[2].Data.([]opts.LineData)
	if upper[0].Value != 4.5 || lower[0].Value != 3.5 {
		t.Errorf("band around 4±0.5: got %v / %v", upper[0].Value, lower[0].Value)
	}
	// a single-review bucket has no deviation and leaves a gap in the band
	if upper[1].Value != missing || lower[1].Value != missing {
		t.Errorf("band for undefined deviation: got %v / %v", upper[1].Value, lower[1].Value)
	}
}

func TestRenderHTMLPage(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, sampleBuckets(), "Ratings per year", "2006"); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	page := buf.String()

	if !strings.HasPrefix(strings.TrimSpace(page), "<!DOCTYPE html>") {
		t.Fatalf("not an html page:\n%s", page)
	}
	for _, want := range []string{
		"echarts.min.js",
		"<title>Ratings per year</title>",
		`"mean rating"`,
		`"2021"`,
		`"2022"`,
		`"n=4"`,
		`"dashed"`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestRenderHTMLEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, nil, "empty", "2006"); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(buf.String(), "no data") {
		t.Error("empty chart should say no data")
	}
	if strings.Contains(buf.String(), `"n=`) {
		t.Error("empty chart should have no points")
	}
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "rating.html")
	abs, err := WriteHTML(path, sampleBuckets(), "t", "2006-01")
	if err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	if !filepath.IsAbs(abs) {
		t.Errorf("expected an absolute path, got %s", abs)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"2021-01"`) {
		t.Errorf("page does not carry the bucket labels:\n%s", raw)
	}
}
