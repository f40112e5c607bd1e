package services

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"places-reviews/models"
)

func rating(v float64) *float64 { return &v }

func sampleDataset() *models.Dataset {
	return &models.Dataset{
		RunID: "run-1",
		Queries: []*models.QueryRecord{
			{QueryIndex: 0, QueryText: "Anita", Status: "OK", ResultCount: 2},
			{QueryIndex: 1, QueryText: "gnjowet532", Status: "ZERO_RESULTS"},
			{QueryIndex: 2, QueryText: "Shuffle Bar", Status: "OK", ResultCount: 1},
		},
		Businesses: []*models.BusinessRecord{
			{BusinessKey: 1, QueryIndex: 0, Name: "Anita", NameMatch: true, Rating: rating(4.5)},
			{BusinessKey: 2, QueryIndex: 0, Name: "Anita Gelato", NameMatch: false, Rating: rating(4.8)},
			{BusinessKey: 3, QueryIndex: 2, Name: "Shuffle Bar", NameMatch: true},
		},
		Reviews: []*models.ReviewRecord{
			{ReviewKey: 1, BusinessKey: 1, Language: "en", Rating: 5},
			{ReviewKey: 2, BusinessKey: 1, Language: "iw", Rating: 4},
			{ReviewKey: 3, BusinessKey: 2, Language: "en", Rating: 3},
			{ReviewKey: 4, BusinessKey: 3, Rating: 2},
		},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleDataset(), nil, nil, Month)
	if r.TotalQueries != 3 {
		t.Errorf("TotalQueries: got %d, want 3", r.TotalQueries)
	}
	if r.FailedQueries != 1 {
		t.Errorf("FailedQueries: got %d, want 1", r.FailedQueries)
	}
	if r.TotalBusinesses != 3 {
		t.Errorf("TotalBusinesses: got %d, want 3", r.TotalBusinesses)
	}
	if r.NameMismatches != 1 {
		t.Errorf("NameMismatches: got %d, want 1", r.NameMismatches)
	}
	if r.TotalReviews != 4 {
		t.Errorf("TotalReviews: got %d, want 4", r.TotalReviews)
	}
}

func TestInsightAverageRating(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleDataset(), nil, nil, Month)
	if r.AverageRating != 4.65 {
		t.Errorf("AverageRating: got %.2f, want 4.65", r.AverageRating)
	}
}

func TestInsightTopRated(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleDataset(), nil, nil, Month)
	if len(r.TopRated) != 2 {
		t.Fatalf("TopRated len: got %d, want 2", len(r.TopRated))
	}
	if r.TopRated[0].Name != "Anita Gelato" {
		t.Errorf("TopRated[0]: got %q, want %q", r.TopRated[0].Name, "Anita Gelato")
	}
}

func TestInsightLanguageGrouping(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleDataset(), nil, nil, Month)
	if r.ReviewsByLang["en"] != 2 {
		t.Errorf("en count: got %d, want 2", r.ReviewsByLang["en"])
	}
	if r.ReviewsByLang["unknown"] != 1 {
		t.Errorf("unknown count: got %d, want 1", r.ReviewsByLang["unknown"])
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil, nil, nil, Year)
	if r.TotalQueries != 0 || r.TotalReviews != 0 {
		t.Errorf("expected an empty report, got %+v", r)
	}
	svc.Print(r)
}

func TestInsightCarriesAggregationWarnings(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	reviews := []*models.ReviewRecord{
		{ReviewKey: 1, Rating: 4, ReviewDate: time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	window := DateRange{
		Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	buckets, warnings, err := NewAggregator(newTestLogger()).Aggregate(reviews, Year, window, 1)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	ds := sampleDataset()
	ds.Warnings = []models.Warning{{Kind: models.WarnZeroResults, Stage: "query", QueryIndex: 1, Message: "no results"}}
	r := svc.Generate(ds, buckets, warnings, Year)

	if len(r.Warnings) != 2 {
		t.Fatalf("Warnings: got %d, want 2", len(r.Warnings))
	}
	if r.Warnings[0].Kind != models.WarnZeroResults || r.Warnings[1].Kind != models.WarnEmptyWindow {
		t.Errorf("warning order: got %v", r.Warnings)
	}

	var out bytes.Buffer
	svc.Fprint(&out, r)
	if !strings.Contains(out.String(), "Warnings (2)") {
		t.Errorf("report should list the warnings:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "[empty_window]") {
		t.Errorf("report should name the empty window:\n%s", out.String())
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	name := strings.Repeat("מסעדה ", 10)
	got := truncate(name, 38)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 38 {
		t.Errorf("rune length: got %d, want 38", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected an ellipsis, got %q", got)
	}

	if got := truncate("Anita", 38); got != "Anita" {
		t.Errorf("short names are kept: got %q", got)
	}
}
