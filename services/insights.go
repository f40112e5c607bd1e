package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"places-reviews/models"
	"places-reviews/utils"
)

// InsightReport summarises one dataset.
type InsightReport struct {
	RunID           string
	TotalQueries    int
	FailedQueries   int
	TotalBusinesses int
	NameMismatches  int
	TotalReviews    int
	AverageRating   float64
	TopRated        []*models.BusinessRecord
	ReviewsByLang   map[string]int
	Buckets         []models.AggregateBucket
	Frequency       Frequency
	// Warnings raised by the run followed by those raised while aggregating.
	Warnings []models.Warning
}

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes the report for ds; buckets and the warnings raised while
// aggregating them are attached as given.
func (s *InsightService) Generate(ds *models.Dataset, buckets []models.AggregateBucket, aggWarnings []models.Warning, freq Frequency) *InsightReport {
	report := &InsightReport{
		ReviewsByLang: make(map[string]int),
		Buckets:       buckets,
		Frequency:     freq,
	}
	if ds == nil {
		report.Warnings = append(report.Warnings, aggWarnings...)
		return report
	}
	report.Warnings = append(append(report.Warnings, ds.Warnings...), aggWarnings...)

	report.RunID = ds.RunID
	report.TotalQueries = len(ds.Queries)
	report.TotalBusinesses = len(ds.Businesses)
	report.TotalReviews = len(ds.Reviews)

	withBusiness := make(map[int]bool)
	for _, b := range ds.Businesses {
		withBusiness[b.QueryIndex] = true
	}
	for _, q := range ds.Queries {
		if !withBusiness[q.QueryIndex] {
			report.FailedQueries++
		}
	}

	var rated []*models.BusinessRecord
	var total float64
	for _, b := range ds.Businesses {
		if !b.NameMatch {
			report.NameMismatches++
		}
		if b.Rating != nil {
			rated = append(rated, b)
			total += *b.Rating
		}
	}
	if len(rated) > 0 {
		report.AverageRating = round2(total / float64(len(rated)))
	}

	sort.SliceStable(rated, func(i, j int) bool {
		return *rated[i].Rating > *rated[j].Rating
	})
	if len(rated) > 5 {
		report.TopRated = rated[:5]
	} else {
		report.TopRated = rated
	}

	for _, rv := range ds.Reviews {
		lang := rv.Language
		if lang == "" {
			lang = "unknown"
		}
		report.ReviewsByLang[lang]++
	}

	return report
}

// Print writes the report to stdout.
func (s *InsightService) Print(r *InsightReport) {
	s.Fprint(os.Stdout, r)
}

// Fprint writes the report to w.
func (s *InsightService) Fprint(w io.Writer, r *InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 PLACES REVIEW INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run                    : %s\n", r.RunID)
	fmt.Fprintf(w, "  Queries                : \033[1m%d\033[0m (%d without businesses)\n", r.TotalQueries, r.FailedQueries)
	fmt.Fprintf(w, "  Businesses             : \033[1m%d\033[0m (%d name mismatches)\n", r.TotalBusinesses, r.NameMismatches)
	fmt.Fprintf(w, "  Reviews                : \033[1m%d\033[0m\n", r.TotalReviews)
	if r.AverageRating > 0 {
		fmt.Fprintf(w, "  Average business rating: \033[1;32m%.2f ★\033[0m\n", r.AverageRating)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Top Rated Businesses\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopRated) == 0 {
		fmt.Fprintf(w, "  No rated businesses found\n")
	} else {
		for i, b := range r.TopRated {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m%.2f ★\033[0m\n",
				i+1, truncate(b.Name, 38), *b.Rating)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Reviews by Language\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ReviewsByLang) == 0 {
		fmt.Fprintf(w, "  No reviews\n")
	} else {
		type langCount struct {
			lang  string
			count int
		}
		var langs []langCount
		for l, c := range r.ReviewsByLang {
			langs = append(langs, langCount{l, c})
		}
		sort.Slice(langs, func(i, j int) bool {
			if langs[i].count != langs[j].count {
				return langs[i].count > langs[j].count
			}
			return langs[i].lang < langs[j].lang
		})
		for _, lc := range langs {
			fmt.Fprintf(w, "  %-10s %s (%d)\n", lc.lang, strings.Repeat("█", lc.count), lc.count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Rating per %s\033[0m\n", r.Frequency)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Buckets) == 0 {
		fmt.Fprintf(w, "  No buckets in the selected window\n")
	} else {
		for _, b := range r.Buckets {
			sd := "   n/a"
			if b.StddevRating != nil {
				sd = fmt.Sprintf("%6.2f", *b.StddevRating)
			}
			fmt.Fprintf(w, "  %-12s mean %.2f  sd %s  n=%d\n", bucketLabel(b, r.Frequency), b.MeanRating, sd, b.Count)
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "\033[1;33m  Warnings (%d)\033[0m\n", len(r.Warnings))
		fmt.Fprintf(w, "  %s\n", thin)
		for _, wn := range r.Warnings {
			fmt.Fprintf(w, "  %s\n", wn)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func bucketLabel(b models.AggregateBucket, freq Frequency) string {
	switch freq {
	case Year:
		return b.BucketStart.Format("2006")
	case Month:
		return b.BucketStart.Format("2006-01")
	default:
		return b.BucketStart.Format("2006-01-02")
	}
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// truncate shortens s to at most max runes, ending in "...".
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
