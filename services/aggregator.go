package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"places-reviews/models"
	"places-reviews/utils"
)

// ErrInvalidArgument is returned for aggregation arguments outside their domain.
var ErrInvalidArgument = errors.New("invalid argument")

// Frequency is the calendar period reviews are bucketed by.
type Frequency int

const (
	Year Frequency = iota + 1
	Month
	Day
)

func (f Frequency) String() string {
	switch f {
	case Year:
		return "year"
	case Month:
		return "month"
	case Day:
		return "day"
	default:
		return fmt.Sprintf("frequency(%d)", int(f))
	}
}

// ParseFrequency accepts year/month/day, case-insensitively, or their
// one-letter forms Y/M/D.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "year", "y":
		return Year, nil
	case "month", "m":
		return Month, nil
	case "day", "d":
		return Day, nil
	default:
		return 0, fmt.Errorf("%w: unknown frequency %q", ErrInvalidArgument, s)
	}
}

// DateRange is an open interval (Start, End). A zero End is unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) contains(t time.Time) bool {
	if !t.After(r.Start) {
		return false
	}
	return r.End.IsZero() || t.Before(r.End)
}

// Aggregator groups review ratings into calendar buckets.
type Aggregator struct {
	logger *utils.Logger
}

// NewAggregator creates an Aggregator with the given logger.
func NewAggregator(logger *utils.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Aggregate filters reviews strictly inside dateRange, buckets them by
// calendar period and returns mean, sample standard deviation and count of
// the rating per bucket, oldest first. Buckets with fewer than minCount
// reviews are dropped. An empty window is a warning, not an error.
func (a *Aggregator) Aggregate(reviews []*models.ReviewRecord, freq Frequency, dateRange DateRange, minCount int) ([]models.AggregateBucket, []models.Warning, error) {
	if freq < Year || freq > Day {
		return nil, nil, fmt.Errorf("%w: unknown frequency %s", ErrInvalidArgument, freq)
	}

	groups := make(map[time.Time][]float64)
	filtered := 0
	for _, rv := range reviews {
		if !dateRange.contains(rv.ReviewDate) {
			continue
		}
		filtered++
		start := bucketStart(rv.ReviewDate, freq)
		groups[start] = append(groups[start], rv.Rating)
	}

	var warnings []models.Warning
	if filtered == 0 {
		w := models.Warning{
			Kind:    models.WarnEmptyWindow,
			Stage:   "aggregate",
			Message: fmt.Sprintf("no reviews between %s and %s", formatBound(dateRange.Start), formatBound(dateRange.End)),
		}
		warnings = append(warnings, w)
		a.logger.Warn("[aggregate] %s", w)
	}

	starts := make([]time.Time, 0, len(groups))
	for s := range groups {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	buckets := make([]models.AggregateBucket, 0, len(starts))
	for _, s := range starts {
		ratings := groups[s]
		if len(ratings) < minCount {
			a.logger.Debug("[aggregate] Dropping %s bucket %s — %d < %d reviews",
				freq, s.Format("2006-01-02"), len(ratings), minCount)
			continue
		}
		mean, stddev := meanStddev(ratings)
		buckets = append(buckets, models.AggregateBucket{
			BucketStart:  s,
			MeanRating:   mean,
			StddevRating: stddev,
			Count:        len(ratings),
		})
	}

	a.logger.Info("[aggregate] %d reviews in window → %d %s buckets", filtered, len(buckets), freq)
	return buckets, warnings, nil
}

func bucketStart(t time.Time, freq Frequency) time.Time {
	t = t.UTC()
	switch freq {
	case Year:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// meanStddev returns the arithmetic mean and the sample (n-1) standard
// deviation; the deviation is nil for a single value.
func meanStddev(xs []float64) (float64, *float64) {
	if len(xs) < 2 {
		return stat.Mean(xs, nil), nil
	}
	mean, sd := stat.MeanStdDev(xs, nil)
	return mean, &sd
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
