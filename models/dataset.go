package models

import "fmt"

// Table names one of the three tables produced by a pipeline run.
type Table int

const (
	TableQuery Table = iota
	TableBusiness
	TableReview
)

// Tables lists every table in export order.
var Tables = []Table{TableQuery, TableBusiness, TableReview}

func (t Table) String() string {
	switch t {
	case TableQuery:
		return "query"
	case TableBusiness:
		return "business"
	case TableReview:
		return "review"
	default:
		return fmt.Sprintf("table(%d)", int(t))
	}
}

// WarningKind classifies a non-fatal condition raised during a run.
type WarningKind string

const (
	WarnLookupFailed WarningKind = "lookup_failed"
	WarnZeroResults  WarningKind = "zero_results"
	WarnDetailFailed WarningKind = "detail_failed"
	WarnNameMismatch WarningKind = "name_mismatch"
	WarnEmptyWindow  WarningKind = "empty_window"
)

// Warning is a non-fatal condition: the run proceeds with partial data.
type Warning struct {
	Kind       WarningKind
	Stage      string
	QueryIndex int
	PlaceID    string
	Message    string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s [%s]: %s", w.Stage, w.Kind, w.Message)
}

// Dataset is the in-memory result of one pipeline run.
type Dataset struct {
	Name       string
	RunID      string
	Queries    []*QueryRecord
	Businesses []*BusinessRecord
	Reviews    []*ReviewRecord
	Warnings   []Warning
}

// Rows returns the accumulator behind the given table.
func (d *Dataset) Rows(t Table) (any, error) {
	switch t {
	case TableQuery:
		return d.Queries, nil
	case TableBusiness:
		return d.Businesses, nil
	case TableReview:
		return d.Reviews, nil
	default:
		return nil, fmt.Errorf("dataset: unknown table %s", t)
	}
}

// WarningsOf returns the warnings of the given kind, in the order they were raised.
func (d *Dataset) WarningsOf(kind WarningKind) []Warning {
	var out []Warning
	for _, w := range d.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}
