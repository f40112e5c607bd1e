package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jszwec/csvutil"
	"gopkg.in/yaml.v3"

	"places-reviews/models"
)

// Rows carry a leading row index so every file reads as index → fields.
type queryRow struct {
	Index int `csv:"index"`
	models.QueryRecord
}

type businessRow struct {
	Index int `csv:"index"`
	models.BusinessRecord
}

type reviewRow struct {
	Index int `csv:"index"`
	models.ReviewRecord
}

const metaFile = "dataset.yaml"

// datasetMeta is what the tables cannot carry: the dataset name and the id of
// the run that owns the rows, so a resumed run writes back under the same id.
type datasetMeta struct {
	Dataset string `yaml:"dataset"`
	RunID   string `yaml:"run_id"`
}

// CSVWriter writes the three tables of a dataset to
// <dir>/<dataset>/{query,business,review}.csv.
// It is safe for concurrent use.
type CSVWriter struct {
	mu      sync.Mutex
	dir     string
	dataset string
}

var _ DatasetWriter = (*CSVWriter)(nil)

// NewCSVWriter creates the dataset directory under outputDir.
func NewCSVWriter(outputDir, dataset string) (*CSVWriter, error) {
	if dataset == "" {
		return nil, fmt.Errorf("csv: empty dataset name")
	}
	dir := filepath.Join(outputDir, dataset)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{dir: dir, dataset: dataset}, nil
}

// Dir returns the dataset directory.
func (c *CSVWriter) Dir() string { return c.dir }

// Path returns the file a table is written to.
func (c *CSVWriter) Path(t models.Table) string {
	return tablePath(c.dir, t)
}

func tablePath(dir string, t models.Table) string {
	return filepath.Join(dir, t.String()+".csv")
}

// Write replaces the dataset's files with the current tables and its
// metadata file.
func (c *CSVWriter) Write(ds *models.Dataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range models.Tables {
		if err := c.writeTable(ds, t); err != nil {
			return err
		}
	}

	name := ds.Name
	if name == "" {
		name = c.dataset
	}
	raw, err := yaml.Marshal(datasetMeta{Dataset: name, RunID: ds.RunID})
	if err != nil {
		return fmt.Errorf("csv: encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, metaFile), raw, 0644); err != nil {
		return fmt.Errorf("csv: write metadata: %w", err)
	}
	return nil
}

func (c *CSVWriter) writeTable(ds *models.Dataset, t models.Table) error {
	path := c.Path(t)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)

	switch t {
	case models.TableQuery:
		err = encodeRows(enc, queryRow{}, len(ds.Queries), func(i int) any {
			return queryRow{Index: i, QueryRecord: *ds.Queries[i]}
		})
	case models.TableBusiness:
		err = encodeRows(enc, businessRow{}, len(ds.Businesses), func(i int) any {
			return businessRow{Index: i, BusinessRecord: *ds.Businesses[i]}
		})
	case models.TableReview:
		err = encodeRows(enc, reviewRow{}, len(ds.Reviews), func(i int) any {
			return reviewRow{Index: i, ReviewRecord: *ds.Reviews[i]}
		})
	default:
		err = fmt.Errorf("unknown table %s", t)
	}
	if err != nil {
		return fmt.Errorf("csv: write %s: %w", t, err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush %s: %w", t, err)
	}
	return f.Close()
}

func encodeRows(enc *csvutil.Encoder, header any, n int, row func(i int) any) error {
	if err := enc.EncodeHeader(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := enc.Encode(row(i)); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// Close is a no-op: every Write opens and closes its own files.
func (c *CSVWriter) Close() error { return nil }

// LoadDataset reads a dataset previously written by CSVWriter, including the
// run id from its metadata file. Datasets written without metadata load with
// an empty run id.
func LoadDataset(outputDir, dataset string) (*models.Dataset, error) {
	dir := filepath.Join(outputDir, dataset)
	ds := &models.Dataset{Name: dataset}

	raw, err := os.ReadFile(filepath.Join(dir, metaFile))
	switch {
	case err == nil:
		var meta datasetMeta
		if err := yaml.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("csv: decode metadata: %w", err)
		}
		ds.RunID = meta.RunID
		if meta.Dataset != "" {
			ds.Name = meta.Dataset
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("csv: read metadata: %w", err)
	}

	var queries []queryRow
	if err := readTable(dir, models.TableQuery, &queries); err != nil {
		return nil, err
	}
	for i := range queries {
		q := queries[i].QueryRecord
		ds.Queries = append(ds.Queries, &q)
	}

	var businesses []businessRow
	if err := readTable(dir, models.TableBusiness, &businesses); err != nil {
		return nil, err
	}
	for i := range businesses {
		b := businesses[i].BusinessRecord
		ds.Businesses = append(ds.Businesses, &b)
	}

	var reviews []reviewRow
	if err := readTable(dir, models.TableReview, &reviews); err != nil {
		return nil, err
	}
	for i := range reviews {
		r := reviews[i].ReviewRecord
		ds.Reviews = append(ds.Reviews, &r)
	}

	return ds, nil
}

func readTable(dir string, t models.Table, v any) error {
	path := tablePath(dir, t)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("csv: read %s: %w", path, err)
	}
	if err := csvutil.Unmarshal(data, v); err != nil {
		return fmt.Errorf("csv: decode %s: %w", path, err)
	}
	return nil
}
