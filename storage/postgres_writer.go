package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"places-reviews/models"
)

const batchSize = 50

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	queryColumns = []string{
		"run_id", "dataset", "query_index", "query_text", "status", "result_count", "issued_at",
	}
	businessColumns = []string{
		"run_id", "dataset", "business_key", "query_index", "name", "place_id", "name_match",
		"url", "rating", "business_status", "address", "review_count",
	}
	reviewColumns = []string{
		"run_id", "dataset", "review_key", "business_key", "author_name", "author_url", "language",
		"translated", "rating", "epoch_seconds", "review_date", "text",
	}
)

// PostgresWriter persists datasets to PostgreSQL, one row set per run id.
type PostgresWriter struct {
	db *sql.DB
}

var (
	_ DatasetWriter = (*PostgresWriter)(nil)
	_ ReviewSource  = (*PostgresWriter)(nil)
)

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS queries (
			run_id       UUID        NOT NULL,
			dataset      TEXT        NOT NULL DEFAULT '',
			query_index  INTEGER     NOT NULL,
			query_text   TEXT        NOT NULL,
			status       VARCHAR(32) NOT NULL,
			result_count INTEGER     NOT NULL DEFAULT 0,
			issued_at    TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (run_id, query_index)
		);

		CREATE TABLE IF NOT EXISTS businesses (
			run_id          UUID         NOT NULL,
			dataset         TEXT         NOT NULL DEFAULT '',
			business_key    INTEGER      NOT NULL,
			query_index     INTEGER      NOT NULL,
			name            TEXT         NOT NULL,
			place_id        TEXT         NOT NULL,
			name_match      BOOLEAN      NOT NULL,
			url             TEXT         NOT NULL DEFAULT '',
			rating          NUMERIC(3,2),
			business_status VARCHAR(32)  NOT NULL DEFAULT '',
			address         TEXT         NOT NULL DEFAULT '',
			review_count    INTEGER      NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, business_key),
			FOREIGN KEY (run_id, query_index) REFERENCES queries (run_id, query_index)
		);

		CREATE TABLE IF NOT EXISTS reviews (
			run_id        UUID         NOT NULL,
			dataset       TEXT         NOT NULL DEFAULT '',
			review_key    INTEGER      NOT NULL,
			business_key  INTEGER      NOT NULL,
			author_name   TEXT         NOT NULL DEFAULT '',
			author_url    TEXT         NOT NULL DEFAULT '',
			language      VARCHAR(16)  NOT NULL DEFAULT '',
			translated    BOOLEAN      NOT NULL DEFAULT FALSE,
			rating        NUMERIC(3,2) NOT NULL,
			epoch_seconds BIGINT       NOT NULL,
			review_date   TIMESTAMPTZ  NOT NULL,
			text          TEXT         NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, review_key),
			FOREIGN KEY (run_id, business_key) REFERENCES businesses (run_id, business_key)
		);

		ALTER TABLE queries    ADD COLUMN IF NOT EXISTS dataset TEXT NOT NULL DEFAULT '';
		ALTER TABLE businesses ADD COLUMN IF NOT EXISTS dataset TEXT NOT NULL DEFAULT '';
		ALTER TABLE reviews    ADD COLUMN IF NOT EXISTS dataset TEXT NOT NULL DEFAULT '';

		CREATE INDEX IF NOT EXISTS idx_businesses_place_id ON businesses(place_id);
		CREATE INDEX IF NOT EXISTS idx_reviews_review_date ON reviews(review_date);
		CREATE INDEX IF NOT EXISTS idx_reviews_dataset     ON reviews(dataset, run_id);
	`)
	return err
}

// Write stores the dataset under its run id, replacing rows previously
// written for the same run. A resumed run keeps its id, so appending to a
// dataset rewrites its rows instead of duplicating them.
func (pw *PostgresWriter) Write(ds *models.Dataset) error {
	if ds.RunID == "" {
		return fmt.Errorf("postgres: dataset has no run id")
	}

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"reviews", "businesses", "queries"} {
		query, args, err := psql.Delete(table).Where(sq.Eq{"run_id": ds.RunID}).ToSql()
		if err != nil {
			return fmt.Errorf("postgres: build clear %s: %w", table, err)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("postgres: clear %s: %w", table, err)
		}
	}

	for _, t := range models.Tables {
		for _, ins := range insertStatements(ds, t) {
			query, args, err := ins.ToSql()
			if err != nil {
				return fmt.Errorf("postgres: build insert %s: %w", t, err)
			}
			if _, err := tx.Exec(query, args...); err != nil {
				return fmt.Errorf("postgres: insert %s: %w", t, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// insertStatements builds batched multi-row inserts for one table.
func insertStatements(ds *models.Dataset, t models.Table) []sq.InsertBuilder {
	var (
		table   string
		columns []string
		n       int
		values  func(i int) []any
	)

	switch t {
	case models.TableQuery:
		table, columns, n = "queries", queryColumns, len(ds.Queries)
		values = func(i int) []any {
			q := ds.Queries[i]
			return []any{ds.RunID, ds.Name, q.QueryIndex, q.QueryText, q.Status, q.ResultCount, q.IssuedAt}
		}
	case models.TableBusiness:
		table, columns, n = "businesses", businessColumns, len(ds.Businesses)
		values = func(i int) []any {
			b := ds.Businesses[i]
			return []any{ds.RunID, ds.Name, b.BusinessKey, b.QueryIndex, b.Name, b.PlaceID, b.NameMatch,
				b.URL, b.Rating, b.BusinessStatus, b.Address, b.ReviewCount}
		}
	case models.TableReview:
		table, columns, n = "reviews", reviewColumns, len(ds.Reviews)
		values = func(i int) []any {
			r := ds.Reviews[i]
			return []any{ds.RunID, ds.Name, r.ReviewKey, r.BusinessKey, r.AuthorName, r.AuthorURL, r.Language,
				r.Translated, r.Rating, r.EpochSeconds, r.ReviewDate, r.Text}
		}
	default:
		return nil
	}

	var out []sq.InsertBuilder
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		ins := psql.Insert(table).Columns(columns...)
		for i := start; i < end; i++ {
			ins = ins.Values(values(i)...)
		}
		out = append(out, ins)
	}
	return out
}

// reviewsQuery selects the reviews one run wrote for one dataset.
func reviewsQuery(dataset, runID string) sq.SelectBuilder {
	return psql.Select(reviewColumns[2:]...).
		From("reviews").
		Where(sq.Eq{"dataset": dataset, "run_id": runID}).
		OrderBy("review_key")
}

// FetchReviews retrieves the reviews stored for a dataset's run.
func (pw *PostgresWriter) FetchReviews(dataset, runID string) ([]*models.ReviewRecord, error) {
	if runID == "" {
		return nil, fmt.Errorf("postgres: fetch reviews: empty run id")
	}
	query, args, err := reviewsQuery(dataset, runID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build fetch reviews: %w", err)
	}

	rows, err := pw.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.ReviewRecord
	for rows.Next() {
		r := &models.ReviewRecord{}
		if err := rows.Scan(
			&r.ReviewKey, &r.BusinessKey, &r.AuthorName, &r.AuthorURL, &r.Language,
			&r.Translated, &r.Rating, &r.EpochSeconds, &r.ReviewDate, &r.Text,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan review: %w", err)
		}
		r.ReviewDate = r.ReviewDate.UTC()
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
