package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"places-reviews/models"
)

func sampleDataset() *models.Dataset {
	rating := 4.3
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.Dataset{
		Name:  "subway",
		RunID: "6f1c1c8e-5a0e-4f7b-9d55-2f6a0c3b9a10",
		Queries: []*models.QueryRecord{
			{QueryIndex: 0, QueryText: "Subway, New-York", Status: "OK", ResultCount: 1, IssuedAt: issued},
			{QueryIndex: 1, QueryText: "BulBulAkaBulBul", Status: "ZERO_RESULTS", IssuedAt: issued},
		},
		Businesses: []*models.BusinessRecord{
			{BusinessKey: 1, QueryIndex: 0, Name: "Subway", PlaceID: "p1", NameMatch: true,
				URL: "https://maps.example/p1", Rating: &rating, BusinessStatus: "OPERATIONAL",
				Address: "1 Main St, New York", ReviewCount: 2},
			{BusinessKey: 2, QueryIndex: 0, Name: "Subway Deli", PlaceID: "p2", ReviewCount: 0},
		},
		Reviews: []*models.ReviewRecord{
			{ReviewKey: 1, BusinessKey: 1, AuthorName: "Ann", Language: "en", Rating: 5,
				EpochSeconds: 0, ReviewDate: time.Unix(0, 0).UTC(), Text: "fresh, \"good\"\nbread"},
			{ReviewKey: 2, BusinessKey: 1, AuthorName: "Bo", Language: "he", Translated: true, Rating: 3,
				EpochSeconds: 86400, ReviewDate: time.Unix(86400, 0).UTC(), Text: "ok"},
		},
	}
}

func TestCSVWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir, "subway")
	require.NoError(t, err)
	defer w.Close()

	ds := sampleDataset()
	require.NoError(t, w.Write(ds))

	for _, table := range models.Tables {
		_, err := os.Stat(filepath.Join(dir, "subway", table.String()+".csv"))
		require.NoError(t, err, table.String())
	}

	got, err := LoadDataset(dir, "subway")
	require.NoError(t, err)

	assert.Equal(t, ds.RunID, got.RunID)
	assert.Equal(t, ds.Name, got.Name)
	assert.Equal(t, ds.Queries, got.Queries)
	assert.Equal(t, ds.Businesses, got.Businesses)
	assert.Equal(t, ds.Reviews, got.Reviews)
}

func TestCSVWriterMetadataFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir, "subway")
	require.NoError(t, err)

	ds := sampleDataset()
	ds.Name = ""
	require.NoError(t, w.Write(ds))

	raw, err := os.ReadFile(filepath.Join(w.Dir(), metaFile))
	require.NoError(t, err)
	var meta datasetMeta
	require.NoError(t, yaml.Unmarshal(raw, &meta))
	assert.Equal(t, datasetMeta{Dataset: "subway", RunID: ds.RunID}, meta)
}

func TestLoadDatasetWithoutMetadata(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir, "legacy")
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleDataset()))
	require.NoError(t, os.Remove(filepath.Join(w.Dir(), metaFile)))

	ds, err := LoadDataset(dir, "legacy")
	require.NoError(t, err)
	assert.Empty(t, ds.RunID)
	assert.Equal(t, "legacy", ds.Name)
	assert.Len(t, ds.Reviews, 2)
}

func TestCSVWriterHeaderAndIndex(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir, "subway")
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleDataset()))

	raw, err := os.ReadFile(w.Path(models.TableQuery))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "index,query_index,query_text,status,result_count,issued_at", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "1,1,BulBulAkaBulBul,ZERO_RESULTS,0,"), lines[2])
}

func TestCSVWriterEmptyTablesKeepHeader(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir, "empty")
	require.NoError(t, err)
	require.NoError(t, w.Write(&models.Dataset{}))

	raw, err := os.ReadFile(w.Path(models.TableReview))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "index,review_key,business_key,"))

	ds, err := LoadDataset(dir, "empty")
	require.NoError(t, err)
	assert.Empty(t, ds.Reviews)
}

func TestNewCSVWriterRejectsEmptyName(t *testing.T) {
	_, err := NewCSVWriter(t.TempDir(), "")
	assert.Error(t, err)
}

func TestLoadDatasetMissing(t *testing.T) {
	_, err := LoadDataset(t.TempDir(), "nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInsertStatementsBatches(t *testing.T) {
	ds := sampleDataset()
	for i := 0; i < batchSize+3; i++ {
		ds.Reviews = append(ds.Reviews, &models.ReviewRecord{ReviewKey: 3 + i, BusinessKey: 1})
	}

	stmts := insertStatements(ds, models.TableReview)
	require.Len(t, stmts, 2)

	query, args, err := stmts[0].ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, "INSERT INTO reviews (run_id,dataset,review_key,business_key,"), query)
	assert.Contains(t, query, "$1")
	assert.Len(t, args, batchSize*len(reviewColumns))

	_, args, err = stmts[1].ToSql()
	require.NoError(t, err)
	assert.Len(t, args, 5*len(reviewColumns))
}

func TestInsertStatementsPerTable(t *testing.T) {
	ds := sampleDataset()

	q := insertStatements(ds, models.TableQuery)
	require.Len(t, q, 1)
	_, args, err := q[0].ToSql()
	require.NoError(t, err)
	assert.Len(t, args, 2*len(queryColumns))
	assert.Equal(t, ds.RunID, args[0])
	assert.Equal(t, "subway", args[1])

	b := insertStatements(ds, models.TableBusiness)
	require.Len(t, b, 1)
	_, args, err = b[0].ToSql()
	require.NoError(t, err)
	assert.Len(t, args, 2*len(businessColumns))

	assert.Empty(t, insertStatements(&models.Dataset{RunID: "x"}, models.TableReview))
}

func TestReviewsQueryScopedToDatasetRun(t *testing.T) {
	query, args, err := reviewsQuery("subway", "run-1").ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "FROM reviews WHERE dataset = $1 AND run_id = $2 ORDER BY review_key")
	assert.Equal(t, []any{"subway", "run-1"}, args)
	assert.True(t, strings.HasPrefix(query, "SELECT review_key, business_key, "), query)
}

func TestFetchReviewsRequiresRunID(t *testing.T) {
	pw := &PostgresWriter{}
	_, err := pw.FetchReviews("subway", "")
	assert.Error(t, err)
}
