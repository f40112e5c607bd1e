package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"places-reviews/models"
	"places-reviews/scraper/googlemaps"
	"places-reviews/utils"
)

// PlacesLookup resolves a free-text query into candidate places.
type PlacesLookup interface {
	Lookup(ctx context.Context, query string) (*models.LookupResponse, error)
}

// PlaceDetails returns the full record of a single place.
type PlaceDetails interface {
	Detail(ctx context.Context, placeID string) (*models.DetailResponse, error)
}

// PipelineOptions tune how detail lookups are issued.
type PipelineOptions struct {
	MaxConcurrency int
	RateLimitMs    int
	// Now stamps QueryRecord.IssuedAt; defaults to time.Now.
	Now func() time.Time
}

// Pipeline expands queries into the query, business and review tables.
type Pipeline struct {
	lookup  PlacesLookup
	details PlaceDetails
	logger  *utils.Logger
	opts    PipelineOptions
}

// NewPipeline wires the collaborators into a Pipeline.
func NewPipeline(lookup PlacesLookup, details PlaceDetails, logger *utils.Logger, opts PipelineOptions) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	return &Pipeline{lookup: lookup, details: details, logger: logger, opts: opts}
}

// Run is a single pipeline run. It owns the dataset being built and the
// surrogate key counters; it is not safe for concurrent use.
type Run struct {
	p  *Pipeline
	ds *models.Dataset

	nextQueryIndex  int
	nextBusinessKey int
	nextReviewKey   int
}

// NewRun starts a run on an empty dataset with keys starting at 1.
func (p *Pipeline) NewRun() *Run {
	return &Run{
		p:               p,
		ds:              &models.Dataset{RunID: uuid.NewString()},
		nextQueryIndex:  0,
		nextBusinessKey: 1,
		nextReviewKey:   1,
	}
}

// ResumeRun continues an existing dataset: query indices and surrogate keys
// pick up after the highest values already present.
func (p *Pipeline) ResumeRun(ds *models.Dataset) *Run {
	if ds.RunID == "" {
		ds.RunID = uuid.NewString()
	}
	r := &Run{p: p, ds: ds, nextBusinessKey: 1, nextReviewKey: 1}
	for _, q := range ds.Queries {
		if q.QueryIndex >= r.nextQueryIndex {
			r.nextQueryIndex = q.QueryIndex + 1
		}
	}
	for _, b := range ds.Businesses {
		if b.BusinessKey >= r.nextBusinessKey {
			r.nextBusinessKey = b.BusinessKey + 1
		}
	}
	for _, rv := range ds.Reviews {
		if rv.ReviewKey >= r.nextReviewKey {
			r.nextReviewKey = rv.ReviewKey + 1
		}
	}
	return r
}

// Dataset returns the tables accumulated so far.
func (r *Run) Dataset() *models.Dataset { return r.ds }

// Execute runs all three stages over queries on a fresh dataset.
func (p *Pipeline) Execute(ctx context.Context, queries []string) (*models.Dataset, error) {
	run := p.NewRun()
	if err := run.Collect(ctx, queries); err != nil {
		return run.Dataset(), err
	}
	return run.Dataset(), nil
}

// Collect runs query → business → review expansion for queries.
func (r *Run) Collect(ctx context.Context, queries []string) error {
	r.p.logger.Info("[pipeline] Run %s — %d queries", r.ds.RunID, len(queries))

	qs, err := r.BuildQueryTable(ctx, queries)
	if err != nil {
		return err
	}
	bs, err := r.BuildBusinessTable(ctx, qs)
	if err != nil {
		return err
	}
	rs := r.BuildReviewTable(bs)

	r.p.logger.Info("[pipeline] Run %s done — %d queries, %d businesses, %d reviews, %d warnings",
		r.ds.RunID, len(qs), len(bs), len(rs), len(r.ds.Warnings))
	return nil
}

// BuildQueryTable issues one lookup per query, in order, and appends one
// QueryRecord per query whatever the outcome.
func (r *Run) BuildQueryTable(ctx context.Context, queries []string) ([]*models.QueryRecord, error) {
	out := make([]*models.QueryRecord, 0, len(queries))

	for _, text := range queries {
		rec := &models.QueryRecord{
			QueryIndex: r.nextQueryIndex,
			QueryText:  text,
			IssuedAt:   r.p.opts.Now().UTC(),
		}

		resp, err := r.p.lookup.Lookup(ctx, text)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, fmt.Errorf("pipeline: query %q: %w", text, ctxErr)
			}
			rec.Status = googlemaps.StatusRequestFailed
			r.warn(models.Warning{
				Kind: models.WarnLookupFailed, Stage: "query", QueryIndex: rec.QueryIndex,
				Message: fmt.Sprintf("lookup %q failed: %v", text, err),
			})
		default:
			rec.Status = resp.Status
			rec.ResultCount = len(resp.Results)
			switch {
			case resp.Status == googlemaps.StatusOK && len(resp.Results) > 0:
				rec.RawResults = resp.Results
			case resp.Status == googlemaps.StatusOK || resp.Status == "ZERO_RESULTS":
				r.warn(models.Warning{
					Kind: models.WarnZeroResults, Stage: "query", QueryIndex: rec.QueryIndex,
					Message: fmt.Sprintf("lookup %q returned no results", text),
				})
			default:
				r.warn(models.Warning{
					Kind: models.WarnLookupFailed, Stage: "query", QueryIndex: rec.QueryIndex,
					Message: fmt.Sprintf("lookup %q returned status %s", text, resp.Status),
				})
			}
		}

		r.ds.Queries = append(r.ds.Queries, rec)
		r.nextQueryIndex++
		out = append(out, rec)
	}

	r.p.logger.Info("[pipeline] Query table — %d rows", len(out))
	return out, nil
}

type detailResult struct {
	resp *models.DetailResponse
	err  error
}

// BuildBusinessTable expands every query's candidates through a detail
// lookup. Candidates whose lookup fails are skipped and do not consume a key.
// Keys follow query order, then candidate order, even when lookups run
// concurrently.
func (r *Run) BuildBusinessTable(ctx context.Context, queries []*models.QueryRecord) ([]*models.BusinessRecord, error) {
	var out []*models.BusinessRecord
	pool := utils.NewWorkerPool(r.p.opts.MaxConcurrency, r.p.opts.RateLimitMs)

	for _, q := range queries {
		candidates := q.RawResults
		results := utils.MapOrdered(pool, len(candidates), func(i int) detailResult {
			resp, err := r.p.details.Detail(ctx, candidates[i].PlaceID)
			return detailResult{resp: resp, err: err}
		})

		for i, res := range results {
			placeID := candidates[i].PlaceID
			if res.err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return out, fmt.Errorf("pipeline: detail %s: %w", placeID, ctxErr)
				}
				r.warn(models.Warning{
					Kind: models.WarnDetailFailed, Stage: "business", QueryIndex: q.QueryIndex, PlaceID: placeID,
					Message: fmt.Sprintf("detail %s failed: %v", placeID, res.err),
				})
				continue
			}
			if res.resp.Status != googlemaps.StatusOK {
				r.warn(models.Warning{
					Kind: models.WarnDetailFailed, Stage: "business", QueryIndex: q.QueryIndex, PlaceID: placeID,
					Message: fmt.Sprintf("detail %s returned status %s", placeID, res.resp.Status),
				})
				continue
			}

			d := res.resp.Result
			b := &models.BusinessRecord{
				BusinessKey:    r.nextBusinessKey,
				QueryIndex:     q.QueryIndex,
				Name:           d.Name,
				PlaceID:        d.PlaceID,
				NameMatch:      nameMatches(d.Name, q.QueryText),
				URL:            d.URL,
				Rating:         d.Rating,
				BusinessStatus: d.BusinessStatus,
				Address:        d.FormattedAddress,
				ReviewCount:    len(d.Reviews),
				RawReviews:     d.Reviews,
			}
			if b.PlaceID == "" {
				b.PlaceID = placeID
			}
			if !b.NameMatch {
				r.warn(models.Warning{
					Kind: models.WarnNameMismatch, Stage: "business", QueryIndex: q.QueryIndex, PlaceID: placeID,
					Message: fmt.Sprintf("%q does not match query %q", d.Name, q.QueryText),
				})
			}

			r.ds.Businesses = append(r.ds.Businesses, b)
			r.nextBusinessKey++
			out = append(out, b)
		}

		q.RawResults = nil
	}

	r.p.logger.Info("[pipeline] Business table — %d rows", len(out))
	return out, nil
}

// BuildReviewTable flattens the reviews embedded in each business into review
// rows, one per review, in business order.
func (r *Run) BuildReviewTable(businesses []*models.BusinessRecord) []*models.ReviewRecord {
	var out []*models.ReviewRecord

	for _, b := range businesses {
		for _, p := range b.RawReviews {
			rv := &models.ReviewRecord{
				ReviewKey:    r.nextReviewKey,
				BusinessKey:  b.BusinessKey,
				AuthorName:   p.AuthorName,
				AuthorURL:    p.AuthorURL,
				Language:     p.Language,
				Translated:   p.Translated,
				Rating:       p.Rating,
				EpochSeconds: p.Time,
				ReviewDate:   time.Unix(p.Time, 0).UTC(),
				Text:         p.Text,
			}
			r.ds.Reviews = append(r.ds.Reviews, rv)
			r.nextReviewKey++
			out = append(out, rv)
		}
		b.RawReviews = nil
	}

	r.p.logger.Info("[pipeline] Review table — %d rows", len(out))
	return out
}

func (r *Run) warn(w models.Warning) {
	r.ds.Warnings = append(r.ds.Warnings, w)
	r.p.logger.Warn("[pipeline] %s", w)
}
