package storage

import "places-reviews/models"

// DatasetWriter is the interface any storage backend must satisfy.
type DatasetWriter interface {
	Write(ds *models.Dataset) error
	Close() error
}

// ReviewSource reads back the persisted reviews of one dataset run for aggregation.
type ReviewSource interface {
	FetchReviews(dataset, runID string) ([]*models.ReviewRecord, error)
}
