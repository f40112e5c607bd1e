package models

import "time"

// Candidate is one summary result returned by a places text search.
type Candidate struct {
	Name    string   `json:"name"`
	PlaceID string   `json:"place_id"`
	Address string   `json:"formatted_address"`
	Rating  *float64 `json:"rating,omitempty"`
}

// LookupResponse is the outcome of a text search for a free-text query.
type LookupResponse struct {
	Status  string      `json:"status"`
	Results []Candidate `json:"results"`
}

// ReviewPayload is a review embedded in a place detail response.
type ReviewPayload struct {
	AuthorName string  `json:"author_name"`
	AuthorURL  string  `json:"author_url"`
	Language   string  `json:"language"`
	Translated bool    `json:"translated"`
	Rating     float64 `json:"rating"`
	Time       int64   `json:"time"`
	Text       string  `json:"text"`
}

// PlaceDetail holds the full business attributes of a single place.
type PlaceDetail struct {
	Name             string          `json:"name"`
	PlaceID          string          `json:"place_id"`
	URL              string          `json:"url"`
	Rating           *float64        `json:"rating,omitempty"`
	BusinessStatus   string          `json:"business_status"`
	FormattedAddress string          `json:"formatted_address"`
	Reviews          []ReviewPayload `json:"reviews"`
}

// DetailResponse is the outcome of a place detail lookup.
type DetailResponse struct {
	Status string      `json:"status"`
	Result PlaceDetail `json:"result"`
}

// QueryRecord is one row of the query table: one per input query string.
// RawResults is dropped once the candidates were expanded into businesses.
type QueryRecord struct {
	QueryIndex  int         `csv:"query_index"`
	QueryText   string      `csv:"query_text"`
	Status      string      `csv:"status"`
	ResultCount int         `csv:"result_count"`
	IssuedAt    time.Time   `csv:"issued_at"`
	RawResults  []Candidate `csv:"-"`
}

// BusinessRecord is one row of the business table.
// RawReviews is dropped once the reviews were expanded into the review table.
type BusinessRecord struct {
	BusinessKey    int             `csv:"business_key"`
	QueryIndex     int             `csv:"query_index"`
	Name           string          `csv:"name"`
	PlaceID        string          `csv:"place_id"`
	NameMatch      bool            `csv:"name_match"`
	URL            string          `csv:"url"`
	Rating         *float64        `csv:"rating"`
	BusinessStatus string          `csv:"business_status"`
	Address        string          `csv:"address"`
	ReviewCount    int             `csv:"review_count"`
	RawReviews     []ReviewPayload `csv:"-"`
}

// ReviewRecord is one row of the review table.
type ReviewRecord struct {
	ReviewKey    int       `csv:"review_key"`
	BusinessKey  int       `csv:"business_key"`
	AuthorName   string    `csv:"author_name"`
	AuthorURL    string    `csv:"author_url"`
	Language     string    `csv:"language"`
	Translated   bool      `csv:"translated"`
	Rating       float64   `csv:"rating"`
	EpochSeconds int64     `csv:"epoch_seconds"`
	ReviewDate   time.Time `csv:"review_date"`
	Text         string    `csv:"text"`
}

// AggregateBucket holds the rating statistics of one calendar period.
// StddevRating is nil when the bucket holds a single review.
type AggregateBucket struct {
	BucketStart  time.Time
	MeanRating   float64
	StddevRating *float64
	Count        int
}
