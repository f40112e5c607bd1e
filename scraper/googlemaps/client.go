package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"places-reviews/models"
	"places-reviews/utils"
)

const (
	textSearchPath = "/textsearch/json"
	detailsPath    = "/details/json"

	// StatusOK is the places API status of a successful call.
	StatusOK = "OK"
	// StatusRequestFailed marks a call that never produced an API status.
	StatusRequestFailed = "REQUEST_FAILED"
)

// detailFields are the place attributes requested from the details endpoint.
var detailFields = []string{
	"name", "place_id", "url", "rating", "business_status", "formatted_address", "reviews",
}

// Client talks to the places web service: text search for lookups and
// place details for full business records.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	http     *http.Client
	logger   *utils.Logger
}

// Options configure a Client.
type Options struct {
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration
}

// NewClient creates a reusable places client.
func NewClient(opts Options, logger *utils.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		language: opts.Language,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Lookup runs a text search for query and returns the first page of candidates.
// A non-OK API status is returned in the response, not as an error.
func (c *Client) Lookup(ctx context.Context, query string) (*models.LookupResponse, error) {
	params := url.Values{}
	params.Set("query", query)

	var resp models.LookupResponse
	if err := c.get(ctx, textSearchPath, params, &resp); err != nil {
		return nil, fmt.Errorf("places: lookup %q: %w", query, err)
	}

	c.logger.Debug("[places] Lookup %q — status %s, %d results", query, resp.Status, len(resp.Results))
	return &resp, nil
}

// Detail fetches the full attributes of a place, including up to five reviews.
func (c *Client) Detail(ctx context.Context, placeID string) (*models.DetailResponse, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", strings.Join(detailFields, ","))
	if c.language != "" {
		params.Set("language", c.language)
	}

	var resp models.DetailResponse
	if err := c.get(ctx, detailsPath, params, &resp); err != nil {
		return nil, fmt.Errorf("places: detail %s: %w", placeID, err)
	}

	c.logger.Debug("[places] Detail %s — status %s, %d reviews", placeID, resp.Status, len(resp.Result.Reviews))
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
