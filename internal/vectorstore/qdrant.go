// Package vectorstore is a minimal REST client for a Qdrant collection.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Distance metrics understood by Qdrant.
const (
	DistanceCosine = "Cosine"
	DistanceDot    = "Dot"
	DistanceEuclid = "Euclid"
)

// Payload is the metadata stored alongside each vector.
type Payload struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Module     string `json:"module,omitempty"`
	OriginalID string `json:"original_id,omitempty"`
}

// Point is a vector plus payload, addressed by a stable ID. Re-upserting the
// same ID overwrites the stored point.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// ScoredPoint is a similarity-search hit.
type ScoredPoint struct {
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
	Payload Payload `json:"payload"`
}

// Client talks to one Qdrant collection over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	batchSize  int
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL, apiKey, collection string, batchSize int, timeout time.Duration, log *slog.Logger) *Client {
	if batchSize <= 0 {
		batchSize = 50
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		collection: collection,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Collection returns the collection name this client is bound to.
func (c *Client) Collection() string { return c.collection }

// Health probes the Qdrant root endpoint. Newer Qdrant versions dropped the
// dedicated /health route, so the root works across versions.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return fmt.Errorf("qdrant health: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection if it does not exist. Losing a
// creation race is fine: Qdrant's "already exists" reply is treated as
// success.
func (c *Client) EnsureCollection(ctx context.Context, dimension int, distance string) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	if distance == "" {
		distance = DistanceCosine
	}

	path := "/collections/" + c.collection
	if _, err := c.doRequest(ctx, http.MethodGet, path, nil); err == nil {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": distance,
		},
	}
	_, err := c.doRequest(ctx, http.MethodPut, path, body)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.code == http.StatusConflict {
			// Another creator got there first.
			return nil
		}
		return fmt.Errorf("create collection %s: %w", c.collection, err)
	}

	c.log.Info("created collection", "collection", c.collection, "dimension", dimension, "distance", distance)
	return nil
}

// UpsertBatch writes points in batches of the configured size. A failed
// batch is logged and skipped so the rest of the corpus still lands;
// ingestion is at-least-once, not atomic. Returns the number of points
// written and the first batch error encountered, if any.
func (c *Client) UpsertBatch(ctx context.Context, points []Point) (int, error) {
	written := 0
	var firstErr error

	for start := 0; start < len(points); start += c.batchSize {
		end := min(start+c.batchSize, len(points))
		batch := points[start:end]

		body := map[string]any{"points": batch}
		path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
		if _, err := c.doRequest(ctx, http.MethodPut, path, body); err != nil {
			c.log.Error("upsert batch failed, skipping",
				"collection", c.collection,
				"batch_start", start,
				"batch_size", len(batch),
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written += len(batch)
	}

	return written, firstErr
}

// Query returns up to topK nearest points by the collection's distance
// metric.
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]ScoredPoint, error) {
	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	respBody, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	var resp struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return resp.Result, nil
}

// ScrollAll pages through the collection without vector similarity,
// returning up to limit points in storage order. Used by the keyword
// fallback ranking when no semantic embeddings are available.
func (c *Client) ScrollAll(ctx context.Context, limit int) ([]Point, error) {
	if limit <= 0 {
		limit = 100
	}

	var points []Point
	var offset *string
	for len(points) < limit {
		pageSize := min(limit-len(points), c.batchSize)
		body := map[string]any{
			"limit":        pageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			body["offset"] = *offset
		}

		path := fmt.Sprintf("/collections/%s/points/scroll", c.collection)
		respBody, err := c.doRequest(ctx, http.MethodPost, path, body)
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll: %w", err)
		}

		var resp struct {
			Result struct {
				Points         []Point `json:"points"`
				NextPageOffset *string `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("decode scroll response: %w", err)
		}

		points = append(points, resp.Result.Points...)
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	return points, nil
}

// DeleteCollection drops the collection. Best effort; used by re-indexing
// tooling and tests.
func (c *Client) DeleteCollection(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/collections/"+c.collection, nil)
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", c.collection, err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	return respBody, nil
}
