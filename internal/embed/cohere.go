package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultCohereBaseURL = "https://api.cohere.ai"

// CohereClient calls the Cohere embed API.
type CohereClient struct {
	apiKey     string
	model      string
	baseURL    string
	dimension  int
	httpClient *http.Client
}

func NewCohereClient(apiKey, model string, dimension int, timeout time.Duration) *CohereClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CohereClient{
		apiKey:    apiKey,
		model:     model,
		baseURL:   defaultCohereBaseURL,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBaseURL overrides the API endpoint; used in tests.
func (c *CohereClient) SetBaseURL(u string) { c.baseURL = u }

func (c *CohereClient) Dimension() int { return c.dimension }

func (c *CohereClient) Semantic() bool { return true }

type cohereRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type cohereResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Message    string      `json:"message"`
}

// Embed returns one vector per input text. Transient upstream failures
// (429, 5xx, network) come back as *RetryableError so the caller can decide
// whether to back off and retry.
func (c *CohereClient) Embed(ctx context.Context, texts []string, input InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(cohereRequest{
		Texts:     texts,
		Model:     c.model,
		InputType: string(input),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cohere embed status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp cohereResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("cohere returned %d embeddings for %d texts", len(apiResp.Embeddings), len(texts))
	}
	for i, v := range apiResp.Embeddings {
		if len(v) != c.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), c.dimension)
		}
	}

	return apiResp.Embeddings, nil
}

// Close releases idle connections.
func (c *CohereClient) Close() {
	c.httpClient.CloseIdleConnections()
}
