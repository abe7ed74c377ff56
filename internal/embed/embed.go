package embed

import (
	"context"
	"fmt"
)

// InputType tells the embedding service whether texts are corpus documents
// or a search query; some models produce asymmetric embeddings.
type InputType string

const (
	InputDocument InputType = "search_document"
	InputQuery    InputType = "search_query"
)

// Embedder turns texts into fixed-dimension vectors. Implementations must
// return one vector per input text, all of Dimension() length.
type Embedder interface {
	Embed(ctx context.Context, texts []string, input InputType) ([][]float32, error)

	// Dimension is the vector length produced by every call.
	Dimension() int

	// Semantic reports whether vectors carry real semantic meaning.
	// Retrieval falls back to keyword ranking when this is false.
	Semantic() bool
}

// RetryableError indicates a transient embedding-service failure worth
// retrying.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable embedding error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
