// Package rag combines retrieval with a generation-model call and shapes
// the degraded responses when either half is unavailable.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tbeckett/courserag/internal/retrieve"
)

// ErrEmptyQuery rejects blank queries before any external call is made.
var ErrEmptyQuery = errors.New("query is required")

const systemPrompt = "You are a helpful assistant for the Physical AI & Humanoid Robotics course. " +
	"Use the provided context to answer questions accurately and reference the relevant modules when possible. " +
	"Be concise but comprehensive."

const noContextText = "No relevant content found in the knowledge base."

const fallbackResponse = "Could not generate a response due to an API error, but here are some relevant documents:"

// Retriever is the retrieval half the orchestrator depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) []retrieve.Result
}

// Generator is the generation half. A nil generator puts the orchestrator
// in retrieval-only mode.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Answer is the full RAG response. FallbackContext is only set when
// generation was skipped or failed and the raw passages are returned
// instead.
type Answer struct {
	Response           string   `json:"response"`
	Sources            []string `json:"sources"`
	RetrievedDocsCount int      `json:"retrieved_docs_count"`
	FallbackContext    string   `json:"fallback_context,omitempty"`
}

// Orchestrator runs the retrieve-then-generate flow.
type Orchestrator struct {
	retriever       Retriever
	generator       Generator
	topK            int
	maxContextChars int
	log             *slog.Logger
}

func New(retriever Retriever, generator Generator, topK, maxContextChars int, log *slog.Logger) *Orchestrator {
	if topK <= 0 {
		topK = 5
	}
	if maxContextChars <= 0 {
		maxContextChars = topK * 1000
	}
	return &Orchestrator{
		retriever:       retriever,
		generator:       generator,
		topK:            topK,
		maxContextChars: maxContextChars,
		log:             log,
	}
}

// Answer retrieves context for the query and generates a grounded
// response. Generation failure does not fail the request: the retrieved
// passages come back as fallback context instead.
func (o *Orchestrator) Answer(ctx context.Context, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, ErrEmptyQuery
	}

	results := o.retriever.Retrieve(ctx, query, o.topK)

	sources := make([]string, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.Source)
	}

	contextText := buildContext(results, o.maxContextChars)
	if contextText == "" {
		contextText = noContextText
	}

	if o.generator == nil {
		return o.fallback(results, sources), nil
	}

	userPrompt := fmt.Sprintf(
		"Context: %s\n\nQuestion: %s\n\nPlease provide a helpful answer based on the context. "+
			"If the context doesn't contain relevant information, please say so and suggest "+
			"where the user might find the information in the course.",
		contextText, query,
	)

	text, err := o.generator.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		o.log.Warn("generation failed, returning retrieved context", "error", err)
		return o.fallback(results, sources), nil
	}

	return Answer{
		Response:           text,
		Sources:            sources,
		RetrievedDocsCount: len(results),
	}, nil
}

func (o *Orchestrator) fallback(results []retrieve.Result, sources []string) Answer {
	contents := make([]string, 0, len(results))
	for _, r := range results {
		contents = append(contents, r.Content)
	}
	return Answer{
		Response:           fallbackResponse,
		Sources:            sources,
		RetrievedDocsCount: len(results),
		FallbackContext:    strings.Join(contents, "\n\n"),
	}
}

// buildContext renders the retrieved passages as source-attributed blocks,
// stopping before the character cap is crossed. An oversize first passage is
// truncated to the cap so the prompt never exceeds it.
func buildContext(results []retrieve.Result, maxChars int) string {
	var b strings.Builder
	for i, r := range results {
		block := fmt.Sprintf("Source: %s\nContent: %s", r.Source, r.Content)
		sep := 0
		if i > 0 {
			sep = len("\n\n---\n\n")
		}
		if b.Len()+sep+len(block) > maxChars {
			if b.Len() == 0 {
				b.WriteString(truncateChars(block, maxChars))
			}
			break
		}
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(block)
	}
	return b.String()
}

func truncateChars(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) > max {
		runes = runes[:max]
	}
	return string(runes)
}
