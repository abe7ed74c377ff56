package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newServerClient(t *testing.T, handler http.HandlerFunc, stats *LLMStats) *OpenRouterClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenRouterClient("test-key", "meta-llama/llama-3.2-3b-instruct", srv.URL, stats)
}

func TestGenerate_SendsSystemAndUserMessages(t *testing.T) {
	var captured chatRequest
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ROS 2 is a robotics framework."}}]}`)
	}, nil)

	text, err := client.Generate(context.Background(), "You are helpful.", "What is ROS?")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "ROS 2 is a robotics framework." {
		t.Errorf("text = %q", text)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Errorf("roles = %s,%s", captured.Messages[0].Role, captured.Messages[1].Role)
	}
	if captured.MaxTokens != 800 || captured.Temperature != 0.3 || captured.TopP != 0.95 {
		t.Errorf("params = %d/%v/%v, want 800/0.3/0.95", captured.MaxTokens, captured.Temperature, captured.TopP)
	}
}

func TestGenerate_ServerErrorIsRetryable(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}, nil)

	_, err := client.Generate(context.Background(), "sys", "user")
	var retryable *RetryableError
	if !errors.As(err, &retryable) {
		t.Fatalf("error = %v, want *RetryableError", err)
	}
	if retryable.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", retryable.StatusCode)
	}
}

func TestGenerate_BadRequestIsPermanent(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}, nil)

	_, err := client.Generate(context.Background(), "sys", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		t.Fatalf("400 should not be retryable, got %v", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}, nil)

	if _, err := client.Generate(context.Background(), "sys", "user"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestGenerate_RecordsStats(t *testing.T) {
	stats := NewLLMStats(time.Minute)
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}, stats)

	if _, err := client.Generate(context.Background(), "sys", "user"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Errorf("count = %d, want 1", snap.Count)
	}
	if snap.Failures != 0 {
		t.Errorf("failures = %d, want 0", snap.Failures)
	}
}

func TestGenerate_RecordsFailure(t *testing.T) {
	stats := NewLLMStats(time.Minute)
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}, stats)

	_, _ = client.Generate(context.Background(), "sys", "user")
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.Failures != 1 {
		t.Errorf("count/failures = %d/%d, want 1/1", snap.Count, snap.Failures)
	}
}

func TestLLMStats_Percentiles(t *testing.T) {
	stats := NewLLMStats(time.Minute)
	for _, ms := range []int64{10, 20, 30, 40, 50} {
		stats.Record(ms, false)
	}
	snap := stats.Snapshot()
	if snap.MinMs != 10 || snap.MaxMs != 50 {
		t.Errorf("min/max = %d/%d, want 10/50", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 30 {
		t.Errorf("avg = %v, want 30", snap.AvgMs)
	}
	if snap.P50Ms != 30 {
		t.Errorf("p50 = %v, want 30", snap.P50Ms)
	}
}

func TestLLMStats_EmptySnapshot(t *testing.T) {
	stats := NewLLMStats(time.Minute)
	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Errorf("count = %d, want 0", snap.Count)
	}
}
