package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeQdrant implements enough of the Qdrant REST surface for the client
// tests: collection lifecycle, upsert with overwrite-by-ID, search and
// scroll.
type fakeQdrant struct {
	mu         sync.Mutex
	collection string
	exists     bool
	points     map[string]Point
	order      []string
	upserts    int
	failNext   bool
}

func newFakeQdrant(collection string) *fakeQdrant {
	return &fakeQdrant{collection: collection, points: make(map[string]Point)}
}

func (f *fakeQdrant) handler() http.Handler {
	mux := http.NewServeMux()
	prefix := "/collections/" + f.collection

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, `{"title":"qdrant"}`)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			if !f.exists {
				http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
				return
			}
			fmt.Fprint(w, `{"result":{"status":"green"}}`)
		case http.MethodPut:
			if f.exists {
				http.Error(w, `{"status":{"error":"already exists"}}`, http.StatusConflict)
				return
			}
			f.exists = true
			fmt.Fprint(w, `{"result":true}`)
		case http.MethodDelete:
			f.exists = false
			f.points = make(map[string]Point)
			f.order = nil
			fmt.Fprint(w, `{"result":true}`)
		}
	})

	mux.HandleFunc(prefix+"/points", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.upserts++
		if f.failNext {
			f.failNext = false
			http.Error(w, `{"status":{"error":"boom"}}`, http.StatusInternalServerError)
			return
		}
		var body struct {
			Points []Point `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, p := range body.Points {
			if _, seen := f.points[p.ID]; !seen {
				f.order = append(f.order, p.ID)
			}
			f.points[p.ID] = p
		}
		fmt.Fprint(w, `{"result":{"status":"acknowledged"}}`)
	})

	mux.HandleFunc(prefix+"/points/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var body struct {
			Limit int `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		var hits []ScoredPoint
		for _, id := range f.order {
			if len(hits) >= body.Limit {
				break
			}
			p := f.points[id]
			hits = append(hits, ScoredPoint{ID: p.ID, Score: 0.9, Payload: p.Payload})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": hits})
	})

	mux.HandleFunc(prefix+"/points/scroll", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var body struct {
			Limit  int     `json:"limit"`
			Offset *string `json:"offset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		start := 0
		if body.Offset != nil {
			for i, id := range f.order {
				if id == *body.Offset {
					start = i
					break
				}
			}
		}
		end := start + body.Limit
		if end > len(f.order) {
			end = len(f.order)
		}
		var page []Point
		for _, id := range f.order[start:end] {
			p := f.points[id]
			p.Vector = nil
			page = append(page, p)
		}
		var next *string
		if end < len(f.order) {
			next = &f.order[end]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"points": page, "next_page_offset": next},
		})
	})

	return mux
}

func newTestClient(t *testing.T, fake *fakeQdrant, batchSize int) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "", fake.collection, batchSize, 5*time.Second, testLogger())
}

func TestEnsureCollection_CreatesOnce(t *testing.T) {
	fake := newFakeQdrant("course_content")
	client := newTestClient(t, fake, 10)

	if err := client.EnsureCollection(context.Background(), 1024, DistanceCosine); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if !fake.exists {
		t.Fatal("collection was not created")
	}
	if err := client.EnsureCollection(context.Background(), 1024, DistanceCosine); err != nil {
		t.Fatalf("second ensure should be a no-op: %v", err)
	}
}

func TestEnsureCollection_ConflictIsSuccess(t *testing.T) {
	fake := newFakeQdrant("course_content")
	// Exists is set but GET reports missing, forcing the client into the
	// create path where it hits the 409.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"status":{"error":"already exists"}}`, http.StatusConflict)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", fake.collection, 10, 5*time.Second, testLogger())
	if err := client.EnsureCollection(context.Background(), 1024, DistanceCosine); err != nil {
		t.Fatalf("racing creation should succeed: %v", err)
	}
}

func TestUpsertBatch_SplitsAndCounts(t *testing.T) {
	fake := newFakeQdrant("course_content")
	fake.exists = true
	client := newTestClient(t, fake, 2)

	points := make([]Point, 5)
	for i := range points {
		points[i] = Point{
			ID:      fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", i),
			Vector:  []float32{1, 0},
			Payload: Payload{Content: fmt.Sprintf("chunk %d", i), Source: "a.md"},
		}
	}

	written, err := client.UpsertBatch(context.Background(), points)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if written != 5 {
		t.Errorf("written = %d, want 5", written)
	}
	if fake.upserts != 3 {
		t.Errorf("batches = %d, want 3 (sizes 2,2,1)", fake.upserts)
	}
}

func TestUpsertBatch_FailedBatchSkipped(t *testing.T) {
	fake := newFakeQdrant("course_content")
	fake.exists = true
	fake.failNext = true
	client := newTestClient(t, fake, 2)

	points := make([]Point, 4)
	for i := range points {
		points[i] = Point{ID: fmt.Sprintf("id-%d", i), Vector: []float32{1}}
	}

	written, err := client.UpsertBatch(context.Background(), points)
	if err == nil {
		t.Fatal("expected error from failed batch")
	}
	if written != 2 {
		t.Errorf("written = %d, want 2 (second batch still lands)", written)
	}
	if len(fake.points) != 2 {
		t.Errorf("stored = %d, want 2", len(fake.points))
	}
}

func TestUpsertBatch_SameIDOverwrites(t *testing.T) {
	fake := newFakeQdrant("course_content")
	fake.exists = true
	client := newTestClient(t, fake, 10)

	p := Point{ID: "stable-id", Vector: []float32{1}, Payload: Payload{Content: "v1"}}
	if _, err := client.UpsertBatch(context.Background(), []Point{p}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	p.Payload.Content = "v2"
	if _, err := client.UpsertBatch(context.Background(), []Point{p}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if len(fake.points) != 1 {
		t.Fatalf("stored = %d, want 1 (overwrite, not duplicate)", len(fake.points))
	}
	if got := fake.points["stable-id"].Payload.Content; got != "v2" {
		t.Errorf("content = %q, want %q", got, "v2")
	}
}

func TestQuery_ReturnsScoredPayloads(t *testing.T) {
	fake := newFakeQdrant("course_content")
	fake.exists = true
	client := newTestClient(t, fake, 10)

	_, err := client.UpsertBatch(context.Background(), []Point{
		{ID: "a", Vector: []float32{1}, Payload: Payload{Content: "ROS topics", Source: "ros.md", Module: "robotics"}},
		{ID: "b", Vector: []float32{0}, Payload: Payload{Content: "Docker basics", Source: "docker.md"}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := client.Query(context.Background(), []float32{1}, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].Payload.Module != "robotics" {
		t.Errorf("module = %q, want robotics", hits[0].Payload.Module)
	}
}

func TestScrollAll_Paginates(t *testing.T) {
	fake := newFakeQdrant("course_content")
	fake.exists = true
	client := newTestClient(t, fake, 3)

	var points []Point
	for i := 0; i < 8; i++ {
		points = append(points, Point{
			ID:      fmt.Sprintf("p-%d", i),
			Vector:  []float32{1},
			Payload: Payload{Content: fmt.Sprintf("chunk %d", i)},
		})
	}
	if _, err := client.UpsertBatch(context.Background(), points); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := client.ScrollAll(context.Background(), 100)
	if err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("scrolled = %d, want 8", len(got))
	}
	for i, p := range got {
		if !strings.HasPrefix(p.ID, "p-") {
			t.Errorf("point %d has unexpected ID %q", i, p.ID)
		}
	}
}

func TestScrollAll_RespectsLimit(t *testing.T) {
	fake := newFakeQdrant("course_content")
	fake.exists = true
	client := newTestClient(t, fake, 2)

	var points []Point
	for i := 0; i < 6; i++ {
		points = append(points, Point{ID: fmt.Sprintf("p-%d", i), Vector: []float32{1}})
	}
	if _, err := client.UpsertBatch(context.Background(), points); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := client.ScrollAll(context.Background(), 3)
	if err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("scrolled = %d, want 3", len(got))
	}
}
