package rag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/tbeckett/courserag/internal/retrieve"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRetriever struct {
	results []retrieve.Result
	calls   int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) []retrieve.Result {
	f.calls++
	return f.results
}

type fakeGenerator struct {
	text   string
	err    error
	system string
	user   string
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.system = system
	f.user = user
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func twoResults() []retrieve.Result {
	return []retrieve.Result{
		{ID: "a", Content: "ROS 2 nodes communicate over topics.", Source: "/docs/module-1/ros.md", Rank: 1},
		{ID: "b", Content: "Launch files start node graphs.", Source: "/docs/module-1/launch.md", Rank: 2},
	}
}

func TestAnswer_EmptyQuery(t *testing.T) {
	ret := &fakeRetriever{}
	gen := &fakeGenerator{}
	o := New(ret, gen, 5, 0, testLogger())

	_, err := o.Answer(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
	if ret.calls != 0 || gen.calls != 0 {
		t.Errorf("external calls made for empty query: retrieve=%d generate=%d", ret.calls, gen.calls)
	}
}

func TestAnswer_HappyPath(t *testing.T) {
	ret := &fakeRetriever{results: twoResults()}
	gen := &fakeGenerator{text: "Nodes talk over topics; see module 1."}
	o := New(ret, gen, 5, 0, testLogger())

	ans, err := o.Answer(context.Background(), "how do nodes communicate")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Response != "Nodes talk over topics; see module 1." {
		t.Errorf("response = %q", ans.Response)
	}
	if ans.RetrievedDocsCount != 2 {
		t.Errorf("count = %d, want 2", ans.RetrievedDocsCount)
	}
	if len(ans.Sources) != 2 || ans.Sources[0] != "/docs/module-1/ros.md" {
		t.Errorf("sources = %v", ans.Sources)
	}
	if ans.FallbackContext != "" {
		t.Errorf("fallback context set on success: %q", ans.FallbackContext)
	}

	if !strings.Contains(gen.user, "Source: /docs/module-1/ros.md\nContent: ROS 2 nodes communicate over topics.") {
		t.Errorf("prompt missing attributed block: %q", gen.user)
	}
	if !strings.Contains(gen.user, "\n\n---\n\n") {
		t.Errorf("blocks not separated: %q", gen.user)
	}
	if !strings.Contains(gen.user, "Question: how do nodes communicate") {
		t.Errorf("question missing: %q", gen.user)
	}
	if !strings.Contains(gen.system, "Physical AI & Humanoid Robotics course") {
		t.Errorf("system prompt = %q", gen.system)
	}
}

func TestAnswer_EmptyRetrievalStillSucceeds(t *testing.T) {
	ret := &fakeRetriever{}
	gen := &fakeGenerator{text: "I could not find that in the course material."}
	o := New(ret, gen, 5, 0, testLogger())

	ans, err := o.Answer(context.Background(), "something obscure")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.RetrievedDocsCount != 0 {
		t.Errorf("count = %d, want 0", ans.RetrievedDocsCount)
	}
	if !strings.Contains(gen.user, "No relevant content found in the knowledge base.") {
		t.Errorf("empty-retrieval context missing: %q", gen.user)
	}
}

func TestAnswer_GenerationFailureFallsBack(t *testing.T) {
	ret := &fakeRetriever{results: twoResults()}
	gen := &fakeGenerator{err: errors.New("model down")}
	o := New(ret, gen, 5, 0, testLogger())

	ans, err := o.Answer(context.Background(), "how do nodes communicate")
	if err != nil {
		t.Fatalf("generation failure should not error the request: %v", err)
	}
	if !strings.HasPrefix(ans.Response, "Could not generate a response") {
		t.Errorf("response = %q", ans.Response)
	}
	if len(ans.Sources) != 2 {
		t.Errorf("sources = %v", ans.Sources)
	}
	if !strings.Contains(ans.FallbackContext, "ROS 2 nodes communicate over topics.") {
		t.Errorf("fallback context = %q", ans.FallbackContext)
	}
}

func TestAnswer_NoGeneratorConfigured(t *testing.T) {
	ret := &fakeRetriever{results: twoResults()}
	o := New(ret, nil, 5, 0, testLogger())

	ans, err := o.Answer(context.Background(), "query")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.FallbackContext == "" {
		t.Error("expected fallback context without a generator")
	}
}

func TestBuildContext_CapsLength(t *testing.T) {
	big := strings.Repeat("x", 900)
	results := []retrieve.Result{
		{Content: big, Source: "a.md"},
		{Content: big, Source: "b.md"},
		{Content: big, Source: "c.md"},
	}
	got := buildContext(results, 2000)
	if len(got) > 2000 {
		t.Errorf("context length = %d, want <= 2000", len(got))
	}
	if !strings.Contains(got, "a.md") {
		t.Error("first block always included")
	}
	if strings.Contains(got, "c.md") {
		t.Error("third block should be dropped by the cap")
	}
}

func TestBuildContext_TruncatesOversizeFirstBlock(t *testing.T) {
	results := []retrieve.Result{
		{Content: strings.Repeat("y", 5000), Source: "big.md"},
		{Content: "small", Source: "small.md"},
	}
	got := buildContext(results, 1000)
	if len(got) != 1000 {
		t.Errorf("context length = %d, want exactly 1000", len(got))
	}
	if !strings.Contains(got, "big.md") {
		t.Error("oversize first block should be included truncated")
	}
	if strings.Contains(got, "small.md") {
		t.Error("no room remains for the second block")
	}
}

func TestBuildContext_Empty(t *testing.T) {
	if got := buildContext(nil, 1000); got != "" {
		t.Errorf("context = %q, want empty", got)
	}
}
