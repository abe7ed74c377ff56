package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_EmptyInput(t *testing.T) {
	if got := Split("", 1000); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := Split("   ", 1000); got != nil {
		t.Errorf("expected nil for whitespace-only input, got %v", got)
	}
	if got := Split("\n\n\n\n", 1000); got != nil {
		t.Errorf("expected nil for blank-line input, got %v", got)
	}
}

func TestSplit_SmallContentSingleChunk(t *testing.T) {
	content := "First paragraph.\n\nSecond paragraph."
	chunks := Split(content, 1000)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "First paragraph.") || !strings.Contains(chunks[0], "Second paragraph.") {
		t.Errorf("expected both paragraphs packed together, got %q", chunks[0])
	}
}

func TestSplit_ParagraphBoundaryPacking(t *testing.T) {
	para := strings.Repeat("x", 400)
	content := para + "\n\n" + para + "\n\n" + para
	chunks := Split(content, 1000)

	// Two 400-char paragraphs plus separator fit in 1000; the third forces a flush.
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d: length %d exceeds limit", i, len(c))
		}
	}
}

func TestSplit_LongParagraphFallsBackToSentences(t *testing.T) {
	sentence := strings.Repeat("word ", 50) + "end."
	para := strings.TrimSpace(strings.Repeat(sentence+" ", 8))
	if len(para) <= 1000 {
		t.Fatal("test setup: paragraph should exceed the limit")
	}

	chunks := Split(para, 1000)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d: length %d exceeds limit", i, len(c))
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplit_HardCutIndivisibleToken(t *testing.T) {
	content := strings.Repeat("a", 5000)
	chunks := Split(content, 1000)

	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d: length %d exceeds limit", i, len(c))
		}
	}
	if strings.Join(chunks, "") != content {
		t.Error("concatenated hard-cut chunks do not reproduce the input")
	}
}

func TestSplit_HardCutMultibyteStaysValidUTF8(t *testing.T) {
	content := strings.Repeat("ロボット工学", 300)
	chunks := Split(content, 1000)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d contains invalid UTF-8", i)
		}
		if n := utf8.RuneCountInString(c); n > 1000 {
			t.Errorf("chunk %d: %d characters exceeds limit", i, n)
		}
	}
	if strings.Join(chunks, "") != content {
		t.Error("concatenated hard-cut chunks do not reproduce the input")
	}
}

func TestSplit_Reconstruction(t *testing.T) {
	content := "Alpha beta gamma.\n\nDelta epsilon. Zeta eta theta!\n\nIota kappa?"
	chunks := Split(content, 30)

	normalize := func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}
	joined := normalize(strings.Join(chunks, " "))
	if joined != normalize(content) {
		t.Errorf("reconstruction mismatch:\n got  %q\n want %q", joined, normalize(content))
	}
	for i, c := range chunks {
		if len(c) > 30 {
			t.Errorf("chunk %d: length %d exceeds limit", i, len(c))
		}
	}
}

func TestSplit_OrderPreserved(t *testing.T) {
	content := "one.\n\ntwo.\n\nthree.\n\nfour."
	chunks := Split(content, 7)
	want := []string{"one.", "two.", "three.", "four."}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %v", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	content := strings.Repeat("Sentence one. Sentence two. ", 100)
	a := Split(content, 200)
	b := Split(content, 200)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplit_ZeroMaxLengthUsesDefault(t *testing.T) {
	content := strings.Repeat("b", DefaultMaxLength+500)
	chunks := Split(content, 0)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks with default limit, got %d", len(chunks))
	}
	if len(chunks[0]) != DefaultMaxLength {
		t.Errorf("expected first chunk of %d, got %d", DefaultMaxLength, len(chunks[0]))
	}
}
