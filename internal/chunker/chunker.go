package chunker

import (
	"strings"
	"unicode"
)

// DefaultMaxLength is the chunk size used when the caller passes zero.
const DefaultMaxLength = 1000

// Split partitions content into chunks of at most maxLength characters.
// Boundaries are chosen at three levels of granularity: paragraphs are
// greedily packed first; a paragraph that alone exceeds the limit is split
// into sentences and packed the same way; a sentence that still exceeds the
// limit is hard-cut into fixed-size slices. Chunks are whitespace-trimmed,
// never empty, and preserve input order. Split is a pure function of its
// arguments.
func Split(content string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if t := strings.TrimSpace(current.String()); t != "" {
			chunks = append(chunks, t)
		}
		current.Reset()
	}

	for _, para := range splitParagraphs(content) {
		if len(para) > maxLength {
			flush()
			chunks = append(chunks, splitLongParagraph(para, maxLength)...)
			continue
		}

		sep := 0
		if current.Len() > 0 {
			sep = 2 // "\n\n"
		}
		if current.Len()+sep+len(para) > maxLength {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// splitLongParagraph packs sentences greedily, hard-cutting any sentence
// that alone exceeds the limit.
func splitLongParagraph(para string, maxLength int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if t := strings.TrimSpace(current.String()); t != "" {
			chunks = append(chunks, t)
		}
		current.Reset()
	}

	for _, sent := range splitSentences(para) {
		if len(sent) > maxLength {
			flush()
			chunks = append(chunks, hardCut(sent, maxLength)...)
			continue
		}

		sep := 0
		if current.Len() > 0 {
			sep = 1 // " "
		}
		if current.Len()+sep+len(sent) > maxLength {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}
	flush()

	return chunks
}

// splitParagraphs splits on blank-line boundaries, dropping empty parts.
func splitParagraphs(content string) []string {
	parts := strings.Split(content, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitSentences splits after sentence-ending punctuation followed by
// whitespace. Text without such boundaries comes back as one sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if t := strings.TrimSpace(current.String()); t != "" {
				sentences = append(sentences, t)
			}
			current.Reset()
		}
	}
	if t := strings.TrimSpace(current.String()); t != "" {
		sentences = append(sentences, t)
	}

	return sentences
}

// hardCut slices text into pieces of exactly maxLength characters; the last
// piece may be shorter. Cuts land on rune boundaries so multibyte text stays
// valid UTF-8. Whitespace-only slices are dropped.
func hardCut(text string, maxLength int) []string {
	var parts []string
	runes := []rune(text)
	for len(runes) > maxLength {
		part := strings.TrimSpace(string(runes[:maxLength]))
		if part != "" {
			parts = append(parts, part)
		}
		runes = runes[maxLength:]
	}
	if t := strings.TrimSpace(string(runes)); t != "" {
		parts = append(parts, t)
	}
	return parts
}
