// Package parser converts supported document formats into plain text ready
// for chunking.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Document is the flattened result of parsing one file. Text is paragraphs
// separated by blank lines, with heading text inlined as its own paragraph
// so section titles survive chunking.
type Document struct {
	Title string
	Text  string
}

// Parser converts raw document bytes into plain text.
type Parser interface {
	Parse(r io.Reader, filename string) (Document, error)
}

// SupportedExtensions lists file extensions this service can index.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".html": true,
	".htm":  true,
	".pdf":  true,
	".docx": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// joinParagraphs drops empties and joins the rest with blank lines.
func joinParagraphs(paragraphs []string) string {
	kept := paragraphs[:0]
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
