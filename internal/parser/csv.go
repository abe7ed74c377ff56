package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVParser handles CSV files. Each row is rendered as "header: value"
// pairs so column meaning survives into the indexed text.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Document{}, fmt.Errorf("parse csv: %w", err)
	}

	doc := Document{Title: titleFromFilename(filename)}
	if len(records) == 0 {
		return doc, nil
	}

	headers := records[0]
	var paragraphs []string
	for _, row := range records[1:] {
		var line strings.Builder
		for j, cell := range row {
			if j > 0 {
				line.WriteString(", ")
			}
			if j < len(headers) {
				line.WriteString(headers[j] + ": " + cell)
			} else {
				line.WriteString(cell)
			}
		}
		paragraphs = append(paragraphs, line.String())
	}

	doc.Text = joinParagraphs(paragraphs)
	return doc, nil
}
