package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ariavasulin/YouLearn/internal/doctree"
)

// csvBatch is the number of data rows per section.
const csvBatch = 20

// CSVParser handles CSV files such as grade sheets or problem lists. Rows
// are grouped into sections, each rendered as a markdown table under the
// header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{
		Title:  titleFromFilename(filename),
		Source: filename,
	}
	if len(records) == 0 {
		return tree, nil
	}

	headers := records[0]
	rows := records[1:]
	for i := 0; i < len(rows); i += csvBatch {
		end := min(i+csvBatch, len(rows))
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1), // 1-indexed, after the header
			Text:  markdownTable(headers, rows[i:end]),
		})
	}
	return tree, nil
}

func markdownTable(headers []string, rows [][]string) string {
	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for j := range headers {
			cell := ""
			if j < len(cells) {
				cell = cells[j]
			}
			sb.WriteString(" " + escapeCell(cell) + " |")
		}
		sb.WriteString("\n")
	}
	writeRow(headers)
	sb.WriteString("|")
	for range headers {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
