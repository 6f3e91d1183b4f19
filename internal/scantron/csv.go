// Package scantron decodes the two upload formats produced by a scanning
// workflow: bubble-sheet result CSVs and scanned-page image filenames.
package scantron

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// Row is one parsed record: trimmed column header -> trimmed cell value.
type Row map[string]string

// sparseSentinel is what the scanning software emits for a bubble left blank.
const sparseSentinel = "-1"

// ParseCSV decodes a scantron result CSV. The first non-blank line is the
// header row; blank lines are skipped. With omitSparse set, cells holding the
// -1 sentinel are dropped from their row instead of stored verbatim.
// Empty input yields an empty slice. The only parse failure is genuinely
// broken quoting, such as an unterminated quote.
func ParseCSV(text string, omitSparse bool) ([]Row, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return []Row{}, nil
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return []Row{}, nil
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := Row{}
		for col, cell := range record {
			if col >= len(header) {
				break
			}
			if omitSparse && strings.TrimSpace(cell) == sparseSentinel {
				continue
			}
			row[header[col]] = strings.TrimSpace(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
