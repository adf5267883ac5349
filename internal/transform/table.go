// Package transform turns raw cycle files into typed tabular results.
// Both strategies are pure functions of (input path, cycle, descriptor).
package transform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// Table is a tabular result ready for integration: a header and rows of
// string cells in header order.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the index of a column, or -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Columns, name)
}

// readPipeDelimited parses a headerless pipe-delimited file into rows of
// the declared columns. Rows that fail to parse or have the wrong field
// count are dropped, not fatal: upstream bulk files routinely carry a
// handful of malformed lines. Returns the surviving rows and the number
// of dropped rows.
func readPipeDelimited(path string, columns []string) ([][]string, int, error) {
	f, err := os.Open(path) //nolint:gosec // path is under the run's scratch dir
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.Comma = '|'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	var (
		rows    [][]string
		dropped int
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				dropped++
				continue
			}
			return nil, dropped, fmt.Errorf("failed to read input file: %w", err)
		}
		if len(record) != len(columns) {
			dropped++
			continue
		}
		rows = append(rows, record)
	}
	return rows, dropped, nil
}
