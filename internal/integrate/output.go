package integrate

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/fecworks/fecsync/internal/config"
	"github.com/fecworks/fecsync/internal/fileutil"
	"github.com/fecworks/fecsync/internal/transform"
)

const outputFilePermissions = 0644

// upsert replaces one cycle's slice of an output file with fresh rows.
// Existing rows for the cycle are dropped, the new rows appended, and the
// whole file rewritten sorted and atomically, so re-running the same
// update yields byte-identical output and a crash mid-write never leaves
// a half-written file behind.
func upsert(path string, table *transform.Table, cycle int, sortColumns []string) error {
	cycleIdx := table.ColumnIndex(config.ColumnCycle)
	if cycleIdx < 0 {
		return fmt.Errorf("output %s: no %s column", path, config.ColumnCycle)
	}

	existing, err := readOutput(path, table.Columns)
	if err != nil {
		return err
	}

	cycleValue := strconv.Itoa(cycle)
	rows := make([][]string, 0, len(existing)+len(table.Rows))
	for _, row := range existing {
		if row[cycleIdx] == cycleValue {
			continue
		}
		rows = append(rows, row)
	}
	rows = append(rows, table.Rows...)

	sortIdx := make([]int, 0, len(sortColumns))
	for _, name := range sortColumns {
		if i := table.ColumnIndex(name); i >= 0 {
			sortIdx = append(sortIdx, i)
		}
	}
	slices.SortStableFunc(rows, func(a, b []string) int {
		for _, i := range sortIdx {
			if c := compareCells(a[i], b[i]); c != 0 {
				return c
			}
		}
		return 0
	})

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to encode output %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to encode output %s: %w", path, err)
	}

	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), outputFilePermissions); err != nil {
		return fmt.Errorf("failed to write output %s: %w", path, err)
	}
	return nil
}

// readOutput loads an existing output file and checks its header against
// the expected columns. A missing file yields no rows; a header mismatch
// is an error, not something to silently rewrite.
func readOutput(path string, columns []string) ([][]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is under the data dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open output %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output %s: %w", path, err)
	}
	if !slices.Equal(header, columns) {
		return nil, fmt.Errorf("output %s: columns %v do not match expected %v",
			path, header, columns)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read output %s: %w", path, err)
	}
	return rows, nil
}

// compareCells orders two cells numerically when both parse as integers,
// lexically otherwise. Cycle and year columns sort as numbers this way
// without a per-column type declaration.
func compareCells(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}
