package transform

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/fecworks/fecsync/internal/config"
	"github.com/fecworks/fecsync/internal/dateutil"
	"github.com/fecworks/fecsync/internal/logger"
)

// Marker sentinels in the raw transaction files.
const (
	// memoSentinel flags non-binding informational sub-records.
	memoSentinel = "X"
	// unamendedSentinel flags an original, unamended filing.
	unamendedSentinel = "N"
)

// keySep joins group key cells into a map key. Unit separator: it cannot
// occur in pipe-delimited cell values that survived parsing.
const keySep = "\x1f"

// groupColumn describes how one group_by column gets its value.
type groupColumn struct {
	name   string
	srcIdx int // index into the input row; -1 for derived columns
}

// Summarize parses a raw cycle file, drops memo and amended records,
// deduplicates by the natural record key, and aggregates amounts and
// counts over the descriptor's grouping keys. Amended filings are
// excluded rather than merged: only original filings are kept.
func Summarize(ctx context.Context, path string, cycle int, ds *config.SummarizeDataset) (*Table, error) {
	rows, dropped, err := readPipeDelimited(path, ds.InputColumns)
	if err != nil {
		return nil, err
	}

	fieldIdx := func(field string) (int, error) {
		if i := slices.Index(ds.InputColumns, field); i >= 0 {
			return i, nil
		}
		return -1, fmt.Errorf("dataset %s: field %s not in input_columns", ds.Name, field)
	}

	memoIdx, err := fieldIdx(ds.MemoField)
	if err != nil {
		return nil, err
	}
	amendmentIdx, err := fieldIdx(ds.AmendmentField)
	if err != nil {
		return nil, err
	}
	subIDIdx, err := fieldIdx(ds.SubIDField)
	if err != nil {
		return nil, err
	}
	dateIdx, err := fieldIdx(ds.DateField)
	if err != nil {
		return nil, err
	}
	amountIdx, err := fieldIdx(ds.AmountField)
	if err != nil {
		return nil, err
	}

	groupCols := make([]groupColumn, 0, len(ds.GroupBy))
	for _, name := range ds.GroupBy {
		col := groupColumn{name: name, srcIdx: -1}
		switch name {
		case config.ColumnCycle, config.ColumnYear, config.ColumnMonth:
		default:
			src := name
			if mapped, ok := ds.ColumnMapping[name]; ok && mapped != "" {
				src = mapped
			}
			idx, err := fieldIdx(src)
			if err != nil {
				return nil, fmt.Errorf("group_by column %s: %w", name, err)
			}
			col.srcIdx = idx
		}
		groupCols = append(groupCols, col)
	}

	type group struct {
		cells []string
		total float64
		count int
	}

	var (
		cycleValue = strconv.Itoa(cycle)
		seen       = make(map[string]struct{})
		groups     = make(map[string]*group)
		order      []string
		filtered   int
	)

	for _, row := range rows {
		// 1. Memo sub-records are informational, not binding.
		if row[memoIdx] == memoSentinel {
			filtered++
			continue
		}
		// 2. Amendments are excluded, not merged.
		if v := row[amendmentIdx]; v != "" && v != unamendedSentinel {
			filtered++
			continue
		}
		// 3. Deduplicate by the natural record key, first wins.
		subID := row[subIDIdx]
		if _, dup := seen[subID]; dup {
			filtered++
			continue
		}
		seen[subID] = struct{}{}

		cells := make([]string, len(groupCols))
		for i, col := range groupCols {
			switch col.name {
			case config.ColumnCycle:
				cells[i] = cycleValue
			case config.ColumnYear:
				if year, ok := dateutil.Year(row[dateIdx]); ok {
					cells[i] = strconv.Itoa(year)
				}
			case config.ColumnMonth:
				if month, ok := dateutil.Month(row[dateIdx]); ok {
					cells[i] = strconv.Itoa(month)
				}
			default:
				cells[i] = row[col.srcIdx]
			}
		}

		key := strings.Join(cells, keySep)
		g, ok := groups[key]
		if !ok {
			g = &group{cells: cells}
			groups[key] = g
			order = append(order, key)
		}
		if amount, err := strconv.ParseFloat(strings.TrimSpace(row[amountIdx]), 64); err == nil {
			g.total += amount
		}
		g.count++
	}

	out := make([][]string, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := slices.Clone(g.cells)
		row = append(row, strconv.FormatFloat(g.total, 'f', -1, 64), strconv.Itoa(g.count))
		out = append(out, row)
	}

	logger.FromContext(ctx).Info("summarized cycle file",
		"dataset", ds.Name, "cycle", cycle,
		"rows", len(out), "filtered", filtered, "dropped", dropped)

	return &Table{Columns: ds.OutputColumns(), Rows: out}, nil
}
