package transform

import (
	"context"
	"strconv"

	"github.com/fecworks/fecsync/internal/config"
	"github.com/fecworks/fecsync/internal/logger"
)

// Combine parses a raw cycle file and tags every record with its cycle
// as the leading column. No filtering, no deduplication.
func Combine(ctx context.Context, path string, cycle int, ds *config.CombineDataset) (*Table, error) {
	rows, dropped, err := readPipeDelimited(path, ds.Columns)
	if err != nil {
		return nil, err
	}

	cycleValue := strconv.Itoa(cycle)
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string{cycleValue}, row...)
	}

	logger.FromContext(ctx).Info("combined cycle file",
		"dataset", ds.Name, "cycle", cycle, "rows", len(out), "dropped", dropped)

	return &Table{Columns: ds.OutputColumns(), Rows: out}, nil
}
