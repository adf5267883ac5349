// Package verify runs consistency checks over the derived output files
// without touching the network or the update state.
package verify

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/fecworks/fecsync/internal/config"
	"github.com/fecworks/fecsync/internal/logger"
)

// Plausibility bounds for output values. Cycles before the first
// machine-readable filings or far in the future indicate a parsing bug,
// as do absurd aggregate totals.
const (
	minCycle       = 1960
	cycleLookahead = 4
	maxAbsAmount   = 1e12
)

// Issue is one failed check on an output file.
type Issue struct {
	Check  string
	Detail string
}

// FileReport is the verification outcome for one dataset's output file.
type FileReport struct {
	Dataset     string
	OutputFile  string
	Exists      bool
	Rows        int
	CycleCounts map[int]int
	Issues      []Issue
}

// OK reports whether the file passed every check.
func (r *FileReport) OK() bool {
	return len(r.Issues) == 0
}

// Cycles returns the cycles present in the file, ascending.
func (r *FileReport) Cycles() []int {
	cycles := make([]int, 0, len(r.CycleCounts))
	for cycle := range r.CycleCounts {
		cycles = append(cycles, cycle)
	}
	slices.Sort(cycles)
	return cycles
}

// Verifier checks every configured dataset's output file.
type Verifier struct {
	cfg     *config.Config
	dataDir string
	now     func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithNow overrides the clock used for the cycle range check.
func WithNow(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New creates a Verifier over the given registry and data directory.
func New(cfg *config.Config, dataDir string, opts ...Option) *Verifier {
	v := &Verifier{cfg: cfg, dataDir: dataDir, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks every configured dataset and returns one report each, in
// stable order: combine datasets first, then summarize.
func (v *Verifier) Verify(ctx context.Context) []FileReport {
	lg := logger.FromContext(ctx)

	var reports []FileReport
	for _, name := range v.cfg.CombineNames() {
		ds := v.cfg.Combine[name]
		reports = append(reports, v.verifyFile(name, ds.OutputFile, ds.OutputColumns(), false))
	}
	for _, name := range v.cfg.SummarizeNames() {
		ds := v.cfg.Summarize[name]
		reports = append(reports, v.verifyFile(name, ds.OutputFile, ds.OutputColumns(), true))
	}

	for _, report := range reports {
		lg.Info("verified output",
			"dataset", report.Dataset, "rows", report.Rows, "issues", len(report.Issues))
	}
	return reports
}

func (v *Verifier) verifyFile(dataset, outputFile string, columns []string, aggregated bool) FileReport {
	report := FileReport{
		Dataset:     dataset,
		OutputFile:  outputFile,
		CycleCounts: map[int]int{},
	}
	addIssue := func(check, format string, args ...any) {
		report.Issues = append(report.Issues, Issue{Check: check, Detail: fmt.Sprintf(format, args...)})
	}

	path := filepath.Join(v.dataDir, outputFile)
	f, err := os.Open(path) //nolint:gosec // path is under the data dir
	if err != nil {
		if os.IsNotExist(err) {
			addIssue("exists", "output file %s is missing", outputFile)
		} else {
			addIssue("exists", "output file %s: %v", outputFile, err)
		}
		return report
	}
	defer func() { _ = f.Close() }()
	report.Exists = true

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		addIssue("columns", "output file %s is empty", outputFile)
		return report
	}
	if err != nil {
		addIssue("columns", "failed to read header: %v", err)
		return report
	}
	if !slices.Equal(header, columns) {
		addIssue("columns", "columns %v do not match declared %v", header, columns)
		return report
	}

	cycleIdx := slices.Index(header, config.ColumnCycle)
	amountIdx := slices.Index(header, config.ColumnAmount)
	countIdx := slices.Index(header, config.ColumnCount)

	maxCycle := config.CurrentCycle(v.now()) + cycleLookahead
	var nullCycles, rangeViolations, amountViolations, countViolations int

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			addIssue("rows", "failed to read row: %v", err)
			return report
		}
		report.Rows++

		cycle, parseErr := strconv.Atoi(row[cycleIdx])
		switch {
		case row[cycleIdx] == "" || parseErr != nil:
			nullCycles++
		case cycle < minCycle || cycle > maxCycle:
			rangeViolations++
			report.CycleCounts[cycle]++
		default:
			report.CycleCounts[cycle]++
		}

		if !aggregated {
			continue
		}
		if amount, err := strconv.ParseFloat(row[amountIdx], 64); err != nil || math.Abs(amount) > maxAbsAmount {
			amountViolations++
		}
		if count, err := strconv.Atoi(row[countIdx]); err != nil || count <= 0 {
			countViolations++
		}
	}

	if nullCycles > 0 {
		addIssue("cycle", "%d row(s) with missing or unparseable election_cycle", nullCycles)
	}
	if rangeViolations > 0 {
		addIssue("cycle-range", "%d row(s) with election_cycle outside [%d, %d]", rangeViolations, minCycle, maxCycle)
	}
	if amountViolations > 0 {
		addIssue("amount", "%d row(s) with missing or implausible total_amount", amountViolations)
	}
	if countViolations > 0 {
		addIssue("count", "%d row(s) with non-positive transaction_count", countViolations)
	}
	return report
}
