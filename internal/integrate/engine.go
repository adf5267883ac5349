// Package integrate applies detected changes to the derived output
// files: retrieve the cycle archive, transform it, and replace the
// cycle's slice of each affected output.
package integrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fecworks/fecsync/internal/config"
	"github.com/fecworks/fecsync/internal/detect"
	"github.com/fecworks/fecsync/internal/fetch"
	"github.com/fecworks/fecsync/internal/logger"
	"github.com/fecworks/fecsync/internal/state"
	"github.com/fecworks/fecsync/internal/transform"
)

// Status tracks how far a single change progressed through the pipeline.
type Status string

const (
	StatusPending     Status = "pending"
	StatusRetrieved   Status = "retrieved"
	StatusTransformed Status = "transformed"
	StatusWritten     Status = "written"
	StatusIntegrated  Status = "integrated"
	StatusFailed      Status = "failed"
)

// Result records the outcome of integrating one change.
type Result struct {
	Dataset string
	Cycle   int
	Reason  string
	Status  Status
	Rows    int
	Err     error
}

// Summary aggregates the results of one engine run.
type Summary struct {
	Results []Result
}

// Succeeded counts changes that completed their full pipeline.
func (s *Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Status != StatusFailed {
			n++
		}
	}
	return n
}

// Failed counts changes that did not complete.
func (s *Summary) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// Engine integrates detected changes one at a time. Changes are
// independent, so one failure never aborts the rest of the run.
type Engine struct {
	cfg     *config.Config
	store   *state.Store
	dataDir string

	fetchOpts fetch.Options
	dryRun    bool
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithFetchOptions overrides the download retry and streaming settings.
func WithFetchOptions(opts fetch.Options) Option {
	return func(e *Engine) { e.fetchOpts = opts }
}

// WithDryRun makes the engine stop each change after its transform:
// downloads and transforms run for real, but no output file and no state
// is written.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// WithNow overrides the clock used for last-updated stamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine writing outputs under dataDir.
func New(cfg *config.Config, store *state.Store, dataDir string, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		store:   store,
		dataDir: dataDir,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run integrates every change and returns the per-change results. The
// run uses a scratch directory for downloads and extracted files that is
// removed when the run ends, whether or not changes succeeded.
func (e *Engine) Run(ctx context.Context, changes []detect.Change) (*Summary, error) {
	if err := os.MkdirAll(e.dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", e.dataDir, err)
	}

	scratch, err := os.MkdirTemp("", "fecsync-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	summary := &Summary{Results: make([]Result, 0, len(changes))}
	for _, ch := range changes {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Results = append(summary.Results, e.integrate(ctx, scratch, ch))
	}
	return summary, nil
}

func (e *Engine) integrate(ctx context.Context, scratch string, ch detect.Change) Result {
	lg := logger.FromContext(ctx).With("dataset", ch.Dataset, "cycle", ch.Cycle, "reason", ch.Reason)
	res := Result{Dataset: ch.Dataset, Cycle: ch.Cycle, Reason: ch.Reason, Status: StatusPending}

	fail := func(err error) Result {
		lg.Error("integration failed", "status", res.Status, "err", err)
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	prefix, err := e.sourcePrefix(ch.Dataset)
	if err != nil {
		return fail(err)
	}

	lg.Info("retrieving cycle archive", "url", ch.URL)
	archivePath := filepath.Join(scratch, fmt.Sprintf("%s_%d.zip", ch.Dataset, ch.Cycle))
	if err := fetch.Download(ctx, ch.URL, archivePath, e.fetchOpts); err != nil {
		return fail(err)
	}
	if _, err := fetch.Extract(ctx, archivePath, scratch, ch.Cycle); err != nil {
		return fail(err)
	}
	res.Status = StatusRetrieved

	inputPath, err := findInput(scratch, prefix, ch.Cycle)
	if err != nil {
		return fail(err)
	}

	outputs, err := e.transform(ctx, inputPath, ch)
	if err != nil {
		return fail(err)
	}
	res.Status = StatusTransformed
	res.Rows = len(outputs[0].table.Rows)

	if e.dryRun {
		lg.Info("dry run, skipping write", "rows", res.Rows)
		return res
	}

	for _, out := range outputs {
		path := filepath.Join(e.dataDir, out.file)
		if err := upsert(path, out.table, ch.Cycle, out.sortColumns); err != nil {
			return fail(err)
		}
		lg.Info("output updated", "output", out.file, "rows", len(out.table.Rows))
	}
	res.Status = StatusWritten

	meta := ch.Meta
	meta.LastUpdated = e.now().UTC().Format(time.RFC3339)
	e.store.SetCycleState(ch.Dataset, ch.Cycle, meta)
	res.Status = StatusIntegrated
	return res
}

// output is one transformed table bound for an output file.
type output struct {
	file        string
	table       *transform.Table
	sortColumns []string
}

// transform runs the change's dataset strategy, fanning out to any
// datasets computed from the same source file. The primary dataset's
// output is always first.
func (e *Engine) transform(ctx context.Context, inputPath string, ch detect.Change) ([]output, error) {
	if ds, ok := e.cfg.Combine[ch.Dataset]; ok {
		table, err := transform.Combine(ctx, inputPath, ch.Cycle, ds)
		if err != nil {
			return nil, err
		}
		return []output{{file: ds.OutputFile, table: table, sortColumns: []string{config.ColumnCycle}}}, nil
	}

	ds, ok := e.cfg.Summarize[ch.Dataset]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %s", ch.Dataset)
	}

	outputs := make([]output, 0, 1)
	for _, target := range append([]*config.SummarizeDataset{ds}, e.cfg.SharedWith(ch.Dataset)...) {
		table, err := transform.Summarize(ctx, inputPath, ch.Cycle, target)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", target.Name, err)
		}
		outputs = append(outputs, output{file: target.OutputFile, table: table, sortColumns: target.GroupBy})
	}
	return outputs, nil
}

func (e *Engine) sourcePrefix(dataset string) (string, error) {
	if ds, ok := e.cfg.Combine[dataset]; ok {
		return ds.SourcePrefix, nil
	}
	if ds, ok := e.cfg.Summarize[dataset]; ok {
		return ds.SourcePrefix, nil
	}
	return "", fmt.Errorf("unknown dataset %s", dataset)
}

// findInput locates the extracted cycle file. Archive entries are not
// reliably cased, so an exact match is tried first and a case-insensitive
// scan second.
func findInput(dir, prefix string, cycle int) (string, error) {
	want := fmt.Sprintf("%d_%s", cycle, config.ArchiveEntryName(prefix, cycle))

	path := filepath.Join(dir, want)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	for _, entry := range entries {
		if strings.EqualFold(entry.Name(), want) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("archive did not contain %s", want)
}
