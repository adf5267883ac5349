// Package detect probes upstream resources for changed cycle archives.
// Probes are metadata-only (HTTP HEAD) and side-effect-free; the stored
// update state is never mutated here.
package detect

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/fecworks/fecsync/internal/config"
	"github.com/fecworks/fecsync/internal/logger"
	"github.com/fecworks/fecsync/internal/state"
)

// Change reasons, in the order the validators are compared.
const (
	ReasonNewCycle             = "new cycle"
	ReasonETagChanged          = "etag changed"
	ReasonLastModifiedChanged  = "last-modified changed"
	ReasonContentLengthChanged = "content-length changed"
	ReasonForced               = "forced"
)

const defaultProbeTimeout = 30 * time.Second

// Change describes one (dataset, cycle) pair needing integration,
// together with the validators captured by the probe that detected it.
type Change struct {
	Dataset string
	Cycle   int
	URL     string
	Reason  string
	Meta    state.CycleState
}

// Detector probes the upstream source for each configured (dataset, cycle)
// pair and compares the response validators against the stored state.
type Detector struct {
	cfg    *config.Config
	store  *state.Store
	client *resty.Client
}

// Option configures a Detector.
type Option func(*Detector)

// WithProbeTimeout overrides the per-probe timeout.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		d.client.SetTimeout(timeout)
	}
}

// New creates a Detector over the given registry and state store.
func New(cfg *config.Config, store *state.Store, opts ...Option) *Detector {
	d := &Detector{
		cfg:   cfg,
		store: store,
		client: resty.New().
			SetTimeout(defaultProbeTimeout).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// target is one (dataset, cycle) pair to probe.
type target struct {
	dataset string
	cycle   int
	url     string
}

// probeResult pairs a target with its probe outcome.
type probeResult struct {
	meta  state.CycleState
	found bool
	err   error
}

// Detect probes every configured (dataset, cycle) pair for the given
// cycles and returns the changes needing action. Probes run concurrently;
// results are collected before any comparison, and a probe failure for
// one pair never aborts the others.
func (d *Detector) Detect(ctx context.Context, cycles []int) []Change {
	lg := logger.FromContext(ctx)
	targets := d.targets(cycles)

	results := make([]probeResult, len(targets))
	var eg errgroup.Group
	for i, tgt := range targets {
		eg.Go(func() error {
			results[i].meta, results[i].found, results[i].err = d.probe(ctx, tgt.url)
			return nil
		})
	}
	_ = eg.Wait() // probe errors are per-pair, never group-fatal

	var changes []Change
	for i, tgt := range targets {
		res := results[i]
		lg := lg.With("dataset", tgt.dataset, "cycle", tgt.cycle)

		switch {
		case res.err != nil:
			lg.Warn("probe failed, treating as unchanged", "url", tgt.url, "err", res.err)
			continue
		case !res.found:
			lg.Debug("not published upstream yet", "url", tgt.url)
			continue
		}

		old, ok := d.store.CycleState(tgt.dataset, tgt.cycle)
		changed, reason := compare(old, ok, res.meta)
		if !changed {
			lg.Debug("unchanged")
			continue
		}

		lg.Info("change detected", "reason", reason)
		changes = append(changes, Change{
			Dataset: tgt.dataset,
			Cycle:   tgt.cycle,
			URL:     tgt.url,
			Reason:  reason,
			Meta:    res.meta,
		})
	}
	return changes
}

// targets enumerates the probe targets in stable order. Datasets that
// share another dataset's source file are not probed.
func (d *Detector) targets(cycles []int) []target {
	var targets []target

	add := func(name, prefix string, startYear int) {
		for _, cycle := range cycles {
			if cycle < startYear {
				continue
			}
			targets = append(targets, target{
				dataset: name,
				cycle:   cycle,
				url:     config.ZipURL(d.cfg.BaseURL, prefix, cycle),
			})
		}
	}

	for _, name := range d.cfg.CombineNames() {
		ds := d.cfg.Combine[name]
		add(name, ds.SourcePrefix, ds.StartYear)
	}
	for _, name := range d.cfg.SummarizeNames() {
		ds := d.cfg.Summarize[name]
		if ds.SharesSourceWith != "" {
			continue
		}
		add(name, ds.SourcePrefix, ds.StartYear)
	}
	return targets
}

// probe issues a HEAD request and captures the cache validators.
// found=false means the resource does not exist upstream (404).
func (d *Detector) probe(ctx context.Context, url string) (state.CycleState, bool, error) {
	resp, err := d.client.R().SetContext(ctx).Head(url)
	if err != nil {
		return state.CycleState{}, false, err
	}
	if resp.StatusCode() == 404 {
		return state.CycleState{}, false, nil
	}
	if resp.IsError() {
		return state.CycleState{}, false, fmt.Errorf("probe returned status %d", resp.StatusCode())
	}

	meta := state.CycleState{
		ETag:         resp.Header().Get("ETag"),
		LastModified: resp.Header().Get("Last-Modified"),
	}
	if raw := resp.Header().Get("Content-Length"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			meta.ContentLength = n
		}
	}
	return meta, true, nil
}

// compare decides whether a cycle changed. The strongest validator
// present on both sides is authoritative: equal etags mean unchanged no
// matter what the weaker validators say. A header missing on either side
// falls through to the next validator.
func compare(old state.CycleState, hasOld bool, updated state.CycleState) (bool, string) {
	if !hasOld {
		return true, ReasonNewCycle
	}
	// A record with no validators gives no basis to call the resource
	// unchanged (forced updates store whatever the probe saw, possibly
	// nothing). Re-integrate until validators are on file.
	if old.ETag == "" && old.LastModified == "" && old.ContentLength == 0 {
		return true, ReasonNewCycle
	}
	if updated.ETag != "" && old.ETag != "" {
		if updated.ETag != old.ETag {
			return true, ReasonETagChanged
		}
		return false, ""
	}
	if updated.LastModified != "" && old.LastModified != "" {
		if updated.LastModified != old.LastModified {
			return true, ReasonLastModifiedChanged
		}
		return false, ""
	}
	if updated.ContentLength != 0 && old.ContentLength != 0 && updated.ContentLength != old.ContentLength {
		return true, ReasonContentLengthChanged
	}
	return false, ""
}

// WithForced appends a forced change for every (dataset, cycle) pair not
// already present in detected, regardless of what the probes saw.
func (d *Detector) WithForced(detected []Change, cycles []int) []Change {
	seen := make(map[string]struct{}, len(detected))
	for _, ch := range detected {
		seen[ch.Dataset+"/"+strconv.Itoa(ch.Cycle)] = struct{}{}
	}

	changes := detected
	for _, tgt := range d.targets(cycles) {
		if _, ok := seen[tgt.dataset+"/"+strconv.Itoa(tgt.cycle)]; ok {
			continue
		}
		changes = append(changes, Change{
			Dataset: tgt.dataset,
			Cycle:   tgt.cycle,
			URL:     tgt.url,
			Reason:  ReasonForced,
		})
	}
	return changes
}
