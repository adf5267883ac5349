// Package config holds the dataset registry: static descriptors for every
// tracked dataset, loaded once from YAML and read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-yaml"
)

// Strategy selects how a dataset's cycle files are folded into its output.
type Strategy string

const (
	// StrategyCombine appends raw records tagged with their cycle.
	StrategyCombine Strategy = "combine"
	// StrategySummarize filters, dedupes and aggregates records.
	StrategySummarize Strategy = "summarize"
)

// Well-known derived column names shared by both strategies.
const (
	ColumnCycle  = "election_cycle"
	ColumnYear   = "transaction_year"
	ColumnMonth  = "transaction_month"
	ColumnAmount = "total_amount"
	ColumnCount  = "transaction_count"
)

// CombineDataset describes an append-strategy dataset.
type CombineDataset struct {
	Name         string   `yaml:"-"`
	OutputFile   string   `yaml:"output_file"`
	SourcePrefix string   `yaml:"fec_prefix"`
	StartYear    int      `yaml:"start_year"`
	Description  string   `yaml:"description"`
	Columns      []string `yaml:"columns"`
}

// SummarizeDataset describes an aggregate-strategy dataset.
type SummarizeDataset struct {
	Name           string            `yaml:"-"`
	OutputFile     string            `yaml:"output_file"`
	SourcePrefix   string            `yaml:"fec_prefix"`
	StartYear      int               `yaml:"start_year"`
	Description    string            `yaml:"description"`
	GroupBy        []string          `yaml:"group_by"`
	ColumnMapping  map[string]string `yaml:"column_mapping"`
	AmountField    string            `yaml:"amount_field"`
	DateField      string            `yaml:"date_field"`
	MemoField      string            `yaml:"memo_field"`
	AmendmentField string            `yaml:"amendment_field"`
	SubIDField     string            `yaml:"sub_id_field"`
	InputColumns   []string          `yaml:"input_columns"`

	// SharesSourceWith names another summarize dataset whose source file
	// this dataset is computed from. Shared datasets are skipped by
	// detection and integrated from the primary's retrieval.
	SharesSourceWith string `yaml:"shares_source_with"`
}

// OutputColumns returns the column order of the dataset's output file.
func (d *SummarizeDataset) OutputColumns() []string {
	cols := slices.Clone(d.GroupBy)
	return append(cols, ColumnAmount, ColumnCount)
}

// OutputColumns returns the column order of the dataset's output file.
func (d *CombineDataset) OutputColumns() []string {
	return append([]string{ColumnCycle}, d.Columns...)
}

// Config is the full dataset registry.
type Config struct {
	BaseURL   string
	Combine   map[string]*CombineDataset
	Summarize map[string]*SummarizeDataset
}

type rawConfig struct {
	BaseURL   string                       `yaml:"fec_base_url"`
	Combine   map[string]*CombineDataset   `yaml:"combine_datasets"`
	Summarize map[string]*SummarizeDataset `yaml:"summarize_datasets"`
}

// Load reads and validates the dataset registry from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the CLI flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg := &Config{
		BaseURL:   raw.BaseURL,
		Combine:   raw.Combine,
		Summarize: raw.Summarize,
	}
	if cfg.Combine == nil {
		cfg.Combine = map[string]*CombineDataset{}
	}
	if cfg.Summarize == nil {
		cfg.Summarize = map[string]*SummarizeDataset{}
	}

	for name, ds := range cfg.Combine {
		ds.Name = name
	}
	for name, ds := range cfg.Summarize {
		ds.Name = name
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return errors.New("fec_base_url is required")
	}
	if len(c.Combine)+len(c.Summarize) == 0 {
		return errors.New("no datasets configured")
	}

	for name, ds := range c.Combine {
		if ds.OutputFile == "" || ds.SourcePrefix == "" || ds.StartYear == 0 {
			return fmt.Errorf("combine dataset %s: output_file, fec_prefix and start_year are required", name)
		}
		if len(ds.Columns) == 0 {
			return fmt.Errorf("combine dataset %s: columns are required", name)
		}
	}

	for name, ds := range c.Summarize {
		if ds.OutputFile == "" || ds.SourcePrefix == "" || ds.StartYear == 0 {
			return fmt.Errorf("summarize dataset %s: output_file, fec_prefix and start_year are required", name)
		}
		if len(ds.InputColumns) == 0 {
			return fmt.Errorf("summarize dataset %s: input_columns are required", name)
		}
		if ds.AmountField == "" || ds.DateField == "" || ds.MemoField == "" ||
			ds.AmendmentField == "" || ds.SubIDField == "" {
			return fmt.Errorf("summarize dataset %s: amount_field, date_field, memo_field, amendment_field and sub_id_field are required", name)
		}
		if len(ds.GroupBy) == 0 || ds.GroupBy[0] != ColumnCycle {
			return fmt.Errorf("summarize dataset %s: group_by must start with %s", name, ColumnCycle)
		}
		if !slices.Contains(ds.GroupBy, ColumnYear) {
			return fmt.Errorf("summarize dataset %s: group_by must contain %s", name, ColumnYear)
		}
		if ds.SharesSourceWith != "" {
			primary, ok := c.Summarize[ds.SharesSourceWith]
			if !ok {
				return fmt.Errorf("summarize dataset %s: shares_source_with references unknown dataset %s", name, ds.SharesSourceWith)
			}
			if primary.SourcePrefix != ds.SourcePrefix {
				return fmt.Errorf("summarize dataset %s: shares_source_with requires the same fec_prefix as %s", name, ds.SharesSourceWith)
			}
		}
	}
	return nil
}

// CombineNames returns combine dataset names in stable order.
func (c *Config) CombineNames() []string {
	names := make([]string, 0, len(c.Combine))
	for name := range c.Combine {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SummarizeNames returns summarize dataset names in stable order.
func (c *Config) SummarizeNames() []string {
	names := make([]string, 0, len(c.Summarize))
	for name := range c.Summarize {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SharedWith returns the summarize datasets computed from the given
// dataset's source file, in stable order.
func (c *Config) SharedWith(primary string) []*SummarizeDataset {
	var shared []*SummarizeDataset
	for _, name := range c.SummarizeNames() {
		if ds := c.Summarize[name]; ds.SharesSourceWith == primary {
			shared = append(shared, ds)
		}
	}
	return shared
}

// ZipURL builds the bulk download URL for a dataset prefix and cycle.
// Archives are keyed by a 2-digit year suffix, e.g. weball24.zip under /2024/.
func ZipURL(baseURL, prefix string, cycle int) string {
	return fmt.Sprintf("%s/%d/%s%02d.zip", baseURL, cycle, prefix, cycle%100)
}

// ArchiveEntryName returns the file name expected inside a cycle archive.
func ArchiveEntryName(prefix string, cycle int) string {
	return fmt.Sprintf("%s%02d.txt", prefix, cycle%100)
}

// CurrentCycle returns the election cycle (even year) for a point in time.
func CurrentCycle(now time.Time) int {
	year := now.Year()
	if year%2 != 0 {
		year++
	}
	return year
}

// DefaultCycles returns the cycles checked when none are requested: the
// current cycle plus the two prior, covering the amendment window.
func DefaultCycles(now time.Time) []int {
	current := CurrentCycle(now)
	return []int{current, current - 2, current - 4}
}
