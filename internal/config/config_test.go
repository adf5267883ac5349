package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
fec_base_url: https://example.com/bulk
combine_datasets:
  candidate_summary:
    output_file: candidate_summary.csv
    fec_prefix: weball
    start_year: 1980
    description: Candidate financial summaries
    columns: [cand_id, cand_name, ttl_receipts]
summarize_datasets:
  expenditures_by_category:
    output_file: expenditures_by_category.csv
    fec_prefix: oppexp
    start_year: 2004
    description: Operating expenditures by category
    group_by: [election_cycle, transaction_year, category]
    column_mapping:
      category: category_desc
    amount_field: transaction_amt
    date_field: transaction_dt
    memo_field: memo_cd
    amendment_field: amndt_ind
    sub_id_field: sub_id
    input_columns: [cmte_id, amndt_ind, transaction_dt, transaction_amt, category_desc, memo_cd, sub_id]
  expenditures_by_state:
    output_file: expenditures_by_state.csv
    fec_prefix: oppexp
    start_year: 2004
    description: Operating expenditures by state
    group_by: [election_cycle, transaction_year, state]
    column_mapping:
      state: state
    amount_field: transaction_amt
    date_field: transaction_dt
    memo_field: memo_cd
    amendment_field: amndt_ind
    sub_id_field: sub_id
    input_columns: [cmte_id, amndt_ind, transaction_dt, transaction_amt, state, memo_cd, sub_id]
    shares_source_with: expenditures_by_category
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datasets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/bulk", cfg.BaseURL)
	require.Len(t, cfg.Combine, 1)
	require.Len(t, cfg.Summarize, 2)

	ds := cfg.Combine["candidate_summary"]
	assert.Equal(t, "candidate_summary", ds.Name)
	assert.Equal(t, "weball", ds.SourcePrefix)
	assert.Equal(t, 1980, ds.StartYear)
	assert.Equal(t, []string{"election_cycle", "cand_id", "cand_name", "ttl_receipts"}, ds.OutputColumns())

	sum := cfg.Summarize["expenditures_by_category"]
	assert.Equal(t, []string{"election_cycle", "transaction_year", "category", "total_amount", "transaction_count"},
		sum.OutputColumns())
	assert.Empty(t, sum.SharesSourceWith)

	shared := cfg.SharedWith("expenditures_by_category")
	require.Len(t, shared, 1)
	assert.Equal(t, "expenditures_by_state", shared[0].Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no base url", `
combine_datasets:
  x:
    output_file: x.csv
    fec_prefix: p
    start_year: 2000
    columns: [a]
`},
		{"no datasets", `
fec_base_url: https://example.com
`},
		{"combine without columns", `
fec_base_url: https://example.com
combine_datasets:
  x:
    output_file: x.csv
    fec_prefix: p
    start_year: 2000
`},
		{"summarize group_by not led by cycle", `
fec_base_url: https://example.com
summarize_datasets:
  x:
    output_file: x.csv
    fec_prefix: p
    start_year: 2000
    group_by: [transaction_year, election_cycle]
    amount_field: amt
    date_field: dt
    memo_field: memo
    amendment_field: amndt
    sub_id_field: sub
    input_columns: [amt, dt, memo, amndt, sub]
`},
		{"shares_source_with unknown dataset", `
fec_base_url: https://example.com
summarize_datasets:
  x:
    output_file: x.csv
    fec_prefix: p
    start_year: 2000
    group_by: [election_cycle, transaction_year]
    amount_field: amt
    date_field: dt
    memo_field: memo
    amendment_field: amndt
    sub_id_field: sub
    input_columns: [amt, dt, memo, amndt, sub]
    shares_source_with: missing
`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestZipURL(t *testing.T) {
	assert.Equal(t, "https://example.com/bulk/2024/weball24.zip",
		ZipURL("https://example.com/bulk", "weball", 2024))
	assert.Equal(t, "https://example.com/bulk/2004/oppexp04.zip",
		ZipURL("https://example.com/bulk", "oppexp", 2004))
}

func TestArchiveEntryName(t *testing.T) {
	assert.Equal(t, "oppexp08.txt", ArchiveEntryName("oppexp", 2008))
	assert.Equal(t, "weball24.txt", ArchiveEntryName("weball", 2024))
}

func TestCurrentCycle(t *testing.T) {
	assert.Equal(t, 2024, CurrentCycle(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2026, CurrentCycle(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDefaultCycles(t *testing.T) {
	cycles := DefaultCycles(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []int{2026, 2024, 2022}, cycles)
}
