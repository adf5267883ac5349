package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fecworks/fecsync/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		BaseURL: "http://example.test",
		Combine: map[string]*config.CombineDataset{
			"candidate_summary": {
				Name:         "candidate_summary",
				OutputFile:   "candidate_summary.csv",
				SourcePrefix: "weball",
				StartYear:    1980,
				Columns:      []string{"cand_id", "ttl_receipts"},
			},
		},
		Summarize: map[string]*config.SummarizeDataset{
			"by_category": {
				Name:         "by_category",
				OutputFile:   "by_category.csv",
				SourcePrefix: "oppexp",
				StartYear:    2004,
				GroupBy:      []string{"election_cycle", "transaction_year", "category"},
			},
		},
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
}

func writeOutput(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func reportFor(t *testing.T, reports []FileReport, dataset string) FileReport {
	t.Helper()
	for _, r := range reports {
		if r.Dataset == dataset {
			return r
		}
	}
	t.Fatalf("no report for dataset %s", dataset)
	return FileReport{}
}

func TestVerifyCleanOutputs(t *testing.T) {
	dir := t.TempDir()
	writeOutput(t, dir, "candidate_summary.csv",
		"election_cycle,cand_id,ttl_receipts\n2022,H1,1000\n2024,H2,2500\n")
	writeOutput(t, dir, "by_category.csv",
		"election_cycle,transaction_year,category,total_amount,transaction_count\n"+
			"2024,2024,ADS,350,2\n")

	reports := New(testConfig(), dir, WithNow(fixedNow)).Verify(context.Background())
	require.Len(t, reports, 2)

	combine := reportFor(t, reports, "candidate_summary")
	assert.True(t, combine.OK())
	assert.Equal(t, 2, combine.Rows)
	assert.Equal(t, map[int]int{2022: 1, 2024: 1}, combine.CycleCounts)
	assert.Equal(t, []int{2022, 2024}, combine.Cycles())

	summarize := reportFor(t, reports, "by_category")
	assert.True(t, summarize.OK())
	assert.Equal(t, 1, summarize.Rows)
}

func TestVerifyMissingFile(t *testing.T) {
	reports := New(testConfig(), t.TempDir(), WithNow(fixedNow)).Verify(context.Background())

	combine := reportFor(t, reports, "candidate_summary")
	assert.False(t, combine.Exists)
	require.Len(t, combine.Issues, 1)
	assert.Equal(t, "exists", combine.Issues[0].Check)
}

func TestVerifyColumnMismatch(t *testing.T) {
	dir := t.TempDir()
	writeOutput(t, dir, "candidate_summary.csv", "wrong,header\n1,2\n")

	reports := New(testConfig(), dir, WithNow(fixedNow)).Verify(context.Background())
	combine := reportFor(t, reports, "candidate_summary")
	require.Len(t, combine.Issues, 1)
	assert.Equal(t, "columns", combine.Issues[0].Check)
}

func TestVerifyNullAndOutOfRangeCycles(t *testing.T) {
	dir := t.TempDir()
	writeOutput(t, dir, "candidate_summary.csv",
		"election_cycle,cand_id,ttl_receipts\n"+
			",H1,1000\n"+
			"1914,H2,100\n"+
			"2098,H3,100\n"+
			"2024,H4,100\n")

	reports := New(testConfig(), dir, WithNow(fixedNow)).Verify(context.Background())
	combine := reportFor(t, reports, "candidate_summary")

	checks := make(map[string]bool)
	for _, issue := range combine.Issues {
		checks[issue.Check] = true
	}
	assert.True(t, checks["cycle"], "expected a missing-cycle issue")
	assert.True(t, checks["cycle-range"], "expected a cycle-range issue")
	assert.Equal(t, 4, combine.Rows)
}

func TestVerifyAggregateBounds(t *testing.T) {
	dir := t.TempDir()
	writeOutput(t, dir, "by_category.csv",
		"election_cycle,transaction_year,category,total_amount,transaction_count\n"+
			"2024,2024,ADS,9999999999999,1\n"+ // over 1e12
			"2024,2024,POLLING,100,0\n"+ // non-positive count
			"2024,2024,TRAVEL,50,2\n")

	reports := New(testConfig(), dir, WithNow(fixedNow)).Verify(context.Background())
	summarize := reportFor(t, reports, "by_category")

	checks := make(map[string]bool)
	for _, issue := range summarize.Issues {
		checks[issue.Check] = true
	}
	assert.True(t, checks["amount"], "expected an amount issue")
	assert.True(t, checks["count"], "expected a count issue")
}

func TestVerifyEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeOutput(t, dir, "candidate_summary.csv", "")

	reports := New(testConfig(), dir, WithNow(fixedNow)).Verify(context.Background())
	combine := reportFor(t, reports, "candidate_summary")
	require.Len(t, combine.Issues, 1)
	assert.Equal(t, "columns", combine.Issues[0].Check)
}
