package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "state.json"))
}

func TestLoadMissingFileYieldsEmptyState(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Load())

	assert.Empty(t, store.LastCheck())
	assert.Empty(t, store.Datasets())
	_, ok := store.CycleState("candidate_summary", 2024)
	assert.False(t, ok)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store := New(path)
	require.NoError(t, store.Load())

	store.SetCycleState("candidate_summary", 2024, CycleState{
		ETag:          `"abc123"`,
		LastModified:  "Mon, 01 Jul 2024 00:00:00 GMT",
		ContentLength: 1024,
		LastUpdated:   time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})
	store.SetLastCheck(time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save())

	reloaded := New(path)
	require.NoError(t, reloaded.Load())

	cs, ok := reloaded.CycleState("candidate_summary", 2024)
	require.True(t, ok)
	assert.Equal(t, `"abc123"`, cs.ETag)
	assert.Equal(t, int64(1024), cs.ContentLength)
	assert.Equal(t, "2024-07-02T12:00:00Z", reloaded.LastCheck())
}

func TestCycleKeysAreStringsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store := New(path)
	require.NoError(t, store.Load())
	store.SetCycleState("pac_summary", 2022, CycleState{ETag: "x"})
	require.NoError(t, store.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw struct {
		Cycles map[string]map[string]any `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	_, ok := raw.Cycles["pac_summary"]["2022"]
	assert.True(t, ok)
}

func TestSetCycleStateOverwrites(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Load())

	store.SetCycleState("x", 2020, CycleState{ETag: "old"})
	store.SetCycleState("x", 2020, CycleState{ETag: "new"})

	cs, ok := store.CycleState("x", 2020)
	require.True(t, ok)
	assert.Equal(t, "new", cs.ETag)
}

func TestDatasetsAndCyclesOrdering(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Load())

	store.SetCycleState("b", 2024, CycleState{})
	store.SetCycleState("a", 2020, CycleState{})
	store.SetCycleState("a", 2024, CycleState{})
	store.SetCycleState("a", 2022, CycleState{})

	assert.Equal(t, []string{"a", "b"}, store.Datasets())
	assert.Equal(t, []int{2020, 2022, 2024}, store.Cycles("a"))
}

func TestLoadTolerantOfPartialFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	content := `{"cycles": {"x": {"2020": {"etag": "e"}, "2022": {}}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	store := New(path)
	require.NoError(t, store.Load())

	cs, ok := store.CycleState("x", 2020)
	require.True(t, ok)
	assert.Equal(t, "e", cs.ETag)
	assert.Zero(t, cs.ContentLength)

	_, ok = store.CycleState("x", 2022)
	assert.True(t, ok)
	assert.Empty(t, store.LastCheck())
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store := New(path)
	assert.Error(t, store.Load())
}
