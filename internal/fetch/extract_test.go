package fetch

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractPrefixesFilesWithCycle(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"weball20.txt": "C001|Alice\n",
	})

	dest := t.TempDir()
	extracted, err := Extract(context.Background(), archive, dest, 2020)
	require.NoError(t, err)
	require.Len(t, extracted, 1)

	assert.Equal(t, filepath.Join(dest, "2020_weball20.txt"), extracted[0])
	data, err := os.ReadFile(extracted[0])
	require.NoError(t, err)
	assert.Equal(t, "C001|Alice\n", string(data))
}

func TestExtractFlattensNestedPaths(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"nested/dir/oppexp22.txt": "row\n",
	})

	dest := t.TempDir()
	extracted, err := Extract(context.Background(), archive, dest, 2022)
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, filepath.Join(dest, "2022_oppexp22.txt"), extracted[0])
}

func TestExtractSkipsDirectoryEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	_, err = zw.Create("emptydir/")
	require.NoError(t, err)
	w, err := zw.Create("emptydir/file.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := t.TempDir()
	extracted, err := Extract(context.Background(), path, dest, 2024)
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, filepath.Join(dest, "2024_file.txt"), extracted[0])
}

func TestExtractSameFileTwoCyclesNoCollision(t *testing.T) {
	dest := t.TempDir()

	for _, cycle := range []int{2020, 2022} {
		archive := writeZip(t, map[string]string{"data.txt": "x\n"})
		_, err := Extract(context.Background(), archive, dest, cycle)
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	names := []string{entries[0].Name(), entries[1].Name()}
	assert.ElementsMatch(t, []string{"2020_data.txt", "2022_data.txt"}, names)
}

func TestExtractRejectsNonArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-archive.zip")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0600))

	_, err := Extract(context.Background(), path, t.TempDir(), 2024)
	assert.Error(t, err)
}
