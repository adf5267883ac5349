package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mholt/archives"
)

// Extract unpacks an archive into destDir. Directory entries are
// skipped, nested paths are flattened to their basename, and every
// extracted file is renamed to "<cycle>_<name>" so archives from
// several cycles can share one workspace without colliding.
// Returns the extracted paths.
func Extract(ctx context.Context, archivePath, destDir string, cycle int) ([]string, error) {
	src, err := os.Open(archivePath) //nolint:gosec // archivePath is under the run's scratch dir
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = src.Close() }()

	format, _, err := archives.Identify(ctx, filepath.Base(archivePath), src)
	if err != nil {
		return nil, fmt.Errorf("failed to identify archive format: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to reset file position: %w", err)
	}

	extractor, ok := format.(archives.Extractor)
	if !ok {
		return nil, fmt.Errorf("archive format does not support extraction")
	}

	var extracted []string
	err = extractor.Extract(ctx, src, func(_ context.Context, f archives.FileInfo) error {
		if f.IsDir() {
			return nil
		}

		name := fmt.Sprintf("%d_%s", cycle, filepath.Base(filepath.Clean(f.NameInArchive)))
		targetPath := filepath.Join(destDir, name)

		entry, err := f.Open()
		if err != nil {
			return err
		}

		dst, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // targetPath is under destDir
		if err != nil {
			_ = entry.Close()
			return err
		}

		_, copyErr := io.Copy(dst, entry)
		_ = entry.Close()
		_ = dst.Close()
		if copyErr != nil {
			return copyErr
		}

		extracted = append(extracted, targetPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}
	return extracted, nil
}
