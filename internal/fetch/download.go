// Package fetch retrieves cycle archives and unpacks them into a run's
// scratch workspace.
package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fecworks/fecsync/internal/backoff"
	"github.com/fecworks/fecsync/internal/logger"
)

// Defaults for the download retry budget and streaming behavior.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultChunkSize   = 64 * 1024
	DefaultTimeout     = 15 * time.Minute
)

// Options configures downloads.
type Options struct {
	// MaxAttempts is the total attempt budget, including the first try.
	MaxAttempts int
	// BaseDelay is the backoff unit: the n-th retry waits n times this.
	BaseDelay time.Duration
	// ChunkSize is the buffer size for streaming writes.
	ChunkSize int
	// Timeout bounds a single download attempt. 0 means no timeout.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// Download streams the resource at url to dest, retrying transport
// failures with linear backoff until the attempt budget is exhausted.
// The destination only appears once a download attempt has fully
// completed; partial attempts land in a temp file that is removed.
func Download(ctx context.Context, url, dest string, opts Options) error {
	opts = opts.withDefaults()
	lg := logger.FromContext(ctx).With("url", url)

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetDoNotParseResponse(true)

	// A zero MaxRetries policy retries forever, so a single-attempt
	// budget must bypass the retry loop.
	var err error
	attempt := 0
	if opts.MaxAttempts == 1 {
		attempt = 1
		err = downloadOnce(ctx, client, url, dest, opts.ChunkSize)
	} else {
		policy := backoff.NewLinearBackoffPolicy(opts.BaseDelay, opts.MaxAttempts-1)
		err = backoff.Retry(ctx, func(ctx context.Context) error {
			attempt++
			if attempt > 1 {
				lg.Warn("retrying download", "attempt", attempt, "max", opts.MaxAttempts)
			}
			return downloadOnce(ctx, client, url, dest, opts.ChunkSize)
		}, policy, nil)
	}
	if err != nil {
		return fmt.Errorf("download failed after %d attempt(s): %w", attempt, err)
	}
	return nil
}

func downloadOnce(ctx context.Context, client *resty.Client, url, dest string, chunkSize int) error {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	if body == nil {
		return fmt.Errorf("empty response body (status %d)", resp.StatusCode())
	}
	defer func() { _ = body.Close() }()

	if resp.StatusCode() != 200 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".part-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.CopyBuffer(tmp, body, make([]byte, chunkSize)); err != nil {
		return fmt.Errorf("failed to stream response: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}
