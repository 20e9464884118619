package ooinet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

// Downloader copies catalog entries from the THREDDS file server to disk,
// retrying each file and limiting how many transfers run at once.
type Downloader struct {
	client *Client
	policy ports.RetryPolicy
	obs    ports.Observability
}

func NewDownloader(c *Client, policy ports.RetryPolicy, obs ports.Observability) *Downloader {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 5
	}
	if policy.Sleep < 0 {
		policy.Sleep = 0
	}
	if policy.Concurrency <= 0 {
		policy.Concurrency = 5
	}
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &Downloader{client: c, policy: policy, obs: obs}
}

// FileURL is the fileServer address of a catalog entry.
func (d *Downloader) FileURL(entry string) string {
	return d.client.ThreddsServer() + "fileServer/" + entry
}

// Download saves every entry into dir and returns the local paths in input
// order. Nothing is fetched if any entry is not netCDF.
func (d *Downloader) Download(ctx context.Context, paths []string, dir string) ([]string, error) {
	if err := domain.RequireNetCDF(paths); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	sem := make(chan struct{}, d.policy.Concurrency)
	out := make([]string, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, entry := range paths {
		wg.Add(1)
		go func(i int, entry string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			dest := filepath.Join(dir, domain.FileName(entry))
			if err := d.fetchWithRetry(ctx, d.FileURL(entry), dest); err != nil {
				errs[i] = fmt.Errorf("download %s: %w", entry, err)
				return
			}
			out[i] = dest
		}(i, entry)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Downloader) fetchWithRetry(ctx context.Context, url, dest string) error {
	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxRetries; attempt++ {
		start := time.Now()
		lastErr = d.fetch(ctx, url, dest)
		if lastErr == nil {
			d.obs.ObserveLatency("isaias_download_seconds", time.Since(start).Seconds())
			d.obs.IncCounter("isaias_files_downloaded_total", 1)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.obs.LogError("download_attempt_failed", lastErr,
			ports.Field{Key: "url", Value: url},
			ports.Field{Key: "attempt", Value: attempt})
		if attempt == d.policy.MaxRetries {
			break
		}
		select {
		case <-time.After(d.policy.Sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// fetch writes to a temporary file next to dest and renames it on success.
func (d *Downloader) fetch(ctx context.Context, url, dest string) error {
	req, err := d.client.newRequest(ctx, url, false)
	if err != nil {
		return err
	}
	resp, err := d.client.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return newRequestError(resp, url)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".partial-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dest)
}

var _ ports.FileFetcher = (*Downloader)(nil)
