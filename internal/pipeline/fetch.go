// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

// MaxDownloadSize bounds a single tarball, signature or hash download.
const MaxDownloadSize = 256 << 20

// ErrDownloadTooLarge is returned when a download exceeds its size limit.
var ErrDownloadTooLarge = errors.New("download exceeds size limit")

type (
	// Fetcher copies a remote or local artifact to a local path.
	Fetcher interface {
		Fetch(ctx context.Context, location, dst string) error
	}

	// HTTPFetcher downloads http(s) locations and copies anything else from disk.
	HTTPFetcher struct {
		Client   *http.Client
		MaxBytes int64
	}
)

// NewHTTPFetcher returns a fetcher using a non-shared, pooled HTTP client.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: cleanhttp.DefaultPooledClient(), MaxBytes: MaxDownloadSize}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, location, dst string) (err error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var src io.ReadCloser
	if strings.HasPrefix(location, "https://") || strings.HasPrefix(location, "http://") {
		src, err = f.open(ctx, location)
	} else {
		src, err = os.Open(location)
	}
	if err != nil {
		return err
	}
	defer src.Close()

	limit := f.MaxBytes
	if limit <= 0 {
		limit = MaxDownloadSize
	}
	n, err := io.Copy(out, io.LimitReader(src, limit+1))
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", location, err)
	}
	if n > limit {
		return fmt.Errorf("%s: %w", location, ErrDownloadTooLarge)
	}
	return nil
}

func (f *HTTPFetcher) open(ctx context.Context, url string) (io.ReadCloser, error) {
	client := f.Client
	if client == nil {
		client = cleanhttp.DefaultClient()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to download %s: HTTP %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
