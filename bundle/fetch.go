// Package bundle downloads implementation-guide definition bundles and
// unpacks them onto local disk.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xtanion/integration-sdks/pkg/logger"
)

const (
	// DefaultTimeout bounds a whole download, including reading the body.
	DefaultTimeout = 60 * time.Second

	// DefaultChunkSize is the read size used while streaming a body to disk.
	DefaultChunkSize = 1024
)

// Fetcher streams remote archives to local files.
type Fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
	chunkSize  int
	header     http.Header
	log        *zap.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithTimeout sets the per-download timeout. Zero or negative values keep
// the default.
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithChunkSize sets the streaming buffer size.
func WithChunkSize(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.chunkSize = n
		}
	}
}

// WithHeader adds a request header to every download.
func WithHeader(key, value string) FetcherOption {
	return func(f *Fetcher) {
		f.header.Add(key, value)
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.log = l
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		chunkSize:  DefaultChunkSize,
		header:     make(http.Header),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = logger.Or(f.log, "bundle")
	return f
}

// Fetch downloads url into destPath, creating or truncating the file, and
// returns the number of bytes written. Any transport failure, non-2xx status
// or interrupted body yields a *NetworkError and no file is left behind.
// The content is not inspected.
func (f *Fetcher) Fetch(ctx context.Context, url, destPath string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, &NetworkError{URL: url, Err: err}
	}
	for k, vs := range f.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("bundle: create directory for %s: %w", destPath, err)
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("bundle: create %s: %w", destPath, err)
	}

	written, err := f.stream(out, resp.Body)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("bundle: close %s: %w", destPath, cerr)
	}
	if err != nil {
		_ = os.Remove(destPath)
		var netErr *NetworkError
		if errors.As(err, &netErr) {
			netErr.URL = url
		}
		return 0, err
	}

	f.log.Debug("bundle downloaded",
		zap.String("url", url),
		zap.String("path", destPath),
		zap.Int64("bytes", written),
		zap.Duration("elapsed", time.Since(start)),
	)
	return written, nil
}

// stream copies src to dst one chunk at a time until EOF.
func (f *Fetcher) stream(dst *os.File, src io.Reader) (int64, error) {
	buf := make([]byte, f.chunkSize)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("bundle: write %s: %w", dst.Name(), werr)
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, &NetworkError{Err: rerr}
		}
	}
	if err := dst.Sync(); err != nil {
		return written, fmt.Errorf("bundle: flush %s: %w", dst.Name(), err)
	}
	return written, nil
}
