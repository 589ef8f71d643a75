package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultDownloadTimeout bounds the whole artifact transfer.
	DefaultDownloadTimeout = 5 * time.Minute

	tempFilePattern   = "puzzle_update_*.tmp"
	downloadChunkSize = 32 << 10
	progressInterval  = 100 * time.Millisecond
)

// ProgressFunc receives the bytes written so far and the expected total
// (-1 when the server sent no Content-Length).
type ProgressFunc func(written, total int64)

// Downloader streams release artifacts into private temp files.
type Downloader struct {
	userAgent  string
	httpClient *http.Client
	dir        string
	progress   ProgressFunc
	logger     *zap.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloaderHTTPClient sets a custom HTTP client for the downloader.
func WithDownloaderHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.httpClient = client
	}
}

// WithDownloadDir sets the directory temp files are created in.
// Empty means the OS temp dir.
func WithDownloadDir(dir string) DownloaderOption {
	return func(d *Downloader) {
		d.dir = dir
	}
}

// WithProgress registers a progress callback. Calls are throttled; the final
// byte count is always reported.
func WithProgress(fn ProgressFunc) DownloaderOption {
	return func(d *Downloader) {
		d.progress = fn
	}
}

// WithDownloaderLogger sets the logger used for transfer diagnostics.
func WithDownloaderLogger(logger *zap.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// NewDownloader creates a downloader that identifies itself with the
// running version.
func NewDownloader(currentVersion string, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		userAgent:  userAgentPrefix + currentVersion,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches url into a new temp file. On any failure the partial
// file is closed and removed before returning, so nothing is left on disk.
func (d *Downloader) Download(ctx context.Context, url string, timeout time.Duration) (_ *Artifact, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, networkError("create download request", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", d.userAgent)

	d.logger.Debug("downloading artifact", zap.String("url", url), zap.Duration("timeout", timeout))
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, networkError("download failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, networkError("download failed", fmt.Errorf("status %d", resp.StatusCode))
	}

	f, err := os.CreateTemp(d.dir, tempFilePattern)
	if err != nil {
		return nil, installError("create temp file", err)
	}
	tmpPath := f.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = f.Close()
		}
		_ = os.Remove(tmpPath)
	}()

	total := resp.ContentLength
	w := &progressWriter{
		w:       f,
		total:   total,
		report:  d.progress,
		limiter: rate.Sometimes{Interval: progressInterval},
	}
	buf := make([]byte, downloadChunkSize)
	if _, err = io.CopyBuffer(w, resp.Body, buf); err != nil {
		if w.werr != nil {
			return nil, installError("write temp file", w.werr)
		}
		return nil, networkError("download interrupted", err)
	}
	if total >= 0 && w.written != total {
		err = networkError("download incomplete", fmt.Errorf("got %d of %d bytes", w.written, total))
		return nil, err
	}
	w.flush()

	closed = true
	if err = f.Close(); err != nil {
		return nil, installError("close temp file", err)
	}

	d.logger.Debug("artifact downloaded", zap.String("path", tmpPath), zap.Int64("bytes", w.written))
	return &Artifact{path: tmpPath, size: w.written}, nil
}

// progressWriter counts bytes, remembers write-side failures so they can
// be told apart from transport failures, and reports throttled progress.
type progressWriter struct {
	w       io.Writer
	written int64
	total   int64
	werr    error
	report  ProgressFunc
	limiter rate.Sometimes
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if err != nil {
		p.werr = err
		return n, err
	}
	if p.report != nil {
		p.limiter.Do(func() { p.report(p.written, p.total) })
	}
	return n, nil
}

func (p *progressWriter) flush() {
	if p.report != nil {
		p.report(p.written, p.total)
	}
}
