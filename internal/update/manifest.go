package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "puzzlemania/internal/errors"
)

// Default configuration values.
const (
	DefaultFetchTimeout = 6 * time.Second
	maxManifestBytes    = 1 << 20
	userAgentPrefix     = "puzzlemania-updater/"
)

// ReleaseDescriptor is what the remote manifest advertises about the
// latest release. Digest and Notes are empty when the manifest omits them.
type ReleaseDescriptor struct {
	Version     string
	DownloadURL string
	Digest      string
	Notes       string
}

// HasDigest reports whether the artifact can be verified.
func (d *ReleaseDescriptor) HasDigest() bool {
	return strings.TrimSpace(d.Digest) != ""
}

// Fetcher retrieves and validates the release manifest.
type Fetcher struct {
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client for the fetcher.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithFetcherLogger sets the logger used for request diagnostics.
func WithFetcherLogger(logger *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a manifest fetcher that identifies itself with the
// running version.
func NewFetcher(currentVersion string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		userAgent:  userAgentPrefix + currentVersion,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a single GET of the manifest at url. There are no retries.
// Transport failures, timeouts and non-200 responses are network errors;
// anything wrong with the body is a manifest error.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*ReleaseDescriptor, error) {
	if strings.TrimSpace(url) == "" {
		return nil, apperrors.New(apperrors.CodeConfigurationError, "no manifest URL configured (set update.manifest-url)", nil)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, networkError("create manifest request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	f.logger.Debug("fetching manifest", zap.String("url", url), zap.Duration("timeout", timeout))
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, networkError("could not reach the update server", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, networkError("update server returned an error", fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes+1))
	if err != nil {
		return nil, networkError("read manifest", err)
	}
	if len(body) > maxManifestBytes {
		return nil, manifestError("manifest is too large", fmt.Errorf("more than %d bytes", maxManifestBytes))
	}

	desc, err := ParseManifest(body)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("manifest parsed",
		zap.String("version", desc.Version),
		zap.String("download_url", desc.DownloadURL),
		zap.Bool("has_digest", desc.HasDigest()))
	return desc, nil
}

// ParseManifest validates a manifest document. "version" is required and
// must be a non-empty string; "url", "sha256" (or "digest") and "notes" are
// optional strings. A null value counts as absent.
func ParseManifest(data []byte) (*ReleaseDescriptor, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, manifestError("manifest is not a JSON object", err)
	}
	if fields == nil {
		return nil, manifestError("manifest is not a JSON object", nil)
	}

	version, err := stringField(fields, "version")
	if err != nil {
		return nil, err
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, manifestError("manifest has no version", nil)
	}

	desc := &ReleaseDescriptor{Version: version}
	if desc.DownloadURL, err = stringField(fields, "url"); err != nil {
		return nil, err
	}
	if desc.Notes, err = stringField(fields, "notes"); err != nil {
		return nil, err
	}
	if desc.Digest, err = stringField(fields, "sha256"); err != nil {
		return nil, err
	}
	if desc.Digest == "" {
		if desc.Digest, err = stringField(fields, "digest"); err != nil {
			return nil, err
		}
	}
	desc.DownloadURL = strings.TrimSpace(desc.DownloadURL)
	desc.Digest = strings.TrimSpace(desc.Digest)
	return desc, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", manifestError(fmt.Sprintf("manifest field %q must be a string", key), err)
	}
	return s, nil
}
