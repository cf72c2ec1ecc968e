// Package fetch retrieves avatar images from URLs, local files, or memory.
//
// HTTP fetches go through a retrying client, are restricted to an optional
// host allow-list, and are capped at a maximum body size. When a cache
// directory is configured, every successful URL fetch is stored on disk and
// served back when the network later fails.
package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/avatarcard/internal/atomicfile"
)

var (
	// ErrHostNotAllowed is returned when a URL's host matches no allow-list pattern.
	ErrHostNotAllowed = errors.New("host not allowed")
	// ErrTooLarge is returned when an avatar exceeds the configured byte limit.
	ErrTooLarge = errors.New("avatar too large")
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Source names where avatar bytes come from. Exactly one field should be
// set; when several are, Data wins over Path, and Path over URL.
type Source struct {
	URL  string
	Path string
	Data []byte
}

// ParseSource interprets a user-supplied location. http and https URLs
// become URL sources, "file:" prefixes are stripped, and anything else is a
// path. Relative paths are joined to base when base is not empty.
func ParseSource(s, base string) Source {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return Source{URL: s}
	}
	p := strings.TrimPrefix(s, "file:")
	if p != "" && base != "" && !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return Source{Path: p}
}

// String describes the source for logs without dumping raw bytes.
func (s Source) String() string {
	switch {
	case s.Data != nil:
		return fmt.Sprintf("bytes(%d)", len(s.Data))
	case s.Path != "":
		return "file:" + s.Path
	default:
		return s.URL
	}
}

// Options configures a [Fetcher]. Zero fields fall back to the defaults
// noted on each.
type Options struct {
	Timeout    time.Duration // 10s
	RetryMax   int           // 0 means no retries
	MaxBytes   int64         // 8 MiB
	AllowHosts []string      // doublestar patterns; empty allows any host
	CacheDir   string        // empty disables the fallback cache
	UserAgent  string
}

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 8 << 20
)

// Fetcher retrieves avatar bytes. It is safe for concurrent use.
type Fetcher struct {
	client *retryablehttp.Client
	opts   Options
}

// New builds a Fetcher around a retryablehttp client configured from opts.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}

	c := retryablehttp.NewClient()
	c.RetryMax = opts.RetryMax
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = opts.Timeout
	c.Logger = nil
	c.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			slog.Debug("retrying avatar fetch", "url", req.URL.Redacted(), "attempt", attempt)
		}
	}
	return &Fetcher{client: c, opts: opts}
}

// Client returns the underlying HTTP client so font downloads share its
// retry and timeout settings.
func (f *Fetcher) Client() *retryablehttp.Client { return f.client }

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Fetch returns the raw bytes of src.
//
// For URL sources the cache acts as a fallback: a network or status failure
// is answered from the cache when an entry exists. Policy failures
// ([ErrHostNotAllowed], [ErrTooLarge]) never fall back.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	switch {
	case src.Data != nil:
		if int64(len(src.Data)) > f.opts.MaxBytes {
			return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(src.Data), f.opts.MaxBytes)
		}
		return src.Data, nil
	case src.Path != "":
		return f.readFile(src.Path)
	case src.URL != "":
		return f.fetchWithFallback(ctx, src.URL)
	default:
		return nil, fmt.Errorf("empty avatar source")
	}
}

// HostAllowed reports whether host matches one of patterns, ignoring case.
// An empty list allows every host.
func HostAllowed(host string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(strings.ToLower(p), host); ok {
			return true
		}
	}
	return false
}

// ///////////////////////////////////////////////
// Fallback Logic
// ///////////////////////////////////////////////

func (f *Fetcher) fetchWithFallback(ctx context.Context, rawURL string) ([]byte, error) {
	data, err := f.fetchURL(ctx, rawURL)
	if err == nil {
		if f.opts.CacheDir != "" {
			if cacheErr := f.writeCache(rawURL, data); cacheErr != nil {
				slog.Warn("failed to write avatar cache", "url", rawURL, "error", cacheErr)
			}
		}
		return data, nil
	}
	if errors.Is(err, ErrHostNotAllowed) || errors.Is(err, ErrTooLarge) || ctx.Err() != nil {
		return nil, err
	}
	if f.opts.CacheDir == "" {
		return nil, err
	}
	slog.Warn("avatar fetch failed, trying cache", "url", rawURL, "error", err)

	cached, cacheErr := f.readCache(rawURL)
	if cacheErr == nil {
		return cached, nil
	}
	return nil, fmt.Errorf("all avatar sources failed: primary: %w; cache: %w", err, cacheErr)
}

func (f *Fetcher) fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse avatar url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported avatar url scheme %q", u.Scheme)
	}
	if !HostAllowed(u.Hostname(), f.opts.AllowHosts) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > f.opts.MaxBytes {
		return nil, fmt.Errorf("%w: %s declares %d bytes", ErrTooLarge, rawURL, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return nil, fmt.Errorf("%w: response from %s exceeds %d bytes", ErrTooLarge, rawURL, f.opts.MaxBytes)
	}
	slog.Debug("avatar fetched", "url", rawURL, "bytes", len(body), "elapsed", time.Since(start))
	return body, nil
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open avatar: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(file, f.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if n > f.opts.MaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, path, f.opts.MaxBytes)
	}
	return buf.Bytes(), nil
}

// ///////////////////////////////////////////////
// Cache
// ///////////////////////////////////////////////

// cachePath maps a URL to its cache file.
func (f *Fetcher) cachePath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.opts.CacheDir, hex.EncodeToString(sum[:]))
}

func (f *Fetcher) writeCache(rawURL string, data []byte) error {
	if err := os.MkdirAll(f.opts.CacheDir, 0o755); err != nil {
		return fmt.Errorf("creating avatar cache directory: %w", err)
	}
	return atomicfile.Write(f.cachePath(rawURL), data, 0o644)
}

func (f *Fetcher) readCache(rawURL string) ([]byte, error) {
	data, err := os.ReadFile(f.cachePath(rawURL))
	if err != nil {
		return nil, fmt.Errorf("reading avatar cache: %w", err)
	}
	return data, nil
}
