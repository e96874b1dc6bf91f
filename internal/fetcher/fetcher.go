// Package fetcher acquires dataset files over HTTP(S) or FTP, records their
// provenance, and streams rows out of CSV, JSON and XLSX files.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/entity-xref/internal/config"
)

// Fetcher downloads remote files.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Options holds the transport settings shared by HTTP and FTP fetchers.
type Options struct {
	HTTP HTTPOptions
	FTP  FTPOptions
}

// OptionsFromConfig builds fetcher options from the fetch config section.
func OptionsFromConfig(cfg config.FetchConfig) Options {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	limiters := make(map[string]*rate.Limiter, len(cfg.RateLimits))
	for host, rps := range cfg.RateLimits {
		burst := max(int(rps), 1)
		limiters[host] = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return Options{
		HTTP: HTTPOptions{UserAgent: cfg.UserAgent, Timeout: timeout, MaxRetries: cfg.MaxRetries, RateLimiters: limiters},
		FTP:  FTPOptions{Timeout: timeout},
	}
}

// ForURL picks the fetcher for a URL's scheme.
func ForURL(rawURL string, opts Options) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPFetcher(opts.HTTP), nil
	case "ftp":
		return NewFTPFetcher(opts.FTP), nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q in %s", u.Scheme, rawURL)
	}
}

// Download is the outcome of a completed file download.
type Download struct {
	Path   string
	Bytes  int64
	SHA256 string
}

// ToFile downloads a URL to path atomically: the body is written to a temp
// file beside path, hashed while it streams, and renamed into place.
func ToFile(ctx context.Context, f Fetcher, rawURL, path string) (Download, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return Download{}, err
	}
	defer body.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Download{}, eris.Wrap(err, "fetcher: create directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part.*")
	if err != nil {
		return Download{}, eris.Wrap(err, "fetcher: create temp file")
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), body)
	if err != nil {
		return Download{}, eris.Wrapf(err, "fetcher: write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		return Download{}, eris.Wrap(err, "fetcher: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return Download{}, eris.Wrap(err, "fetcher: close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return Download{}, eris.Wrapf(err, "fetcher: move download to %s", path)
	}
	return Download{Path: path, Bytes: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

// HashFile returns the size and SHA-256 of a local file.
func HashFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", eris.Wrapf(err, "fetcher: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return n, "", eris.Wrapf(err, "fetcher: hash %s", path)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
