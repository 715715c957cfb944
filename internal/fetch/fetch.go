// Package fetch downloads the remote source documents (ICS feeds, the
// CSV sheet export) with conditional requests and a disk cache, so a
// flaky origin degrades to stale data instead of an empty page.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "claycal/internal/log"
)

// Source is one remote document.
type Source struct {
	ID  string // identifier for logging and provenance
	URL string
}

// Result is the body for one source, with its provenance.
type Result struct {
	Source    Source
	Body      []byte
	FromCache bool // the body came from disk: a 304, or a failed origin
}

// Fetcher downloads sources with ETag / Last-Modified revalidation
// backed by a per-URL disk cache.
type Fetcher struct {
	client *http.Client
	cache  diskCache
}

// New creates a Fetcher rooted at cacheDir.
func New(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/feed-cache"
	}
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		cache:  diskCache{root: cacheDir},
	}
}

// FetchOne fetches one source. When the origin answers 304, errors out,
// or misbehaves, a previously cached body is returned instead; only a
// failure with nothing cached is an error.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (Result, error) {
	if src.URL == "" {
		return Result{}, errors.New("source URL is empty")
	}

	prev, stale := f.cache.load(src.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Result{}, err
	}
	if prev.ETag != "" {
		req.Header.Set("If-None-Match", prev.ETag)
	}
	if prev.LastModified != "" {
		req.Header.Set("If-Modified-Since", prev.LastModified)
	}

	appLog.Debug("fetch start", "id", src.ID, "url", RedactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(stale) > 0 {
			appLog.Warn("fetch network error, using cached body", "err", err, "id", src.ID, "url", RedactURL(src.URL))
			return Result{Source: src, Body: stale, FromCache: true}, nil
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if len(stale) == 0 {
			return Result{}, errors.New("304 with nothing cached")
		}
		appLog.Info("fetch not modified; using cache", "id", src.ID, "url", RedactURL(src.URL))
		return Result{Source: src, Body: stale, FromCache: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		if len(stale) > 0 {
			appLog.Warn("fetch non-OK, using cached body", "status", resp.StatusCode, "id", src.ID, "url", RedactURL(src.URL))
			return Result{Source: src, Body: stale, FromCache: true}, nil
		}
		return Result{}, errors.New(resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	entry := cacheEntry{
		URL:          src.URL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if err := f.cache.store(src.URL, entry, body); err != nil {
		// The fresh body is still good; only revalidation suffers.
		appLog.Error("fetch cache save failed", err, "id", src.ID, "url", RedactURL(src.URL))
	}

	appLog.Info("fetch success", "id", src.ID, "url", RedactURL(src.URL), "bytes", len(body), "from_cache", false)
	return Result{Source: src, Body: body, FromCache: false}, nil
}

// cacheEntry is the revalidation metadata kept alongside a cached body.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// diskCache keys each URL to its own subdirectory holding the metadata
// and the last successfully fetched body.
type diskCache struct {
	root string
}

func (c diskCache) dir(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.root, hex.EncodeToString(sum[:8]))
}

// load returns whatever metadata and body are on disk for url; both are
// best-effort and may be zero.
func (c diskCache) load(url string) (cacheEntry, []byte) {
	dir := c.dir(url)

	var entry cacheEntry
	if data, err := os.ReadFile(filepath.Join(dir, "meta.json")); err == nil {
		if err := json.Unmarshal(data, &entry); err != nil {
			entry = cacheEntry{}
		}
	}

	body, err := os.ReadFile(filepath.Join(dir, "body.dat"))
	if err != nil {
		body = nil
	}
	return entry, body
}

// store writes the body before the metadata, so meta.json never points
// at a body that is not there yet.
func (c diskCache) store(url string, entry cacheEntry, body []byte) error {
	dir := c.dir(url)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, "body.dat"), body, 0o600); err != nil {
		return err
	}

	entry.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&entry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// RedactURL trims a source URL to its host for logging; sheet export
// URLs embed the document key in the path.
func RedactURL(u string) string {
	const suffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i < 0 {
		return "feed://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return u[:i+3+j] + suffix
	}
	return u + suffix
}
