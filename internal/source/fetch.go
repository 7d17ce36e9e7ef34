package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "eventclock/internal/log"
)

// Fetch results, also used as metric labels.
const (
	ResultFresh  = "ok"
	ResultCached = "cached"
	ResultError  = "error"
)

var ErrNotModifiedNoCache = errors.New("304 Not Modified but no cached body")

// cacheMeta is the per-URL HTTP validator state stored next to the body.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads feeds with conditional requests and keeps the last good
// body on disk so a feed outage does not empty the board.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir. A nil client gets a
// 15s timeout client.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/feed-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// Fetch returns the feed body and whether it was fresh or from cache.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]byte, string, error) {
	if feedURL == "" {
		return nil, ResultError, errors.New("feed URL is empty")
	}

	dir := f.cacheDirFor(feedURL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, ResultError, err
	}

	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, ResultError, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Error("feed fetch failed, using cached body", err, "url", redactURL(feedURL))
			return cached, ResultCached, nil
		}
		return nil, ResultError, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, ResultError, err
		}
		meta = cacheMeta{
			URL:          feedURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(dir, meta, body); err != nil {
			appLog.Error("feed cache save failed", err, "url", redactURL(feedURL))
		}
		return body, ResultFresh, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, ResultError, ErrNotModifiedNoCache
		}
		appLog.Debug("feed not modified", "url", redactURL(feedURL))
		return cached, ResultCached, nil

	default:
		statusErr := fmt.Errorf("feed fetch: %s", resp.Status)
		if len(cached) > 0 {
			appLog.Error("feed fetch non-OK, using cached body", statusErr, "url", redactURL(feedURL))
			return cached, ResultCached, nil
		}
		return nil, ResultError, statusErr
	}
}

func (f *Fetcher) cacheDirFor(feedURL string) string {
	sum := sha256.Sum256([]byte(feedURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// saveCache writes the body before the metadata so the validators never
// refer to a body that is not on disk.
func saveCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often embed secrets.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "feed://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
