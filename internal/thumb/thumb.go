// Package thumb fetches YouTube thumbnail images at the qualities the
// front end offers.
package thumb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"vidgrab/internal/logging"
)

// qualityNames maps the quality request parameter to the image host's
// filename for that rendition.
var qualityNames = map[string]string{
	"default":  "default",
	"high":     "hqdefault",
	"medium":   "mqdefault",
	"standard": "sddefault",
	"maxres":   "maxresdefault",
}

const defaultCacheSize = 64

// Fetcher retrieves thumbnail images over HTTP with a small bounded
// cache. Thumbnails are immutable per video ID and quality, so cached
// bytes never go stale.
type Fetcher struct {
	client  *http.Client
	baseURL string
	cache   *lru.Cache[string, []byte]
}

// NewFetcher creates a Fetcher with the given cache capacity; zero or
// negative selects the default.
func NewFetcher(capacity int) *Fetcher {
	if capacity <= 0 {
		capacity = defaultCacheSize
	}
	cache, _ := lru.New[string, []byte](capacity)
	return &Fetcher{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: "https://img.youtube.com",
		cache:   cache,
	}
}

// QualityName normalizes a quality parameter to the image host's naming;
// unknown values fall back to hqdefault.
func QualityName(quality string) string {
	if name, ok := qualityNames[quality]; ok {
		return name
	}
	return "hqdefault"
}

// URLFor builds the image URL for a video ID at the requested quality.
func (f *Fetcher) URLFor(videoID, quality string) string {
	return fmt.Sprintf("%s/vi/%s/%s.jpg", f.baseURL, videoID, QualityName(quality))
}

// Fetch returns the thumbnail bytes and a download filename for the
// given video ID and quality.
func (f *Fetcher) Fetch(ctx context.Context, videoID, quality string) ([]byte, string, error) {
	name := QualityName(quality)
	filename := fmt.Sprintf("%s_%s.jpg", videoID, name)
	key := videoID + "/" + name

	if data, ok := f.cache.Get(key); ok {
		logging.LogThumbnailFetch(videoID, name, len(data), true, nil)
		return data, filename, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URLFor(videoID, quality), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		logging.LogThumbnailFetch(videoID, name, 0, false, err)
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("thumbnail fetch: status %d", resp.StatusCode)
		logging.LogThumbnailFetch(videoID, name, 0, false, err)
		return nil, "", err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		logging.LogThumbnailFetch(videoID, name, 0, false, err)
		return nil, "", err
	}

	f.cache.Add(key, data)
	logging.LogThumbnailFetch(videoID, name, len(data), false, nil)
	return data, filename, nil
}
