// Package feed fetches group calendar feeds with conditional HTTP
// caching (ETag / Last-Modified) and a disk-backed cache.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"techcal/internal/logging"
)

// maxFeedBytes caps how much of a feed body is read.
const maxFeedBytes = 10 << 20

// Result contains the outcome of fetching a single group's feed.
type Result struct {
	// Body is the ICS payload, freshly fetched or from cache.
	Body []byte
	// Changed is true only when a 200 response delivered new content.
	// A 304, a min-interval skip, or an error fallback all report
	// false: the previously ingested state remains authoritative.
	Changed bool
}

// cacheEntry holds HTTP cache metadata for a single group's feed.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Client fetches feeds. Each group owns an independent cache directory,
// so concurrent fetches of different groups never contend.
type Client struct {
	client      *http.Client
	cacheDir    string
	minInterval time.Duration
	now         func() time.Time
	log         *logrus.Entry
}

// NewClient creates a feed Client. cacheDir is the base directory for
// per-group cache subdirectories. minInterval is the minimum spacing
// between real HTTP requests per group; within it the cached body is
// returned without touching the network. Feeds are polled, not pushed,
// and refetching more often burns remote goodwill for no benefit.
func NewClient(cacheDir string, minInterval, timeout time.Duration, log *logrus.Entry) *Client {
	if cacheDir == "" {
		cacheDir = "./var/feed-cache"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		client:      &http.Client{Timeout: timeout},
		cacheDir:    cacheDir,
		minInterval: minInterval,
		now:         time.Now,
		log:         log,
	}
}

// Fetch retrieves one group's feed, honoring the min-interval skip,
// ETag and Last-Modified. On any error a cached body, if present, is
// returned with Changed=false alongside the error so the caller can log
// and continue with the previous document.
func (c *Client) Fetch(ctx context.Context, groupID, feedURL string) (Result, error) {
	if feedURL == "" {
		return Result{}, errors.New("feed URL is empty")
	}
	feedURL = coerceScheme(feedURL)

	cachePath := filepath.Join(c.cacheDir, groupID)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return Result{}, err
	}

	meta, _ := c.loadCacheMeta(cachePath)
	cachedBody, _ := c.loadCacheBody(cachePath)

	// Within the poll interval: reuse cache without a request.
	if len(cachedBody) > 0 && meta.URL == feedURL && c.now().Sub(meta.FetchedAt) < c.minInterval {
		c.log.WithFields(logging.Fields{
			"group": groupID,
			"url":   logging.RedactURL(feedURL),
		}).Debug("feed within poll interval, using cache")
		return Result{Body: cachedBody, Changed: false}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return Result{}, err
	}
	if meta.URL == feedURL {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			return Result{Body: cachedBody, Changed: false}, fmt.Errorf("fetch %s: %w", logging.RedactURL(feedURL), err)
		}
		return Result{}, fmt.Errorf("fetch %s: %w", logging.RedactURL(feedURL), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
		if readErr != nil {
			return Result{}, readErr
		}

		newMeta := cacheEntry{
			URL:          feedURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    c.now().UTC(),
		}
		if err := c.saveCache(cachePath, newMeta, body); err != nil {
			// Still return the freshly fetched body.
			c.log.WithError(err).WithField("group", groupID).Error("feed cache save failed")
		}

		return Result{Body: body, Changed: true}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Result{}, errors.New("received 304 Not Modified but no cached body available")
		}
		// Refresh the fetch timestamp so the poll interval restarts.
		meta.FetchedAt = c.now().UTC()
		if err := c.saveCacheMeta(cachePath, meta); err != nil {
			c.log.WithError(err).WithField("group", groupID).Error("feed cache meta save failed")
		}
		return Result{Body: cachedBody, Changed: false}, nil

	default:
		err := fmt.Errorf("fetch %s: unexpected status %s", logging.RedactURL(feedURL), resp.Status)
		if len(cachedBody) > 0 {
			return Result{Body: cachedBody, Changed: false}, err
		}
		return Result{}, err
	}
}

// coerceScheme forces https onto URLs with a missing or unknown scheme.
// A scheme-less host with a port ("example.com:8080/cal.ics") parses as
// an opaque URL with Scheme "example.com"; treat that as no scheme.
func coerceScheme(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		return "https://" + raw
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		u.Scheme = "https"
		return u.String()
	}
	return raw
}

func (c *Client) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (c *Client) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (c *Client) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	return c.saveCacheMeta(cachePath, meta)
}

func (c *Client) saveCacheMeta(cachePath string, meta cacheEntry) error {
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}
