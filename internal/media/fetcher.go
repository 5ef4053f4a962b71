package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrImageNotFound reports a 404 for an attachment URL. Takeout exports
// reference images by URL and old ones do expire; callers substitute an
// error text rather than aborting the whole conversion.
var ErrImageNotFound = errors.New("image not found")

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Content is a fetched attachment payload. Data is base64 as the backup
// schema stores it; Text is set instead when a substitute body stands in
// for unavailable media.
type Content struct {
	ContentType string `json:"content_type"`
	Data        string `json:"data,omitempty"`
	Text        string `json:"text,omitempty"`
}

// TextContent wraps a substitute body, e.g. the error text for an expired
// attachment URL.
func TextContent(text string) Content {
	return Content{ContentType: "text/plain", Text: text}
}

// Fetcher downloads attachment images with retry on server errors and a
// temp-dir cache so interrupted conversions do not refetch everything.
type Fetcher struct {
	client     *http.Client
	cacheDir   string
	maxBackoff time.Duration
	logger     *slog.Logger
}

// New creates a fetcher with the given per-request timeout and retry
// backoff cap. The cache lives in the OS temp directory.
func New(timeout, maxBackoff time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		cacheDir:   os.TempDir(),
		maxBackoff: maxBackoff,
		logger:     logger,
	}
}

// FetchImage retrieves one attachment, keyed in the cache by its event id.
func (f *Fetcher) FetchImage(ctx context.Context, url, eventID string) (Content, error) {
	cachePath := filepath.Join(f.cacheDir, "hangouts-sms-export-"+eventID+".json")
	if content, ok := f.fromCache(cachePath); ok {
		f.logger.Debug("attachment from cache", "event_id", eventID)
		return content, nil
	}

	content, err := f.fetch(ctx, url, eventID)
	if err != nil {
		return Content{}, err
	}

	f.toCache(cachePath, content)
	return content, nil
}

func (f *Fetcher) fetch(ctx context.Context, url, eventID string) (Content, error) {
	retries := 0
	for {
		retries++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Content{}, fmt.Errorf("create request: %w", err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return Content{}, fmt.Errorf("fetch %s: %w", url, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return f.readImage(resp)

		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return Content{}, fmt.Errorf("%w: event %s: %s", ErrImageNotFound, eventID, url)

		case resp.StatusCode >= 500:
			resp.Body.Close()
			// Quadratic backoff with jitter, as the image host throws
			// intermittent 500s under load.
			delay := time.Duration(float64(time.Second)*0.25*float64(retries*retries)) +
				time.Duration(rand.Intn(1000))*time.Millisecond
			if delay > f.maxBackoff {
				return Content{}, fmt.Errorf("fetch %s: gave up after %d retries on status %d", url, retries, resp.StatusCode)
			}
			f.logger.Debug("server error, retrying", "url", url, "retry", retries, "delay", delay)
			select {
			case <-ctx.Done():
				return Content{}, ctx.Err()
			case <-time.After(delay):
			}

		default:
			resp.Body.Close()
			return Content{}, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
		}
	}
}

func (f *Fetcher) readImage(resp *http.Response) (Content, error) {
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !allowedContentTypes[contentType] {
		return Content{}, fmt.Errorf("unexpected attachment content type %q", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Content{}, fmt.Errorf("read body: %w", err)
	}

	return Content{
		ContentType: contentType,
		Data:        base64.StdEncoding.EncodeToString(data),
	}, nil
}

func (f *Fetcher) fromCache(path string) (Content, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Content{}, false
	}
	var content Content
	if err := json.Unmarshal(data, &content); err != nil {
		return Content{}, false
	}
	return content, true
}

func (f *Fetcher) toCache(path string, content Content) {
	data, err := json.Marshal(content)
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		f.logger.Debug("cache write failed", "path", path, "error", err)
	}
}
