package core

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	// DefaultFetchTimeout bounds one results report download.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultUserAgent identifies the fetcher to the results host.
	DefaultUserAgent = "coach-importer/1.0"

	meetIDPlaceholder = "{meet_id}"
)

// ResultsFetcher downloads the results report for a meet.
type ResultsFetcher struct {
	client    *http.Client
	urlFormat string
	userAgent string
}

// NewResultsFetcher creates a fetcher for urlFormat, which may contain a
// {meet_id} placeholder.
func NewResultsFetcher(urlFormat, userAgent string, timeout time.Duration) *ResultsFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &ResultsFetcher{
		client:    &http.Client{Timeout: timeout},
		urlFormat: urlFormat,
		userAgent: userAgent,
	}
}

// URL returns the report address for meetID.
func (f *ResultsFetcher) URL(meetID string) string {
	return strings.ReplaceAll(f.urlFormat, meetIDPlaceholder, meetID)
}

// Fetch downloads the report for meetID, decoded to UTF-8. The returned
// Document is fully buffered and holds no connection.
func (f *ResultsFetcher) Fetch(ctx context.Context, meetID string, maxSize int64) (Document, error) {
	if f == nil || f.urlFormat == "" {
		return Document{}, ErrResultsURLNotConfigured
	}
	url := f.URL(meetID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Document{}, &DocumentError{File: url, Err: fmt.Errorf("fetching page: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, &DocumentError{File: url, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return Document{}, &DocumentError{File: url, Err: fmt.Errorf("decoding charset: %w", err)}
	}

	data, err := readDocument(Document{Name: url, Reader: body}, maxSize)
	if err != nil {
		return Document{}, err
	}
	return Document{Name: url, Reader: bytes.NewReader(data)}, nil
}
