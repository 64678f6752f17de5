// Package fetcher downloads remote data over HTTP and parses the CSV and
// XLSX files the pipeline exchanges. Every request is rate limited per host
// and retried with backoff so the crawlers built on top stay polite toward
// the upstream sites.
package fetcher

import (
	"context"
	"io"
	"net/http"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)

	// Client returns an *http.Client whose transport applies the fetcher's
	// rate limiting, retry, and User-Agent policy. Site clients that need
	// their own request shaping (headers, cookies) ride this client.
	Client() *http.Client
}
