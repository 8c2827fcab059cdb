// Package fetcher downloads TIGER/Line archives over HTTP or FTP and unpacks
// ZIP files.
package fetcher

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Dispatcher routes each request to the fetcher registered for the URL scheme.
type Dispatcher struct {
	schemes map[string]Fetcher
}

// NewDispatcher serves http and https URLs with h and ftp URLs with f.
// Either may be nil, in which case its schemes are rejected.
func NewDispatcher(h *HTTPFetcher, f *FTPFetcher) *Dispatcher {
	d := &Dispatcher{schemes: make(map[string]Fetcher)}
	if h != nil {
		d.schemes["http"] = h
		d.schemes["https"] = h
	}
	if f != nil {
		d.schemes["ftp"] = f
	}
	return d
}

func (d *Dispatcher) fetcherFor(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	f, ok := d.schemes[u.Scheme]
	if !ok {
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
	return f, nil
}

// Download fetches the URL with the fetcher for its scheme.
func (d *Dispatcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := d.fetcherFor(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// DownloadToFile writes the URL to path with the fetcher for its scheme.
func (d *Dispatcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	f, err := d.fetcherFor(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}
