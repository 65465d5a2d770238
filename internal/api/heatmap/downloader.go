package heatmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// errTooLarge is returned when a download exceeds the size limit.
var errTooLarge = errors.New("image exceeds download limit")

// Downloader fetches screenshots over HTTP.
type Downloader struct {
	client *http.Client
	limit  int64
}

// NewDownloader returns a downloader reading at most limit bytes per image.
func NewDownloader(timeout time.Duration, limit int64) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: timeout},
		limit:  limit,
	}
}

// Fetch downloads url. Non-2xx responses are errors.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > d.limit {
		return nil, errTooLarge
	}
	return data, nil
}
