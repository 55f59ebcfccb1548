package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxBytes caps how much of an image response is read
const DefaultMaxBytes = 20 * 1024 * 1024

// Fetcher retrieves image bytes by URL
type Fetcher struct {
	HTTPClient *http.Client
	MaxBytes   int64
}

// NewFetcher creates a new image fetcher
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		MaxBytes: DefaultMaxBytes,
	}
}

// Fetch downloads the image at url. Any non-200 response is an error.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(imageData)) > maxBytes {
		return nil, fmt.Errorf("image too large (max %d bytes)", maxBytes)
	}
	if len(imageData) == 0 {
		return nil, fmt.Errorf("image URL returned an empty body")
	}

	return imageData, nil
}
