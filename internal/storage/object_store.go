package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
)

// ObjectStore stores binary artifacts under a key and returns a durable,
// publicly resolvable URL for each upload.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, data io.Reader) (string, error)

	// UploadFromURL downloads the resource at srcUrl and stores it under key.
	UploadFromURL(ctx context.Context, srcUrl, key, contentType string) (string, error)
}

// FetchBytes downloads a resource into memory. Used for provider-hosted
// images that must be re-uploaded or cropped.
func FetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := resty.New().R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("error downloading %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("error downloading %s: status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}
