package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"hotorbot/internal/domain/ports/adapter"
)

var _ adapter.PhotoStore = (*HTTPPhotoStore)(nil)

// HTTPPhotoStore fetches photo bytes from the object store's public base URL.
type HTTPPhotoStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPhotoStore(baseURL string) *HTTPPhotoStore {
	return &HTTPPhotoStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPPhotoStore) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	u := s.baseURL + "/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch photo %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch photo %s: http %d", key, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, "", err
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return data, mime, nil
}
