package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSource downloads product bytes over HTTP from a download endpoint laid
// out as <base>/<collection>/<identifier>.
type HTTPSource struct {
	baseURL    string
	collection string
	token      string
	httpClient *http.Client
}

// HTTPSourceOptions configures an HTTPSource.
type HTTPSourceOptions struct {
	BaseURL    string
	Collection string
	Token      string
	Timeout    time.Duration
}

// NewHTTPSource creates a download source for product files.
func NewHTTPSource(opts HTTPSourceOptions) *HTTPSource {
	return &HTTPSource{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		collection: opts.Collection,
		token:      opts.Token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch streams the product's bytes into w.
func (s *HTTPSource) Fetch(ctx context.Context, id string, w io.Writer) error {
	downloadURL := s.baseURL
	if s.collection != "" {
		downloadURL += "/" + url.PathEscape(s.collection)
	}
	downloadURL += "/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "granulesync/1.0")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("stream product bytes: %w", err)
	}
	return nil
}
