package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rkm/granulesync/pkg/daterange"
)

const (
	// DefaultPageSize is the default number of results per page.
	DefaultPageSize = 500

	// SearchAfterHeader carries the cursor for token-based pagination: the
	// request sends the previous page's token, the response returns the next.
	SearchAfterHeader = "Search-After"
)

// PageFetcher fetches one page of product identifiers for a bounded datetime
// range. An empty pageToken requests the first page; an empty NextToken in the
// returned Page signals the last one. Implementations must return a
// *TransientError for failures that are worth retrying.
type PageFetcher interface {
	FetchPage(ctx context.Context, r daterange.Range, pageToken string) (Page, error)
}

// Client handles communication with the product catalog API.
type Client struct {
	baseURL    string
	collection string
	token      string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	Collection string
	// Token is the bearer token sent with every request; empty disables auth.
	Token    string
	Timeout  time.Duration
	PageSize int
	// RatePerSecond caps page requests; zero disables client-side limiting.
	RatePerSecond float64
}

// NewClient creates a new catalog API client.
func NewClient(opts ClientOptions) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		collection: opts.Collection,
		token:      opts.Token,
		pageSize:   opts.PageSize,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// FetchPage requests a single page of identifiers for the given range.
func (c *Client) FetchPage(ctx context.Context, r daterange.Range, pageToken string) (Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Page{}, fmt.Errorf("rate limiter: %w", err)
	}

	searchURL := c.baseURL + "/search?" + c.queryValues(r).Encode()

	c.logger.DebugContext(ctx, "executing catalog search",
		slog.String("url", searchURL),
		slog.Bool("has_token", pageToken != ""),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("User-Agent", "granulesync/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if pageToken != "" {
		req.Header.Set(SearchAfterHeader, pageToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "catalog request failed",
			slog.String("error", err.Error()),
		)
		return Page{}, &TransientError{Err: fmt.Errorf("catalog request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, string(body))
		c.logger.ErrorContext(ctx, "catalog returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
		)
		if retryableStatus(resp.StatusCode) {
			return Page{}, &TransientError{Status: resp.StatusCode, Err: err}
		}
		return Page{}, err
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return Page{}, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	page := Page{
		IDs:       fc.identifiers(),
		NextToken: resp.Header.Get(SearchAfterHeader),
	}

	c.logger.DebugContext(ctx, "catalog search completed",
		slog.Int("returned", len(page.IDs)),
		slog.Bool("has_next", page.NextToken != ""),
	)

	return page, nil
}

func (c *Client) queryValues(r daterange.Range) url.Values {
	values := url.Values{}
	if c.collection != "" {
		values.Set("collection", c.collection)
	}
	values.Set("datetime", r.String())
	values.Set("limit", strconv.Itoa(c.pageSize))
	return values
}

// 429 and 5xx are worth retrying; everything else non-200 is a caller error.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
