package catalog

import (
	"context"
	"iter"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rkm/granulesync/pkg/daterange"
)

// RetryPolicy bounds the per-page retry loop. Only transient failures are
// retried; the same page request is re-issued with exponential backoff until
// it succeeds or MaxAttempts is reached.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt)))
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if p.JitterFraction > 0 {
		jitter := (rand.Float64()*2 - 1) * p.JitterFraction * float64(d)
		d += time.Duration(jitter)
	}
	return d
}

// Searcher runs range queries against a PageFetcher, transparently paging
// through all result pages and retrying transient per-page failures.
type Searcher struct {
	fetcher PageFetcher
	retry   RetryPolicy
	logger  *slog.Logger
}

// NewSearcher creates a Searcher over the given page fetcher.
func NewSearcher(fetcher PageFetcher, retry RetryPolicy) *Searcher {
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryPolicy()
	}
	return &Searcher{
		fetcher: fetcher,
		retry:   retry,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the searcher.
func (s *Searcher) WithLogger(logger *slog.Logger) *Searcher {
	s.logger = logger
	return s
}

// Query retrieves all product identifiers within the range, concatenating
// pages in catalog-reported order. No deduplication is performed. On retry
// exhaustion it returns an *ExhaustedError carrying the count of identifiers
// already collected for the range.
func (s *Searcher) Query(ctx context.Context, r daterange.Range) ([]string, error) {
	var ids []string
	token := ""

	for {
		page, err := s.fetchPageWithRetry(ctx, r, token, len(ids))
		if err != nil {
			return nil, err
		}

		ids = append(ids, page.IDs...)

		if page.NextToken == "" || len(page.IDs) == 0 {
			return ids, nil
		}
		token = page.NextToken
	}
}

// QueryInBatches splits the range into sub-ranges of the given interval and
// yields one Batch per sub-range. The sequence is demand-driven: no request
// for a batch is issued until the consumer asks for it, and abandoning the
// iteration stops all further requests. Peak memory is therefore bounded by a
// single batch of identifiers.
//
// A yielded non-nil error terminates the sequence; the Batch paired with it
// carries the index and range of the failing sub-query.
func (s *Searcher) QueryInBatches(ctx context.Context, r daterange.Range, interval time.Duration) (iter.Seq2[Batch, error], error) {
	ranges, err := daterange.Split(r, interval)
	if err != nil {
		return nil, err
	}

	return func(yield func(Batch, error) bool) {
		total := 0

		for i, sub := range ranges {
			s.logger.InfoContext(ctx, "querying batch",
				slog.Int("batch", i),
				slog.String("period", sub.String()),
			)

			ids, err := s.Query(ctx, sub)
			if err != nil {
				yield(Batch{Index: i, Range: sub}, err)
				return
			}

			total += len(ids)
			s.logger.InfoContext(ctx, "batch retrieved",
				slog.Int("batch", i),
				slog.Int("count", len(ids)),
			)

			if !yield(Batch{Index: i, Range: sub, IDs: ids}, nil) {
				return
			}
		}

		s.logger.InfoContext(ctx, "query complete",
			slog.String("period", r.String()),
			slog.Int("batches", len(ranges)),
			slog.Int("total", total),
		)
	}, nil
}

func (s *Searcher) fetchPageWithRetry(ctx context.Context, r daterange.Range, token string, partial int) (Page, error) {
	var lastErr error

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := s.retry.backoff(attempt - 1)
			s.logger.WarnContext(ctx, "retrying catalog page",
				slog.Int("attempt", attempt+1),
				slog.String("backoff", wait.String()),
				slog.String("period", r.String()),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Page{}, ctx.Err()
			}
		}

		page, err := s.fetcher.FetchPage(ctx, r, token)
		if err == nil {
			return page, nil
		}
		if !IsTransient(err) {
			return Page{}, err
		}
		lastErr = err
	}

	return Page{}, &ExhaustedError{
		Attempts: s.retry.MaxAttempts,
		Partial:  partial,
		Err:      lastErr,
	}
}
