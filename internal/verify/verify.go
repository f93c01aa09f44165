// Package verify reconciles a local product file tree against the set of
// identifiers a catalog query says should be there. It never mutates the
// tree; a verification pass over an unchanged tree always yields the same
// report.
package verify

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rkm/granulesync/internal/match"
	"github.com/rkm/granulesync/internal/product"
	"github.com/rkm/granulesync/pkg/daterange"
)

// DefaultTolerance is the relative size deviation allowed before a file is
// considered corrupted.
const DefaultTolerance = 0.01

// Options configures a verification pass.
type Options struct {
	// Pattern filters scanned filenames; an empty pattern admits everything.
	Pattern match.Pattern
	// NominalSize is the expected file size in bytes; zero disables the
	// corruption check.
	NominalSize int64
	// Tolerance is the allowed relative deviation from NominalSize;
	// zero means DefaultTolerance.
	Tolerance float64
	// Workers bounds the concurrent size lookups; values below 1 mean 1.
	Workers int
}

// Report is the outcome of one verification pass.
type Report struct {
	// Found is the number of files that matched an expected identifier and
	// passed the size check.
	Found int
	// Missing holds expected identifiers with no healthy file on disk.
	Missing []string
	// Corrupted holds paths whose size deviates beyond the tolerance.
	Corrupted []string
	// Extra holds paths whose timestamp matches no expected identifier.
	Extra []string
	// Unparsable holds reference identifiers and scanned filenames from which
	// no timestamp could be derived. A non-empty set is a consistency defect
	// worth investigating, not a verification failure.
	Unparsable []string
}

// Clean reports whether the pass found no discrepancy of any kind.
func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Corrupted) == 0 &&
		len(r.Extra) == 0 && len(r.Unparsable) == 0
}

// Reconciler compares expected identifiers with files on disk.
type Reconciler struct {
	opts   Options
	logger *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts Options) *Reconciler {
	if opts.Tolerance == 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Reconciler{opts: opts, logger: slog.Default()}
}

// WithLogger sets a custom logger for the reconciler.
func (r *Reconciler) WithLogger(logger *slog.Logger) *Reconciler {
	r.logger = logger
	return r
}

type entry struct {
	path string
	ts   time.Time
	size int64
}

// Verify scans root and reconciles it against reference, restricted to the
// identifiers whose timestamp falls in rng. The filesystem is only read.
func (r *Reconciler) Verify(ctx context.Context, rng daterange.Range, reference []string, root string) (*Report, error) {
	report := &Report{}

	// Expected timestamps, keyed at minute resolution like the filenames.
	expected := make(map[time.Time]string)
	for _, id := range reference {
		ts, err := product.TimeFromID(id)
		if err != nil {
			report.Unparsable = append(report.Unparsable, id)
			continue
		}
		if rng.Contains(ts) {
			expected[ts] = id
		}
	}

	entries, err := r.scan(ctx, root, report)
	if err != nil {
		return nil, err
	}

	healthy := make(map[time.Time]bool)
	for _, e := range entries {
		if r.corrupted(e.size) {
			report.Corrupted = append(report.Corrupted, e.path)
			continue
		}
		if _, ok := expected[e.ts]; !ok {
			report.Extra = append(report.Extra, e.path)
			continue
		}
		healthy[e.ts] = true
	}
	report.Found = len(healthy)

	for ts, id := range expected {
		if !healthy[ts] {
			report.Missing = append(report.Missing, id)
		}
	}

	sort.Strings(report.Missing)
	sort.Strings(report.Corrupted)
	sort.Strings(report.Extra)
	sort.Strings(report.Unparsable)

	r.logger.Info("verification finished",
		slog.Int("found", report.Found),
		slog.Int("missing", len(report.Missing)),
		slog.Int("corrupted", len(report.Corrupted)),
		slog.Int("extra", len(report.Extra)),
		slog.Int("unparsable", len(report.Unparsable)),
	)

	return report, nil
}

// scan walks root, keeps regular files the pattern admits, derives each
// file's timestamp, and stats sizes across a bounded group.
func (r *Reconciler) scan(ctx context.Context, root string, report *Report) ([]entry, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !r.opts.Pattern.Matches(d.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	var (
		mu      sync.Mutex
		entries []entry
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ts, parseErr := product.TimeFromFilename(path)
			info, statErr := os.Stat(path)
			if statErr != nil {
				return fmt.Errorf("stat %s: %w", path, statErr)
			}

			mu.Lock()
			defer mu.Unlock()
			if parseErr != nil {
				report.Unparsable = append(report.Unparsable, path)
				return nil
			}
			entries = append(entries, entry{path: path, ts: ts, size: info.Size()})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *Reconciler) corrupted(size int64) bool {
	if r.opts.NominalSize <= 0 {
		return false
	}
	deviation := math.Abs(1 - float64(size)/float64(r.opts.NominalSize))
	return deviation > r.opts.Tolerance
}
