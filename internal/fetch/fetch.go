// Package fetch downloads and transforms product files across a bounded
// worker pool, isolating per-item failures and promoting finished files
// atomically so a partial download is never visible under its final name.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rkm/granulesync/internal/product"
)

// Source acquires the raw bytes for one product identifier. Implementations
// stream into w and must not buffer entire products in memory.
type Source interface {
	Fetch(ctx context.Context, id string, w io.Writer) error
}

// Transformer reworks a downloaded product file in place (resampling,
// reprojection). The file at path is still under its temporary name; the
// transformer may rewrite it freely.
type Transformer interface {
	Transform(ctx context.Context, path string) error
}

// NopTransformer leaves the downloaded file untouched.
type NopTransformer struct{}

func (NopTransformer) Transform(context.Context, string) error { return nil }

// DestinationExistsError is returned for a job whose destination already
// exists when pre-deletion was not requested.
type DestinationExistsError struct {
	Path string
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("destination %s already exists", e.Path)
}

// Failure records one job's terminal error.
type Failure struct {
	ID  string
	Err error
}

// Summary aggregates the outcome of a fetch run. It is always reported; a
// non-zero Failed count does not make the run itself an error.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Failures  []Failure
}

// Options configures a Scheduler.
type Options struct {
	// Workers is the number of concurrent jobs; 1 disables concurrency.
	Workers int
	// OutputDir receives finished product files.
	OutputDir string
	// TempDir holds in-flight files before atomic promotion. Must be on the
	// same filesystem as OutputDir for rename to be atomic.
	TempDir string
	// Prefix selects the filename family for finished files.
	Prefix product.Prefix
	// RemoveIfExists deletes a pre-existing destination before the job runs;
	// otherwise such a job fails without touching the file.
	RemoveIfExists bool
}

// Scheduler fans product downloads out across a worker pool.
type Scheduler struct {
	source      Source
	transformer Transformer
	opts        Options
	logger      *slog.Logger
}

// NewScheduler creates a Scheduler. A nil transformer leaves files untouched.
func NewScheduler(source Source, transformer Transformer, opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Prefix == "" {
		opts.Prefix = product.PrefixInput
	}
	if transformer == nil {
		transformer = NopTransformer{}
	}
	return &Scheduler{
		source:      source,
		transformer: transformer,
		opts:        opts,
		logger:      slog.Default(),
	}
}

// WithLogger sets a custom logger for the scheduler.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

type outcome struct {
	id      string
	skipped bool
	err     error
}

// Run processes one job per identifier and reports the aggregated result.
// Identifiers whose filename cannot be derived are skipped; every other
// failure is recorded with its cause and never aborts sibling jobs. Run
// returns an error for environmental problems that prevent any job from
// starting (unusable output or temp directory), or the context's error when
// the run was cancelled before every identifier was dispatched; the summary
// then covers only the jobs that actually ran.
func (s *Scheduler) Run(ctx context.Context, ids []string) (*Summary, error) {
	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if s.opts.TempDir != "" {
		if err := os.MkdirAll(s.opts.TempDir, 0o755); err != nil {
			return nil, fmt.Errorf("create temp directory: %w", err)
		}
	}

	jobs := make(chan string)
	outcomes := make(chan outcome, len(ids))
	var wg sync.WaitGroup

	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				outcomes <- s.runJob(ctx, id)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(outcomes)

	summary := &Summary{}
	for o := range outcomes {
		switch {
		case o.skipped:
			summary.Skipped++
		case o.err != nil:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{ID: o.id, Err: o.err})
		default:
			summary.Succeeded++
		}
	}

	s.logger.Info("fetch run finished",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
	)

	// A cancelled run leaves undispatched identifiers outside every bucket;
	// the error keeps that from passing as a completed run.
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	return summary, nil
}

func (s *Scheduler) runJob(ctx context.Context, id string) outcome {
	name, err := product.FilenameFromID(s.opts.Prefix, id)
	if err != nil {
		s.logger.Warn("skipping identifier without a derivable filename",
			slog.String("id", id),
		)
		return outcome{id: id, skipped: true}
	}
	dest := filepath.Join(s.opts.OutputDir, name)

	if _, statErr := os.Stat(dest); statErr == nil {
		if !s.opts.RemoveIfExists {
			return outcome{id: id, err: &DestinationExistsError{Path: dest}}
		}
		if err := os.Remove(dest); err != nil {
			return outcome{id: id, err: fmt.Errorf("remove existing destination: %w", err)}
		}
	}

	if err := s.fetchOne(ctx, id, dest); err != nil {
		s.logger.Error("job failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return outcome{id: id, err: err}
	}

	s.logger.Debug("job finished", slog.String("id", id), slog.String("path", dest))
	return outcome{id: id}
}

// fetchOne downloads into a temp file, transforms it, and promotes it to dest
// with a rename. On any failure the temp file is removed and dest is never
// created.
func (s *Scheduler) fetchOne(ctx context.Context, id, dest string) (err error) {
	tempDir := s.opts.TempDir
	if tempDir == "" {
		tempDir = s.opts.OutputDir
	}

	tmp, err := os.CreateTemp(tempDir, filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if err = s.source.Fetch(ctx, id, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("download: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err = s.transformer.Transform(ctx, tmpPath); err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	// Atomic promotion: the file appears under its final name only complete.
	if err = os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("promote to destination: %w", err)
	}
	return nil
}
