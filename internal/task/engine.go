package task

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rkm/granulesync/internal/catalog"
	"github.com/rkm/granulesync/internal/config"
	"github.com/rkm/granulesync/internal/fetch"
	"github.com/rkm/granulesync/internal/idfile"
	"github.com/rkm/granulesync/internal/product"
	"github.com/rkm/granulesync/internal/verify"
	"github.com/rkm/granulesync/pkg/daterange"
)

// Invoker runs one retrieval over a window of input files, writing whatever
// it produces under outputDir. The retrieval itself is external; implement
// this to shell out to it or call its service.
type Invoker interface {
	Invoke(ctx context.Context, inputs []string, outputDir string) error
}

// Result summarizes one performed task. Failures lists per-item problems the
// task survived; a non-empty list means the task completed with failures, not
// that it aborted.
type Result struct {
	RunID    string
	Kind     Kind
	Counts   map[string]int
	Failures []string
}

// Clean reports whether the task finished without recording any failure.
func (r *Result) Clean() bool {
	return len(r.Failures) == 0
}

type handler func(e *Engine, ctx context.Context, logger *slog.Logger, t *Task) (*Result, error)

// handlers is the closed dispatch table; a {context, action} pair outside it
// is rejected at load time and again at dispatch.
var handlers = map[Kind]handler{
	{ContextIDs, ActionFetch}:      (*Engine).fetchIDs,
	{ContextFiles, ActionFetch}:    (*Engine).fetchFiles,
	{ContextFiles, ActionVerify}:   (*Engine).verifyFiles,
	{ContextChimp, ActionRetrieve}: (*Engine).retrieve,
}

// Supported reports whether a handler is registered for the kind.
func Supported(k Kind) bool {
	_, ok := handlers[k]
	return ok
}

// Engine performs tasks, constructing the pipeline components each task
// needs from the process configuration.
type Engine struct {
	cfg         *config.Config
	transformer fetch.Transformer
	invoker     Invoker
	logger      *slog.Logger
}

// NewEngine creates an Engine over the given configuration.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg, logger: slog.Default()}
}

// WithLogger sets a custom logger for the engine.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithTransformer sets the transformer applied to every downloaded file.
// Without one, downloaded files are kept as received.
func (e *Engine) WithTransformer(t fetch.Transformer) *Engine {
	e.transformer = t
	return e
}

// WithInvoker sets the retrieval invoker required by chimp.retrieve tasks.
func (e *Engine) WithInvoker(i Invoker) *Engine {
	e.invoker = i
	return e
}

// Perform runs one task to completion. Every run gets its own ID, attached
// to all log records the task emits. A returned error means the task could
// not run or aborted; per-item failures land in the Result instead.
func (e *Engine) Perform(ctx context.Context, t Task) (*Result, error) {
	h, ok := handlers[t.Kind()]
	if !ok {
		return nil, &UnsupportedTaskError{Kind: t.Kind()}
	}

	runID := uuid.NewString()
	logger := e.logger.With(
		slog.String("run_id", runID),
		slog.String("task", t.Kind().String()),
	)
	logger.Info("performing task")

	result, err := h(e, ctx, logger, &t)
	if err != nil {
		logger.Error("task aborted", slog.String("error", err.Error()))
		return nil, fmt.Errorf("task %s: %w", t.Kind(), err)
	}

	result.RunID = runID
	result.Kind = t.Kind()
	logger.Info("task finished", slog.Int("failures", len(result.Failures)))
	return result, nil
}

func (e *Engine) fetchIDs(ctx context.Context, logger *slog.Logger, t *Task) (*Result, error) {
	var spec IDsFetchSpec
	if err := t.decodeSpec(&spec); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	rng, err := spec.Range()
	if err != nil {
		return nil, err
	}

	client := catalog.NewClient(catalog.ClientOptions{
		BaseURL:       e.cfg.Catalog.BaseURL,
		Collection:    e.cfg.Catalog.Collection,
		Token:         e.cfg.Catalog.Token,
		Timeout:       e.cfg.Catalog.Timeout,
		PageSize:      e.cfg.Catalog.PageSize,
		RatePerSecond: e.cfg.Catalog.RatePerSecond,
	}).WithLogger(logger)

	searcher := catalog.NewSearcher(client, catalog.RetryPolicy{
		MaxAttempts:    e.cfg.Retry.MaxAttempts,
		InitialBackoff: e.cfg.Retry.InitialBackoff,
		MaxBackoff:     e.cfg.Retry.MaxBackoff,
		Multiplier:     e.cfg.Retry.Multiplier,
		JitterFraction: e.cfg.Retry.JitterFraction,
	}).WithLogger(logger)

	batches, err := searcher.QueryInBatches(ctx, rng, spec.BatchInterval.Duration())
	if err != nil {
		return nil, err
	}

	count, err := idfile.WriteInBatches(batches, spec.OutputFilename, spec.Overwrite)
	if err != nil {
		return nil, err
	}

	return &Result{Counts: map[string]int{"identifiers": count}}, nil
}

func (e *Engine) fetchFiles(ctx context.Context, logger *slog.Logger, t *Task) (*Result, error) {
	var spec FilesFetchSpec
	if err := t.decodeSpec(&spec); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	rng, err := spec.Range()
	if err != nil {
		return nil, err
	}

	all, err := idfile.Read(spec.InputFilename)
	if err != nil {
		return nil, err
	}

	// Identifiers outside the range are dropped; unparsable ones are kept so
	// the scheduler reports them as skipped.
	var ids []string
	for _, id := range all {
		ts, err := product.TimeFromID(id)
		if err != nil || rng.Contains(ts) {
			ids = append(ids, id)
		}
	}

	workers := spec.NumberOfProcesses
	if workers == 0 {
		workers = e.cfg.Fetch.Workers
	}

	source := fetch.NewHTTPSource(fetch.HTTPSourceOptions{
		BaseURL:    e.cfg.Fetch.SourceBaseURL,
		Collection: e.cfg.Catalog.Collection,
		Token:      e.cfg.Catalog.Token,
		Timeout:    e.cfg.Fetch.Timeout,
	})

	scheduler := fetch.NewScheduler(source, e.transformer, fetch.Options{
		Workers:        workers,
		OutputDir:      spec.OutputDirectory,
		TempDir:        spec.TempDirectory,
		RemoveIfExists: spec.RemoveFileIfExists,
	}).WithLogger(logger)

	summary, err := scheduler.Run(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &Result{Counts: map[string]int{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}}
	for _, f := range summary.Failures {
		result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", f.ID, f.Err))
	}
	return result, nil
}

func (e *Engine) verifyFiles(ctx context.Context, logger *slog.Logger, t *Task) (*Result, error) {
	var spec FilesVerifySpec
	if err := t.decodeSpec(&spec); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	rng, err := spec.Range()
	if err != nil {
		return nil, err
	}

	reference, err := idfile.Read(spec.InputFilename)
	if err != nil {
		return nil, err
	}

	reconciler := verify.NewReconciler(verify.Options{
		Pattern:     spec.Pattern.Pattern(),
		NominalSize: spec.NominalSize,
		Tolerance:   spec.Tolerance,
		Workers:     spec.NumberOfProcesses,
	}).WithLogger(logger)

	report, err := reconciler.Verify(ctx, rng, reference, spec.FilesDirectory)
	if err != nil {
		return nil, err
	}

	result := &Result{Counts: map[string]int{
		"found":      report.Found,
		"missing":    len(report.Missing),
		"corrupted":  len(report.Corrupted),
		"extra":      len(report.Extra),
		"unparsable": len(report.Unparsable),
	}}
	for _, id := range report.Missing {
		result.Failures = append(result.Failures, "missing "+id)
	}
	for _, path := range report.Corrupted {
		result.Failures = append(result.Failures, "corrupted "+path)
	}
	for _, path := range report.Extra {
		result.Failures = append(result.Failures, "extra "+path)
	}
	for _, entry := range report.Unparsable {
		result.Failures = append(result.Failures, "unparsable "+entry)
	}
	return result, nil
}

func (e *Engine) retrieve(ctx context.Context, logger *slog.Logger, t *Task) (*Result, error) {
	var spec ChimpRetrieveSpec
	if err := t.decodeSpec(&spec); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	rng, err := spec.Range()
	if err != nil {
		return nil, err
	}
	if e.invoker == nil {
		return nil, fmt.Errorf("no retrieval invoker configured")
	}

	inputs, err := inRangeFiles(spec.InputDirectory, rng)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(spec.OutputDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	result := &Result{Counts: map[string]int{"inputs": len(inputs)}}

	windows := 0
	for i := 0; i+spec.WindowSize <= len(inputs); i++ {
		window := inputs[i : i+spec.WindowSize]
		windows++
		if err := e.invoker.Invoke(ctx, window, spec.OutputDirectory); err != nil {
			logger.Error("retrieval window failed",
				slog.Int("window", i),
				slog.String("error", err.Error()),
			)
			result.Failures = append(result.Failures,
				fmt.Sprintf("window %d (%s): %v", i, filepath.Base(window[0]), err))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	result.Counts["windows"] = windows
	result.Counts["failed"] = len(result.Failures)
	return result, nil
}

// inRangeFiles collects the files under root whose filename timestamp falls
// in the range, ordered by that timestamp.
func inRangeFiles(root string, rng daterange.Range) ([]string, error) {
	type timed struct {
		path string
		ts   time.Time
	}
	var files []timed

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ts, err := product.TimeFromFilename(path)
		if err != nil {
			return nil
		}
		if rng.Contains(ts) {
			files = append(files, timed{path: path, ts: ts})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ts.Before(files[j].ts) })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}
