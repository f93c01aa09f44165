// granulesync command line entry point
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rkm/granulesync/internal/config"
	"github.com/rkm/granulesync/internal/task"
)

const (
	exitOK           = 0
	exitFailures     = 1
	exitInvalidInput = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("granulesync", flag.ContinueOnError)
	logLevel := flags.String("log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	logFormat := flags.String("log-format", "", "log format (text, json); overrides LOG_FORMAT")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: granulesync [flags] run <task.yaml>\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return exitInvalidInput
	}
	rest := flags.Args()
	if len(rest) != 2 || rest[0] != "run" {
		flags.Usage()
		return exitInvalidInput
	}
	taskFile := rest[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitInvalidInput
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	tasks, err := task.Load(taskFile)
	if err != nil {
		logger.Error("cannot load task file",
			"path", taskFile,
			"error", err,
		)
		return exitInvalidInput
	}
	logger.Info("loaded task file", "path", taskFile, "tasks", len(tasks))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := task.NewEngine(cfg).WithLogger(logger)

	failures := 0
	for i, t := range tasks {
		result, err := engine.Perform(ctx, t)
		if err != nil {
			var unsupported *task.UnsupportedTaskError
			if errors.Is(err, task.ErrInvalidSpec) || errors.As(err, &unsupported) {
				logger.Error("invalid task", "index", i, "error", err)
				return exitInvalidInput
			}
			logger.Error("task aborted", "index", i, "error", err)
			return exitFailures
		}

		logger.Info("task result",
			"task", result.Kind.String(),
			"run_id", result.RunID,
			"counts", result.Counts,
		)
		for _, f := range result.Failures {
			logger.Warn("task failure", "run_id", result.RunID, "detail", f)
		}
		failures += len(result.Failures)
	}

	if failures > 0 {
		logger.Warn("completed with failures", "failures", failures)
		return exitFailures
	}
	return exitOK
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
