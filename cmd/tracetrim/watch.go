package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"tracetrim/internal/extern"
	"tracetrim/internal/logging"
	"tracetrim/internal/pipeline"
	"tracetrim/internal/truncate"
	"tracetrim/internal/watch"
)

func cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	dir := fs.String("dir", "", "fixture directory to watch")
	rev := fs.String("rev", "", "trace format revision")
	revisions := fs.String("revisions", "", "YAML file with additional revisions")
	rename := fs.Bool("rename", false, "relabel settled <stem>.txt to <stem>-trace.log")
	debounce := fs.Duration("debounce", watch.DefaultDebounce, "quiet period before a trace is processed")
	debug := fs.Bool("debug", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("--dir is required")
	}

	logger, err := logging.New(*debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	revision, err := resolveRevision(*rev, *revisions)
	if err != nil {
		return err
	}

	exts := []string{".log"}
	if *rename {
		exts = append(exts, ".txt")
	}

	tools := extern.ExecTools{}
	process := func(ctx context.Context, path string) (touched []string) {
		if *rename && strings.HasSuffix(path, ".txt") {
			dst := strings.TrimSuffix(path, ".txt") + pipeline.TraceSuffix
			if err := os.Rename(path, dst); err != nil {
				logger.Error("rename failed", zap.String("path", path), zap.Error(err))
				return nil
			}
			logger.Info("relabeled dump", zap.String("from", path), zap.String("to", dst))
			path = dst
			touched = append(touched, dst)
		}
		res, err := truncate.File(path, revision, logger)
		if err != nil {
			logger.Error("truncation failed", zap.String("path", path), zap.Error(err))
			return touched
		}
		if res.Terminal {
			// The in-place rewrite shows up as a create on the watched path.
			touched = append(touched, path)
		}
		logger.Info("trace trimmed",
			zap.String("path", path),
			zap.Int("kept", res.Kept),
			zap.Bool("terminal", res.Terminal))
		if err := tools.Compress(ctx, path); err != nil {
			logger.Error("compression failed", zap.String("path", path), zap.Error(err))
		}
		return touched
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watch.New(*dir, exts, *debounce, process, logger)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
