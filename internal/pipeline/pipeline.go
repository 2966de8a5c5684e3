// Package pipeline drives fixture post-processing over one directory: discover
// trace logs and assembly sources, optionally relabel generic .txt dumps,
// truncate each trace at its terminal self-loop, compress it, and assemble the
// test ROM sources. Every file is an independent unit of failure; the batch
// always runs to completion and reports an aggregate summary.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tracetrim/internal/extern"
	"tracetrim/internal/traceformat"
	"tracetrim/internal/truncate"
)

// Status classifies the outcome for one file.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn" // trace kept whole: no terminal self-loop found
	StatusFail Status = "fail"
)

// FileResult is the outcome for one discovered file.
type FileResult struct {
	Path   string
	Status Status
	Trim   truncate.Result // zero for assembly sources
	Err    error
}

// Summary aggregates a whole run.
type Summary struct {
	OK      int
	Warned  int
	Failed  int
	Results []FileResult
}

func (s *Summary) add(r FileResult) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusOK:
		s.OK++
	case StatusWarn:
		s.Warned++
	case StatusFail:
		s.Failed++
	}
}

// Options configures a run.
type Options struct {
	Dir      string
	Revision traceformat.Revision
	Rename   bool // relabel <stem>.txt -> <stem>-trace.log before processing
	Assemble bool // run the assembler over *.asm sources
	Jobs     int  // parallel trace workers; <=1 means sequential
	Strict   bool // a trace with no terminal self-loop fails instead of warning
}

// TraceSuffix is appended to the stem of relabeled .txt dumps.
const TraceSuffix = "-trace.log"

// Run executes the pipeline and returns the per-file results. The returned
// error covers setup problems only (unreadable directory); per-file failures
// are reported through the Summary.
func Run(ctx context.Context, opts Options, tools extern.Tools, logger *zap.Logger) (Summary, error) {
	var sum Summary

	if opts.Rename {
		// Successful renames surface later as discovered .log files; only
		// failures need a result row of their own.
		for _, r := range relabel(opts.Dir, logger) {
			if r.Status == StatusFail {
				sum.add(r)
			}
		}
	}

	logs, err := discover(opts.Dir, "*.log")
	if err != nil {
		return Summary{}, err
	}

	traceResults := make([]FileResult, len(logs))
	if opts.Jobs > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Jobs)
		for i, path := range logs {
			i, path := i, path
			g.Go(func() error {
				traceResults[i] = processTrace(gctx, path, opts, tools, logger)
				return nil
			})
		}
		// Workers never return errors; per-file failures live in the results.
		_ = g.Wait()
	} else {
		for i, path := range logs {
			traceResults[i] = processTrace(ctx, path, opts, tools, logger)
		}
	}
	for _, r := range traceResults {
		sum.add(r)
	}

	if opts.Assemble {
		sources, err := discover(opts.Dir, "*.asm")
		if err != nil {
			return Summary{}, err
		}
		for _, path := range sources {
			logger.Info("assembling rom", zap.String("path", path))
			r := FileResult{Path: path, Status: StatusOK}
			if err := tools.Assemble(ctx, path); err != nil {
				r.Status = StatusFail
				r.Err = fmt.Errorf("assemble: %w", err)
				logger.Error("assembler failed", zap.String("path", path), zap.Error(err))
			}
			sum.add(r)
		}
	}

	logger.Info("run complete",
		zap.Int("ok", sum.OK),
		zap.Int("warned", sum.Warned),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

// processTrace runs one trace through truncation and compression.
func processTrace(ctx context.Context, path string, opts Options, tools extern.Tools, logger *zap.Logger) FileResult {
	logger.Info("processing trace",
		zap.String("path", path),
		zap.String("revision", opts.Revision.Name))

	res := FileResult{Path: path, Status: StatusOK}

	trim, err := truncate.File(path, opts.Revision, logger)
	if err != nil {
		res.Status = StatusFail
		res.Err = err
		logger.Error("truncation failed", zap.String("path", path), zap.Error(err))
		return res
	}
	res.Trim = trim
	if !trim.Terminal {
		if opts.Strict {
			res.Status = StatusFail
			res.Err = fmt.Errorf("pipeline: %s: no terminal self-loop for revision %s", path, opts.Revision.Name)
			return res
		}
		res.Status = StatusWarn
	}

	if err := tools.Compress(ctx, path); err != nil {
		res.Status = StatusFail
		res.Err = fmt.Errorf("compress: %w", err)
		logger.Error("compression failed", zap.String("path", path), zap.Error(err))
		return res
	}
	return res
}

// relabel renames every <stem>.txt in dir to <stem>-trace.log so downstream
// tools recognize the generic dumps as trace logs.
func relabel(dir string, logger *zap.Logger) []FileResult {
	dumps, err := discover(dir, "*.txt")
	if err != nil {
		return []FileResult{{Path: dir, Status: StatusFail, Err: err}}
	}

	var results []FileResult
	for _, path := range dumps {
		dst := strings.TrimSuffix(path, ".txt") + TraceSuffix
		r := FileResult{Path: path, Status: StatusOK}
		if err := os.Rename(path, dst); err != nil {
			r.Status = StatusFail
			r.Err = fmt.Errorf("rename %s: %w", path, err)
			logger.Error("rename failed", zap.String("path", path), zap.Error(err))
		} else {
			logger.Info("relabeled dump", zap.String("from", path), zap.String("to", dst))
		}
		results = append(results, r)
	}
	return results
}

// discover lists files matching the glob pattern directly in dir, sorted so
// runs are deterministic.
func discover(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("pipeline: glob %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}
