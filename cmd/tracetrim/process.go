package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tracetrim/internal/extern"
	"tracetrim/internal/logging"
	"tracetrim/internal/pipeline"
)

func cmdProcess(args []string) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	dir := fs.String("dir", "", "fixture directory to process")
	rev := fs.String("rev", "", "trace format revision")
	revisions := fs.String("revisions", "", "YAML file with additional revisions")
	rename := fs.Bool("rename", false, "relabel <stem>.txt to <stem>-trace.log first")
	asm := fs.Bool("asm", false, "assemble *.asm test ROM sources")
	jobs := fs.Int("jobs", 1, "parallel trace workers")
	strict := fs.Bool("strict", false, "fail traces with no terminal self-loop")
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

	// Ctrl-C kills in-flight xz/bass children instead of orphaning them.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{
		Dir:      *dir,
		Revision: revision,
		Rename:   *rename,
		Assemble: *asm,
		Jobs:     *jobs,
		Strict:   *strict,
	}
	sum, err := pipeline.Run(ctx, opts, extern.ExecTools{}, logger)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", sum.Failed, len(sum.Results))
	}
	return nil
}
