package main

import (
	"flag"
	"fmt"

	"go.uber.org/zap"

	"tracetrim/internal/logging"
	"tracetrim/internal/truncate"
)

func cmdTrim(args []string) error {
	fs := flag.NewFlagSet("trim", flag.ExitOnError)
	file := fs.String("file", "", "trace log to truncate in place")
	rev := fs.String("rev", "", "trace format revision")
	revisions := fs.String("revisions", "", "YAML file with additional revisions")
	dryRun := fs.Bool("dry-run", false, "report the cut point without rewriting")
	strict := fs.Bool("strict", false, "fail when no terminal self-loop is found")
	debug := fs.Bool("debug", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("--file is required")
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

	var res truncate.Result
	if *dryRun {
		res, err = truncate.DryRun(*file, revision)
	} else {
		res, err = truncate.File(*file, revision, logger)
	}
	if err != nil {
		return err
	}

	logger.Info("trace trimmed",
		zap.String("path", res.Path),
		zap.Int("kept", res.Kept),
		zap.Bool("terminal", res.Terminal))

	if *strict && !res.Terminal {
		return fmt.Errorf("%s: no terminal self-loop for revision %s", *file, revision.Name)
	}
	return nil
}
