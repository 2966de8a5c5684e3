package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tracetrim/internal/truncate"
)

func cmdCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	dir := fs.String("dir", "", "fixture directory to scan")
	rev := fs.String("rev", "", "trace format revision")
	revisions := fs.String("revisions", "", "YAML file with additional revisions")
	asJSON := fs.Bool("json", false, "machine-readable report on stdout")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("--dir is required")
	}

	revision, err := resolveRevision(*rev, *revisions)
	if err != nil {
		return err
	}

	logs, err := filepath.Glob(filepath.Join(*dir, "*.log"))
	if err != nil {
		return fmt.Errorf("glob: %w", err)
	}
	sort.Strings(logs)
	if len(logs) == 0 {
		return fmt.Errorf("no *.log files in %s", *dir)
	}

	var report []truncate.Result
	missing := 0
	for _, path := range logs {
		res, err := truncate.DryRun(path, revision)
		if err != nil {
			return err
		}
		report = append(report, res)
		if !res.Terminal {
			missing++
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		for _, res := range report {
			if res.Terminal {
				fmt.Printf("%-50s cut at line %d\n", res.Path, res.Kept)
			} else {
				fmt.Printf("%-50s NO TERMINAL SELF-LOOP (%d lines, revision %s?)\n",
					res.Path, res.Kept, revision.Name)
			}
		}
	}

	if missing > 0 {
		return fmt.Errorf("%d of %d traces have no terminal self-loop under revision %s",
			missing, len(report), revision.Name)
	}
	return nil
}
