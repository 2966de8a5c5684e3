// Package truncate cuts reference emulator trace logs at the point the test
// ROM enters its terminal infinite loop. Test ROMs end by jumping to their own
// address forever, so the raw trace keeps growing until capture stops; only
// the prefix up to and including the first self-loop jump is a usable fixture.
package truncate

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"tracetrim/internal/traceformat"
)

// Result describes one truncation.
type Result struct {
	Path     string `json:"path"`
	Kept     int    `json:"kept"`     // lines retained
	Terminal bool   `json:"terminal"` // self-loop found
}

// Scan reads trace lines from r, preserving line terminators exactly as read,
// and returns the prefix of lines up to and including the first line the
// revision classifies as the terminal self-loop. Reading stops at the cut, so
// the spin tail of a raw dump is never pulled through memory; terminal is
// false when the scan reached EOF without a match, in which case lines holds
// the whole input.
func Scan(r io.Reader, rev traceformat.Revision) (lines []string, terminal bool, err error) {
	br := bufio.NewReader(r)
	for {
		line, rerr := br.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
			if rev.Terminal(line) {
				return lines, true, nil
			}
		}
		if rerr == io.EOF {
			return lines, false, nil
		}
		if rerr != nil {
			return nil, false, fmt.Errorf("truncate: read: %w", rerr)
		}
	}
}

// DryRun scans the file without modifying it.
func DryRun(path string, rev traceformat.Revision) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("truncate: %w", err)
	}
	defer f.Close()

	lines, terminal, err := Scan(f, rev)
	if err != nil {
		return Result{}, fmt.Errorf("truncate: %s: %w", path, err)
	}
	return Result{Path: path, Kept: len(lines), Terminal: terminal}, nil
}

// File truncates the trace at path in place. The retained prefix is written to
// a temporary file in the same directory and renamed over the original, so an
// interrupted run never leaves a partially written trace. When no terminal
// self-loop exists the file is left byte-identical (no rewrite) and a warning
// is logged; rerunning on an already truncated trace is a no-op because its
// last line is still the first match.
func File(path string, rev traceformat.Revision, logger *zap.Logger) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("truncate: %w", err)
	}
	lines, terminal, err := Scan(f, rev)
	f.Close()
	if err != nil {
		return Result{}, fmt.Errorf("truncate: %s: %w", path, err)
	}

	if !terminal {
		logger.Warn("no terminal self-loop found, trace left unchanged",
			zap.String("path", path),
			zap.String("revision", rev.Name),
			zap.Int("lines", len(lines)))
		return Result{Path: path, Kept: len(lines), Terminal: false}, nil
	}

	if err := rewrite(path, lines); err != nil {
		return Result{}, err
	}
	return Result{Path: path, Kept: len(lines), Terminal: true}, nil
}

// rewrite atomically replaces path with the joined lines.
func rewrite(path string, lines []string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.WriteString(strings.Join(lines, "")); err != nil {
		tmp.Close()
		return fmt.Errorf("truncate: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("truncate: close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("truncate: chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("truncate: rename over %s: %w", path, err)
	}
	return nil
}
