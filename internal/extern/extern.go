// Package extern shells out to the external fixture tools: the xz compressor
// and the bass assembler. The pipeline depends only on the Tools interface so
// it can be tested without spawning subprocesses.
package extern

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Tools is the narrow capability surface the pipeline needs.
type Tools interface {
	// Compress compresses the file in place; on success the tool removes the
	// original and leaves <path>.xz behind.
	Compress(ctx context.Context, path string) error
	// Assemble builds a test ROM from an assembly source file. Output artifact
	// locations are owned by the assembler.
	Assemble(ctx context.Context, path string) error
}

// ExecTools runs the real tools as subprocesses. Commands inherit the given
// context, so cancelling it (e.g. on SIGINT) kills any in-flight child.
type ExecTools struct {
	XZ     string    // compressor binary, default "xz"
	Bass   string    // assembler binary, default "bass"
	Output io.Writer // child stdout/stderr, default os.Stderr
}

func (t ExecTools) Compress(ctx context.Context, path string) error {
	// --force so a pre-existing .xz from an earlier run is overwritten.
	return t.run(ctx, orDefault(t.XZ, "xz"), "--compress", "--force", path)
}

func (t ExecTools) Assemble(ctx context.Context, path string) error {
	return t.run(ctx, orDefault(t.Bass, "bass"), path)
}

func (t ExecTools) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out := t.Output
	if out == nil {
		out = os.Stderr
	}
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extern: %s %v: %w", name, args, err)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
