package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tracetrim/internal/traceformat"
	"tracetrim/internal/truncate"
)

func TestWatcher_ProcessesSettledTrace(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 1)
	process := func(_ context.Context, path string) []string {
		mu.Lock()
		got = append(got, path)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}

	w := New(dir, []string{".log"}, 100*time.Millisecond, process, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(200 * time.Millisecond)
	path := filepath.Join(dir, "cpu_adc.log")
	require.NoError(t, os.WriteFile(path, []byte("008000 nop\n"), 0o644))
	// An ignored extension must never fire.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644))

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("watcher never processed the settled trace")
	}
	cancel()
	<-errCh

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{path}, got)
}

func TestWatcher_IgnoresOwnRewrite(t *testing.T) {
	// Truncating a settled trace renames a temp file over the watched path,
	// and compression then removes it. Neither the rewrite's create event nor
	// anything downstream of it may re-trigger processing.
	dir := t.TempDir()
	line := func(pc, mn, target string) string {
		return pc + " " + mn + " $" + target[2:] + "      [" + target + "] A:0000 X:0000 Y:0000 S:01ff D:0000 DB:00 ..M..I.. V:000 H:0000 F:00\n"
	}

	var mu sync.Mutex
	calls := 0
	var procErrs []error
	invoked := make(chan struct{}, 8)
	process := func(_ context.Context, path string) []string {
		mu.Lock()
		calls++
		mu.Unlock()
		invoked <- struct{}{}

		res, err := truncate.File(path, traceformat.RevisionA, zap.NewNop())
		if err != nil || !res.Terminal {
			mu.Lock()
			procErrs = append(procErrs, err)
			mu.Unlock()
			return nil
		}
		// Mimic xz: replace the trace with a compressed artifact.
		if err := os.Rename(path, path+".xz"); err != nil {
			mu.Lock()
			procErrs = append(procErrs, err)
			mu.Unlock()
		}
		return []string{path}
	}

	w := New(dir, []string{".log"}, 100*time.Millisecond, process, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	path := filepath.Join(dir, "cpu.log")
	content := line("008000", "lda", "001000") +
		line("008010", "jmp", "008010") +
		line("008010", "jmp", "008010")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	select {
	case <-invoked:
	case <-ctx.Done():
		t.Fatal("watcher never processed the settled trace")
	}

	// Wait several debounce windows: the rewrite's event must be swallowed,
	// not settle into a second invocation.
	time.Sleep(600 * time.Millisecond)
	cancel()
	<-errCh

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, procErrs)
	assert.Equal(t, 1, calls, "process must run exactly once per settled trace")
	assert.FileExists(t, path+".xz")
}

func TestWatcher_Wants(t *testing.T) {
	w := New(t.TempDir(), []string{".log", ".txt"}, 0, nil, zap.NewNop())
	assert.True(t, w.wants("a/b/trace.log"))
	assert.True(t, w.wants("dump.TXT"))
	assert.False(t, w.wants("readme.md"))
	assert.False(t, w.wants("trace.log.xz"))
}

func TestWatcher_SettledDropsSuppressedPath(t *testing.T) {
	w := New(t.TempDir(), []string{".log"}, time.Second, nil, zap.NewNop())

	w.pending["a.log"] = time.Now().Add(-2 * time.Second)
	w.pending["b.log"] = time.Now().Add(-2 * time.Second)
	w.suppress([]string{"b.log"})

	ready := w.settled(time.Now())
	assert.Equal(t, []string{"a.log"}, ready)
	assert.Empty(t, w.pending)
	assert.Empty(t, w.drop, "suppression is consumed by the settle")

	// The next event for the same path is genuine again.
	w.pending["b.log"] = time.Now().Add(-2 * time.Second)
	assert.Equal(t, []string{"b.log"}, w.settled(time.Now()))
}

func TestWatcher_MissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope"), []string{".log"}, 0, nil, zap.NewNop())
	err := w.Run(context.Background())
	assert.Error(t, err)
}
