// Package watch runs the trace pipeline continuously against a fixture
// directory. The reference emulator writes trace dumps incrementally, so raw
// create/write events are debounced: a file is handed to the callback only
// after it has been quiet for the debounce window. Processing a trace
// rewrites it in place, which the kernel reports as another create on the
// watched path; the callback returns the paths it touched so those
// self-inflicted events are dropped instead of reprocessed.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is long enough for the emulator to finish flushing a trace.
const DefaultDebounce = 2 * time.Second

// ProcessFunc handles one settled file and returns every path it rewrote or
// renamed to, so the watcher can ignore the resulting filesystem events.
type ProcessFunc func(ctx context.Context, path string) (touched []string)

// Watcher invokes a callback for every trace log that settles in a directory.
type Watcher struct {
	dir      string
	exts     []string // extensions to react to, e.g. ".log", ".txt"
	debounce time.Duration
	process  ProcessFunc
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event
	drop    map[string]bool      // paths whose next settle is self-inflicted
}

// New creates a watcher over dir. process is called once per settled file.
func New(dir string, exts []string, debounce time.Duration, process ProcessFunc, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		exts:     exts,
		debounce: debounce,
		process:  process,
		logger:   logger,
		pending:  map[string]time.Time{},
		drop:     map[string]bool{},
	}
}

// Run blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.dir, err)
	}
	w.logger.Info("watching fixture directory",
		zap.String("dir", w.dir),
		zap.Strings("extensions", w.exts),
		zap.Duration("debounce", w.debounce))

	tick := time.NewTicker(w.debounce / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.wants(ev.Name) {
				continue
			}
			w.mu.Lock()
			w.pending[ev.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))

		case now := <-tick.C:
			for _, path := range w.settled(now) {
				w.logger.Info("trace settled", zap.String("path", path))
				touched := w.process(ctx, path)
				w.suppress(touched)
			}
		}
	}
}

// wants reports whether the path has one of the watched extensions.
func (w *Watcher) wants(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// settled removes and returns every pending path quiet for the full debounce
// window. A path whose events came from our own rewrite is consumed silently.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) < w.debounce {
			continue
		}
		delete(w.pending, path)
		if w.drop[path] {
			delete(w.drop, path)
			continue
		}
		ready = append(ready, path)
	}
	return ready
}

// suppress marks paths the callback just rewrote; the events those rewrites
// generate collapse into one pending entry per path, which the next settle
// discards.
func (w *Watcher) suppress(touched []string) {
	if len(touched) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, path := range touched {
		w.drop[path] = true
	}
}
