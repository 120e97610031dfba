// Package watcher turns noisy filesystem events into at-most-one pipeline
// run per written preview file.
//
// A single loop owns all debounce state. Every tick it drains the events
// fsnotify accumulated since the previous tick and processes them in
// arrival order: filter by the preview marker, suppress repeats inside the
// cooldown window, then hand admitted files to a goroutine that waits for
// the file's size to settle before running the pipeline. The in-flight set
// is the one piece of state shared with those goroutines; it guarantees a
// filename never has two concurrent runs.
//
// Used by: main (monitor and combined modes)
// Connects to: pipeline (spawned runs), report (outcome callback)
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/pixelframe/imgwatch/internal/asset"
	"github.com/pixelframe/imgwatch/internal/csync"
	"github.com/pixelframe/imgwatch/internal/pipeline"
)

// WriteTimeoutError means a file's size never settled before the write
// timeout; the pipeline was never invoked for it.
type WriteTimeoutError struct {
	Filename string
	Timeout  time.Duration
}

func (e *WriteTimeoutError) Error() string {
	return fmt.Sprintf("file write timeout after %s: %s", e.Timeout, e.Filename)
}

// stableChecks is how many consecutive unchanged, non-zero size polls count
// as a finished write.
const stableChecks = 3

// eventBuffer sizes the fsnotify channel so events accumulate between
// drain ticks instead of being dropped.
const eventBuffer = 1024

// Runner is the part of the pipeline the watcher needs.
type Runner interface {
	Process(ctx context.Context, path string) pipeline.Outcome
}

// Options configures a Watcher.
type Options struct {
	// Dir is watched recursively, including directories created later.
	Dir string
	// EventCooldown suppresses repeated events for the same filename.
	EventCooldown time.Duration
	// FileCheckInterval is the size polling cadence.
	FileCheckInterval time.Duration
	// FileWriteTimeout bounds how long a file may keep growing.
	FileWriteTimeout time.Duration
	// TickInterval is the drain cadence. Defaults to 100ms.
	TickInterval time.Duration

	Runner Runner
	Logger *log.Logger

	// OnOutcome receives the outcome of every spawned run, including
	// write timeouts. Informational only.
	OnOutcome func(pipeline.Outcome)
}

// Watcher is the monitor-mode reactor.
type Watcher struct {
	opts Options

	fsw *fsnotify.Watcher

	// lastEvents is touched only by the drain loop.
	lastEvents map[string]time.Time

	// inFlight is shared with run goroutines, which remove themselves on
	// completion.
	inFlight *csync.Set[string]

	wg  sync.WaitGroup
	now func() time.Time
}

// New creates a Watcher over opts.Dir and registers the existing directory
// tree with fsnotify.
func New(opts Options) (*Watcher, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}

	fsw, err := fsnotify.NewBufferedWatcher(eventBuffer)
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		opts:       opts,
		fsw:        fsw,
		lastEvents: make(map[string]time.Time),
		inFlight:   csync.NewSet[string](),
		now:        time.Now,
	}
	if err := w.watchTree(opts.Dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// watchTree registers dir and every subdirectory. fsnotify has no recursive
// mode; new subdirectories are added as their create events arrive.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.opts.Logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run drives the drain loop until ctx is cancelled. Cancellation stops new
// dispatch between ticks; it never interrupts a dispatch in progress.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.opts.Logger.Info("watching for new previews", "dir", w.opts.Dir)
	ticker := time.NewTicker(w.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.opts.Logger.Info("stopping watcher")
			return nil
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// Wait blocks until every spawned pipeline run has finished. Call after Run
// returns to let in-flight work complete naturally.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

// drain consumes everything queued since the last tick, in arrival order.
func (w *Watcher) drain(ctx context.Context) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Error("filesystem monitoring error", "error", err)
		default:
			return
		}
	}
}

// handleEvent runs one raw event through filter, cooldown and the in-flight
// guard, then spawns the pipeline run for admitted files.
func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if ev.Op.Has(fsnotify.Create) {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.opts.Logger.Warn("cannot watch new directory", "dir", ev.Name, "error", err)
			}
		}
		return
	}

	filename := filepath.Base(ev.Name)
	if !strings.Contains(filename, asset.PreviewMarker) {
		return
	}

	now := w.now()
	if last, seen := w.lastEvents[filename]; seen && now.Sub(last) < w.opts.EventCooldown {
		w.opts.Logger.Debug("suppressing duplicate event", "file", filename,
			"cooldown", w.opts.EventCooldown)
		return
	}
	w.lastEvents[filename] = now

	if !w.inFlight.TryAdd(filename) {
		w.opts.Logger.Debug("file already processing", "file", filename)
		return
	}

	w.opts.Logger.Info("file queued", "file", filename)
	w.wg.Add(1)
	// Shutdown stops new dispatch only; a run already spawned finishes
	// naturally, so it gets a context that survives cancellation.
	runCtx := context.WithoutCancel(ctx)
	go func(path, filename string) {
		defer w.wg.Done()
		defer w.inFlight.Remove(filename)
		w.processFile(runCtx, path, filename)
	}(ev.Name, filename)
}

// processFile waits for the write to finish, then runs the pipeline once.
func (w *Watcher) processFile(ctx context.Context, path, filename string) {
	var out pipeline.Outcome
	if err := w.waitStable(path); err != nil {
		out = pipeline.Outcome{Filename: filename, Err: err}
	} else {
		w.opts.Logger.Debug("file stable", "file", filename)
		out = w.opts.Runner.Process(ctx, path)
	}

	if out.Err != nil {
		w.opts.Logger.Error("processing failed", "file", filename, "error", out.Err)
	}
	if w.opts.OnOutcome != nil {
		w.opts.OnOutcome(out)
	}
}

// waitStable polls the file's size until it is unchanged and non-zero for
// stableChecks consecutive polls, or the write timeout elapses.
func (w *Watcher) waitStable(path string) error {
	start := w.now()
	var lastSize int64
	stable := 0

	for w.now().Sub(start) < w.opts.FileWriteTimeout {
		if info, err := os.Stat(path); err == nil {
			size := info.Size()
			if size == lastSize && size > 0 {
				stable++
				if stable >= stableChecks {
					return nil
				}
			} else {
				stable = 0
				lastSize = size
			}
		}
		time.Sleep(w.opts.FileCheckInterval)
	}

	return &WriteTimeoutError{Filename: filepath.Base(path), Timeout: w.opts.FileWriteTimeout}
}
