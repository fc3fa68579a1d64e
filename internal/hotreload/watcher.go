// Package hotreload watches configuration files and directories and fires a
// debounced callback when they change.
package hotreload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// DefaultDebounceDelay coalesces editor save bursts into one reload.
const DefaultDebounceDelay = 500 * time.Millisecond

// ReloadFunc is invoked after changes settle. reason names the triggering event.
type ReloadFunc func(reason string)

// Config configures a Watcher.
type Config struct {
	// Paths are files or directories to watch. Directories are watched
	// non-recursively.
	Paths []string
	// Extensions restricts events to files with these extensions (e.g. ".yaml").
	// Empty accepts every file.
	Extensions    []string
	DebounceDelay time.Duration
}

// Watcher delivers debounced change notifications for a set of paths.
type Watcher struct {
	logger   hclog.Logger
	watcher  *fsnotify.Watcher
	config   Config
	onReload ReloadFunc

	// files holds watched file paths; their parent directory is watched so
	// atomic-rename saves are seen
	files map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending     *time.Timer
	pendingGen  uint64
	pendingMu   sync.Mutex
	lastReason  string
	reloadCount int
}

// New creates a watcher. Start must be called to begin delivering events.
func New(logger hclog.Logger, config Config, onReload ReloadFunc) (*Watcher, error) {
	if len(config.Paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = DefaultDebounceDelay
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		logger:   logger.Named("hot-reload"),
		watcher:  fsw,
		config:   config,
		onReload: onReload,
		files:    make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start adds the watches and begins the event loop.
func (w *Watcher) Start() error {
	for _, path := range w.config.Paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("cannot watch %s: %w", path, err)
		}

		target := abs
		if !info.IsDir() {
			w.files[abs] = true
			target = filepath.Dir(abs)
		}
		if err := w.watcher.Add(target); err != nil {
			return fmt.Errorf("failed to add watch for %s: %w", target, err)
		}
		w.logger.Debug("added watch", "path", target)
	}

	w.wg.Add(1)
	go w.eventLoop()

	w.logger.Info("hot reload watcher started", "paths", w.config.Paths, "delay", w.config.DebounceDelay)
	return nil
}

// Stop cancels pending reloads and waits for the event loop and any reload
// callback already running to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()

	w.pendingMu.Lock()
	w.stopPendingLocked()
	w.pendingMu.Unlock()

	w.wg.Wait()
	w.logger.Info("hot reload watcher stopped")
	return err
}

// ReloadCount returns how many debounced reloads have fired.
func (w *Watcher) ReloadCount() int {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	return w.reloadCount
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.shouldProcess(event) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.logger.Debug("file system event detected", "operation", event.Op, "path", event.Name)
	w.scheduleReload(fmt.Sprintf("%s %s", strings.ToLower(event.Op.String()), filepath.Base(event.Name)))
}

func (w *Watcher) shouldProcess(event fsnotify.Event) bool {
	if len(w.files) > 0 {
		abs, err := filepath.Abs(event.Name)
		if err == nil && w.files[abs] {
			return true
		}
		// Only directories were requested for the remaining paths
		if !w.watchesDirectoryOf(event.Name) {
			return false
		}
	}

	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") {
		return false
	}
	if len(w.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range w.config.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (w *Watcher) watchesDirectoryOf(path string) bool {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return false
	}
	for _, p := range w.config.Paths {
		abs, err := filepath.Abs(p)
		if err == nil && abs == dir && !w.files[abs] {
			return true
		}
	}
	return false
}

func (w *Watcher) scheduleReload(reason string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if w.ctx.Err() != nil {
		return
	}
	w.stopPendingLocked()
	w.lastReason = reason
	w.pendingGen++
	gen := w.pendingGen

	// Each scheduled timer holds a wg slot until it fires or is stopped
	w.wg.Add(1)
	w.pending = time.AfterFunc(w.config.DebounceDelay, func() { w.fire(gen) })
}

// stopPendingLocked cancels the scheduled timer. A timer that already fired
// releases its own wg slot in fire.
func (w *Watcher) stopPendingLocked() {
	if w.pending != nil && w.pending.Stop() {
		w.wg.Done()
	}
	w.pending = nil
}

func (w *Watcher) fire(gen uint64) {
	defer w.wg.Done()

	w.pendingMu.Lock()
	reason := w.lastReason
	if w.pendingGen == gen {
		w.pending = nil
	}
	w.reloadCount++
	w.pendingMu.Unlock()

	if w.ctx.Err() != nil {
		return
	}
	w.logger.Info("performing hot reload", "reason", reason)
	w.onReload(reason)
}
