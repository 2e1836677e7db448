// Package watch turns an inbox directory into a batch submission queue.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cvinsight/internal/errors"
	"cvinsight/internal/utils"

	"github.com/fsnotify/fsnotify"
)

// ProcessFunc handles one settled inbox file.
type ProcessFunc func(ctx context.Context, path string) error

// InboxWatcher waits for PDFs to appear in a directory and hands each one,
// after it has been quiet for the debounce delay, to a single worker.
type InboxWatcher struct {
	mu sync.Mutex

	inbox         string
	debounceDelay time.Duration
	fsWatcher     *fsnotify.Watcher
	timers        map[string]*time.Timer
	queued        map[string]bool
	seen          map[string]time.Time
	queue         chan string
	ready         chan struct{}

	process ProcessFunc
	logger  *errors.Logger
}

// NewInboxWatcher creates a watcher for inbox.
func NewInboxWatcher(inbox string, debounceDelay time.Duration, process ProcessFunc, logger *errors.Logger) *InboxWatcher {
	if debounceDelay <= 0 {
		debounceDelay = time.Second
	}
	if logger == nil {
		logger = errors.NewWithHandler(slog.DiscardHandler)
	}
	return &InboxWatcher{
		inbox:         inbox,
		debounceDelay: debounceDelay,
		timers:        make(map[string]*time.Timer),
		queued:        make(map[string]bool),
		seen:          make(map[string]time.Time),
		queue:         make(chan string, 64),
		ready:         make(chan struct{}),
		process:       process,
		logger:        logger,
	}
}

// Run watches until ctx is cancelled. PDFs already in the inbox are queued first.
func (w *InboxWatcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.inbox, 0750); err != nil {
		return fmt.Errorf("failed to create inbox %s: %w", w.inbox, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.fsWatcher = watcher
	defer func() {
		if err := watcher.Close(); err != nil {
			w.logger.LogError(err, "Failed to close inbox watcher")
		}
	}()

	if err := watcher.Add(w.inbox); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", w.inbox, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()

	w.sweep()
	close(w.ready)
	w.logger.Info("Inbox watcher started", "inbox", w.inbox, "debounce_delay", w.debounceDelay)

	w.watchLoop(ctx)

	w.stopTimers()
	wg.Wait()
	w.logger.Info("Inbox watcher stopped")
	return nil
}

// Ready is closed once the inbox is watched and its backlog queued.
func (w *InboxWatcher) Ready() <-chan struct{} {
	return w.ready
}

func (w *InboxWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.shouldProcessEvent(event) {
				w.schedule(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.LogError(err, "Inbox watcher error")

		case <-ctx.Done():
			return
		}
	}
}

func (w *InboxWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if !utils.IsPDFName(event.Name) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}

// sweep queues PDFs that were already waiting when the watcher started.
func (w *InboxWatcher) sweep() {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		w.logger.Warn("Failed to list inbox", "inbox", w.inbox, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && utils.IsPDFName(entry.Name()) {
			w.enqueue(filepath.Join(w.inbox, entry.Name()))
		}
	}
}

// schedule (re)starts the file's debounce timer so writers can finish.
func (w *InboxWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounceDelay)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounceDelay, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.enqueue(path)
	})
}

func (w *InboxWatcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// enqueue skips files already waiting and files unchanged since they were processed.
func (w *InboxWatcher) enqueue(path string) {
	stat, err := os.Stat(path)
	if err != nil || !stat.Mode().IsRegular() {
		return
	}

	w.mu.Lock()
	if w.queued[path] {
		w.mu.Unlock()
		return
	}
	if last, ok := w.seen[path]; ok && !stat.ModTime().After(last) {
		w.mu.Unlock()
		return
	}
	w.queued[path] = true
	w.mu.Unlock()

	select {
	case w.queue <- path:
	default:
		w.logger.Warn("Inbox queue full, dropping file", "file", path)
		w.mu.Lock()
		delete(w.queued, path)
		w.mu.Unlock()
	}
}

// worker processes files strictly one at a time.
func (w *InboxWatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			w.handle(ctx, path)
		}
	}
}

func (w *InboxWatcher) handle(ctx context.Context, path string) {
	var modTime time.Time
	if stat, err := os.Stat(path); err == nil {
		modTime = stat.ModTime()
	}

	start := time.Now()
	err := w.process(ctx, path)

	w.mu.Lock()
	delete(w.queued, path)
	w.seen[path] = modTime
	w.mu.Unlock()

	if err != nil {
		w.logger.LogError(err, "Failed to process inbox file", "file", path)
		return
	}
	w.logger.Info("Processed inbox file", "file", path, "duration", time.Since(start).String())
}
