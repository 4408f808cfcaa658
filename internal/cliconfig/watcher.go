package cliconfig

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/copperline/ledgerclient/pkg/log"
)

// DefaultDebounceDelay is how long the watcher waits after a file change
// before reloading, so editors that write in several steps trigger one
// reload, not several.
const DefaultDebounceDelay = 100 * time.Millisecond

// Watcher monitors the config file and invokes a callback with each valid
// reloaded configuration. Invalid intermediate states are logged and
// skipped.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   log.Logger
	onChange func(Config)

	mu      sync.Mutex
	timer   *time.Timer
	closed  bool
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// WatchFile starts watching the config file at path. The callback runs on
// the watcher's goroutine; it must not block for long.
func WatchFile(path string, logger log.Logger, onChange func(Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors replace files by rename
	// and the old inode's watch would go stale.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		debounce: DefaultDebounceDelay,
		logger:   logger,
		onChange: onChange,
		watcher:  fsw,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit. No reload
// callback runs after Close returns: reload and Close serialize on the
// mutex, and a debounce timer that has not fired yet is stopped here.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.done)
		if w.timer != nil {
			w.timer.Stop()
		}
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

// scheduleReload debounces bursts of file events into one reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload runs on the debounce timer's goroutine. The mutex is held for
// the whole reload, onChange included, so Close cannot return while a
// callback is in flight.
func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", log.String("path", w.path), log.Err(err))
		return
	}
	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, nil); err != nil {
		w.logger.Warn("config reload failed", log.String("path", w.path), log.Err(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("ignoring invalid config", log.String("path", w.path), log.Err(err))
		return
	}
	w.logger.Info("configuration reloaded", log.String("path", w.path))
	w.onChange(cfg)
}
