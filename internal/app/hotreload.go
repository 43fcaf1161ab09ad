package app

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"stackview/internal/config"
	"stackview/internal/logging"
)

// ConfigWatcher reloads a configuration file when it changes on disk and
// hands valid results to a callback. Invalid edits are logged and ignored.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	settle   time.Duration
	onReload func(*config.Config)

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewConfigWatcher watches path. The containing directory is watched so
// editors that replace the file by renaming are still noticed.
func NewConfigWatcher(path string, logger *slog.Logger) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	return &ConfigWatcher{
		path:    abs,
		watcher: w,
		logger:  logging.OrDiscard(logger),
		settle:  100 * time.Millisecond,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// OnReload sets the callback invoked with each successfully loaded
// configuration. It is called from the watcher goroutine.
func (w *ConfigWatcher) OnReload(callback func(*config.Config)) {
	w.onReload = callback
}

// Path returns the watched file.
func (w *ConfigWatcher) Path() string { return w.path }

// Start begins watching in a background goroutine.
func (w *ConfigWatcher) Start() {
	if w.started {
		return
	}
	w.started = true
	go w.watchLoop()
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *ConfigWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
		if !w.started {
			close(w.done)
		}
	})
	<-w.done
	return err
}

// watchLoop collects change events and reloads once they settle, so a
// burst of writes from one save produces a single reload.
func (w *ConfigWatcher) watchLoop() {
	defer close(w.done)

	var pending <-chan time.Time
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.settle)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err)
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := config.Load(w.path)
	if err != nil {
		if errors.Is(err, config.ErrInvalid) {
			w.logger.Warn("ignoring invalid config edit", "path", w.path, "error", err)
		} else {
			w.logger.Warn("config reload failed", "path", w.path, "error", err)
		}
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// WatchConfig reloads path into s whenever it changes. Stop the returned
// watcher when done.
func WatchConfig(s *State, path string) (*ConfigWatcher, error) {
	w, err := NewConfigWatcher(path, s.logger)
	if err != nil {
		return nil, err
	}
	w.OnReload(func(cfg *config.Config) {
		if err := s.ApplyConfig(cfg); err != nil {
			s.logger.Warn("reloaded config rejected", "error", err)
		}
	})
	w.Start()
	return w, nil
}
