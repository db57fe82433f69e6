package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher reloads a config file when it changes on disk
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *logrus.Logger
	onChange func(*Config)

	mu     sync.Mutex
	timer  *time.Timer
	stopCh chan struct{}
	doneCh chan struct{}
}

// Watch starts watching path. onChange receives every successfully loaded
// and validated config; invalid edits are logged and ignored. The parent
// directory is watched so editors that replace the file by rename still
// trigger a reload.
func Watch(path string, logger *logrus.Logger, onChange func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		path:     abs,
		watcher:  fsw,
		logger:   logger,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.loop()

	logger.WithField("path", abs).Info("Watching config file")
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.doneCh)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Config watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// schedule coalesces bursts of events into one reload
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.WithError(err).WithField("path", w.path).Warn("Ignoring invalid config change")
		return
	}

	w.logger.WithField("path", w.path).Info("Config reloaded")
	w.onChange(cfg)
}

// Close stops the watcher
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.stopCh)
	err := w.watcher.Close()
	<-w.doneCh
	return err
}
