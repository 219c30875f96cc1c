// Package config provides configuration management for the chat relay server.
// This file implements hot reloading of the configuration file.
package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// ReloadFunc is invoked with the freshly loaded configuration after a change.
type ReloadFunc func(*Config)

// Watcher watches a configuration file and reloads it on change.
// Only a subset of settings can take effect without a restart (pricing,
// resilience, audit); the HTTP layer re-reads those through the callback.
type Watcher struct {
	path     string
	onReload ReloadFunc

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for the given config path.
func NewWatcher(path string, onReload ReloadFunc) *Watcher {
	return &Watcher{path: path, onReload: onReload}
}

// Start begins watching the config file's directory. Watching the directory
// rather than the file survives editors that rename-and-replace on save.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return err
	}

	w.watcher = fsw
	w.done = make(chan struct{})
	go w.loop(fsw, w.done)

	log.Debugf("config watcher started for %s", w.path)
	return nil
}

// Stop stops watching. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return
	}
	close(w.done)
	_ = w.watcher.Close()
	w.watcher = nil
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	target := filepath.Clean(w.path)

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher error: %v", err)

		case <-done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Errorf("config reload failed, keeping previous configuration: %v", err)
		return
	}
	log.Infof("configuration reloaded from %s", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
