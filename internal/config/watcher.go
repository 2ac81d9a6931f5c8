// Package config provides configuration management for the hippos engine.
// This file implements hot reloading of the mutable tuning knobs in
// development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ConfigWatcher watches the config directory and the .env.<environment>
// file for changes; on a change it re-reads configuration from the process
// environment and hot reloads the knobs that are safe to swap under a
// running engine.
// Hot reloading is restricted to development: the storage backend and
// embedding provider are decided once at startup and never change under
// a live process, so only Retrieval and Maintenance are re-derived.
type ConfigWatcher struct {
	config    *Config
	callbacks []func(*Config)
	mu        sync.RWMutex
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
}

// NewConfigWatcher creates a new configuration watcher.
func NewConfigWatcher(initial *Config, logger *zap.Logger) (*ConfigWatcher, error) {
	watcher := &ConfigWatcher{
		config:    initial,
		callbacks: make([]func(*Config), 0),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	if initial.Environment != Development {
		logger.Info("configuration hot reloading disabled",
			zap.String("environment", string(initial.Environment)),
		)
		return watcher, nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	watcher.watcher = fsWatcher

	if err := watcher.watchConfigFiles(); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch config files: %w", err)
	}

	go watcher.watchLoop()

	logger.Info("configuration hot reloading enabled",
		zap.String("environment", string(initial.Environment)),
	)
	return watcher, nil
}

// watchConfigFiles adds an optional config directory and any env file to
// the watcher. Absence of either is not an error: the engine runs purely
// from environment variables by default.
func (w *ConfigWatcher) watchConfigFiles() error {
	configDir := os.Getenv("HIPPOS_CONFIG_DIR")
	if configDir == "" {
		configDir = "./config"
	}

	err := filepath.Walk(configDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() || isConfigFile(path) {
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("failed to watch file", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk config directory: %w", err)
	}

	envFile := fmt.Sprintf(".env.%s", w.config.Environment)
	if _, err := os.Stat(envFile); err == nil {
		if err := w.watcher.Add(envFile); err != nil {
			w.logger.Warn("failed to watch env file", zap.String("file", envFile), zap.Error(err))
		}
	}
	return nil
}

func (w *ConfigWatcher) watchLoop() {
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && isConfigFile(event.Name) {
				w.logger.Info("configuration file changed", zap.String("file", event.Name))
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, w.reloadConfig)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))

		case <-w.stopCh:
			w.logger.Info("stopping configuration watcher")
			return
		}
	}
}

// reloadConfig re-derives Retrieval and Maintenance from the environment
// and, if they changed, notifies every registered callback. The storage
// and embedding sections are read once at startup by LoadConfig and
// never overwritten here.
func (w *ConfigWatcher) reloadConfig() {
	fresh := LoadConfig()
	if err := fresh.Validate(); err != nil {
		w.logger.Error("invalid configuration after reload", zap.Error(err))
		return
	}

	w.mu.Lock()
	changed := w.config.Retrieval != fresh.Retrieval || w.config.Maintenance != fresh.Maintenance
	if changed {
		w.config.Retrieval = fresh.Retrieval
		w.config.Maintenance = fresh.Maintenance
	}
	current := w.config
	w.mu.Unlock()

	if !changed {
		w.logger.Debug("configuration unchanged after reload")
		return
	}

	w.logger.Info("configuration reloaded",
		zap.Int("rrf_k", current.Retrieval.RRFK),
		zap.Float64("decay_factor", current.Maintenance.DecayFactor),
	)
	w.notifyCallbacks(current)
}

// OnChange registers a callback invoked whenever reload changes a knob.
func (w *ConfigWatcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// GetConfig returns the current configuration.
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop stops the configuration watcher.
func (w *ConfigWatcher) Stop() {
	if w.watcher != nil {
		close(w.stopCh)
	}
}

func (w *ConfigWatcher) notifyCallbacks(newConfig *Config) {
	w.mu.RLock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for i, callback := range callbacks {
		go func(idx int, cb func(*Config)) {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("callback panicked", zap.Int("callback_index", idx), zap.Any("panic", r))
				}
			}()
			cb(newConfig)
		}(i, callback)
	}
}

func isConfigFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml" || ext == ".json" || ext == ".env"
}
