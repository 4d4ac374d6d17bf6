package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/arxos/flightindex/internal/logger"
)

// Watch reloads the YAML file at path whenever it changes on disk and
// invokes onChange with the freshly merged config (defaults overlaid by the
// file's contents). It returns a stop function that closes the underlying
// watcher. Reload errors are logged and otherwise ignored — the engine keeps
// running on its last-known-good config.
func Watch(path string, onChange func(EngineConfig)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	loader := NewLoader()
	loader.AddSource(FileSource{Path: path})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := loader.Load()
				if err != nil {
					logger.Warn("config: reload of %s failed: %v", path, err)
					continue
				}
				logger.Info("config: reloaded %s", path)
				onChange(cfg)
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config: watch error on %s: %v", path, watchErr)
			}
		}
	}()

	return watcher.Close, nil
}
