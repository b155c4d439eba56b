package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"edge-detection-pipeline/internal/core"
)

// Watch reloads path whenever it changes and calls fn with every valid
// configuration that differs from the last one delivered. Edits that fail to
// parse or validate are logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, logger logrus.FieldLogger, fn func(File, core.ProcessingConfig)) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// editors often replace the file, so the directory is watched instead
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	log := logger.WithField("config", path)
	log.Info("Watching configuration")

	var last File
	delivered := false
	reload := func() {
		f, err := Load(abs)
		if err != nil {
			log.WithError(err).Warn("Ignoring unreadable configuration")
			return
		}
		cfg, err := f.ProcessingConfig()
		if err != nil {
			log.WithError(err).Warn("Ignoring invalid configuration")
			return
		}
		if delivered && f == last {
			return
		}
		last, delivered = f, true
		log.WithFields(cfg.Fields()).Info("Configuration reloaded")
		fn(f, cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Watcher error")
		}
	}
}
