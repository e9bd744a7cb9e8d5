package authconfig

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it changes on disk and invokes onChange with
// the newly parsed Config. It runs until stop is closed or the watcher
// errors unrecoverably. Parse errors are logged and skipped (the last-good
// Config stays in effect) rather than crashing a long-running daemon.
func Watch(path string, logger *slog.Logger, onChange func(*Config), stop <-chan struct{}) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			cfg, err := Load(path, logger)
			if err != nil {
				logger.Warn("auth config reload failed, keeping previous config",
					slog.String("path", path), slog.String("error", err.Error()))

				continue
			}

			logger.Info("auth config reloaded", slog.String("path", path))
			onChange(cfg)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("auth config watcher error", slog.String("error", werr.Error()))
		}
	}
}
