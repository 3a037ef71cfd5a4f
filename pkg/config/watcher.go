package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/glvplay/glvplay/pkg/logger"
)

// debounce merges the burst of events editors produce on save.
const debounce = 100 * time.Millisecond

// Watch reloads the config file on changes and hands the result to fn.
// The directory is watched rather than the file, so atomic
// replace-on-save keeps working. Returns when ctx is done.
func Watch(ctx context.Context, file string, log *logger.Logger, fn func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err = w.Add(filepath.Dir(file)); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer func() { _ = w.Close() }()
		var timer <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(file) {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					timer = time.After(debounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watch")
			case <-timer:
				timer = nil
				var conf Config
				if _, err := LoadConfig(&conf, file); err != nil {
					log.Error().Err(err).Str("file", file).Msg("config reload failed")
					continue
				}
				conf.Expand()
				log.Info().Str("file", file).Msg("config reloaded")
				fn(&conf)
			}
		}
	}()
	return nil
}
