package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last write before
// reloading.
const DefaultDebounce = 200 * time.Millisecond

// ReloadFunc receives the reloaded configuration, or the error that
// prevented loading it.
type ReloadFunc func(cfg *Config, err error)

type watchOptions struct {
	debounce time.Duration
	logger   *slog.Logger
}

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

// WithDebounce sets the quiet period required before a reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d >= 0 {
			o.debounce = d
		}
	}
}

// WithWatchLogger sets the logger for watch diagnostics.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(o *watchOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Watch reloads path whenever it changes and passes the result to fn.
// The parent directory is watched so editors that replace the file on
// save are seen. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, fn ReloadFunc, opts ...WatchOption) error {
	o := watchOptions{
		debounce: DefaultDebounce,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			o.logger.Debug("config changed", "path", abs, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(o.debounce)
			} else {
				timer.Reset(o.debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("config watch error", "path", abs, "err", err)

		case <-fire:
			fire = nil
			cfg, err := Load(abs)
			if err != nil {
				o.logger.Warn("config reload failed", "path", abs, "err", err)
			} else {
				o.logger.Info("config reloaded", "path", abs)
			}
			fn(cfg, err)
		}
	}
}
