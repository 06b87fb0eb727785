package filewatcher

import (
	"log/slog"
	"path/filepath"
	"time"
)

// Option configures a FileWatcher
type Option func(*FileWatcher)

// WithLogger sets the logger for the file watcher
func WithLogger(logger *slog.Logger) Option {
	return func(fw *FileWatcher) {
		if logger != nil {
			fw.logger = logger
		}
	}
}

// WithFiles adds files to watch. Paths are made absolute.
func WithFiles(files ...string) Option {
	return func(fw *FileWatcher) {
		for _, f := range files {
			if abs, err := filepath.Abs(f); err == nil {
				f = abs
			}
			fw.files[filepath.Clean(f)] = struct{}{}
		}
	}
}

// WithDebounce sets how long a file must stay quiet before callbacks fire.
func WithDebounce(d time.Duration) Option {
	return func(fw *FileWatcher) {
		if d > 0 {
			fw.debounce = d
		}
	}
}
