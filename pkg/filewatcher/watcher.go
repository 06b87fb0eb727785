// Package filewatcher reports changes to individual files, debounced so that
// an editor's write-rename-chmod burst produces a single callback.
package filewatcher

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// FileWatcher watches a set of files for changes.
type FileWatcher struct {
	watcher     *fsnotify.Watcher
	files       map[string]struct{}
	logger      *slog.Logger
	callbacks   []func(string)
	callbacksMu sync.RWMutex
	debounce    time.Duration
	changes     map[string]time.Time
	changesMu   sync.Mutex
	done        chan struct{}
	stopOnce    sync.Once
}

// New creates a FileWatcher. Nothing is watched until Start.
func New(opts ...Option) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:  watcher,
		files:    make(map[string]struct{}),
		logger:   slog.Default(),
		debounce: defaultDebounce,
		changes:  make(map[string]time.Time),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(fw)
	}
	return fw, nil
}

// AddCallback adds a callback to be called with the path of a changed file.
func (fw *FileWatcher) AddCallback(callback func(string)) {
	fw.callbacksMu.Lock()
	defer fw.callbacksMu.Unlock()
	fw.callbacks = append(fw.callbacks, callback)
}

// Start begins watching. Parent directories are watched rather than the files
// themselves so that files replaced by rename are still tracked.
func (fw *FileWatcher) Start() error {
	dirs := make(map[string]struct{})
	for file := range fw.files {
		dirs[filepath.Dir(file)] = struct{}{}
	}
	for dir := range dirs {
		fw.logger.Info("Watching directory", "dir", dir)
		if err := fw.watcher.Add(dir); err != nil {
			return err
		}
	}

	go fw.watchLoop()
	return nil
}

// Stop stops watching for file changes.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watchLoop() {
	ticker := time.NewTicker(fw.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Clean(event.Name)
			if _, watched := fw.files[name]; watched {
				fw.changesMu.Lock()
				fw.changes[name] = time.Now()
				fw.changesMu.Unlock()
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("Watcher error", "error", err)
		case <-ticker.C:
			fw.processChanges()
		}
	}
}

// processChanges fires callbacks for files that have been quiet for the debounce period.
func (fw *FileWatcher) processChanges() {
	fw.changesMu.Lock()
	now := time.Now()
	var due []string
	for file, changeTime := range fw.changes {
		if now.Sub(changeTime) >= fw.debounce {
			due = append(due, file)
			delete(fw.changes, file)
		}
	}
	fw.changesMu.Unlock()

	for _, file := range due {
		fw.logger.Info("File changed", "file", file)
		fw.notifyCallbacks(file)
	}
}

func (fw *FileWatcher) notifyCallbacks(file string) {
	fw.callbacksMu.RLock()
	defer fw.callbacksMu.RUnlock()

	for _, callback := range fw.callbacks {
		callback(file)
	}
}
