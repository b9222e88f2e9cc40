package datastore

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/studyplanner/core/internal/infrastructure/logger"
)

// Watcher reloads collections whose files are edited outside the store.
// The store's own writes also produce events; those reload to identical bytes and are ignored.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	logger   *logger.Logger
	onChange func(collection string)
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewWatcher creates a watcher for the store's data directory. onChange, if set,
// is called after a collection was reloaded with different content.
func NewWatcher(store *Store, log *logger.Logger, onChange func(collection string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Watcher{
		store:    store,
		watcher:  fw,
		logger:   log.WithComponent("datastore-watcher"),
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching the data directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	if err := w.watcher.Add(w.store.DataDir()); err != nil {
		return fmt.Errorf("failed to watch data directory %s: %w", w.store.DataDir(), err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	w.logger.Infow("Watching data directory for external changes", "data_dir", w.store.DataDir())
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()
	return nil
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warnw("File watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	collection, ok := collectionFromPath(event.Name)
	if !ok {
		return
	}

	log := w.logger.WithCollection(collection)

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		changed, err := w.store.Reload(collection)
		if err != nil {
			log.WithError(err).Warnw("Failed to reload collection")
			return
		}
		if changed && w.onChange != nil {
			w.onChange(collection)
		}

	case event.Has(fsnotify.Remove):
		log.Warnw("Collection file removed externally, the next write recreates it")
	}
}

// collectionFromPath maps "<dir>/<name>.json" to name, ignoring temp and backup files.
func collectionFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	name, ok := strings.CutSuffix(base, ".json")
	if !ok || ValidateName(name) != nil {
		return "", false
	}
	return name, true
}
