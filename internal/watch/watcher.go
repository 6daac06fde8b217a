// Package watch observes scan roots for filesystem changes and drives
// the application's reload and unload entry points.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/modkit-go/modkit/internal/module"
)

// Config configures a Watcher.
type Config struct {
	// Roots are the directories to observe recursively.
	Roots []string

	// Debounce is the quiet period before accumulated events flush.
	// Defaults to 100ms.
	Debounce time.Duration

	Logger *zap.Logger

	// OnChange is invoked once per changed or created module file after
	// debouncing.
	OnChange func(path string)

	// OnRemove is invoked once per removed or renamed-away module file
	// after debouncing.
	OnRemove func(path string)
}

// Watcher monitors the scan roots and maps debounced filesystem events
// to reload/unload callbacks. Event coalescing policy: when a path sees
// both change and remove events inside one debounce window, the last
// event wins.
type Watcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	roots     []string
	log       *zap.Logger
	onChange  func(path string)
	onRemove  func(path string)
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a Watcher from config.
func New(cfg Config) (*Watcher, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("watch: logger is required")
	}
	if len(cfg.Roots) == 0 {
		return nil, fmt.Errorf("watch: at least one root is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:   fsWatcher,
		debouncer: NewDebouncer(cfg.Debounce),
		roots:     cfg.Roots,
		log:       cfg.Logger,
		onChange:  cfg.OnChange,
		onRemove:  cfg.OnRemove,
		stopChan:  make(chan struct{}),
	}

	w.debouncer.SetCallback(w.dispatch)

	return w, nil
}

// Start registers every directory under the roots and begins observing.
func (w *Watcher) Start() error {
	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("failed to watch root %s: %w", root, err)
		}
		w.log.Info("watching root", zap.String("root", root))
	}

	w.wg.Add(1)
	go w.watch()

	return nil
}

// Stop stops observing. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	w.wg.Wait()
	w.debouncer.Stop()
	return w.watcher.Close()
}

// watch is the main event loop
func (w *Watcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-w.stopChan:
			return
		}
	}
}

// handleEvent classifies a single fsnotify event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories must be added to the watch set so files created
	// inside them later are observed too.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Warn("failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !module.Eligible(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.log.Debug("module file removed", zap.String("path", event.Name))
		w.debouncer.Add(event.Name, eventRemove)
	case event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create):
		w.log.Debug("module file changed", zap.String("path", event.Name))
		w.debouncer.Add(event.Name, eventChange)
	}
}

// dispatch fans a flushed batch out to the callbacks
func (w *Watcher) dispatch(batch map[string]eventKind) {
	for path, kind := range batch {
		switch kind {
		case eventChange:
			if w.onChange != nil {
				w.onChange(path)
			}
		case eventRemove:
			if w.onRemove != nil {
				w.onRemove(path)
			}
		}
	}
}

// addRecursive adds dir and every subdirectory to the watch set
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}
