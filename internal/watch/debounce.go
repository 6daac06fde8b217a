package watch

import (
	"sync"
	"time"
)

// eventKind classifies a debounced filesystem event.
type eventKind int

const (
	eventChange eventKind = iota
	eventRemove
)

// Debouncer collects per-path events and triggers its callback after a
// quiet period. A later event for the same path replaces the earlier
// one, so a change followed by a remove inside one window flushes as a
// remove.
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	pending  map[string]eventKind
	mutex    sync.Mutex
	callback func(map[string]eventKind)
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		pending:  make(map[string]eventKind),
		stopChan: make(chan struct{}),
	}
}

// SetCallback sets the callback function
func (d *Debouncer) SetCallback(callback func(map[string]eventKind)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Add records an event for a path and restarts the quiet period
func (d *Debouncer) Add(path string, kind eventKind) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending[path] = kind

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush triggers the callback with the accumulated batch
func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	batch := d.pending
	d.pending = make(map[string]eventKind)

	if d.callback != nil {
		d.callback(batch)
	}
}

// Stop stops the debouncer
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
}
