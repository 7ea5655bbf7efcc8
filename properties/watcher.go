package properties

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/GoCodeAlone/modcore/logging"
)

// DefaultDebounce is the quiet period before a batch of file events
// triggers a reload.
const DefaultDebounce = 100 * time.Millisecond

// ErrWatcherStarted is returned when Start is called twice.
var ErrWatcherStarted = errors.New("properties watcher already started")

// ChangeHandler receives the keys whose value changed after a reload.
type ChangeHandler func(changed []string)

// Watcher reloads ApplicationProperties when any loaded file changes on
// disk. Directories are watched rather than files so editors that replace
// files by rename are still seen.
type Watcher struct {
	props    *ApplicationProperties
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   logging.Logger

	mu       sync.Mutex
	handlers []ChangeHandler
	watching bool
	files    map[string]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over every file currently loaded in props.
func NewWatcher(props *ApplicationProperties, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		props:    props,
		fs:       fsw,
		debounce: DefaultDebounce,
		logger:   logging.OrNop(logger),
		files:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce changes the debounce window. Must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	w.debounce = d
	w.mu.Unlock()
}

// OnChange registers a handler called after each reload that changed keys.
func (w *Watcher) OnChange(h ChangeHandler) {
	w.mu.Lock()
	w.handlers = append(w.handlers, h)
	w.mu.Unlock()
}

// Start begins watching and returns immediately. The watcher stops when ctx
// is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return ErrWatcherStarted
	}
	w.watching = true
	w.mu.Unlock()

	dirs := make(map[string]struct{})
	for _, f := range w.props.Files() {
		w.files[f] = struct{}{}
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("properties watcher error", "error", err)
		case <-fire:
			fire = nil
			w.Reload()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// Reload re-reads the files immediately and notifies handlers when keys
// changed.
func (w *Watcher) Reload() {
	changed, err := w.props.Reload()
	if err != nil {
		w.logger.Error("properties reload failed", "error", err)
		return
	}
	if len(changed) == 0 {
		return
	}
	w.logger.Info("properties reloaded", "changed", changed)

	w.mu.Lock()
	handlers := append([]ChangeHandler(nil), w.handlers...)
	w.mu.Unlock()
	for _, h := range handlers {
		h(changed)
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}
