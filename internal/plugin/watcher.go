package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher calls onChange, debounced, whenever a plugin directory changes.
type Watcher struct {
	watcher       *fsnotify.Watcher
	onChange      func()
	logger        zerolog.Logger
	debounceDelay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches dir. Call Start to begin delivering events.
func NewWatcher(dir string, onChange func(), logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		watcher:       fw,
		onChange:      onChange,
		logger:        logger,
		debounceDelay: 100 * time.Millisecond,
	}, nil
}

// Start processes events until ctx is done or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				w.stopTimer()
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("plugin directory changed")
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.stopTimer()
				return nil
			}
			w.logger.Warn().Err(err).Msg("plugin watcher error")
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDelay, w.onChange)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
