package plugin

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wippyai/calc/errors"
)

// DefaultDebounce is how long Watcher waits for a burst of file events to
// settle before reporting a change.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to plugin files in one directory.
type Watcher struct {
	watcher  *fsnotify.Watcher
	changes  chan struct{}
	errs     chan error
	done     chan struct{}
	debounce time.Duration
	once     sync.Once
}

// Watch starts watching dir. A non-positive debounce uses DefaultDebounce.
func Watch(dir string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Load("create watcher", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, errors.Load("watch "+dir, err)
	}

	w := &Watcher{
		watcher:  fw,
		changes:  make(chan struct{}, 1),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
		debounce: debounce,
	}
	go w.loop()
	return w, nil
}

// Changes receives one value per settled burst of plugin file events.
// It is closed when the watcher stops.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Errors receives watcher failures. Errors are dropped while one is unread.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.changes)
	defer close(w.errs)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod || !IsPluginFile(ev.Name) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}
