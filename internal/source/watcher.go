package source

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher signals when a single file may have grown. It watches the file's
// directory, so the file may be created, replaced or rotated under it, and
// falls back to a poll ticker for filesystems without change notification.
// Signals are coalesced: a reader that is busy misses nothing, it simply
// sees one pending signal.
type Watcher struct {
	path    string
	fs      *fsnotify.Watcher
	poll    time.Duration
	log     *slog.Logger
	changes chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWatcher starts watching path. poll <= 0 disables the poll fallback.
func NewWatcher(path string, poll time.Duration, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		if poll <= 0 {
			_ = fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
		}
		log.Warn("file watch unavailable, polling", "path", abs, "err", err)
	}

	w := &Watcher{
		path:    abs,
		fs:      fsw,
		poll:    poll,
		log:     log,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Changes returns the channel that receives a signal after the file changes.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops watching and releases the underlying file watch.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop() {
	var tick <-chan time.Time
	if w.poll > 0 {
		ticker := time.NewTicker(w.poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.log.Debug("file changed", "path", w.path, "op", ev.Op.String())
			w.notify()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watch error", "path", w.path, "err", err)
		case <-tick:
			w.notify()
		}
	}
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
