package discovery

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// EventOp describes what happened to a module file.
type EventOp int

const (
	// ModuleAdded means a shared object appeared or was rewritten.
	ModuleAdded EventOp = iota
	// ModuleRemoved means a shared object was deleted or renamed away.
	ModuleRemoved
)

func (op EventOp) String() string {
	switch op {
	case ModuleAdded:
		return "added"
	case ModuleRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event reports a change to a module file in a watched directory.
type Event struct {
	Path string
	Op   EventOp
}

// Watcher reports filter modules appearing and disappearing in plugin
// directories at runtime.
type Watcher struct {
	fs     *fsnotify.Watcher
	events chan Event
	log    *logrus.Logger

	quit      chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher watches the given directories for *.so changes. Directories
// must exist at watch time.
func NewWatcher(dirs []string, log *logrus.Logger) (*Watcher, error) {
	if log == nil {
		log = logrus.New()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fs.Add(dir); err != nil {
			_ = fs.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w := &Watcher{
		fs:     fs,
		events: make(chan Event, 16),
		log:    log,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Events returns the module change stream. The channel closes when the
// watcher is closed.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops watching and closes the event channel. It returns even when
// the consumer has stopped draining Events.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		// Unblock run before closing the fsnotify watcher: run may be
		// parked on a full event channel and would otherwise never see
		// fs.Events close.
		close(w.quit)
		err = w.fs.Close()
		<-w.done
	})
	return err
}

// send delivers one event unless the watcher is closing. It reports whether
// run should keep going.
func (w *Watcher) send(ev Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-w.quit:
		return false
	}
}

func (w *Watcher) run() {
	defer close(w.events)
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Ext(ev.Name) != ".so" {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
				w.log.Debugf("Module added: %s", ev.Name)
				if !w.send(Event{Path: ev.Name, Op: ModuleAdded}) {
					return
				}
			case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
				w.log.Debugf("Module removed: %s", ev.Name)
				if !w.send(Event{Path: ev.Name, Op: ModuleRemoved}) {
					return
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warnf("Watcher error: %v", err)
		case <-w.quit:
			return
		}
	}
}
