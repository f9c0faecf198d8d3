// Package watch reports files that are created, modified or removed below
// a directory so they can be classified as they change.
package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harrison/findary/internal/fileutil"
)

// Op is the kind of change observed
type Op int

const (
	// Created indicates a new file
	Created Op = iota
	// Written indicates an existing file was modified
	Written
	// Removed indicates a file was deleted or moved away
	Removed
)

// String returns a human-readable representation of the operation
func (op Op) String() string {
	switch op {
	case Created:
		return "created"
	case Written:
		return "written"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a settled change to one file
type Event struct {
	Path      string    // Absolute path to the file
	Rel       string    // Slash-separated path relative to the root
	Op        Op        // Type of operation
	Timestamp time.Time // When the change settled
}

// DefaultDebounceDelay is the default quiet period before a created or
// written file is reported.
const DefaultDebounceDelay = 100 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// ExcludeDirs are directory names never watched, in addition to .git
	ExcludeDirs []string
	// Ignore skips paths matched by ignore rules
	Ignore fileutil.Ignorer
	// DebounceDelay <= 0 uses DefaultDebounceDelay
	DebounceDelay time.Duration
}

// Watcher watches a directory tree with fsnotify
type Watcher struct {
	watcher  *fsnotify.Watcher
	events   chan Event
	errors   chan error
	done     chan struct{}
	rootDir  string
	excluded map[string]bool
	ignore   fileutil.Ignorer

	mu            sync.Mutex
	debounceDelay time.Duration
	pending       map[string]*pendingEvent
	closed        bool
}

type pendingEvent struct {
	timer *time.Timer
	op    Op
}

// New starts watching rootDir and every directory below it.
func New(rootDir string, opts Options) (*Watcher, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("not a directory: " + root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	delay := opts.DebounceDelay
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	excluded := map[string]bool{fileutil.GitDir: true}
	for _, d := range opts.ExcludeDirs {
		excluded[d] = true
	}

	w := &Watcher{
		watcher:       watcher,
		events:        make(chan Event, 100),
		errors:        make(chan error, 10),
		done:          make(chan struct{}),
		rootDir:       root,
		excluded:      excluded,
		ignore:        opts.Ignore,
		debounceDelay: delay,
		pending:       make(map[string]*pendingEvent),
	}

	if err := w.addRecursive(root); err != nil {
		watcher.Close()
		return nil, err
	}

	go w.processEvents()

	return w, nil
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.rootDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) skipDir(path string) bool {
	if path == w.rootDir {
		return false
	}
	if w.excluded[filepath.Base(path)] {
		return true
	}
	return w.ignore != nil && w.ignore.Ignored(w.rel(path), true)
}

// addRecursive adds dir and its subdirectories to the watcher
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return filepath.SkipDir
			}
			return err
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.skipDir(path) {
				if err := w.addRecursive(path); err != nil {
					w.sendError(err)
				}
			}
			return
		}
	}

	if filepath.Base(path) == fileutil.GitDir {
		return
	}

	rel := w.rel(path)
	if w.ignore != nil && w.ignore.Ignored(rel, false) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		w.debounce(path, Created)
	case event.Has(fsnotify.Write):
		w.debounce(path, Written)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancelPending(path)
		w.send(path, Removed)
	}
}

// debounce coalesces rapid changes to the same file. A pending Created is
// not downgraded to Written.
func (w *Watcher) debounce(path string, op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if p, exists := w.pending[path]; exists {
		p.timer.Stop()
		if p.op < op {
			op = p.op
		}
	}

	p := &pendingEvent{op: op}
	p.timer = time.AfterFunc(w.debounceDelay, func() {
		w.mu.Lock()
		if w.pending[path] != p {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.mu.Unlock()

		w.send(path, p.op)
	})
	w.pending[path] = p
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, exists := w.pending[path]; exists {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

// send delivers an event without blocking; events are dropped when the
// consumer falls behind.
func (w *Watcher) send(path string, op Op) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	ev := Event{Path: path, Rel: w.rel(path), Op: op, Timestamp: time.Now()}
	select {
	case w.events <- ev:
	case <-w.done:
	default:
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	case <-w.done:
	default:
	}
}

// Events returns the channel of settled file events
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Root returns the absolute directory being watched
func (w *Watcher) Root() string {
	return w.rootDir
}

// Close stops the watcher and cancels pending events. It is safe to call
// more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.done)
	return w.watcher.Close()
}
