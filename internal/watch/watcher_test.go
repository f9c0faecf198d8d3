package watch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const eventTimeout = 3 * time.Second

// prefixIgnorer ignores any relative path starting with one of its prefixes.
type prefixIgnorer []string

func (p prefixIgnorer) Ignored(rel string, isDir bool) bool {
	for _, prefix := range p {
		if strings.HasPrefix(rel, prefix) {
			return true
		}
	}
	return false
}

func newTestWatcher(t *testing.T, dir string, opts Options) *Watcher {
	t.Helper()
	if opts.DebounceDelay == 0 {
		opts.DebounceDelay = 20 * time.Millisecond
	}
	w, err := New(dir, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

// waitFor returns the first event for rel, failing the test on timeout.
func waitFor(t *testing.T, w *Watcher, rel string) Event {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev := <-w.Events():
			if ev.Rel == rel {
				return ev
			}
		case err := <-w.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-deadline:
			t.Fatalf("timed out waiting for event on %s", rel)
		}
	}
}

// expectNone fails if any event for rel arrives within d.
func expectNone(t *testing.T, w *Watcher, rel string, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case ev := <-w.Events():
			if ev.Rel == rel {
				t.Fatalf("unexpected %s event for %s", ev.Op, rel)
			}
		case <-deadline:
			return
		}
	}
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op       Op
		expected string
	}{
		{Created, "created"},
		{Written, "written"},
		{Removed, "removed"},
		{Op(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.op.String(); got != tt.expected {
				t.Errorf("Op.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, Options{})

	if w.Root() != dir {
		t.Errorf("Root() = %v, want %v", w.Root(), dir)
	}
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(filepath.Join(dir, "missing"), Options{}); err == nil {
		t.Error("expected error for missing directory")
	}
	if _, err := New(file, Options{}); err == nil {
		t.Error("expected error for a regular file")
	}
}

func TestWatcher_FileCreated(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, Options{})

	if err := os.WriteFile(filepath.Join(dir, "new.bin"), []byte{0, 1, 2}, 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitFor(t, w, "new.bin")
	if ev.Op != Created {
		t.Errorf("Op = %v, want created", ev.Op)
	}
	if ev.Path != filepath.Join(dir, "new.bin") {
		t.Errorf("Path = %v", ev.Path)
	}
	if ev.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestWatcher_FileWritten(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing.txt")
	if err := os.WriteFile(path, []byte("before"), 0644); err != nil {
		t.Fatal(err)
	}
	w := newTestWatcher(t, dir, Options{})

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(" after"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	ev := waitFor(t, w, "existing.txt")
	if ev.Op != Written {
		t.Errorf("Op = %v, want written", ev.Op)
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	w := newTestWatcher(t, dir, Options{})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	ev := waitFor(t, w, "gone.txt")
	if ev.Op != Removed {
		t.Errorf("Op = %v, want removed", ev.Op)
	}
}

func TestWatcher_Debounce(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, Options{DebounceDelay: 200 * time.Millisecond})

	path := filepath.Join(dir, "busy.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.WriteString("line\n"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.Close()

	ev := waitFor(t, w, "busy.txt")
	if ev.Op != Created {
		t.Errorf("Op = %v, want created to survive later writes", ev.Op)
	}
	expectNone(t, w, "busy.txt", 400*time.Millisecond)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, Options{})

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher time to register the new directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	ev := waitFor(t, w, "sub/inner.txt")
	if ev.Op != Created {
		t.Errorf("Op = %v, want created", ev.Op)
	}
}

func TestWatcher_ExcludedAndIgnored(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{".git", ".findary", "build"} {
		if err := os.Mkdir(filepath.Join(dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	w := newTestWatcher(t, dir, Options{
		ExcludeDirs: []string{".findary"},
		Ignore:      prefixIgnorer{"build", "skip.log"},
	})

	files := []string{".git/HEAD", ".findary/track.lock", "build/out.o", "skip.log", "keep.txt"}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	// keep.txt is written last, so every earlier event has been delivered
	// by the time it arrives.
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev := <-w.Events():
			if ev.Rel == "keep.txt" {
				return
			}
			t.Fatalf("unexpected event for %s", ev.Rel)
		case <-deadline:
			t.Fatal("timed out waiting for keep.txt")
		}
	}
}

func TestWatcher_Close(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, Options{DebounceDelay: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "late.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	select {
	case ev := <-w.Events():
		t.Errorf("unexpected event after Close: %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}
