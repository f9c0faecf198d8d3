package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/findary/internal/classifier"
	"github.com/harrison/findary/internal/stats"
)

// recordingLogger captures everything a scan logs.
type recordingLogger struct {
	mu       sync.Mutex
	records  []classifier.Record
	messages []string
}

func (l *recordingLogger) LogFileResult(rec classifier.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, level+" "+msg)
}

func (l *recordingLogger) LogDebug(msg string) { l.add("DEBUG", msg) }
func (l *recordingLogger) LogInfo(msg string)  { l.add("INFO", msg) }
func (l *recordingLogger) LogWarn(msg string)  { l.add("WARN", msg) }
func (l *recordingLogger) LogError(msg string) { l.add("ERROR", msg) }

func (l *recordingLogger) contains(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

// fakeGit answers version probes and echoes every tracked pattern.
type fakeGit struct {
	mu        sync.Mutex
	noLFS     bool
	trackArgs []string
}

func (f *fakeGit) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := strings.Join(args, " ")
	switch {
	case cmd == "version":
		return "git version 2.43.0\n", nil
	case cmd == "lfs version":
		if f.noLFS {
			return "git: 'lfs' is not a git command", errors.New("exit status 1")
		}
		return "git-lfs/3.4.1\n", nil
	case strings.HasSuffix(cmd, "lfs install"):
		return "Updated Git hooks.\nGit LFS initialized.\n", nil
	case strings.Contains(cmd, "lfs track"):
		var b strings.Builder
		for _, p := range args[4:] {
			f.trackArgs = append(f.trackArgs, p)
			b.WriteString(`Tracking "` + p + "\"\n")
		}
		return b.String(), nil
	}
	return "", errors.New("unexpected command: " + name + " " + cmd)
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// fixture lays out a small repository with every classification.
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "readme.txt", []byte("hello world, this is plain text"))
	writeFile(t, root, "bom.txt", []byte{0xEF, 0xBB, 0xBF, 'h', 'i'})
	writeFile(t, root, "wide.txt", []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00})
	writeFile(t, root, "image.PNG", []byte{0x89, 'P', 'N', 'G', 0x00, 0x01})
	writeFile(t, root, "sub/other.png", []byte{0x00, 0x00, 0x00})
	writeFile(t, root, "sub/blob", []byte("ab\x00c"))
	writeFile(t, root, "sub/deep/notes.md", []byte("# notes"))
	writeFile(t, root, ".git/objects/pack", []byte{0x00})
	return root
}

func TestRunClassifiesTree(t *testing.T) {
	root := fixture(t)
	log := &recordingLogger{}
	agg := stats.NewAggregator()

	summary, err := New(Options{Dir: root, Recursive: true, Workers: 4}, log, agg).Run(context.Background())
	require.NoError(t, err)

	_, err = uuid.Parse(summary.RunID)
	assert.NoError(t, err)
	assert.Equal(t, root, summary.Dir)

	totals := summary.Totals
	assert.Equal(t, uint64(2), totals.PlainText)
	assert.Equal(t, uint64(2), totals.EncodedText)
	assert.Equal(t, uint64(3), totals.Binary)
	assert.Zero(t, totals.Failed)
	assert.Equal(t, []stats.EncodingCount{{Name: "UTF-16LE", Count: 1}, {Name: "UTF-8", Count: 1}}, totals.Encodings)

	assert.Equal(t, []string{"png"}, summary.BinaryExtensions, "extensions are lowercased and deduplicated")
	assert.Equal(t, []string{"sub/blob"}, summary.BinaryFiles)
	assert.Equal(t, []string{"*.png", "sub/blob"}, summary.Patterns())

	assert.Len(t, log.records, 7, ".git contents are never classified")
	assert.Equal(t, 7, summary.Walk.Files)
	assert.Equal(t, totals, agg.Snapshot())
}

func TestRunWorkerCountDoesNotChangeTotals(t *testing.T) {
	root := fixture(t)

	var baseline *Summary
	for _, workers := range []int{1, 2, 8} {
		summary, err := New(Options{Dir: root, Recursive: true, Workers: workers}, &recordingLogger{}, nil).Run(context.Background())
		require.NoError(t, err)
		if baseline == nil {
			baseline = summary
			continue
		}
		assert.Equal(t, baseline.Totals, summary.Totals, "workers=%d", workers)
		assert.Equal(t, baseline.BinaryExtensions, summary.BinaryExtensions)
		assert.Equal(t, baseline.BinaryFiles, summary.BinaryFiles)
	}
}

func TestRunNonRecursive(t *testing.T) {
	root := fixture(t)

	summary, err := New(Options{Dir: root, Recursive: false}, &recordingLogger{}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), summary.Totals.Binary)
	assert.Empty(t, summary.BinaryFiles)
	assert.Equal(t, []string{"png"}, summary.BinaryExtensions)
}

func TestRunIgnoreFiles(t *testing.T) {
	root := fixture(t)
	writeFile(t, root, ".gitignore", []byte("*.png\nsub/deep/\n"))

	summary, err := New(Options{Dir: root, Recursive: true, IgnoreFiles: true}, &recordingLogger{}, nil).Run(context.Background())
	require.NoError(t, err)

	// Matching is case sensitive, so image.PNG is still classified.
	assert.Equal(t, []string{"png"}, summary.BinaryExtensions)
	assert.Equal(t, []string{"sub/blob"}, summary.BinaryFiles)
	assert.Equal(t, uint64(2), summary.Totals.Ignored, "sub/other.png and the sub/deep directory")
	assert.Equal(t, uint64(2), summary.Totals.Binary)
	// .gitignore itself is plain text
	assert.Equal(t, uint64(2), summary.Totals.PlainText)
}

func TestRunWithoutIgnoreFilesClassifiesEverything(t *testing.T) {
	root := fixture(t)
	writeFile(t, root, ".gitignore", []byte("*.png\n"))

	summary, err := New(Options{Dir: root, Recursive: true}, &recordingLogger{}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Totals.Ignored)
	assert.Equal(t, []string{"png"}, summary.BinaryExtensions)
}

func TestRunTrack(t *testing.T) {
	root := fixture(t)
	writeFile(t, root, ".gitattributes", []byte("sub/*.png filter=lfs diff=lfs merge=lfs -text\n"))
	git := &fakeGit{}
	log := &recordingLogger{}

	summary, err := New(Options{
		Dir:         root,
		Recursive:   true,
		Track:       true,
		MeasureTime: true,
		Runner:      git,
		LockPath:    filepath.Join(t.TempDir(), "track.lock"),
	}, log, nil).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, summary.TrackErr)

	assert.Equal(t, []string{"*.png", "sub/blob"}, git.trackArgs)
	assert.Equal(t, 2, summary.Tracked.Tracked)
	assert.Equal(t, 1, summary.Tracked.Commands)
	assert.Equal(t, uint64(2), summary.Totals.Tracked)
	assert.Equal(t, uint64(1), summary.Totals.LFSFiles, "sub/other.png is already routed through lfs")
	assert.Zero(t, summary.Totals.AlreadySupported, "git-lfs reported no pattern as already supported")
	assert.Equal(t, uint64(2), summary.Totals.Binary)
	assert.True(t, log.contains("INFO Time spent tracking"))
	assert.True(t, log.contains("INFO Time spent scanning"))
}

func TestRunTrackUnavailable(t *testing.T) {
	root := fixture(t)
	log := &recordingLogger{}

	summary, err := New(Options{Dir: root, Recursive: true, Track: true, Runner: &fakeGit{noLFS: true}}, log, nil).Run(context.Background())
	require.NoError(t, err)

	require.Error(t, summary.TrackErr)
	assert.True(t, errors.Is(summary.TrackErr, ErrTrackingUnavailable))
	assert.Zero(t, summary.Tracked.Tracked)
	assert.True(t, log.contains("WARN git-lfs tracking unavailable"))
}

func TestRunTrackNothingToTrack(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("text"))
	git := &fakeGit{}

	summary, err := New(Options{Dir: root, Track: true, Runner: git}, &recordingLogger{}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, git.trackArgs)
	assert.Zero(t, summary.Tracked.Commands)
}

func TestRunRecordsFailures(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Skipping permission test when running as root")
	}
	root := t.TempDir()
	writeFile(t, root, "ok.txt", []byte("fine"))
	writeFile(t, root, "secret.bin", []byte{0x00})
	secret := filepath.Join(root, "secret.bin")
	require.NoError(t, os.Chmod(secret, 0000))
	defer os.Chmod(secret, 0644)

	log := &recordingLogger{}
	summary, err := New(Options{Dir: root}, log, nil).Run(context.Background())
	require.NoError(t, err, "an unreadable file does not abort the run")

	assert.Equal(t, uint64(1), summary.Totals.Failed)
	assert.Equal(t, uint64(1), summary.Totals.PlainText)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "secret.bin", summary.Failures[0].Path)
	assert.Empty(t, summary.BinaryExtensions)
}

func TestRunContinuesAfterReadErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("fine"))
	writeFile(t, root, "b.bin", []byte{0x00})
	writeFile(t, root, "c.txt", []byte("fine"))
	writeFile(t, root, "sub/d.bin", []byte{0x00})

	log := &recordingLogger{}
	svc := New(Options{Dir: root, Recursive: true, Workers: 2}, log, nil)
	classify := svc.classify
	svc.classify = func(path string) (classifier.Result, error) {
		if strings.HasSuffix(path, ".txt") {
			return classifier.Result{}, &classifier.IOError{Path: path, Op: "open", Err: os.ErrPermission}
		}
		return classify(path)
	}

	summary, err := svc.Run(context.Background())
	require.NoError(t, err, "read errors do not abort the run")

	assert.Equal(t, uint64(2), summary.Totals.Failed)
	assert.Equal(t, uint64(2), summary.Totals.Binary)
	assert.Zero(t, summary.Totals.PlainText)
	assert.Equal(t, uint64(2), summary.Totals.Total(), "failed files are not classified")
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, "a.txt", summary.Failures[0].Path)
	assert.Equal(t, "c.txt", summary.Failures[1].Path)
	assert.Contains(t, summary.Failures[0].Error, "permission denied")
	assert.Equal(t, []string{"bin"}, summary.BinaryExtensions)
	assert.Len(t, log.records, 4, "every file, failed or not, is logged")
}

func TestRunMissingDirectory(t *testing.T) {
	_, err := New(Options{Dir: filepath.Join(t.TempDir(), "missing")}, &recordingLogger{}, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	root := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Dir: root, Recursive: true}, &recordingLogger{}, nil).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDefaults(t *testing.T) {
	svc := New(Options{Dir: "."}, &recordingLogger{}, nil)

	assert.Positive(t, svc.opts.Workers)
	assert.NotNil(t, svc.Aggregator())
	assert.Equal(t, classifier.DefaultChunkSize, svc.classifier.ChunkSize())

	svc = New(Options{Dir: ".", ChunkSize: 16}, &recordingLogger{}, nil)
	assert.Equal(t, 16, svc.classifier.ChunkSize())
}
