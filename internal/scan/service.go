// Package scan classifies every file below a directory with a pool of
// workers, aggregates the results and optionally registers binary file
// patterns with git-lfs.
package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/findary/internal/classifier"
	"github.com/harrison/findary/internal/filelock"
	"github.com/harrison/findary/internal/fileutil"
	"github.com/harrison/findary/internal/gitutil"
	"github.com/harrison/findary/internal/signature"
	"github.com/harrison/findary/internal/stats"
)

// ErrTrackingUnavailable marks a run where tracking was requested but git
// or git-lfs could not be used.
var ErrTrackingUnavailable = errors.New("git-lfs tracking unavailable")

// lockRetryDelay is how often a contended track lock is retried.
const lockRetryDelay = 100 * time.Millisecond

// Logger receives per-file results and progress messages from a scan.
type Logger interface {
	LogFileResult(rec classifier.Record)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// Options configures a scan run.
type Options struct {
	Dir         string
	Recursive   bool
	IgnoreFiles bool
	Track       bool
	MeasureTime bool
	// Workers <= 0 uses runtime.NumCPU()
	Workers int
	// ChunkSize <= 0 uses classifier.DefaultChunkSize
	ChunkSize   int
	ExcludeDirs []string
	// Table overrides the default signature table
	Table *signature.Table
	// Runner executes git commands when Track is set (default ExecRunner)
	Runner gitutil.CommandRunner
	// LockPath, when set, serialises tracking across processes
	LockPath string
}

// Failure is a file that could not be classified.
type Failure struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// Summary is the outcome of one scan run.
type Summary struct {
	RunID            string              `json:"run_id" yaml:"run_id"`
	Dir              string              `json:"dir" yaml:"dir"`
	StartedAt        time.Time           `json:"started_at" yaml:"started_at"`
	Duration         time.Duration       `json:"duration_ns" yaml:"duration"`
	Totals           stats.Totals        `json:"totals" yaml:"totals"`
	Walk             fileutil.WalkStats  `json:"walk" yaml:"walk"`
	BinaryExtensions []string            `json:"binary_extensions" yaml:"binary_extensions"`
	BinaryFiles      []string            `json:"binary_files" yaml:"binary_files"`
	Failures         []Failure           `json:"failures,omitempty" yaml:"failures,omitempty"`
	Tracked          gitutil.TrackResult `json:"tracked" yaml:"tracked"`
	// TrackErr is set when tracking was requested but skipped
	TrackErr error `json:"-" yaml:"-"`
}

// Patterns returns the git-lfs patterns for the binary files found:
// "*.ext" for each extension followed by each extensionless file.
func (s *Summary) Patterns() []string {
	patterns := make([]string, 0, len(s.BinaryExtensions)+len(s.BinaryFiles))
	for _, ext := range s.BinaryExtensions {
		patterns = append(patterns, "*."+ext)
	}
	return append(patterns, s.BinaryFiles...)
}

// Service runs scans.
type Service struct {
	opts     Options
	log      Logger
	agg      *stats.Aggregator
	classify func(path string) (classifier.Result, error)
	now      func() time.Time
}

// New creates a Service. A nil agg gets a fresh Aggregator.
func New(opts Options, log Logger, agg *stats.Aggregator) *Service {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if agg == nil {
		agg = stats.NewAggregator()
	}

	var copts []classifier.Option
	if opts.Table != nil {
		copts = append(copts, classifier.WithTable(opts.Table))
	}
	if opts.ChunkSize > 0 {
		copts = append(copts, classifier.WithChunkSize(opts.ChunkSize))
	}

	return &Service{
		opts:     opts,
		log:      log,
		agg:      agg,
		classify: classifier.New(copts...).Classify,
		now:      time.Now,
	}
}

// Aggregator returns the aggregator the service records into.
func (s *Service) Aggregator() *stats.Aggregator {
	return s.agg
}

// results collects the per-file lists shared by workers.
type results struct {
	mu         sync.Mutex
	extensions map[string]struct{}
	files      map[string]struct{}
	failures   []Failure
}

func (r *results) addFailure(rel string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, Failure{Path: rel, Error: err.Error()})
}

func (r *results) addBinary(rel string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(rel), "."))

	r.mu.Lock()
	defer r.mu.Unlock()
	if ext == "" {
		if _, ok := r.files[rel]; ok {
			return false
		}
		r.files[rel] = struct{}{}
		return true
	}
	if _, ok := r.extensions[ext]; ok {
		return false
	}
	r.extensions[ext] = struct{}{}
	return true
}

// Run walks the directory, classifies every file and, when requested,
// tracks the binary patterns with git-lfs.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	started := s.now()
	s.log.LogDebug(fmt.Sprintf("Starting scan at %s", started.Format("15:04:05.000000")))

	root, err := filepath.Abs(s.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory %s: %w", s.opts.Dir, err)
	}

	walkOpts := fileutil.ScanOptions{
		Recursive:   s.opts.Recursive,
		ExcludeDirs: append([]string{fileutil.GitDir}, s.opts.ExcludeDirs...),
	}
	if s.opts.IgnoreFiles {
		ignore, err := gitutil.LoadIgnore(root)
		if err != nil {
			return nil, err
		}
		s.logGlobCount(ignore.Len(), gitutil.IgnoreFile)
		walkOpts.Ignore = ignore
	}
	var attrs *gitutil.Matcher
	if s.opts.Track {
		attrs, err = gitutil.LoadAttributes(root)
		if err != nil {
			return nil, err
		}
		s.logGlobCount(attrs.Len(), gitutil.AttributesFile)
	}

	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	paths := make(chan string, s.opts.Workers*4)
	var (
		walkStats *fileutil.WalkStats
		walkErr   error
	)
	go func() {
		defer close(paths)
		walkStats, walkErr = fileutil.Walk(walkCtx, root, walkOpts, func(path string) error {
			select {
			case paths <- path:
				return nil
			case <-walkCtx.Done():
				return walkCtx.Err()
			}
		})
	}()

	res := &results{
		extensions: make(map[string]struct{}),
		files:      make(map[string]struct{}),
	}
	var wg sync.WaitGroup
	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				s.process(root, path, attrs, res)
			}
		}()
	}
	wg.Wait()

	if walkErr != nil {
		return nil, walkErr
	}
	for _, werr := range walkStats.Errors {
		s.log.LogWarn(werr.Error())
	}
	s.agg.AddIgnored(walkStats.Ignored)

	summary := &Summary{
		RunID:            uuid.New().String(),
		Dir:              root,
		StartedAt:        started,
		Walk:             *walkStats,
		BinaryExtensions: sortedKeys(res.extensions),
		BinaryFiles:      sortedKeys(res.files),
		Failures:         res.failures,
	}
	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Path < summary.Failures[j].Path
	})

	for _, ext := range summary.BinaryExtensions {
		s.log.LogInfo(ext)
	}
	for _, f := range summary.BinaryFiles {
		s.log.LogInfo(f)
	}

	if s.opts.Track {
		if err := s.track(ctx, root, summary); err != nil {
			return nil, err
		}
	}

	summary.Totals = s.agg.Snapshot()
	summary.Duration = s.now().Sub(started)
	s.log.LogDebug(fmt.Sprintf("Stopping scan at %s", s.now().Format("15:04:05.000000")))
	if s.opts.MeasureTime {
		s.log.LogInfo(fmt.Sprintf("Time spent scanning: %.3fs", summary.Duration.Seconds()))
	}

	return summary, nil
}

// process classifies one file. Files already routed through LFS are
// counted and not classified.
func (s *Service) process(root, path string, attrs *gitutil.Matcher, res *results) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	if attrs.Match(rel) {
		s.agg.AddLFSFiles(1)
		s.log.LogDebug("Found .gitattributes match for file: " + rel)
		return
	}

	result, err := s.classify(path)
	rec := classifier.Record{Path: rel, Result: result, Err: err}
	s.agg.Record(rec)
	s.log.LogFileResult(rec)

	if rec.Failed() {
		res.addFailure(rel, err)
		return
	}
	if result.Class == classifier.Binary && res.addBinary(rel) {
		s.log.LogDebug("Added binary pattern from file path: " + rel)
	}
}

// track registers the summary's patterns with git-lfs. Missing git or
// git-lfs is reported through summary.TrackErr, not as a run failure.
func (s *Service) track(ctx context.Context, root string, summary *Summary) error {
	patterns := summary.Patterns()
	if len(patterns) == 0 {
		s.log.LogDebug("No binary files to track")
		return nil
	}

	tracker := gitutil.NewTracker(root)
	if s.opts.Runner != nil {
		tracker.Runner = s.opts.Runner
	}

	if err := tracker.Available(ctx); err != nil {
		summary.TrackErr = fmt.Errorf("%w: %v", ErrTrackingUnavailable, err)
		s.log.LogWarn(summary.TrackErr.Error())
		return nil
	}

	if s.opts.LockPath != "" {
		lock := filelock.NewFileLock(s.opts.LockPath)
		if err := lock.LockContext(ctx, lockRetryDelay); err != nil {
			return fmt.Errorf("failed to acquire track lock: %w", err)
		}
		defer lock.Unlock()
	}

	started := s.now()
	if err := tracker.Install(ctx); err != nil {
		return err
	}
	result, err := tracker.Track(ctx, patterns)
	summary.Tracked = result
	s.agg.AddTracked(result.Tracked)
	s.agg.AddAlreadySupported(result.AlreadySupported)
	if err != nil {
		return err
	}

	s.log.LogInfo(fmt.Sprintf("Tracked %d pattern(s) with git-lfs in %d command(s)", result.Tracked, result.Commands))
	if s.opts.MeasureTime {
		s.log.LogInfo(fmt.Sprintf("Time spent tracking: %.3fs", s.now().Sub(started).Seconds()))
	}
	return nil
}

func (s *Service) logGlobCount(count int, filename string) {
	if count > 0 {
		s.log.LogDebug(fmt.Sprintf("Found %d %s globs", count, filename))
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
