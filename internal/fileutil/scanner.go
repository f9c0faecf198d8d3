package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// GitDir is the VCS metadata directory that is never descended into.
const GitDir = ".git"

// Ignorer decides whether a path relative to the walk root is excluded.
// rel always uses forward slashes.
type Ignorer interface {
	Ignored(rel string, isDir bool) bool
}

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Pattern is a regex pattern to match filenames (without extension)
	Pattern string
	// Extensions is a list of file extensions to include (e.g., ".bin", "png")
	Extensions []string
	// Recursive enables recursive directory scanning
	Recursive bool
	// ExcludeDirs is a list of directory names to exclude in addition to .git
	ExcludeDirs []string
	// SkipHidden skips directories whose name starts with "."
	SkipHidden bool
	// MaxDepth limits recursion depth (0 = unlimited, 1 = current dir only)
	MaxDepth int
	// Ignore, when set, filters files and directories by relative path
	Ignore Ignorer
}

// WalkStats summarises a walk.
type WalkStats struct {
	Directories       int     `json:"directories" yaml:"directories"`
	DeniedDirectories int     `json:"denied_directories" yaml:"denied_directories"`
	Files             int     `json:"files" yaml:"files"`
	Ignored           int     `json:"ignored" yaml:"ignored"`
	Errors            []error `json:"-" yaml:"-"`
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files contains the absolute paths of all matched files
	Files []string
	// Stats holds counters and non-fatal errors from the walk
	Stats *WalkStats
}

// WalkFunc receives the absolute path of each regular file. Returning an
// error stops the walk and is returned from Walk.
type WalkFunc func(path string) error

type filter struct {
	pattern  *regexp.Regexp
	ext      map[string]bool
	excluded map[string]bool
}

func newFilter(opts ScanOptions) (*filter, error) {
	f := &filter{
		ext:      make(map[string]bool),
		excluded: map[string]bool{GitDir: true},
	}
	if opts.Pattern != "" {
		re, err := regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		f.pattern = re
	}
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.ext[strings.ToLower(ext)] = true
	}
	for _, dir := range opts.ExcludeDirs {
		f.excluded[dir] = true
	}
	return f, nil
}

func (f *filter) keepFile(name string) bool {
	ext := filepath.Ext(name)
	if len(f.ext) > 0 && !f.ext[strings.ToLower(ext)] {
		return false
	}
	if f.pattern != nil && !f.pattern.MatchString(strings.TrimSuffix(name, ext)) {
		return false
	}
	return true
}

// Walk visits every regular file below dir that passes opts, calling fn for
// each one as it is found.
func Walk(ctx context.Context, dir string, opts ScanOptions, fn WalkFunc) (*WalkStats, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory %s: %w", dir, err)
	}

	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}

	stats := &WalkStats{Errors: make([]error, 0)}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			if errors.Is(err, fs.ErrPermission) {
				stats.DeniedDirectories++
			}
			stats.Errors = append(stats.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			// WalkDir reports unreadable directories with d set; skip them.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			stats.Directories++
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			stats.Errors = append(stats.Errors, fmt.Errorf("failed to resolve path %s: %w", path, relErr))
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			name := d.Name()
			if f.excluded[name] || (opts.SkipHidden && strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				depth := strings.Count(rel, "/") + 1
				if depth >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			if opts.Ignore != nil && opts.Ignore.Ignored(rel, true) {
				stats.Ignored++
				return filepath.SkipDir
			}
			stats.Directories++
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		// Submodules and linked worktrees keep a .git file pointing at the
		// real repository.
		if d.Name() == GitDir {
			return nil
		}
		if !f.keepFile(d.Name()) {
			return nil
		}
		if opts.Ignore != nil && opts.Ignore.Ignored(rel, false) {
			stats.Ignored++
			return nil
		}

		stats.Files++
		return fn(path)
	})
	if err != nil {
		return stats, fmt.Errorf("failed to walk directory: %w", err)
	}

	return stats, nil
}

// ScanDirectory scans a directory for files matching the provided options
// and returns their absolute paths sorted.
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{Files: make([]string, 0)}

	stats, err := Walk(context.Background(), dir, opts, func(path string) error {
		result.Files = append(result.Files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Stats = stats

	sort.Strings(result.Files)

	return result, nil
}
