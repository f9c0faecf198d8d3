package gitutil

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// MaxCommandChars bounds the length of one generated git-lfs command line
// (2^15-1, the Windows CreateProcess limit).
const MaxCommandChars = 32767

// CommandRunner runs an external command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner executes commands using os/exec.
type ExecRunner struct{}

// Run executes a command and returns its output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// TrackResult summarises git lfs track invocations.
type TrackResult struct {
	Tracked          int `json:"tracked" yaml:"tracked"`
	AlreadySupported int `json:"already_supported" yaml:"already_supported"`
	Commands         int `json:"commands" yaml:"commands"`
}

// Tracker registers patterns with git-lfs in a repository.
type Tracker struct {
	// Dir is the repository root passed to git -C
	Dir string
	// Git is the git executable (default "git")
	Git string
	// Runner executes commands (default ExecRunner)
	Runner CommandRunner
}

// NewTracker creates a Tracker for the repository at dir.
func NewTracker(dir string) *Tracker {
	return &Tracker{Dir: dir, Git: "git", Runner: ExecRunner{}}
}

func (t *Tracker) run(ctx context.Context, args ...string) (string, error) {
	runner := t.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	return runner.Run(ctx, t.git(), args...)
}

// Available reports whether both git and git-lfs are installed.
func (t *Tracker) Available(ctx context.Context) error {
	out, err := t.run(ctx, "version")
	if err != nil || !strings.HasPrefix(strings.TrimSpace(out), "git version") {
		return fmt.Errorf("git is not available: %v", errOrOutput(err, out))
	}
	out, err = t.run(ctx, "lfs", "version")
	if err != nil || !strings.HasPrefix(strings.TrimSpace(out), "git-lfs/") {
		return fmt.Errorf("git-lfs is not available: %v", errOrOutput(err, out))
	}
	return nil
}

// Install runs git lfs install inside the repository.
func (t *Tracker) Install(ctx context.Context) error {
	out, err := t.run(ctx, "-C", t.Dir, "lfs", "install")
	if err != nil {
		return fmt.Errorf("lfs could not be initialized: %w", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "Git LFS initialized.") {
		return fmt.Errorf("lfs could not be initialized: %s", strings.TrimSpace(out))
	}
	return nil
}

// Track runs git lfs track for patterns, split into as many commands as
// needed to stay under MaxCommandChars.
func (t *Tracker) Track(ctx context.Context, patterns []string) (TrackResult, error) {
	var result TrackResult
	for _, batch := range t.Batches(patterns) {
		args := append([]string{"-C", t.Dir, "lfs", "track"}, batch...)
		out, err := t.run(ctx, args...)
		result.Commands++
		if err != nil {
			return result, fmt.Errorf("git lfs track failed: %w", err)
		}

		tracked := strings.Count(out, `Tracking "`)
		supported := strings.Count(out, "already supported")
		if tracked == 0 && supported == 0 {
			return result, fmt.Errorf("could not track files, git-lfs output: %s", strings.TrimSpace(out))
		}
		result.Tracked += tracked
		result.AlreadySupported += supported
	}
	return result, nil
}

// Batches splits patterns so that each resulting git command line is
// shorter than MaxCommandChars. Every argument costs its length plus a
// separating space and a pair of quotes.
func (t *Tracker) Batches(patterns []string) [][]string {
	prefix := len(t.git()) + len(" -C ") + len(t.Dir) + len(" lfs track")

	var batches [][]string
	var current []string
	length := prefix
	for _, p := range patterns {
		cost := len(p) + 3
		if len(current) > 0 && length+cost >= MaxCommandChars {
			batches = append(batches, current)
			current = nil
			length = prefix
		}
		current = append(current, p)
		length += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func (t *Tracker) git() string {
	if t.Git == "" {
		return "git"
	}
	return t.Git
}

func errOrOutput(err error, out string) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("unexpected output %q", strings.TrimSpace(out))
}
