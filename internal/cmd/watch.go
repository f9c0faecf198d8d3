package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/findary/internal/classifier"
	"github.com/harrison/findary/internal/config"
	"github.com/harrison/findary/internal/gitutil"
	"github.com/harrison/findary/internal/logger"
	"github.com/harrison/findary/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Classify files as they change",
		Long: `Watch monitors a directory tree and classifies every file that is
created or modified, printing one line per change until interrupted.

The .git and .findary directories are never watched. With --ignore-files,
paths matched by .gitignore in the watched root are skipped.

Examples:
  findary watch                 # Watch the current directory
  findary watch ./repo -i       # Honour .gitignore
  findary watch --debounce 500ms ./assets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .findary/config.yaml)")
	cmd.Flags().BoolP("ignore-files", "i", false, "Skip files matched by .gitignore in the watched root")
	cmd.Flags().Duration("debounce", watch.DefaultDebounceDelay, "Quiet period before a changed file is classified")
	cmd.Flags().BoolP("verbose", "v", false, "Log every classified file")
	cmd.Flags().String("log-dir", "", "Directory for run log files")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags, err := scanFlags(cmd, args)
	if err != nil {
		return err
	}
	cfg.MergeWithFlags(flags)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	root, err := filepath.Abs(cfg.Directory)
	if err != nil {
		return fmt.Errorf("failed to resolve directory %s: %w", cfg.Directory, err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("directory not found: %s", cfg.Directory)
	}

	var log logger.Logger = logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if cfg.LogDir != "" {
		fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLog.Close()
		log = logger.NewMultiLogger(log, fileLog)
	}

	opts := watch.Options{
		ExcludeDirs: append([]string{config.ConfigDir}, cfg.ExcludeDirs...),
	}
	opts.DebounceDelay, _ = cmd.Flags().GetDuration("debounce")
	if cfg.IgnoreFiles {
		ignore, err := gitutil.LoadIgnore(root)
		if err != nil {
			return fmt.Errorf("failed to load ignore rules: %w", err)
		}
		opts.Ignore = ignore
	}

	w, err := watch.New(root, opts)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	defer w.Close()

	log.LogInfo("Watching " + root)
	c := classifier.New(classifier.WithChunkSize(cfg.ChunkSize))
	started := time.Now()
	n := watchLoop(cmd.Context(), cmd.OutOrStdout(), w, c, log)
	log.LogInfo(fmt.Sprintf("Classified %d change(s) in %s", n, logger.FormatDuration(time.Since(started))))
	return nil
}

// watchLoop classifies changes from w until ctx is done and returns the
// number of files classified.
func watchLoop(ctx context.Context, out io.Writer, w *watch.Watcher, c *classifier.Classifier, log logger.Logger) int {
	classified := 0
	for {
		select {
		case <-ctx.Done():
			return classified
		case err := <-w.Errors():
			log.LogWarn(fmt.Sprintf("watch error: %v", err))
		case ev := <-w.Events():
			if ev.Op == watch.Removed {
				fmt.Fprintf(out, "%s %s\n", ev.Op, ev.Rel)
				continue
			}
			res, err := c.Classify(ev.Path)
			log.LogFileResult(classifier.Record{Path: ev.Rel, Result: res, Err: err})
			line := classifyOutput{Path: ev.Rel, Class: res.Class, Encoding: res.Encoding}
			if err != nil {
				line.Error = err.Error()
			}
			fmt.Fprintf(out, "%s %s\n", ev.Op, line)
			classified++
		}
	}
}
