package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/findary/internal/config"
	"github.com/harrison/findary/internal/display"
	"github.com/harrison/findary/internal/history"
	"github.com/harrison/findary/internal/logger"
	"github.com/harrison/findary/internal/report"
	"github.com/harrison/findary/internal/scan"
	"github.com/harrison/findary/internal/stats"
)

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "Classify every file below a directory",
		Long: `Scan walks a directory, classifies each file as text, encoded text or
binary, and lists the binary file extensions and extensionless binary files
it finds.

Configuration is loaded from .findary/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  findary scan                      # Scan the current directory
  findary scan ./repo -i -s         # Honour .gitignore and print statistics
  findary scan ./repo -t            # Track binary files with Git LFS
  findary scan --no-recursive .     # Only the top-level directory
  findary scan --format json --report out/summary.json .`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScan,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .findary/config.yaml)")
	cmd.Flags().BoolP("ignore-files", "i", false, "Skip files matched by .gitignore in the scan root")
	cmd.Flags().BoolP("measure", "m", false, "Print time spent scanning and tracking")
	cmd.Flags().BoolP("recursive", "r", false, "Descend into subdirectories (default from config: true)")
	cmd.Flags().Bool("no-recursive", false, "Only scan the top-level directory")
	cmd.Flags().BoolP("stats", "s", false, "Print scan statistics")
	cmd.Flags().BoolP("track", "t", false, "Track binary files with Git LFS")
	cmd.Flags().BoolP("verbose", "v", false, "Log every classified file")
	cmd.Flags().IntP("workers", "w", 0, "Number of concurrent classifiers (0 = one per CPU)")
	cmd.Flags().String("log-dir", "", "Directory for run log files")
	cmd.Flags().String("report", "", "Write the report to this file instead of stdout")
	cmd.Flags().String("format", "", "Report format (text|yaml|json|markdown|html)")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")

	return cmd
}

// loadConfig reads --config or .findary/config.yaml.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// scanFlags collects the flags the user actually set.
func scanFlags(cmd *cobra.Command, args []string) (config.Flags, error) {
	var f config.Flags
	flags := cmd.Flags()

	if flags.Changed("recursive") && flags.Changed("no-recursive") {
		return f, fmt.Errorf("cannot use both --recursive and --no-recursive")
	}

	if len(args) == 1 {
		f.Directory = &args[0]
	}
	boolFlag := func(name string) *bool {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetBool(name)
		return &v
	}
	stringFlag := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}

	f.IgnoreFiles = boolFlag("ignore-files")
	f.MeasureTime = boolFlag("measure")
	f.Stats = boolFlag("stats")
	f.Track = boolFlag("track")
	f.NoHistory = boolFlag("no-history")
	f.Recursive = boolFlag("recursive")
	if noRec := boolFlag("no-recursive"); noRec != nil {
		rec := !*noRec
		f.Recursive = &rec
	}
	if v := boolFlag("verbose"); v != nil && *v {
		level := "debug"
		f.LogLevel = &level
	}
	if flags.Changed("workers") {
		w, _ := flags.GetInt("workers")
		f.Workers = &w
	}
	f.LogDir = stringFlag("log-dir")
	f.ReportPath = stringFlag("report")
	f.Format = stringFlag("format")

	return f, nil
}

func runScan(cmd *cobra.Command, args []string) error {
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

	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	var log logger.Logger = console
	if cfg.LogDir != "" {
		fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLog.Close()
		log = logger.NewMultiLogger(console, fileLog)
	}

	svc := scan.New(scan.Options{
		Dir:         root,
		Recursive:   cfg.Recursive,
		IgnoreFiles: cfg.IgnoreFiles,
		Track:       cfg.Track,
		MeasureTime: cfg.MeasureTime,
		Workers:     cfg.Workers,
		ChunkSize:   cfg.ChunkSize,
		ExcludeDirs: append([]string{config.ConfigDir}, cfg.ExcludeDirs...),
		LockPath:    config.GetTrackLockPath(root),
	}, log, stats.NewAggregator())

	summary, err := svc.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if summary.TrackErr != nil {
		display.WarnTrackingUnavailable(summary.TrackErr).Display(cmd.ErrOrStderr())
	}
	if len(summary.Failures) > 0 {
		paths := make([]string, 0, len(summary.Failures))
		for _, f := range summary.Failures {
			paths = append(paths, f.Path)
		}
		display.WarnUnreadableFiles(paths).Display(cmd.ErrOrStderr())
	}

	if cfg.History.Enabled {
		if err := recordHistory(cmd.Context(), cfg, summary); err != nil {
			log.LogWarn(fmt.Sprintf("failed to record run history: %v", err))
		}
	}

	if cfg.Report.Path != "" {
		if err := report.WriteFile(cfg.Report.Path, summary, cfg.Report.Format); err != nil {
			return err
		}
		log.LogInfo("Report written to " + cfg.Report.Path)
		return nil
	}
	if cfg.Stats || cmd.Flags().Changed("format") {
		return report.Render(cmd.OutOrStdout(), summary, cfg.Report.Format)
	}
	return nil
}

func recordHistory(ctx context.Context, cfg *config.Config, summary *scan.Summary) error {
	dbPath, err := config.GetHistoryDBPath(cfg)
	if err != nil {
		return err
	}
	store, err := history.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.RecordRun(ctx, &history.Run{
		ID:        summary.RunID,
		Directory: summary.Dir,
		StartedAt: summary.StartedAt,
		Duration:  summary.Duration,
		Walked:    summary.Walk.Files,
		Totals:    summary.Totals,
	}); err != nil {
		return err
	}
	_, err = store.Prune(ctx, cfg.History.KeepRuns)
	return err
}
