package cmd

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/findary/internal/config"
	"github.com/harrison/findary/internal/history"
	"github.com/harrison/findary/internal/logger"
)

// NewHistoryCommand creates the 'findary history' parent command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded scan runs",
		Long: `Commands for viewing and pruning the scan history database.

Every scan records its totals in $FINDARY_HOME/history.db unless
--no-history is given or history is disabled in the config file.`,
	}

	cmd.PersistentFlags().String("db-path", "", "Path to history database (default: $FINDARY_HOME/history.db)")

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

// openHistory opens the database named by --db-path or the default location.
// It returns nil without error when the database does not exist yet.
func openHistory(cmd *cobra.Command) (*history.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db-path")
	if dbPath == "" {
		var err error
		dbPath, err = config.GetHistoryDBPath(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get history database path: %w", err)
		}
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil
	}
	store, err := history.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}

func newHistoryListCommand() *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scan runs",
		Long: `List recent scan runs, newest first.

Supported formats:
  - text: aligned table
  - json: JSON array of runs
  - csv: CSV with headers`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" && format != "csv" {
				return fmt.Errorf("invalid format '%s': format must be 'text', 'json' or 'csv'", format)
			}
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			runs := make([]*history.Run, 0)
			if store != nil {
				defer store.Close()
				runs, err = store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("list runs: %w", err)
				}
				if runs == nil {
					runs = make([]*history.Run, 0)
				}
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return exportRunsJSON(out, runs)
			case "csv":
				return exportRunsCSV(out, runs)
			default:
				return printRuns(out, runs)
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 = all)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|json|csv)")

	return cmd
}

func printRuns(w io.Writer, runs []*history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No scan runs recorded")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-19s  %8s  %8s  %8s  %8s  %8s  %s\n",
		"ID", "STARTED", "DURATION", "TEXT", "ENCODED", "BINARY", "FAILED", "DIRECTORY")
	for _, r := range runs {
		if _, err := fmt.Fprintf(w, "%-36s  %-19s  %8s  %8d  %8d  %8d  %8d  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), logger.FormatDuration(r.Duration),
			r.Totals.PlainText, r.Totals.EncodedText, r.Totals.Binary, r.Totals.Failed, r.Directory); err != nil {
			return err
		}
	}
	return nil
}

func exportRunsJSON(w io.Writer, runs []*history.Run) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(runs); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func exportRunsCSV(w io.Writer, runs []*history.Run) error {
	csvWriter := csv.NewWriter(w)

	header := []string{"id", "directory", "started_at", "duration_ms", "walked", "none", "text", "encoded_text", "binary", "failed", "ignored", "tracked", "already_supported", "lfs_files"}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	for _, r := range runs {
		t := r.Totals
		row := []string{
			r.ID,
			r.Directory,
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			strconv.Itoa(r.Walked),
			u(t.Absent), u(t.PlainText), u(t.EncodedText), u(t.Binary),
			u(t.Failed), u(t.Ignored), u(t.Tracked), u(t.AlreadySupported), u(t.LFSFiles),
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the totals of one scan run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("run %s: %w", args[0], history.ErrRunNotFound)
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, history.ErrRunNotFound) {
					return err
				}
				return fmt.Errorf("get run: %w", err)
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
}

func printRun(w io.Writer, r *history.Run) {
	cyan := color.New(color.FgCyan, color.Bold)
	t := r.Totals

	cyan.Fprintf(w, "=== Run %s ===\n", r.ID)
	fmt.Fprintf(w, "Directory:         %s\n", r.Directory)
	fmt.Fprintf(w, "Started:           %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration:          %s\n", logger.FormatDuration(r.Duration))
	fmt.Fprintf(w, "Files walked:      %d\n", r.Walked)
	fmt.Fprintf(w, "Plain text:        %d\n", t.PlainText)
	fmt.Fprintf(w, "Encoded text:      %d\n", t.EncodedText)
	for _, enc := range t.Encodings {
		fmt.Fprintf(w, "  %-16s %d\n", enc.Name, enc.Count)
	}
	fmt.Fprintf(w, "Binary:            %d\n", t.Binary)
	fmt.Fprintf(w, "None:              %d\n", t.Absent)
	fmt.Fprintf(w, "Failed:            %d\n", t.Failed)
	fmt.Fprintf(w, "Ignored:           %d\n", t.Ignored)
	fmt.Fprintf(w, "Tracked:           %d\n", t.Tracked)
	fmt.Fprintf(w, "Already in LFS:    %d\n", t.LFSFiles)
	fmt.Fprintf(w, "Already supported: %d\n", t.AlreadySupported)
}

func newHistoryPruneCommand() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1, got %d", keep)
			}
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No scan runs recorded")
				return nil
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 10, "Number of newest runs to keep")

	return cmd
}
