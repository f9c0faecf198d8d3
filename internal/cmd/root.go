package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for findary
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findary",
		Short: "Find binary files and track them with Git LFS",
		Long: `Findary walks a directory tree and classifies every file as plain text,
encoded text (by byte order mark) or binary (by null-byte detection).

Binary file types can be registered with Git LFS automatically, and each
scan is recorded in a local history database.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewClassifyCommand())
	cmd.AddCommand(NewSignaturesCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewWatchCommand())

	return cmd
}
