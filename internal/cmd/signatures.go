package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrison/findary/internal/signature"
)

// NewSignaturesCommand creates the signatures command
func NewSignaturesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "signatures",
		Short: "List the byte order marks recognised as encoded text",
		Long: `Signatures prints the built-in byte order mark table in match order.
The first entry whose bytes prefix a file wins.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSignatures(cmd.OutOrStdout(), signature.Default())
		},
	}
}

func printSignatures(w io.Writer, table *signature.Table) error {
	fmt.Fprintf(w, "%-3s %-12s %s\n", "#", "ENCODING", "BYTES")
	for i, sig := range table.Entries() {
		if _, err := fmt.Fprintf(w, "%-3d %-12s %s\n", i+1, sig.Name, sig.Hex()); err != nil {
			return err
		}
	}
	return nil
}
