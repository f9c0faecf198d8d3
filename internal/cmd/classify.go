package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrison/findary/internal/classifier"
)

// classifyOutput is one line of classify --format json output.
type classifyOutput struct {
	Path     string                    `json:"path"`
	Class    classifier.Classification `json:"class"`
	Encoding string                    `json:"encoding,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

// String renders the output as a single "path: class" line.
func (o classifyOutput) String() string {
	switch {
	case o.Error != "":
		return fmt.Sprintf("%s: error: %s", o.Path, o.Error)
	case o.Encoding != "":
		return fmt.Sprintf("%s: %s (%s)", o.Path, o.Class, o.Encoding)
	default:
		return fmt.Sprintf("%s: %s", o.Path, o.Class)
	}
}

// NewClassifyCommand creates the classify command
func NewClassifyCommand() *cobra.Command {
	var format string
	var chunkSize int

	cmd := &cobra.Command{
		Use:   "classify <file>...",
		Short: "Classify individual files",
		Long: `Classify reports whether each file is text, encoded text or binary.

A path that does not exist or is not a regular file is reported as "none".

Examples:
  findary classify README.md logo.png
  findary classify --format json build/*`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd.OutOrStdout(), args, format, chunkSize)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|json)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", classifier.DefaultChunkSize, "Read size of the null-byte scan")

	return cmd
}

func runClassify(w io.Writer, paths []string, format string, chunkSize int) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format '%s': format must be 'text' or 'json'", format)
	}

	c := classifier.New(classifier.WithChunkSize(chunkSize))
	results := make([]classifyOutput, 0, len(paths))
	failed := 0
	for _, path := range paths {
		res, err := c.Classify(path)
		out := classifyOutput{Path: path, Class: res.Class, Encoding: res.Encoding}
		if err != nil {
			out.Error = err.Error()
			failed++
		}
		results = append(results, out)
	}

	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	} else {
		for _, r := range results {
			fmt.Fprintln(w, r.String())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) could not be read", failed, len(paths))
	}
	return nil
}
