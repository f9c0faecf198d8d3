// Package report renders scan summaries as text, YAML, JSON, Markdown or
// HTML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/harrison/findary/internal/filelock"
	"github.com/harrison/findary/internal/scan"
)

// Supported formats
const (
	FormatText     = "text"
	FormatYAML     = "yaml"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Formats lists every supported format in a stable order.
var Formats = []string{FormatText, FormatYAML, FormatJSON, FormatMarkdown, FormatHTML}

// Render writes summary to w in format. Text output is colored only when w
// is a terminal.
func Render(w io.Writer, summary *scan.Summary, format string) error {
	switch format {
	case FormatText, "":
		return renderText(w, summary, isTerminal(w))
	case FormatYAML:
		return renderYAML(w, summary)
	case FormatJSON:
		return renderJSON(w, summary)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(summary))
		return err
	case FormatHTML:
		return renderHTML(w, summary)
	default:
		return fmt.Errorf("unsupported report format %q (want one of %v)", format, Formats)
	}
}

// WriteFile renders summary to path atomically while holding path's lock.
// Text written to a file is never colored.
func WriteFile(path string, summary *scan.Summary, format string) error {
	var buf bytes.Buffer
	if err := Render(&buf, summary, format); err != nil {
		return err
	}
	if err := filelock.LockAndWrite(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

func renderYAML(w io.Writer, summary *scan.Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func renderJSON(w io.Writer, summary *scan.Summary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
