package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// maxListedFiles caps the number of files printed in a warning.
const maxListedFiles = 10

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related files (optional)
	Suggestion string   // Action to take (optional)
}

// Display writes the warning to out, in yellow when out is a terminal.
func (w Warning) Display(out io.Writer) {
	fmt.Fprint(out, w.Render(useColor(out)))
}

// Render formats the warning. With useColor the whole block is yellow.
func (w Warning) Render(useColor bool) string {
	var b strings.Builder

	b.WriteString("⚠️  Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		if len(w.Files) == 1 {
			b.WriteString("    Affected file:\n")
		} else {
			b.WriteString("    Affected files:\n")
		}

		for i, file := range w.Files {
			if i == maxListedFiles {
				b.WriteString(fmt.Sprintf("      ... and %d more\n", len(w.Files)-maxListedFiles))
				break
			}
			b.WriteString(fmt.Sprintf("      %d. %s\n", i+1, file))
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	if !useColor {
		return b.String()
	}
	yellow := color.New(color.FgYellow)
	yellow.EnableColor()
	return yellow.Sprint(b.String())
}

func useColor(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

// WarnUnreadableFiles reports files the scan could not classify.
func WarnUnreadableFiles(files []string) Warning {
	return Warning{
		Title:      fmt.Sprintf("%d file(s) could not be read", len(files)),
		Message:    "These files were counted as failed and left out of the classification totals.",
		Files:      files,
		Suggestion: "Check file permissions and rerun the scan",
	}
}

// WarnTrackingUnavailable reports that git-lfs tracking was requested but
// cannot run in this environment.
func WarnTrackingUnavailable(reason error) Warning {
	return Warning{
		Title:      "Git LFS tracking skipped",
		Message:    reason.Error(),
		Suggestion: "Install git and git-lfs, then rerun with --track",
	}
}
