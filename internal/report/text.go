package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/findary/internal/logger"
	"github.com/harrison/findary/internal/scan"
)

// palette returns the colors used by the text report, enabled or disabled
// explicitly so output does not depend on global color state.
func palette(useColor bool) (header, good, bad, label *color.Color) {
	header = color.New(color.Bold)
	good = color.New(color.FgGreen)
	bad = color.New(color.FgRed)
	label = color.New(color.FgCyan)
	for _, c := range []*color.Color{header, good, bad, label} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return header, good, bad, label
}

func renderText(w io.Writer, s *scan.Summary, useColor bool) error {
	header, good, bad, label := palette(useColor)
	t := s.Totals

	var b strings.Builder
	line := func(name string, value any) {
		b.WriteString(fmt.Sprintf("  %s %v\n", label.Sprintf("%-18s", name+":"), value))
	}

	b.WriteString(header.Sprint("=== Scan Summary ===") + "\n")
	line("Directory", s.Dir)
	line("Run ID", s.RunID)
	line("Started", s.StartedAt.Format("2006-01-02 15:04:05"))
	line("Duration", logger.FormatDuration(s.Duration))
	line("Directories", s.Walk.Directories)
	if s.Walk.DeniedDirectories > 0 {
		line("Access denied", bad.Sprint(s.Walk.DeniedDirectories))
	}
	line("Files", t.Total())
	line("Plain text", t.PlainText)
	line("Encoded text", t.EncodedText)
	for _, enc := range t.Encodings {
		b.WriteString(fmt.Sprintf("    %-16s %d\n", enc.Name, enc.Count))
	}
	line("Binary", good.Sprint(t.Binary))
	if t.Absent > 0 {
		line("Vanished", t.Absent)
	}
	if t.Failed > 0 {
		line("Failed", bad.Sprint(t.Failed))
	} else {
		line("Failed", t.Failed)
	}
	if t.Ignored > 0 {
		line("Ignored", t.Ignored)
	}
	if t.LFSFiles > 0 {
		line("Already in LFS", t.LFSFiles)
	}
	if t.AlreadySupported > 0 {
		line("Already supported", t.AlreadySupported)
	}
	if t.Tracked > 0 {
		line("Tracked", good.Sprint(t.Tracked))
	}

	if len(s.BinaryExtensions) > 0 {
		b.WriteString(header.Sprint("Binary extensions:") + "\n")
		for _, ext := range s.BinaryExtensions {
			b.WriteString("  *." + ext + "\n")
		}
	}
	if len(s.BinaryFiles) > 0 {
		b.WriteString(header.Sprint("Binary files:") + "\n")
		for _, f := range s.BinaryFiles {
			b.WriteString("  " + f + "\n")
		}
	}
	if len(s.Failures) > 0 {
		b.WriteString(bad.Sprint("Failures:") + "\n")
		for _, f := range s.Failures {
			b.WriteString(fmt.Sprintf("  %s: %s\n", f.Path, f.Error))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
