package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/findary/internal/logger"
	"github.com/harrison/findary/internal/scan"
)

// Markdown renders summary as a GitHub-flavoured Markdown document.
func Markdown(s *scan.Summary) string {
	t := s.Totals
	var b strings.Builder

	b.WriteString("# Scan Summary\n\n")
	b.WriteString(fmt.Sprintf("- **Directory:** `%s`\n", s.Dir))
	b.WriteString(fmt.Sprintf("- **Run ID:** `%s`\n", s.RunID))
	b.WriteString(fmt.Sprintf("- **Started:** %s\n", s.StartedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("- **Duration:** %s\n\n", logger.FormatDuration(s.Duration)))

	b.WriteString("## Classification\n\n")
	b.WriteString("| Class | Files |\n|---|---:|\n")
	rows := []struct {
		name  string
		count uint64
	}{
		{"text", t.PlainText},
		{"encoded text", t.EncodedText},
		{"binary", t.Binary},
		{"none", t.Absent},
		{"failed", t.Failed},
		{"ignored", t.Ignored},
		{"already in lfs", t.LFSFiles},
		{"already supported", t.AlreadySupported},
		{"tracked", t.Tracked},
	}
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("| %s | %d |\n", r.name, r.count))
	}
	b.WriteString("\n")

	if len(t.Encodings) > 0 {
		b.WriteString("## Encodings\n\n| Encoding | Files |\n|---|---:|\n")
		for _, enc := range t.Encodings {
			b.WriteString(fmt.Sprintf("| %s | %d |\n", enc.Name, enc.Count))
		}
		b.WriteString("\n")
	}

	if len(s.BinaryExtensions) > 0 || len(s.BinaryFiles) > 0 {
		b.WriteString("## Binary patterns\n\n")
		for _, p := range s.Patterns() {
			b.WriteString("- `" + p + "`\n")
		}
		b.WriteString("\n")
	}

	if len(s.Failures) > 0 {
		b.WriteString("## Failures\n\n")
		for _, f := range s.Failures {
			b.WriteString(fmt.Sprintf("- `%s`: %s\n", f.Path, f.Error))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// renderHTML converts the Markdown report to a standalone HTML page.
func renderHTML(w io.Writer, s *scan.Summary) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(s)), &body); err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}

	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>findary: %s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(s.Dir), body.String())
	return err
}
