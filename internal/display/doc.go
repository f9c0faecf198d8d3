// Package display renders user-facing warnings for the findary CLI.
//
// Display warnings with optional components:
//
//	warning := display.Warning{
//	    Title:      "Some files could not be read",
//	    Files:      []string{"secret.key"},
//	    Suggestion: "Check file permissions and rerun the scan",
//	}
//	warning.Display(os.Stderr)
//
// Display colors output with fatih/color only when the writer is a terminal.
// Render returns the text with or without color for callers that decide
// themselves.
package display
