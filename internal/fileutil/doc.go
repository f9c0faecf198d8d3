// Package fileutil walks directory trees and yields the regular files that
// findary classifies.
//
// # Main Components
//
// ScanOptions configures a walk:
//   - Recursive: descend into subdirectories
//   - MaxDepth: limit recursion depth (0 = unlimited, 1 = root only)
//   - Extensions: keep only these extensions (case-insensitive, "md" or ".md")
//   - Pattern: regex matched against the basename without extension
//   - ExcludeDirs: directory names to skip; ".git" is always skipped
//   - SkipHidden: skip directories whose name starts with "."
//   - Ignore: an Ignorer consulted with the slash-separated relative path
//
// Walk is the lazy form: the callback sees each file as it is discovered,
// in directory order. ScanDirectory collects absolute paths and sorts them.
//
// Only regular files are yielded. Symlinks (including symlinks to
// directories), devices, sockets and pipes are skipped without error.
//
// # Error Tolerance
//
// A subdirectory that cannot be read is recorded in WalkStats.Errors and the
// walk continues; permission failures are also counted in
// DeniedDirectories. Only a missing or non-directory root, an invalid
// pattern, a cancelled context, or an error returned by the callback stop
// the walk.
//
// Example:
//
//	stats, err := fileutil.Walk(ctx, root, fileutil.ScanOptions{Recursive: true},
//	    func(path string) error {
//	        fmt.Println(path)
//	        return nil
//	    })
package fileutil
