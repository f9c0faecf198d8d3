// Package gitutil reads .gitignore and .gitattributes rules and drives
// git-lfs to track binary files.
package gitutil

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/woozymasta/pathrules"
)

const (
	// IgnoreFile is read from the scan root when ignore rules are enabled.
	IgnoreFile = ".gitignore"
	// AttributesFile is read from the scan root when tracking is enabled.
	AttributesFile = ".gitattributes"
)

// Matcher answers whether a relative path is selected by a rule file. The
// zero value and a nil *Matcher match nothing.
type Matcher struct {
	// rules evaluates .gitignore content; the last matching rule wins.
	rules *pathrules.Matcher
	// globs holds .gitattributes patterns compiled for doublestar.
	globs []string
	count int
}

// Len returns the number of parsed rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return m.count
}

// Ignored implements fileutil.Ignorer. rel must be slash separated and
// relative to the directory the rules were loaded from.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	if m == nil || m.count == 0 {
		return false
	}
	rel = strings.Trim(strings.ReplaceAll(filepath.ToSlash(rel), `\`, "/"), "/")
	if rel == "" {
		return false
	}
	if m.rules != nil {
		// A file below an excluded directory stays excluded, whatever
		// later rules say about the file itself.
		for i := 0; i < len(rel); i++ {
			if rel[i] == '/' && m.rules.Excluded(rel[:i], true) {
				return true
			}
		}
		return m.rules.Excluded(rel, isDir)
	}
	for _, glob := range m.globs {
		if ok, err := doublestar.Match(glob, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Match reports whether a file path matches the rules.
func (m *Matcher) Match(rel string) bool {
	return m.Ignored(rel, false)
}

// anchorRule makes a pattern with an inner slash relative to the rule file's
// directory, as git does.
func anchorRule(r pathrules.Rule) pathrules.Rule {
	body := strings.TrimSuffix(r.Pattern, "/")
	if strings.HasPrefix(body, "/") || strings.HasPrefix(body, "**/") {
		return r
	}
	if strings.Contains(body, "/") {
		r.Pattern = "/" + r.Pattern
	}
	return r
}

// ParseIgnore parses .gitignore content. Lines that do not compile are
// skipped.
func ParseIgnore(content []byte) *Matcher {
	parsed, err := pathrules.ParseRules(bytes.NewReader(content), pathrules.ParseOptions{})
	if err != nil {
		return &Matcher{}
	}

	rules := make([]pathrules.Rule, 0, len(parsed))
	for _, r := range parsed {
		r = anchorRule(r)
		if _, err := pathrules.NewMatcher([]pathrules.Rule{r}, pathrules.MatcherOptions{}); err != nil {
			continue
		}
		rules = append(rules, r)
	}
	if len(rules) == 0 {
		return &Matcher{}
	}

	matcher, err := pathrules.NewMatcher(rules, pathrules.MatcherOptions{DefaultAction: pathrules.ActionInclude})
	if err != nil {
		return &Matcher{}
	}
	return &Matcher{rules: matcher, count: len(rules)}
}

// attributeGlob converts a .gitattributes pattern to a doublestar glob.
// Patterns without a slash match at any depth.
func attributeGlob(pattern string) (string, bool) {
	var glob string
	if strings.Contains(pattern, "/") {
		glob = strings.TrimPrefix(pattern, "/")
	} else {
		glob = "**/" + pattern
	}
	if glob == "" || !doublestar.ValidatePattern(glob) {
		return "", false
	}
	return glob, true
}

// ParseAttributes parses .gitattributes content and keeps the patterns
// already routed through the LFS filter.
func ParseAttributes(content []byte) *Matcher {
	m := &Matcher{}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		lfs := false
		for _, attr := range fields[1:] {
			if attr == "filter=lfs" {
				lfs = true
				break
			}
		}
		if !lfs {
			continue
		}
		if glob, ok := attributeGlob(fields[0]); ok {
			m.globs = append(m.globs, glob)
		}
	}
	m.count = len(m.globs)
	return m
}

// LoadIgnore reads dir/.gitignore. A missing file yields an empty matcher.
func LoadIgnore(dir string) (*Matcher, error) {
	data, err := readOptional(filepath.Join(dir, IgnoreFile))
	if err != nil {
		return nil, err
	}
	return ParseIgnore(data), nil
}

// LoadAttributes reads dir/.gitattributes. A missing file yields an empty
// matcher.
func LoadAttributes(dir string) (*Matcher, error) {
	data, err := readOptional(filepath.Join(dir, AttributesFile))
	if err != nil {
		return nil, err
	}
	return ParseAttributes(data), nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
