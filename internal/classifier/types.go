package classifier

import (
	"errors"
	"fmt"
)

// Classification is the four-way outcome of inspecting one path.
type Classification int

const (
	// Absent means the path does not name a regular file.
	Absent Classification = iota
	// PlainText has no signature and no null byte.
	PlainText
	// EncodedText starts with a known byte-order mark.
	EncodedText
	// Binary contains at least one null byte outside a matched signature.
	Binary
)

var classificationNames = map[Classification]string{
	Absent:      "none",
	PlainText:   "text",
	EncodedText: "encoded text",
	Binary:      "binary",
}

// String returns the name used in logs and reports.
func (c Classification) String() string {
	if name, ok := classificationNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Classification(%d)", int(c))
}

// MarshalText serialises the classification by name so YAML and JSON reports
// stay readable.
func (c Classification) MarshalText() ([]byte, error) {
	if _, ok := classificationNames[c]; !ok {
		return nil, fmt.Errorf("unknown classification %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (c *Classification) UnmarshalText(text []byte) error {
	for k, v := range classificationNames {
		if v == string(text) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown classification %q", string(text))
}

// Result is what Classify returns for a path. Encoding is only set for
// EncodedText and holds the matched signature name.
type Result struct {
	Class    Classification `json:"class" yaml:"class"`
	Encoding string         `json:"encoding,omitempty" yaml:"encoding,omitempty"`
}

// Record ties a scanned path to its result. Err is non-nil when the file
// existed but could not be read; Result is then meaningless.
type Record struct {
	Path   string
	Result Result
	Err    error
}

// Failed reports whether the record carries an I/O failure.
func (r Record) Failed() bool {
	return r.Err != nil
}

// IOError reports a failure to stat, open or read a path that exists.
// It is never folded into a Classification.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError reports whether err is, or wraps, an *IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
