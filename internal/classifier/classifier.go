// Package classifier decides whether a file is absent, plain text, encoded
// text or binary.
//
// Signature matching runs first on a small lookahead buffer. When no
// signature matches, the file is streamed in fixed-size chunks and the first
// null byte marks it binary. Every byte is examined at most once and the
// stream is never rewound.
package classifier

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/harrison/findary/internal/signature"
)

// DefaultChunkSize is the read size used by the null-byte scan.
const DefaultChunkSize = 1024

// Classifier is safe for concurrent use; it holds only read-only settings.
type Classifier struct {
	table     *signature.Table
	chunkSize int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTable replaces the built-in signature table.
func WithTable(t *signature.Table) Option {
	return func(c *Classifier) {
		if t != nil {
			c.table = t
		}
	}
}

// WithChunkSize sets the read size of the null-byte scan. Values below one
// keep the default. Results do not depend on the chunk size.
func WithChunkSize(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// New returns a Classifier using the default table and chunk size unless
// overridden.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		table:     signature.Default(),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChunkSize returns the configured read size.
func (c *Classifier) ChunkSize() int {
	return c.chunkSize
}

// Classify inspects the file at path. A missing path or anything that is not
// a regular file yields Absent with a nil error. Failures on a path that does
// exist are returned as *IOError.
func (c *Classifier) Classify(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Class: Absent}, nil
		}
		return Result{}, &IOError{Path: path, Op: "stat", Err: err}
	}
	if !info.Mode().IsRegular() {
		return Result{Class: Absent}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, &IOError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	res, err := c.ClassifyReader(f)
	if err != nil {
		return Result{}, &IOError{Path: path, Op: "read", Err: err}
	}
	return res, nil
}

// ClassifyReader classifies the content of r. It stops reading as soon as
// the outcome is known.
func (c *Classifier) ClassifyReader(r io.Reader) (Result, error) {
	var lookahead [signature.LookaheadSize]byte
	n, err := io.ReadFull(r, lookahead[:])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// short file, only n bytes are valid
	default:
		return Result{}, err
	}
	head := lookahead[:n]

	if sig, ok := c.table.Match(head); ok {
		return Result{Class: EncodedText, Encoding: sig.Name}, nil
	}

	// The lookahead bytes are part of the content and get scanned here,
	// once. The chunk loop continues from the current offset.
	if bytes.IndexByte(head, 0x00) >= 0 {
		return Result{Class: Binary}, nil
	}
	if n < len(lookahead) {
		return Result{Class: PlainText}, nil
	}

	binary, err := c.containsNull(r)
	if err != nil {
		return Result{}, err
	}
	if binary {
		return Result{Class: Binary}, nil
	}
	return Result{Class: PlainText}, nil
}

// containsNull reads r to the end in chunks and returns on the first null.
func (c *Classifier) containsNull(r io.Reader) (bool, error) {
	chunk := make([]byte, c.chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 && bytes.IndexByte(chunk[:n], 0x00) >= 0 {
			return true, nil
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}
