// Package signature holds the byte-order-mark table used to recognise
// encoded text files.
//
// The table is ordered. Matching walks it from the first entry to the last
// and the first pattern that is a prefix of the file's lookahead bytes wins.
// A Table is immutable once built and may be shared by any number of
// goroutines without locking.
package signature

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// LookaheadSize is the number of leading bytes read from a file before
// signature matching. Every pattern in a Table must fit inside it.
const LookaheadSize = 10

// ErrMalformedTable is returned by New when an entry cannot be matched
// against a lookahead buffer.
var ErrMalformedTable = errors.New("malformed signature table")

// Signature pairs a text encoding name with the bytes that open a file in
// that encoding. Names are not unique; UTF-7 has two patterns.
type Signature struct {
	Name    string
	Pattern []byte
}

// Hex renders the pattern as upper-case, space separated hex, e.g. "EF BB BF".
func (s Signature) Hex() string {
	parts := make([]string, len(s.Pattern))
	for i, b := range s.Pattern {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// Table is an ordered, read-only list of signatures.
type Table struct {
	entries []Signature
	maxLen  int
}

// New validates entries and builds a Table. Patterns are copied so later
// changes to the caller's slices do not leak into the table.
func New(entries ...Signature) (*Table, error) {
	t := &Table{entries: make([]Signature, 0, len(entries))}
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrMalformedTable, i)
		}
		if len(e.Pattern) == 0 {
			return nil, fmt.Errorf("%w: %s has an empty pattern", ErrMalformedTable, e.Name)
		}
		if len(e.Pattern) > LookaheadSize {
			return nil, fmt.Errorf("%w: %s pattern is %d bytes, lookahead holds %d",
				ErrMalformedTable, e.Name, len(e.Pattern), LookaheadSize)
		}
		t.entries = append(t.entries, Signature{
			Name:    e.Name,
			Pattern: bytes.Clone(e.Pattern),
		})
		if len(e.Pattern) > t.maxLen {
			t.maxLen = len(e.Pattern)
		}
	}
	return t, nil
}

// MustNew is like New but panics on a malformed table. It is meant for
// package-level tables built at startup.
func MustNew(entries ...Signature) *Table {
	t, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return t
}

// Match returns the first signature whose pattern is a prefix of lookahead.
// Patterns longer than lookahead are treated as non-matching.
func (t *Table) Match(lookahead []byte) (Signature, bool) {
	for _, e := range t.entries {
		if len(e.Pattern) > len(lookahead) {
			continue
		}
		if bytes.Equal(lookahead[:len(e.Pattern)], e.Pattern) {
			return e, true
		}
	}
	return Signature{}, false
}

// Entries returns a copy of the table in match order.
func (t *Table) Entries() []Signature {
	out := make([]Signature, len(t.entries))
	for i, e := range t.entries {
		out[i] = Signature{Name: e.Name, Pattern: bytes.Clone(e.Pattern)}
	}
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// MaxPatternLen returns the length of the longest pattern.
func (t *Table) MaxPatternLen() int {
	return t.maxLen
}
