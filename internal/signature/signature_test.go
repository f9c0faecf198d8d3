package signature

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableOrder(t *testing.T) {
	want := []string{
		"BOCU-1", "GB18030", "SCSU", "UTF-1", "UTF-16BE", "UTF-16LE",
		"UTF-32LE", "UTF-7", "UTF-7", "UTF-8", "UTF-EBCDIC",
	}

	entries := Default().Entries()
	require.Len(t, entries, len(want))
	for i, name := range want {
		assert.Equal(t, name, entries[i].Name, "entry %d", i)
		assert.GreaterOrEqual(t, len(entries[i].Pattern), 2)
		assert.LessOrEqual(t, len(entries[i].Pattern), 4)
	}
	assert.Equal(t, 4, Default().MaxPatternLen())
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name      string
		lookahead []byte
		wantName  string
		wantMatch bool
	}{
		{"utf-8 bom with content", []byte{0xEF, 0xBB, 0xBF, 'h', 'i'}, "UTF-8", true},
		{"utf-16le exact", []byte{0xFF, 0xFE}, "UTF-16LE", true},
		{"utf-16be", []byte{0xFE, 0xFF, 0x00, 'a'}, "UTF-16BE", true},
		{"utf-32le", []byte{0x00, 0x00, 0xFE, 0xFF, 'x'}, "UTF-32LE", true},
		{"utf-7 ascii variant", []byte("89+/rest"), "UTF-7", true},
		{"gb18030", []byte{0x84, 0x31, 0x95, 0x33}, "GB18030", true},
		{"utf-7 ff fe variant is shadowed by utf-16le", []byte{0xFF, 0xFE, 0x00, 0x00}, "UTF-16LE", true},
		{"plain ascii", []byte("hello"), "", false},
		{"empty", nil, "", false},
		{"truncated utf-8 bom", []byte{0xEF, 0xBB}, "", false},
		{"single byte", []byte{0xFF}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := Default().Match(tt.lookahead)
			assert.Equal(t, tt.wantMatch, ok)
			assert.Equal(t, tt.wantName, sig.Name)
		})
	}
}

func TestNewRejectsMalformedEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry Signature
	}{
		{"empty pattern", Signature{Name: "X", Pattern: nil}},
		{"pattern longer than lookahead", Signature{Name: "X", Pattern: bytes.Repeat([]byte{0x01}, LookaheadSize+1)}},
		{"missing name", Signature{Pattern: []byte{0x01, 0x02}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := New(tt.entry)
			require.Error(t, err)
			assert.Nil(t, table)
			assert.True(t, errors.Is(err, ErrMalformedTable))
		})
	}
}

func TestNewAcceptsLookaheadSizedPattern(t *testing.T) {
	table, err := New(Signature{Name: "WIDE", Pattern: bytes.Repeat([]byte{0xAA}, LookaheadSize)})
	require.NoError(t, err)
	assert.Equal(t, LookaheadSize, table.MaxPatternLen())
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustNew(Signature{Name: "BAD"})
	})
}

func TestTableIsolatedFromCaller(t *testing.T) {
	pattern := []byte{0x01, 0x02}
	table, err := New(Signature{Name: "T", Pattern: pattern})
	require.NoError(t, err)

	pattern[0] = 0xFF
	_, ok := table.Match([]byte{0x01, 0x02})
	assert.True(t, ok, "table must not alias the caller's pattern")

	entries := table.Entries()
	entries[0].Pattern[0] = 0xFF
	_, ok = table.Match([]byte{0x01, 0x02})
	assert.True(t, ok, "Entries must return copies")
}

func TestFirstMatchWins(t *testing.T) {
	table := MustNew(
		Signature{Name: "SHORT", Pattern: []byte{0xAB}},
		Signature{Name: "LONG", Pattern: []byte{0xAB, 0xCD}},
	)
	sig, ok := table.Match([]byte{0xAB, 0xCD})
	require.True(t, ok)
	assert.Equal(t, "SHORT", sig.Name)
}

func TestHex(t *testing.T) {
	assert.Equal(t, "EF BB BF", Signature{Name: "UTF-8", Pattern: []byte{0xEF, 0xBB, 0xBF}}.Hex())
	assert.Equal(t, "00 00 FE FF", Signature{Pattern: []byte{0x00, 0x00, 0xFE, 0xFF}}.Hex())
}
