package signature

// defaultTable is built once at init. Order matters: the first match wins.
var defaultTable = MustNew(
	Signature{Name: "BOCU-1", Pattern: []byte{0xFB, 0xEE, 0x28}},
	Signature{Name: "GB18030", Pattern: []byte{0x84, 0x31, 0x95, 0x33}},
	Signature{Name: "SCSU", Pattern: []byte{0x0E, 0xFE, 0xFF}},
	Signature{Name: "UTF-1", Pattern: []byte{0xF7, 0x64, 0x4C}},
	Signature{Name: "UTF-16BE", Pattern: []byte{0xFE, 0xFF}},
	Signature{Name: "UTF-16LE", Pattern: []byte{0xFF, 0xFE}},
	Signature{Name: "UTF-32LE", Pattern: []byte{0x00, 0x00, 0xFE, 0xFF}},
	Signature{Name: "UTF-7", Pattern: []byte{0xFF, 0xFE, 0x00, 0x00}},
	Signature{Name: "UTF-7", Pattern: []byte{0x38, 0x39, 0x2B, 0x2F}},
	Signature{Name: "UTF-8", Pattern: []byte{0xEF, 0xBB, 0xBF}},
	Signature{Name: "UTF-EBCDIC", Pattern: []byte{0xDD, 0x73, 0x66, 0x73}},
)

// Default returns the built-in signature table.
func Default() *Table {
	return defaultTable
}
