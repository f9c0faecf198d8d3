// Package stats tallies classification records for end-of-run reporting.
package stats

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/harrison/findary/internal/classifier"
)

// Aggregator accumulates monotonically increasing counters. All methods are
// safe for concurrent use by scan workers.
type Aggregator struct {
	absent      atomic.Uint64
	plain       atomic.Uint64
	encoded     atomic.Uint64
	binary      atomic.Uint64
	failed      atomic.Uint64
	ignored     atomic.Uint64
	tracked     atomic.Uint64
	supported   atomic.Uint64
	lfsFiles    atomic.Uint64
	encodingsMu sync.Mutex
	encodings   map[string]uint64
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{encodings: make(map[string]uint64)}
}

// Record adds one classification record.
func (a *Aggregator) Record(rec classifier.Record) {
	if rec.Failed() {
		a.failed.Add(1)
		return
	}
	switch rec.Result.Class {
	case classifier.Absent:
		a.absent.Add(1)
	case classifier.PlainText:
		a.plain.Add(1)
	case classifier.EncodedText:
		a.encoded.Add(1)
		a.encodingsMu.Lock()
		a.encodings[rec.Result.Encoding]++
		a.encodingsMu.Unlock()
	case classifier.Binary:
		a.binary.Add(1)
	}
}

// AddIgnored counts files skipped by ignore rules.
func (a *Aggregator) AddIgnored(n int) {
	if n > 0 {
		a.ignored.Add(uint64(n))
	}
}

// AddTracked counts patterns newly tracked by git-lfs.
func (a *Aggregator) AddTracked(n int) {
	if n > 0 {
		a.tracked.Add(uint64(n))
	}
}

// AddAlreadySupported counts patterns git-lfs reported as already tracked.
func (a *Aggregator) AddAlreadySupported(n int) {
	if n > 0 {
		a.supported.Add(uint64(n))
	}
}

// AddLFSFiles counts files skipped because .gitattributes already routes
// them through the LFS filter.
func (a *Aggregator) AddLFSFiles(n int) {
	if n > 0 {
		a.lfsFiles.Add(uint64(n))
	}
}

// EncodingCount is one row of the per-encoding breakdown.
type EncodingCount struct {
	Name  string `json:"name" yaml:"name"`
	Count uint64 `json:"count" yaml:"count"`
}

// Totals is a point-in-time copy of the counters.
type Totals struct {
	Absent           uint64          `json:"none" yaml:"none"`
	PlainText        uint64          `json:"text" yaml:"text"`
	EncodedText      uint64          `json:"encoded_text" yaml:"encoded_text"`
	Binary           uint64          `json:"binary" yaml:"binary"`
	Failed           uint64          `json:"failed" yaml:"failed"`
	Ignored          uint64          `json:"ignored" yaml:"ignored"`
	Tracked          uint64          `json:"tracked" yaml:"tracked"`
	AlreadySupported uint64          `json:"already_supported" yaml:"already_supported"`
	LFSFiles         uint64          `json:"lfs_files" yaml:"lfs_files"`
	Encodings        []EncodingCount `json:"encodings,omitempty" yaml:"encodings,omitempty"`
}

// Total is the number of classified files across the four variants.
func (t Totals) Total() uint64 {
	return t.Absent + t.PlainText + t.EncodedText + t.Binary
}

// Snapshot reads the current counters. Encodings are sorted by name.
func (a *Aggregator) Snapshot() Totals {
	t := Totals{
		Absent:           a.absent.Load(),
		PlainText:        a.plain.Load(),
		EncodedText:      a.encoded.Load(),
		Binary:           a.binary.Load(),
		Failed:           a.failed.Load(),
		Ignored:          a.ignored.Load(),
		Tracked:          a.tracked.Load(),
		AlreadySupported: a.supported.Load(),
		LFSFiles:         a.lfsFiles.Load(),
	}

	a.encodingsMu.Lock()
	for name, n := range a.encodings {
		t.Encodings = append(t.Encodings, EncodingCount{Name: name, Count: n})
	}
	a.encodingsMu.Unlock()
	sort.Slice(t.Encodings, func(i, j int) bool {
		return t.Encodings[i].Name < t.Encodings[j].Name
	})

	return t
}
