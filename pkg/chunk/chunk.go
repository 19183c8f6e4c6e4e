// Package chunk models one row-aligned byte range of the source: its
// descriptor, its materialized form with a flat field-offsets index, and the
// zero-copy row view used to read fields back out. Offsets are uint32 pairs,
// which is why chunks are capped below 1 GiB.
package chunk

import (
	"sync/atomic"

	"github.com/ajitpratap0/comet/pkg/pool"
	"github.com/ajitpratap0/comet/pkg/scan"
)

// escapeFlag marks a field whose raw range contains doubled qualifiers. It
// rides in the top bit of the start word; chunk sizes stay below 1 GiB so
// real offsets never reach it.
const escapeFlag uint32 = 1 << 31

// offsetMask recovers the start offset from a flagged start word.
const offsetMask = ^escapeFlag

// Descriptor is one chunk's byte range [Start, End) in the source plus its
// zero-based sequence index. Immutable once boundary resolution finishes.
type Descriptor struct {
	Index int
	Start int64
	End   int64
}

// Size returns the chunk's byte length.
func (d Descriptor) Size() int64 {
	return d.End - d.Start
}

// OffsetSink implements scan.FieldSink by writing field ranges into a flat
// offsets index: two words per field, stride 2×columns per row. Fields
// beyond the column count are dropped; missing fields keep zero words and
// read back as empty.
type OffsetSink struct {
	offsets []uint32
	zeros   []uint32
	base    int
	col     int
	cols    int
}

// NewOffsetSink prepares a sink for the given column count, drawing its
// offsets slice from the shared pool sized for the estimated row count.
func NewOffsetSink(cols, estimatedRows int) *OffsetSink {
	stride := 2 * cols
	return &OffsetSink{
		offsets: pool.GetOffsets(estimatedRows * stride),
		zeros:   make([]uint32, stride),
		cols:    cols,
	}
}

// BeginRow reserves the next row's slots.
func (s *OffsetSink) BeginRow() {
	s.base = len(s.offsets)
	s.offsets = append(s.offsets, s.zeros...)
	s.col = 0
}

// Rollback releases the slots reserved by the last BeginRow. Used when the
// tokenizer reports that no row was present at the view end.
func (s *OffsetSink) Rollback() {
	s.offsets = s.offsets[:s.base]
}

// Field records one field range in the current row.
func (s *OffsetSink) Field(start, end uint32, flags scan.FieldFlags) {
	if s.col >= s.cols {
		return
	}
	w := s.base + 2*s.col
	if flags&scan.FieldEscaped != 0 {
		start |= escapeFlag
	}
	s.offsets[w] = start
	s.offsets[w+1] = end
	s.col++
}

// LoadedChunk is a materialized chunk: its bytes plus the offsets index
// built by tokenizing every row. It stays resident until Unload.
type LoadedChunk struct {
	Desc Descriptor

	data      []byte
	offsets   []uint32
	cols      int
	rows      int
	malformed int

	unloaded atomic.Bool
}

// Materialize tokenizes every row of data and builds the chunk's offsets
// index. data must be the chunk's full byte range; cols is the header column
// count that fixes the index stride.
func Materialize(desc Descriptor, data []byte, cols int, cfg scan.Profile) *LoadedChunk {
	// Rough row estimate to size the pooled offsets slice.
	sink := NewOffsetSink(cols, len(data)/64+1)

	off := 0
	rows := 0
	malformed := 0
	for off < len(data) {
		sink.BeginRow()
		next, res := scan.Row(data, off, cfg, sink)
		if res.Fields == 0 {
			sink.Rollback()
		} else {
			rows++
			if res.Malformed {
				malformed++
			}
		}
		off = next
	}

	return &LoadedChunk{
		Desc:      desc,
		data:      data,
		offsets:   sink.offsets,
		cols:      cols,
		rows:      rows,
		malformed: malformed,
	}
}

// RowCount returns the number of rows the chunk holds.
func (c *LoadedChunk) RowCount() int {
	return c.rows
}

// Malformed returns the number of rows with recovered quoting errors.
func (c *LoadedChunk) Malformed() int {
	return c.malformed
}

// Columns returns the index stride's column count.
func (c *LoadedChunk) Columns() int {
	return c.cols
}

// Bytes exposes the chunk's raw data. Callers must not retain it past
// Unload.
func (c *LoadedChunk) Bytes() []byte {
	return c.data
}

// Unload releases the chunk's materialized memory: the offsets index goes
// back to the pool and the data reference is dropped. Safe to call more
// than once; only the first call releases.
func (c *LoadedChunk) Unload() {
	if !c.unloaded.CompareAndSwap(false, true) {
		return
	}
	pool.PutOffsets(c.offsets)
	c.offsets = nil
	c.data = nil
}
