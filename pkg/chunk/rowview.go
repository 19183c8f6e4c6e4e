package chunk

import (
	"golang.org/x/text/encoding"

	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/scan"
)

// RowView reads fields of one row out of a loaded chunk without copying.
// SetIndex repositions it in O(1); fields are resolved lazily from the
// offsets index on access. A single view is meant to be reused across every
// row of a stream.
type RowView struct {
	chunk     *LoadedChunk
	base      int
	index     int
	qualifier byte
	decoder   *encoding.Decoder
	scratch   []byte
}

// NewRowView binds a view to a chunk. qualifier drives unescaping; enc is
// the source text encoding, nil meaning UTF-8 (no transform).
func NewRowView(c *LoadedChunk, qualifier byte, enc encoding.Encoding) *RowView {
	v := &RowView{
		chunk:     c,
		qualifier: qualifier,
	}
	if enc != nil {
		v.decoder = enc.NewDecoder()
	}
	return v
}

// Reset rebinds the view to another chunk, keeping its scratch buffer.
func (v *RowView) Reset(c *LoadedChunk) {
	v.chunk = c
	v.base = 0
	v.index = 0
}

// SetIndex repositions the view to row i.
func (v *RowView) SetIndex(i int) {
	v.index = i
	v.base = i * 2 * v.chunk.cols
}

// Index returns the view's current row index within its chunk.
func (v *RowView) Index() int {
	return v.index
}

// Columns returns the number of addressable fields per row.
func (v *RowView) Columns() int {
	return v.chunk.cols
}

// Field returns column c's raw bytes: qualifiers stripped, doubled
// qualifiers still present. The slice aliases chunk memory and is only
// valid until the chunk unloads.
func (v *RowView) Field(c int) []byte {
	raw, _ := v.rawField(c)
	return raw
}

// Escaped reports whether column c's raw bytes contain doubled qualifiers.
func (v *RowView) Escaped(c int) bool {
	_, escaped := v.rawField(c)
	return escaped
}

func (v *RowView) rawField(c int) ([]byte, bool) {
	if c < 0 || c >= v.chunk.cols {
		return nil, false
	}
	w := v.base + 2*c
	start := v.chunk.offsets[w]
	end := v.chunk.offsets[w+1]
	escaped := start&escapeFlag != 0
	return v.chunk.data[start&offsetMask : end], escaped
}

// Append appends column c's unescaped bytes to dst and returns the extended
// slice. No allocation happens beyond dst's own growth.
func (v *RowView) Append(c int, dst []byte) []byte {
	raw, escaped := v.rawField(c)
	if !escaped {
		return append(dst, raw...)
	}
	return scan.AppendUnescaped(dst, raw, v.qualifier)
}

// Value returns column c decoded to a string: unescaped and, for non-UTF-8
// sources, transformed to UTF-8.
func (v *RowView) Value(c int) (string, error) {
	raw, escaped := v.rawField(c)
	if escaped {
		v.scratch = scan.AppendUnescaped(v.scratch[:0], raw, v.qualifier)
		raw = v.scratch
	}
	if v.decoder == nil {
		return string(raw), nil
	}
	decoded, err := v.decoder.Bytes(raw)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "field transcoding failed").
			WithDetail("row", v.index).
			WithDetail("column", c)
	}
	return string(decoded), nil
}
