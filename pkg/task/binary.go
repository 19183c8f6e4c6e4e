package task

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"

	"github.com/ajitpratap0/comet/pkg/chunk"
	"github.com/ajitpratap0/comet/pkg/metrics"
	"github.com/ajitpratap0/comet/pkg/pool"
	"github.com/ajitpratap0/comet/pkg/scan"
	"github.com/ajitpratap0/comet/pkg/schema"
	"github.com/ajitpratap0/comet/pkg/source"
	stringpool "github.com/ajitpratap0/comet/pkg/strings"
)

// ParseBinary materializes one chunk and encodes it into a locally packed
// fixed-width payload: the chunk's own column types, its own widths, its
// own packing order. The merge phase re-strides local payloads into the
// global layout once all chunks have reported.
type ParseBinary struct {
	Source  source.ByteSource
	Desc    chunk.Descriptor
	Columns []string
	Profile scan.Profile
}

// BinaryChunkResult is one chunk's locally encoded payload plus the tallies
// the encode orchestrator folds into the global layout. Payload comes from
// pool.GlobalBufferPool; the orchestrator returns it there once the chunk's
// rows have been merged.
type BinaryChunkResult struct {
	Seq       int
	Rows      int
	Malformed int
	Types     []schema.ColumnType
	Widths    []int
	Order     []int
	Payload   []byte
}

func (t *ParseBinary) Kind() Kind { return KindParseBinary }

func (t *ParseBinary) Run(ctx context.Context) (interface{}, error) {
	data, err := t.Source.Slice(t.Desc.Start, t.Desc.End).Load(ctx)
	if err != nil {
		return nil, err
	}
	metrics.BytesRead.Add(float64(len(data)))

	cols := len(t.Columns)
	loaded := chunk.Materialize(t.Desc, data, cols, t.Profile)
	defer loaded.Unload()

	view := chunk.NewRowView(loaded, t.Profile.Qualifier, nil)
	rows := loaded.RowCount()

	// Tally pass: classify every value and track unescaped lengths, which
	// become string widths.
	stats := schema.NewColumnStats(t.Columns)
	for r := 0; r < rows; r++ {
		view.SetIndex(r)
		for c := 0; c < cols; c++ {
			raw := view.Field(c)
			length := len(raw)
			if view.Escaped(c) {
				length = scan.DecodedLen(raw, t.Profile.Qualifier)
			}
			stats[c].Observe(schema.Classify(raw), length)
		}
	}

	types := make([]schema.ColumnType, cols)
	widths := make([]int, cols)
	for c := range stats {
		types[c] = stats[c].DominantType()
		widths[c] = schema.WidthFor(types[c], stats[c].MaxLen)
	}
	order := schema.SuggestOrder(types)

	local, err := schema.Layout(t.Columns, types, widths, order)
	if err != nil {
		return nil, err
	}

	payload := encodeRows(view, local, rows, t.Profile.Qualifier)

	metrics.RowsParsed.Add(float64(rows))
	metrics.MalformedRows.Add(float64(loaded.Malformed()))
	metrics.ChunksProcessed.WithLabelValues("binary").Inc()

	return &BinaryChunkResult{
		Seq:       t.Desc.Index,
		Rows:      rows,
		Malformed: loaded.Malformed(),
		Types:     types,
		Widths:    widths,
		Order:     order,
		Payload:   payload,
	}, nil
}

// encodeRows packs every row of the view into a pooled buffer laid out per
// header. String cells shorter than their width get zero-padded. The caller
// owns the returned buffer and releases it with pool.GlobalBufferPool.Put
// once its rows are merged.
func encodeRows(view *chunk.RowView, header *schema.BinaryHeader, rows int, qualifier byte) []byte {
	rowLen := header.RowLength
	payload := pool.GlobalBufferPool.Get(rows * rowLen)

	scratch := pool.GetByteSlice()
	defer func() { pool.PutByteSlice(scratch) }()
	for r := 0; r < rows; r++ {
		view.SetIndex(r)
		base := r * rowLen
		for i := range header.Columns {
			col := &header.Columns[i]
			raw := view.Field(col.HeaderIndex)
			value := raw
			if view.Escaped(col.HeaderIndex) {
				scratch = scan.AppendUnescaped(scratch[:0], raw, qualifier)
				value = scratch
			}
			dst := payload[base+col.Offset : base+col.Offset+col.Width]
			encodeCell(dst, col.Type, value)
		}
	}
	return payload
}

// encodeCell writes one value into its fixed-width cell. The tally pass
// proved numeric columns numeric, so empty and unparseable values encode as
// zero.
func encodeCell(dst []byte, typ schema.ColumnType, value []byte) {
	switch typ {
	case schema.TypeInt:
		n, _ := strconv.ParseInt(stringpool.BytesToString(value), 10, 64)
		binary.LittleEndian.PutUint64(dst, uint64(n))
	case schema.TypeFloat:
		f, _ := strconv.ParseFloat(stringpool.BytesToString(value), 64)
		binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
	default:
		// Pooled payloads arrive dirty, so pad the tail explicitly.
		n := copy(dst, value)
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
	}
}
