package schema

import (
	"github.com/ajitpratap0/comet/pkg/errors"
)

// NumericWidth is the fixed encoded width of int and float columns:
// little-endian int64 or float64.
const NumericWidth = 8

// WidthFor returns the encoded byte width of a column: numeric columns are
// always NumericWidth, string columns take their maximum decoded value
// length with a floor of one byte so zero-width columns cannot occur.
func WidthFor(t ColumnType, maxDecoded int) int {
	if t == TypeString {
		if maxDecoded < 1 {
			return 1
		}
		return maxDecoded
	}
	return NumericWidth
}

// SuggestOrder produces a column packing order: numeric columns first in
// header order, then string columns in header order. Leading with the
// fixed 8-byte slots keeps numeric offsets aligned regardless of string
// widths. The returned slice holds header indexes in layout order.
func SuggestOrder(types []ColumnType) []int {
	order := make([]int, 0, len(types))
	for i, t := range types {
		if t != TypeString {
			order = append(order, i)
		}
	}
	for i, t := range types {
		if t == TypeString {
			order = append(order, i)
		}
	}
	return order
}

// BinaryColumn describes one column of the fixed-width row layout.
// HeaderIndex is the column's position in the source header row; Offset is
// its byte position within an encoded row.
type BinaryColumn struct {
	Name        string     `json:"name"`
	HeaderIndex int        `json:"header_index"`
	Width       int        `json:"width"`
	Offset      int        `json:"offset"`
	Type        ColumnType `json:"type"`
}

// BinaryHeader is the complete fixed-width layout: columns in layout order,
// global row count, and the derived sizes. RowLength and DataLength are only
// meaningful once every chunk's observed widths have been folded in; layout
// is a measure-then-assign process even though chunks are parsed once.
type BinaryHeader struct {
	Columns    []BinaryColumn `json:"columns"`
	RowCount   int64          `json:"row_count"`
	RowLength  int            `json:"row_length"`
	DataLength int64          `json:"data_length"`
	DataOffset int64          `json:"data_offset"`

	byName map[string]int
}

// Layout derives a BinaryHeader from header-order column names, types, and
// observed maximum decoded lengths. order lists header indexes in the
// desired packing order and must be a permutation; nil means SuggestOrder.
// Offsets are assigned by walking the packing order and accumulating
// normalized widths; RowLength is the final offset.
func Layout(names []string, types []ColumnType, widths []int, order []int) (*BinaryHeader, error) {
	n := len(names)
	if len(types) != n || len(widths) != n {
		return nil, errors.New(errors.ErrorTypeValidation, "column names, types and widths must have equal length").
			WithDetail("names", len(names)).
			WithDetail("types", len(types)).
			WithDetail("widths", len(widths))
	}
	if order == nil {
		order = SuggestOrder(types)
	}
	if len(order) != n {
		return nil, errors.New(errors.ErrorTypeValidation, "packing order length does not match column count").
			WithDetail("order", len(order)).
			WithDetail("columns", n)
	}

	seen := make([]bool, n)
	cols := make([]BinaryColumn, 0, n)
	offset := 0
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return nil, errors.New(errors.ErrorTypeValidation, "packing order is not a permutation of column indexes").
				WithDetail("index", idx)
		}
		seen[idx] = true
		w := WidthFor(types[idx], widths[idx])
		cols = append(cols, BinaryColumn{
			Name:        names[idx],
			HeaderIndex: idx,
			Width:       w,
			Offset:      offset,
			Type:        types[idx],
		})
		offset += w
	}

	h := &BinaryHeader{
		Columns:   cols,
		RowLength: offset,
	}
	h.reindex()
	return h, nil
}

// NewBinaryHeader builds a header from columns already carrying widths and
// offsets, recomputing RowLength. Used when a layout is read back from its
// persisted form.
func NewBinaryHeader(cols []BinaryColumn) *BinaryHeader {
	length := 0
	for i := range cols {
		length += cols[i].Width
	}
	h := &BinaryHeader{
		Columns:   cols,
		RowLength: length,
	}
	h.reindex()
	return h
}

func (h *BinaryHeader) reindex() {
	h.byName = make(map[string]int, len(h.Columns))
	for i := range h.Columns {
		h.byName[h.Columns[i].Name] = i
	}
}

// SetRowCount fixes the global row count and recomputes DataLength.
func (h *BinaryHeader) SetRowCount(rows int64) {
	h.RowCount = rows
	h.DataLength = int64(h.RowLength) * rows
}

// Lookup returns the column with the given name in layout position, or
// false when the header has no such column.
func (h *BinaryHeader) Lookup(name string) (*BinaryColumn, bool) {
	if h.byName == nil {
		h.reindex()
	}
	i, ok := h.byName[name]
	if !ok {
		return nil, false
	}
	return &h.Columns[i], true
}

// ColumnCount returns the number of columns in the layout.
func (h *BinaryHeader) ColumnCount() int {
	return len(h.Columns)
}

// Validate checks the structural invariants of the layout: contiguous
// offsets in layout order summing to RowLength, DataLength consistent with
// RowCount, in-range header indexes, and unique column names.
func (h *BinaryHeader) Validate() error {
	offset := 0
	names := make(map[string]struct{}, len(h.Columns))
	for i := range h.Columns {
		col := &h.Columns[i]
		if col.Offset != offset {
			return errors.New(errors.ErrorTypeValidation, "column offsets are not contiguous").
				WithDetail("column", col.Name).
				WithDetail("offset", col.Offset).
				WithDetail("expected", offset)
		}
		if col.Width < 1 {
			return errors.New(errors.ErrorTypeValidation, "column width must be at least one byte").
				WithDetail("column", col.Name)
		}
		if col.HeaderIndex < 0 || col.HeaderIndex >= len(h.Columns) {
			return errors.New(errors.ErrorTypeValidation, "column header index out of range").
				WithDetail("column", col.Name).
				WithDetail("header_index", col.HeaderIndex)
		}
		if _, dup := names[col.Name]; dup {
			return errors.New(errors.ErrorTypeValidation, "duplicate column name").
				WithDetail("column", col.Name)
		}
		names[col.Name] = struct{}{}
		offset += col.Width
	}
	if offset != h.RowLength {
		return errors.New(errors.ErrorTypeValidation, "row length does not equal the sum of column widths").
			WithDetail("row_length", h.RowLength).
			WithDetail("widths_sum", offset)
	}
	if h.RowCount < 0 {
		return errors.New(errors.ErrorTypeValidation, "negative row count").
			WithDetail("row_count", h.RowCount)
	}
	if h.DataLength != int64(h.RowLength)*h.RowCount {
		return errors.New(errors.ErrorTypeValidation, "data length does not equal row length times row count").
			WithDetail("data_length", h.DataLength).
			WithDetail("row_length", h.RowLength).
			WithDetail("row_count", h.RowCount)
	}
	return nil
}
