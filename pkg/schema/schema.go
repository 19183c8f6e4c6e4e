// Package schema holds the column model shared by every pipeline phase: the
// per-column statistics accumulated during analysis, the value classification
// rules that feed them, and the fixed-width binary layout derived from them.
package schema

import (
	"strconv"

	stringpool "github.com/ajitpratap0/comet/pkg/strings"
)

// ColumnType identifies the storage class assigned to a column.
type ColumnType uint8

const (
	TypeInvalid ColumnType = iota
	TypeInt
	TypeFloat
	TypeString
)

// String returns the lowercase name used in reports and the inspect output.
func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	default:
		return "invalid"
	}
}

// ValueClass is the classification of a single raw field value.
type ValueClass uint8

const (
	ValueEmpty ValueClass = iota
	ValueInt
	ValueFloat
	ValueString
)

// Classify determines the value class of one raw field. Empty fields are
// ValueEmpty; a value whose every byte parses as a signed 64-bit integer is
// ValueInt; otherwise a float64 parse makes it ValueFloat; anything else is
// ValueString. Escaped quote pairs in raw bytes never parse as numbers, so
// quoted text classifies as ValueString without decoding first.
func Classify(raw []byte) ValueClass {
	if len(raw) == 0 {
		return ValueEmpty
	}
	s := stringpool.BytesToString(raw)
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ValueInt
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return ValueFloat
	}
	return ValueString
}

// ColumnStat accumulates per-column tallies across chunks. The counters are
// mutually informative rather than exclusive: an integer value bumps both
// Ints and Floats (every int is a valid float), a float-only value bumps
// Floats alone, and Strings counts values that are neither. MinLen and MaxLen
// track raw field byte lengths, escaped quotes included.
type ColumnStat struct {
	Name    string `json:"name"`
	MinLen  int    `json:"min_length"`
	MaxLen  int    `json:"max_length"`
	Empty   int64  `json:"empty_count"`
	Strings int64  `json:"string_count"`
	Ints    int64  `json:"int_count"`
	Floats  int64  `json:"float_count"`
}

// NewColumnStats creates one empty stat per header column, in header order.
func NewColumnStats(names []string) []ColumnStat {
	stats := make([]ColumnStat, len(names))
	for i, name := range names {
		stats[i].Name = name
	}
	return stats
}

// observed is the number of fields recorded so far. Every observation lands
// in exactly one of Empty, Strings, or Floats (ints are a subset of floats).
func (s *ColumnStat) observed() int64 {
	return s.Empty + s.Strings + s.Floats
}

// Observe records one field occurrence of the given class and raw length.
func (s *ColumnStat) Observe(class ValueClass, length int) {
	if s.observed() == 0 {
		s.MinLen = length
		s.MaxLen = length
	} else {
		if length < s.MinLen {
			s.MinLen = length
		}
		if length > s.MaxLen {
			s.MaxLen = length
		}
	}

	switch class {
	case ValueEmpty:
		s.Empty++
	case ValueInt:
		s.Ints++
		s.Floats++
	case ValueFloat:
		s.Floats++
	default:
		s.Strings++
	}
}

// Merge folds another stat for the same column into this one. Lengths merge
// elementwise min/max and counters sum, so folding chunks in any order
// produces the same result.
func (s *ColumnStat) Merge(o ColumnStat) {
	if o.observed() > 0 {
		if s.observed() == 0 {
			s.MinLen = o.MinLen
			s.MaxLen = o.MaxLen
		} else {
			if o.MinLen < s.MinLen {
				s.MinLen = o.MinLen
			}
			if o.MaxLen > s.MaxLen {
				s.MaxLen = o.MaxLen
			}
		}
	}

	s.Empty += o.Empty
	s.Strings += o.Strings
	s.Ints += o.Ints
	s.Floats += o.Floats
}

// DominantType resolves the column's storage class from its tallies. Any
// string-only value forces TypeString; otherwise a column with more floats
// than ints is TypeFloat, a column with any ints is TypeInt, and a column
// that only ever held empty values falls back to TypeString.
func (s *ColumnStat) DominantType() ColumnType {
	switch {
	case s.Strings > 0:
		return TypeString
	case s.Floats > s.Ints:
		return TypeFloat
	case s.Ints > 0:
		return TypeInt
	default:
		return TypeString
	}
}

// MergeStats folds src into dst elementwise. Both slices must be in header
// order; extra trailing entries on either side are ignored.
func MergeStats(dst, src []ColumnStat) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i].Merge(src[i])
	}
}
