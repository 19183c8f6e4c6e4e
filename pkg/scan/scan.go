// Package scan implements the row tokenizer every worker runs: a byte-level
// state machine that recognizes one delimited row per call and reports field
// ranges without decoding or copying. The same function body serves the
// analysis, binary, and load phases; only the sink consuming the field
// ranges differs between them.
package scan

// Profile carries the structural bytes the tokenizer matches plus the row
// size bound used by boundary scans. It is immutable for a pipeline run.
type Profile struct {
	Separator  byte
	Qualifier  byte
	LineBreak  byte
	MaxRowSize int
}

// FieldFlags annotate an emitted field range.
type FieldFlags uint8

const (
	// FieldQuoted marks a field that was enclosed in qualifiers. The
	// reported range excludes the qualifiers themselves.
	FieldQuoted FieldFlags = 1 << iota
	// FieldEscaped marks a field whose raw range contains at least one
	// doubled qualifier. Decoding collapses each pair to a single byte.
	FieldEscaped
)

// FieldSink receives the raw content range of each recognized field. Ranges
// are offsets into the data slice passed to Row; for quoted fields they
// exclude the enclosing qualifiers but keep doubled qualifiers verbatim.
type FieldSink interface {
	Field(start, end uint32, flags FieldFlags)
}

// RowResult reports what one Row call recognized. Fields is zero only when
// the view ended with no trailing content, meaning no row was present.
type RowResult struct {
	Fields    int
	Malformed bool
}

// Row scans one row starting at off and returns the offset just past the
// consumed row along with the row's result. Structural bytes follow the
// profile: a qualifier at the start of a field opens quoting, a doubled
// qualifier inside quoting is an escaped literal kept in the raw range, and
// a single qualifier inside quoting closes it. A qualifier anywhere else is
// malformed but recoverable: the row is marked and scanning continues. A
// separator or line break inside quoting is ordinary content. An
// unterminated quoted field at a line break is malformed; quoting is forced
// closed and the row still terminates. When the line break is '\n', a '\r'
// directly before it is trimmed from the final field. A trailing field at
// the end of the view with no terminator is emitted only if it is non-empty.
func Row(data []byte, off int, cfg Profile, sink FieldSink) (int, RowResult) {
	var res RowResult

	n := len(data)
	fieldStart := off
	contentEnd := -1
	quoted := false
	escaped := false
	inQuotes := false

	flags := func() FieldFlags {
		var f FieldFlags
		if quoted {
			f |= FieldQuoted
		}
		if escaped {
			f |= FieldEscaped
		}
		return f
	}

	i := off
	for i < n {
		b := data[i]

		if b == cfg.Qualifier {
			switch {
			case !quoted && !inQuotes && i == fieldStart:
				// Opening qualifier; content starts after it.
				quoted = true
				inQuotes = true
				fieldStart = i + 1
			case inQuotes && i+1 < n && data[i+1] == cfg.Qualifier:
				// Doubled qualifier: escaped literal, both bytes stay raw.
				escaped = true
				i++
			case inQuotes:
				// Closing qualifier; content ends here.
				inQuotes = false
				contentEnd = i
			default:
				// Rogue qualifier outside quoting: recoverable.
				res.Malformed = true
			}
			i++
			continue
		}

		if b == cfg.Separator && !inQuotes {
			end := i
			if contentEnd >= 0 {
				end = contentEnd
			}
			sink.Field(uint32(fieldStart), uint32(end), flags())
			res.Fields++
			fieldStart = i + 1
			contentEnd = -1
			quoted = false
			escaped = false
			i++
			continue
		}

		if b == cfg.LineBreak {
			if inQuotes {
				// Unterminated quoted field: force quoting closed.
				res.Malformed = true
				inQuotes = false
			}
			end := i
			if contentEnd >= 0 {
				end = contentEnd
			} else if cfg.LineBreak == '\n' && end > fieldStart && data[end-1] == '\r' {
				end--
			}
			sink.Field(uint32(fieldStart), uint32(end), flags())
			res.Fields++
			return i + 1, res
		}

		i++
	}

	// View end. An open quote here is the same recoverable condition as an
	// unterminated quote at a line break.
	if inQuotes {
		res.Malformed = true
		inQuotes = false
	}
	end := n
	if contentEnd >= 0 {
		end = contentEnd
	}
	if end > fieldStart {
		sink.Field(uint32(fieldStart), uint32(end), flags())
		res.Fields++
	}
	return n, res
}

type capturedField struct {
	start, end uint32
	flags      FieldFlags
}

type captureSink struct {
	fields []capturedField
}

func (s *captureSink) Field(start, end uint32, flags FieldFlags) {
	s.fields = append(s.fields, capturedField{start, end, flags})
}

// FirstRow tokenizes the first row of data and returns its decoded field
// values plus the offset just past the row. It backs header reading: callers
// hand it a head window of at most MaxRowSize bytes.
func FirstRow(data []byte, cfg Profile) ([]string, int, RowResult) {
	var sink captureSink
	next, res := Row(data, 0, cfg, &sink)

	fields := make([]string, len(sink.fields))
	for i, f := range sink.fields {
		raw := data[f.start:f.end]
		if f.flags&FieldEscaped != 0 {
			fields[i] = string(AppendUnescaped(nil, raw, cfg.Qualifier))
		} else {
			fields[i] = string(raw)
		}
	}
	return fields, next, res
}
