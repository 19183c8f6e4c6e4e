package scan

import (
	"reflect"
	"strings"
	"testing"
)

var testProfile = Profile{
	Separator:  ',',
	Qualifier:  '"',
	LineBreak:  '\n',
	MaxRowSize: 128 * 1024,
}

// testSink records emitted fields as strings for readable expectations.
type testSink struct {
	data   []byte
	fields []string
	flags  []FieldFlags
}

func (s *testSink) Field(start, end uint32, flags FieldFlags) {
	s.fields = append(s.fields, string(s.data[start:end]))
	s.flags = append(s.flags, flags)
}

// scanAll tokenizes every row in data and returns per-row fields plus the
// total malformed count.
func scanAll(t *testing.T, data string, cfg Profile) ([][]string, int) {
	t.Helper()
	var rows [][]string
	malformed := 0
	buf := []byte(data)

	off := 0
	for off < len(buf) {
		sink := &testSink{data: buf}
		next, res := Row(buf, off, cfg, sink)
		if next <= off {
			t.Fatalf("Row did not advance: off=%d next=%d", off, next)
		}
		if res.Fields != len(sink.fields) {
			t.Fatalf("Fields=%d but sink saw %d", res.Fields, len(sink.fields))
		}
		if res.Fields > 0 {
			rows = append(rows, sink.fields)
		}
		if res.Malformed {
			malformed++
		}
		off = next
	}
	return rows, malformed
}

func TestRowBasic(t *testing.T) {
	rows, malformed := scanAll(t, "a,b\n1,2\n3,4\n", testProfile)

	want := [][]string{{"a", "b"}, {"1", "2"}, {"3", "4"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 0 {
		t.Errorf("malformed = %d, want 0", malformed)
	}
}

func TestRowQuotedStructuralBytes(t *testing.T) {
	rows, malformed := scanAll(t, "\"a,b\",\"1\n2\",c\n", testProfile)

	want := [][]string{{"a,b", "1\n2", "c"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 0 {
		t.Errorf("malformed = %d, want 0", malformed)
	}
}

func TestRowEscapedQuote(t *testing.T) {
	data := []byte("\"a\"\"b\",c\n")
	sink := &testSink{data: data}
	next, res := Row(data, 0, testProfile, sink)

	if next != len(data) {
		t.Fatalf("next = %d, want %d", next, len(data))
	}
	if res.Malformed {
		t.Error("row should not be malformed")
	}
	// The raw range keeps the doubled qualifier; the flag says so.
	if sink.fields[0] != "a\"\"b" {
		t.Errorf("raw field = %q, want %q", sink.fields[0], "a\"\"b")
	}
	if sink.flags[0]&FieldEscaped == 0 {
		t.Error("first field should carry FieldEscaped")
	}
	if sink.flags[0]&FieldQuoted == 0 {
		t.Error("first field should carry FieldQuoted")
	}
	if sink.flags[1] != 0 {
		t.Errorf("second field flags = %v, want none", sink.flags[1])
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	// A field holding an escaped quote decodes to a single literal quote.
	fields, _, res := FirstRow([]byte("\"a\"\"b\",c\n"), testProfile)
	if res.Malformed {
		t.Error("row should not be malformed")
	}
	want := []string{"a\"b", "c"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
}

func TestRowUnterminatedQuote(t *testing.T) {
	rows, malformed := scanAll(t, "\"x,y\n", testProfile)

	want := [][]string{{"x,y"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 1 {
		t.Errorf("malformed = %d, want 1", malformed)
	}
}

func TestRowRogueQualifier(t *testing.T) {
	rows, malformed := scanAll(t, "a\"b,c\n1,2\n", testProfile)

	// The rogue qualifier stays literal content and the next row is clean.
	want := [][]string{{"a\"b", "c"}, {"1", "2"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 1 {
		t.Errorf("malformed = %d, want 1", malformed)
	}
}

func TestRowQualifierAfterClose(t *testing.T) {
	rows, malformed := scanAll(t, "\"ab\"x\",c\n", testProfile)

	// Quoting closes after ab; the later lone qualifier is rogue.
	want := [][]string{{"ab", "c"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 1 {
		t.Errorf("malformed = %d, want 1", malformed)
	}
}

func TestRowDoubledQualifierBeforeSeparator(t *testing.T) {
	// The doubled-qualifier rule wins over close-then-rogue, so quoting
	// stays open through the separator and the line break recovers it.
	rows, malformed := scanAll(t, "\"ab\"\",c\n", testProfile)

	want := [][]string{{"ab\"\",c"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 1 {
		t.Errorf("malformed = %d, want 1", malformed)
	}
}

func TestRowContentAfterCloseIgnored(t *testing.T) {
	rows, malformed := scanAll(t, "\"ab\"xx,c\n", testProfile)

	// Bytes between a closing qualifier and the separator fall outside the
	// reported range.
	want := [][]string{{"ab", "c"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 0 {
		t.Errorf("malformed = %d, want 0", malformed)
	}
}

func TestRowCRLF(t *testing.T) {
	rows, malformed := scanAll(t, "a,b\r\n1,2\r\n", testProfile)

	want := [][]string{{"a", "b"}, {"1", "2"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 0 {
		t.Errorf("malformed = %d, want 0", malformed)
	}
}

func TestRowCRLFQuotedField(t *testing.T) {
	// A closing qualifier already bounds the content, so the trailing \r
	// never reaches the field.
	rows, _ := scanAll(t, "a,\"b\"\r\n", testProfile)

	want := [][]string{{"a", "b"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestRowCRLFUnterminatedQuote(t *testing.T) {
	rows, malformed := scanAll(t, "\"x\r\n", testProfile)

	want := [][]string{{"x"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 1 {
		t.Errorf("malformed = %d, want 1", malformed)
	}
}

func TestRowEmptyFields(t *testing.T) {
	rows, _ := scanAll(t, "a,,c\n,,\n", testProfile)

	want := [][]string{{"a", "", "c"}, {"", "", ""}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestRowEmptyLine(t *testing.T) {
	rows, _ := scanAll(t, "a\n\nb\n", testProfile)

	want := [][]string{{"a"}, {""}, {"b"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestRowTrailingFieldAtViewEnd(t *testing.T) {
	// No trailing line break: the last field is still emitted.
	rows, _ := scanAll(t, "a,b\n3,4", testProfile)
	want := [][]string{{"a", "b"}, {"3", "4"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}

	// An empty trailing field at view end is not emitted.
	rows, _ = scanAll(t, "a,", testProfile)
	want = [][]string{{"a"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestRowUnterminatedQuoteAtViewEnd(t *testing.T) {
	rows, malformed := scanAll(t, "a,\"bc", testProfile)

	want := [][]string{{"a", "bc"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 1 {
		t.Errorf("malformed = %d, want 1", malformed)
	}
}

func TestRowQuotedEmptyField(t *testing.T) {
	rows, _ := scanAll(t, "\"\",b\n", testProfile)

	want := [][]string{{"", "b"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestRowTabDialect(t *testing.T) {
	cfg := Profile{Separator: '\t', Qualifier: '\'', LineBreak: '\n', MaxRowSize: 1024}
	rows, malformed := scanAll(t, "a\t'b\tc'\n1\t2\n", cfg)

	want := [][]string{{"a", "b\tc"}, {"1", "2"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if malformed != 0 {
		t.Errorf("malformed = %d, want 0", malformed)
	}
}

func TestFirstRow(t *testing.T) {
	fields, next, res := FirstRow([]byte("id,name,city\n1,ann,berlin\n"), testProfile)

	want := []string{"id", "name", "city"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
	if next != 13 {
		t.Errorf("next = %d, want 13", next)
	}
	if res.Malformed {
		t.Error("header row should not be malformed")
	}
}

func TestDecodedLen(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"a\"\"b", 3},
		{"\"\"\"\"", 2},
		{"a\"b", 3},
		{"\"\"", 1},
	}

	for _, tt := range tests {
		if got := DecodedLen([]byte(tt.raw), '"'); got != tt.want {
			t.Errorf("DecodedLen(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestAppendUnescaped(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"a\"\"b", "a\"b"},
		{"\"\"\"\"", "\"\""},
		{"a\"b", "a\"b"},
	}

	for _, tt := range tests {
		got := AppendUnescaped(nil, []byte(tt.raw), '"')
		if string(got) != tt.want {
			t.Errorf("AppendUnescaped(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestResolveEncoding(t *testing.T) {
	enc, err := ResolveEncoding("utf-8")
	if err != nil || enc != nil {
		t.Errorf("utf-8: enc=%v err=%v, want nil,nil", enc, err)
	}

	enc, err = ResolveEncoding("latin1")
	if err != nil || enc == nil {
		t.Errorf("latin1: enc=%v err=%v, want decoder,nil", enc, err)
	}

	if _, err = ResolveEncoding("utf-16le"); err == nil {
		t.Error("utf-16le should be rejected")
	}

	if _, err = ResolveEncoding("no-such-encoding"); err == nil {
		t.Error("unknown encoding should be rejected")
	}
}

type nopSink struct{}

func (nopSink) Field(start, end uint32, flags FieldFlags) {}

func BenchmarkRow(b *testing.B) {
	row := "1001,alice,\"berlin, de\",42.5,2021-04-01\n"
	data := []byte(strings.Repeat(row, 256))
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		off := 0
		for off < len(data) {
			off, _ = Row(data, off, testProfile, nopSink{})
		}
	}
}
