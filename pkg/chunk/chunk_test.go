package chunk

import (
	"testing"

	"golang.org/x/text/encoding/charmap"

	"github.com/ajitpratap0/comet/pkg/scan"
)

var testProfile = scan.Profile{
	Separator:  ',',
	Qualifier:  '"',
	LineBreak:  '\n',
	MaxRowSize: 1024,
}

func materialize(t *testing.T, data string, cols int) *LoadedChunk {
	t.Helper()
	desc := Descriptor{Index: 0, Start: 0, End: int64(len(data))}
	return Materialize(desc, []byte(data), cols, testProfile)
}

func TestDescriptorSize(t *testing.T) {
	d := Descriptor{Index: 2, Start: 100, End: 356}
	if d.Size() != 256 {
		t.Errorf("Size() = %d, want 256", d.Size())
	}
}

func TestMaterialize(t *testing.T) {
	c := materialize(t, "1,ann\n2,bob\n3,eve\n", 2)

	if c.RowCount() != 3 {
		t.Fatalf("RowCount() = %d, want 3", c.RowCount())
	}
	if c.Malformed() != 0 {
		t.Errorf("Malformed() = %d, want 0", c.Malformed())
	}
	if c.Columns() != 2 {
		t.Errorf("Columns() = %d, want 2", c.Columns())
	}

	v := NewRowView(c, '"', nil)
	want := [][]string{{"1", "ann"}, {"2", "bob"}, {"3", "eve"}}
	for i, row := range want {
		v.SetIndex(i)
		for col, expect := range row {
			if got := string(v.Field(col)); got != expect {
				t.Errorf("row %d col %d = %q, want %q", i, col, got, expect)
			}
		}
	}
}

func TestMaterializeNoTrailingLineBreak(t *testing.T) {
	c := materialize(t, "1,ann\n2,bob", 2)

	if c.RowCount() != 2 {
		t.Fatalf("RowCount() = %d, want 2", c.RowCount())
	}
	v := NewRowView(c, '"', nil)
	v.SetIndex(1)
	if got := string(v.Field(1)); got != "bob" {
		t.Errorf("field = %q, want %q", got, "bob")
	}
}

func TestMaterializeMalformed(t *testing.T) {
	c := materialize(t, "\"x,y\n1,2\n", 2)

	if c.RowCount() != 2 {
		t.Errorf("RowCount() = %d, want 2", c.RowCount())
	}
	if c.Malformed() != 1 {
		t.Errorf("Malformed() = %d, want 1", c.Malformed())
	}

	v := NewRowView(c, '"', nil)
	v.SetIndex(0)
	if got := string(v.Field(0)); got != "x,y" {
		t.Errorf("recovered field = %q, want %q", got, "x,y")
	}
}

func TestRowViewEscapedField(t *testing.T) {
	c := materialize(t, "\"a\"\"b\",c\n", 2)

	v := NewRowView(c, '"', nil)
	v.SetIndex(0)

	// Raw keeps the doubled qualifier.
	if got := string(v.Field(0)); got != "a\"\"b" {
		t.Errorf("Field = %q, want %q", got, "a\"\"b")
	}
	if !v.Escaped(0) {
		t.Error("Escaped(0) = false, want true")
	}

	val, err := v.Value(0)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if val != "a\"b" {
		t.Errorf("Value = %q, want %q", val, "a\"b")
	}

	got := v.Append(0, nil)
	if string(got) != "a\"b" {
		t.Errorf("Append = %q, want %q", got, "a\"b")
	}
}

func TestRowViewMissingAndExtraFields(t *testing.T) {
	// First row is short one field, second row has one too many.
	c := materialize(t, "1\n2,b,extra\n", 2)

	v := NewRowView(c, '"', nil)
	v.SetIndex(0)
	if got := string(v.Field(1)); got != "" {
		t.Errorf("missing field = %q, want empty", got)
	}
	v.SetIndex(1)
	if got := string(v.Field(1)); got != "b" {
		t.Errorf("field = %q, want %q", got, "b")
	}
	if got := v.Field(5); got != nil {
		t.Errorf("out-of-range field = %v, want nil", got)
	}
}

func TestRowViewTranscoding(t *testing.T) {
	// 0xE9 is é in Latin-1.
	data := []byte{'c', 0xE9, ',', 'x', '\n'}
	desc := Descriptor{Index: 0, Start: 0, End: int64(len(data))}
	c := Materialize(desc, data, 2, testProfile)

	v := NewRowView(c, '"', charmap.Windows1252)
	v.SetIndex(0)

	val, err := v.Value(0)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if val != "cé" {
		t.Errorf("Value = %q, want %q", val, "cé")
	}
}

func TestRowViewReuseAcrossChunks(t *testing.T) {
	a := materialize(t, "1,2\n", 2)
	b := materialize(t, "3,4\n", 2)

	v := NewRowView(a, '"', nil)
	v.SetIndex(0)
	if got := string(v.Field(0)); got != "1" {
		t.Fatalf("field = %q, want 1", got)
	}

	v.Reset(b)
	v.SetIndex(0)
	if got := string(v.Field(1)); got != "4" {
		t.Errorf("field = %q, want 4", got)
	}
}

func TestUnloadIdempotent(t *testing.T) {
	c := materialize(t, "1,2\n", 2)

	c.Unload()
	if c.Bytes() != nil {
		t.Error("Bytes() should be nil after Unload")
	}
	// Second call must be a no-op, not a double release.
	c.Unload()
}

func TestOffsetSinkRollback(t *testing.T) {
	s := NewOffsetSink(2, 4)
	s.BeginRow()
	s.Field(0, 1, 0)
	if len(s.offsets) != 4 {
		t.Fatalf("len(offsets) = %d, want 4", len(s.offsets))
	}
	s.Rollback()
	if len(s.offsets) != 0 {
		t.Errorf("len(offsets) = %d after rollback, want 0", len(s.offsets))
	}
}

func BenchmarkMaterialize(b *testing.B) {
	row := "1001,alice,\"berlin, de\",42.5\n"
	data := make([]byte, 0, 1<<20)
	for len(data) < 1<<20-len(row) {
		data = append(data, row...)
	}
	desc := Descriptor{Index: 0, Start: 0, End: int64(len(data))}
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		c := Materialize(desc, data, 4, testProfile)
		c.Unload()
	}
}
