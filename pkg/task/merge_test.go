package task

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/ajitpratap0/comet/pkg/schema"
)

// buildHeader is a test shorthand for a validated layout.
func buildHeader(t *testing.T, names []string, types []schema.ColumnType, widths []int) *schema.BinaryHeader {
	t.Helper()
	h, err := schema.Layout(names, types, widths, nil)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func packRow(id uint64, name string, nameWidth int) []byte {
	row := make([]byte, 8+nameWidth)
	binary.LittleEndian.PutUint64(row[0:8], id)
	copy(row[8:], name)
	return row
}

func TestMergeRegion(t *testing.T) {
	names := []string{"name", "id"}
	types := []schema.ColumnType{schema.TypeString, schema.TypeInt}

	// Local rows carry 2-byte names; the global layout widened them to 4.
	local := buildHeader(t, names, types, []int{2, 8})
	global := buildHeader(t, names, types, []int{4, 8})

	payload := append(packRow(5, "ab", 2), packRow(7, "c", 2)...)

	// Dirty destination proves the merge zeroes widened string tails.
	dst := bytes.Repeat([]byte{0xFF}, 3*global.RowLength)

	region := &MergeRegion{
		Payload: payload,
		Local:   local,
		Global:  global,
		Rows:    2,
		Dst:     dst,
		Offset:  int64(global.RowLength), // rows 1 and 2 of the output
	}
	res, err := region.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := res.(*MergeResult).Bytes; got != int64(2*global.RowLength) {
		t.Errorf("Bytes = %d, want %d", got, 2*global.RowLength)
	}

	// Row 0 of the output was not this region's; it stays dirty.
	for _, b := range dst[:global.RowLength] {
		if b != 0xFF {
			t.Fatal("merge wrote outside its region")
		}
	}

	row1 := dst[global.RowLength : 2*global.RowLength]
	if v := binary.LittleEndian.Uint64(row1[0:8]); v != 5 {
		t.Errorf("row 1 id = %d, want 5", v)
	}
	if !bytes.Equal(row1[8:12], []byte{'a', 'b', 0, 0}) {
		t.Errorf("row 1 name = %v, want ab padded", row1[8:12])
	}

	row2 := dst[2*global.RowLength : 3*global.RowLength]
	if v := binary.LittleEndian.Uint64(row2[0:8]); v != 7 {
		t.Errorf("row 2 id = %d, want 7", v)
	}
	if !bytes.Equal(row2[8:12], []byte{'c', 0, 0, 0}) {
		t.Errorf("row 2 name = %v, want c padded", row2[8:12])
	}
}

func TestMergeRegionRestrides(t *testing.T) {
	// The local chunk packed name before id (all-string chunk order);
	// globally id packs first. The merge must move cells, not rows.
	names := []string{"id", "name"}
	types := []schema.ColumnType{schema.TypeInt, schema.TypeString}

	local, err := schema.Layout(names, types, []int{8, 3}, []int{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	global := buildHeader(t, names, types, []int{8, 3})

	// One local row: name "xyz" at offset 0, id 9 at offset 3.
	row := make([]byte, local.RowLength)
	copy(row[0:3], "xyz")
	binary.LittleEndian.PutUint64(row[3:11], 9)

	dst := make([]byte, global.RowLength)
	region := &MergeRegion{Payload: row, Local: local, Global: global, Rows: 1, Dst: dst, Offset: 0}
	if _, err := region.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if v := binary.LittleEndian.Uint64(dst[0:8]); v != 9 {
		t.Errorf("id = %d, want 9", v)
	}
	if string(dst[8:11]) != "xyz" {
		t.Errorf("name = %q, want xyz", dst[8:11])
	}
}

func TestMergeRegionColumnMismatch(t *testing.T) {
	local := buildHeader(t, []string{"a"}, []schema.ColumnType{schema.TypeInt}, []int{8})
	global := buildHeader(t, []string{"b"}, []schema.ColumnType{schema.TypeInt}, []int{8})

	region := &MergeRegion{
		Payload: make([]byte, 8),
		Local:   local,
		Global:  global,
		Rows:    1,
		Dst:     make([]byte, 8),
	}
	if _, err := region.Run(context.Background()); err == nil {
		t.Fatal("expected column mismatch error")
	}
}

func TestMergeAggregate(t *testing.T) {
	names := []string{"id"}
	types := []schema.ColumnType{schema.TypeInt}
	layout := buildHeader(t, names, types, []int{8})

	rowBytes := func(v uint64) []byte {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		return b
	}

	dst := make([]byte, 3*layout.RowLength)
	agg := &MergeAggregate{Regions: []MergeRegion{
		{Payload: append(rowBytes(1), rowBytes(2)...), Local: layout, Global: layout, Rows: 2, Dst: dst, Offset: 0},
		{Payload: rowBytes(3), Local: layout, Global: layout, Rows: 1, Dst: dst, Offset: int64(2 * layout.RowLength)},
	}}
	res, err := agg.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := res.(*MergeResult).Bytes; got != 24 {
		t.Errorf("Bytes = %d, want 24", got)
	}
	for i, want := range []uint64{1, 2, 3} {
		if v := binary.LittleEndian.Uint64(dst[i*8 : i*8+8]); v != want {
			t.Errorf("row %d = %d, want %d", i, v, want)
		}
	}
}
