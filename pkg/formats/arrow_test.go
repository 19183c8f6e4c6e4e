package formats

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/comet/pkg/schema"
)

func TestWriteArrowRoundTrip(t *testing.T) {
	f := testFile(t)

	var buf bytes.Buffer
	require.NoError(t, WriteArrow(&buf, f))

	fr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer fr.Close()

	// Export restores the original header order: num, txt, val.
	sch := fr.Schema()
	require.Len(t, sch.Fields(), 3)
	assert.Equal(t, "num", sch.Field(0).Name)
	assert.Equal(t, "txt", sch.Field(1).Name)
	assert.Equal(t, "val", sch.Field(2).Name)
	assert.Equal(t, arrow.PrimitiveTypes.Int64, sch.Field(0).Type)
	assert.Equal(t, arrow.BinaryTypes.String, sch.Field(1).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, sch.Field(2).Type)

	require.Equal(t, 1, fr.NumRecords())
	rec, err := fr.Record(0)
	require.NoError(t, err)
	require.Equal(t, int64(2), rec.NumRows())

	nums := rec.Column(0).(*array.Int64)
	txts := rec.Column(1).(*array.String)
	vals := rec.Column(2).(*array.Float64)
	assert.Equal(t, int64(7), nums.Value(0))
	assert.Equal(t, int64(-3), nums.Value(1))
	assert.Equal(t, "ab", txts.Value(0))
	assert.Equal(t, "wxyz", txts.Value(1))
	assert.Equal(t, 1.5, vals.Value(0))
	assert.Equal(t, 2.25, vals.Value(1))
}

func TestWriteArrowEmpty(t *testing.T) {
	h, err := schema.Layout([]string{"a"}, []schema.ColumnType{schema.TypeString}, []int{1}, nil)
	require.NoError(t, err)
	h.SetRowCount(0)
	f := &File{Header: h}

	var buf bytes.Buffer
	require.NoError(t, WriteArrow(&buf, f))

	fr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer fr.Close()
	assert.Equal(t, 0, fr.NumRecords())
	assert.Equal(t, "a", fr.Schema().Field(0).Name)
}
