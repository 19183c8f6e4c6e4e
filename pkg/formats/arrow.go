package formats

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/schema"
)

// arrowBatchRows is the record batch size used during export.
const arrowBatchRows = 8192

// headerOrdered returns the columns in their original header positions,
// undoing the numeric-first packing order so exports match the source
// column order.
func headerOrdered(h *schema.BinaryHeader) ([]*schema.BinaryColumn, error) {
	cols := make([]*schema.BinaryColumn, len(h.Columns))
	for i := range h.Columns {
		idx := h.Columns[i].HeaderIndex
		if cols[idx] != nil {
			return nil, errors.New(errors.ErrorTypeData, "duplicate column header index").
				WithDetail("index", idx)
		}
		cols[idx] = &h.Columns[i]
	}
	return cols, nil
}

func arrowSchema(cols []*schema.BinaryColumn) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, col := range cols {
		var dt arrow.DataType
		switch col.Type {
		case schema.TypeInt:
			dt = arrow.PrimitiveTypes.Int64
		case schema.TypeFloat:
			dt = arrow.PrimitiveTypes.Float64
		default:
			dt = arrow.BinaryTypes.String
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt}
	}
	return arrow.NewSchema(fields, nil)
}

// WriteArrow exports the file as an Arrow IPC file: int64, float64 and
// string columns in original header order, batched record by record.
func WriteArrow(w io.Writer, f *File) error {
	cols, err := headerOrdered(f.Header)
	if err != nil {
		return err
	}
	sch := arrowSchema(cols)
	alloc := memory.NewGoAllocator()

	builder := array.NewRecordBuilder(alloc, sch)
	defer builder.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(sch), ipc.WithAllocator(alloc))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "creating arrow writer")
	}

	flush := func() error {
		rec := builder.NewRecord()
		defer rec.Release()
		if err := fw.Write(rec); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "writing arrow record batch")
		}
		return nil
	}

	batched := 0
	for row := 0; row < f.Rows(); row++ {
		for i, col := range cols {
			switch col.Type {
			case schema.TypeInt:
				builder.Field(i).(*array.Int64Builder).Append(f.Int64At(col, row))
			case schema.TypeFloat:
				builder.Field(i).(*array.Float64Builder).Append(f.Float64At(col, row))
			default:
				builder.Field(i).(*array.StringBuilder).Append(f.StringAt(col, row))
			}
		}
		if batched++; batched == arrowBatchRows {
			if err := flush(); err != nil {
				return err
			}
			batched = 0
		}
	}
	if batched > 0 {
		if err := flush(); err != nil {
			return err
		}
	}

	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "closing arrow writer")
	}
	return nil
}
