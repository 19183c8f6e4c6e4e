package formats

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/schema"
	stringpool "github.com/ajitpratap0/comet/pkg/strings"
)

// Container layout, little-endian throughout:
//
//	magic "CBC1" | u16 version | u16 flags | u32 columnCount | u64 rowCount
//	u32 rowLength | u64 dataLength | u64 dataOffset
//	per column: u16 nameLen | name | u32 headerIndex | u32 width | u32 offset | u8 type
//	row region: rowCount × rowLength bytes starting at dataOffset
const (
	// Magic identifies a comet binary columnar file.
	Magic = "CBC1"
	// Version is the container version this package writes.
	Version = 1

	fixedHeaderSize = 4 + 2 + 2 + 4 + 8 + 4 + 8 + 8
	columnFixedSize = 2 + 4 + 4 + 4 + 1

	// maxColumns bounds the column count read back from a file, catching
	// corrupt headers before they turn into huge allocations.
	maxColumns = 1 << 20
)

// HeaderSize returns the serialized byte length of h, which is also the
// file offset where row data begins.
func HeaderSize(h *schema.BinaryHeader) int {
	size := fixedHeaderSize
	for i := range h.Columns {
		size += columnFixedSize + len(h.Columns[i].Name)
	}
	return size
}

// WriteBinary serializes the header and row data to w and returns the bytes
// written.
func WriteBinary(w io.Writer, h *schema.BinaryHeader, data []byte) (int64, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}
	if int64(len(data)) != h.DataLength {
		return 0, errors.New(errors.ErrorTypeValidation, "row data length does not match header").
			WithDetail("data_len", len(data)).
			WithDetail("data_length", h.DataLength)
	}

	hdrSize := HeaderSize(h)
	buf := make([]byte, 0, hdrSize)
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint16(buf, Version)
	buf = binary.LittleEndian.AppendUint16(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(h.Columns)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.RowCount))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.RowLength))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.DataLength))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(hdrSize))
	for i := range h.Columns {
		col := &h.Columns[i]
		if len(col.Name) > math.MaxUint16 {
			return 0, errors.New(errors.ErrorTypeValidation, "column name exceeds maximum length").
				WithDetail("column", i).
				WithDetail("length", len(col.Name))
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(col.Name)))
		buf = append(buf, col.Name...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(col.HeaderIndex))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(col.Width))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(col.Offset))
		buf = append(buf, byte(col.Type))
	}

	n, err := w.Write(buf)
	written := int64(n)
	if err != nil {
		return written, errors.Wrap(err, errors.ErrorTypeFile, "writing container header")
	}
	n, err = w.Write(data)
	written += int64(n)
	if err != nil {
		return written, errors.Wrap(err, errors.ErrorTypeFile, "writing row data")
	}
	return written, nil
}

// File is a binary columnar file read back into memory. Accessors return
// values straight out of Data without copying.
type File struct {
	Header *schema.BinaryHeader
	Data   []byte
}

// ReadBinary parses a binary columnar file from r, validating the header
// against the container invariants before loading the row region.
func ReadBinary(r io.Reader) (*File, error) {
	fixed := make([]byte, fixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "reading container header")
	}
	if string(fixed[:4]) != Magic {
		return nil, errors.New(errors.ErrorTypeData, "not a comet binary columnar file")
	}
	if v := binary.LittleEndian.Uint16(fixed[4:]); v != Version {
		return nil, errors.New(errors.ErrorTypeData, "unsupported container version").
			WithDetail("version", v).
			WithDetail("supported", Version)
	}
	colCount := binary.LittleEndian.Uint32(fixed[8:])
	rowCount := binary.LittleEndian.Uint64(fixed[12:])
	rowLength := binary.LittleEndian.Uint32(fixed[20:])
	dataLength := binary.LittleEndian.Uint64(fixed[24:])
	dataOffset := binary.LittleEndian.Uint64(fixed[32:])

	if colCount > maxColumns {
		return nil, errors.New(errors.ErrorTypeData, "column count exceeds maximum").
			WithDetail("columns", colCount)
	}
	if rowCount > math.MaxInt64 || dataLength > math.MaxInt64 || dataOffset > math.MaxInt64 {
		return nil, errors.New(errors.ErrorTypeData, "container sizes overflow")
	}

	cols := make([]schema.BinaryColumn, 0, colCount)
	consumed := uint64(fixedHeaderSize)
	nameLen := make([]byte, 2)
	for i := uint32(0); i < colCount; i++ {
		if _, err := io.ReadFull(r, nameLen); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "reading column entry")
		}
		entry := make([]byte, int(binary.LittleEndian.Uint16(nameLen))+columnFixedSize-2)
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "reading column entry")
		}
		name := entry[:len(entry)-13]
		rest := entry[len(entry)-13:]
		cols = append(cols, schema.BinaryColumn{
			Name:        string(name),
			HeaderIndex: int(binary.LittleEndian.Uint32(rest[0:])),
			Width:       int(binary.LittleEndian.Uint32(rest[4:])),
			Offset:      int(binary.LittleEndian.Uint32(rest[8:])),
			Type:        schema.ColumnType(rest[12]),
		})
		consumed += uint64(2 + len(entry))
	}

	h := schema.NewBinaryHeader(cols)
	h.SetRowCount(int64(rowCount))
	h.DataOffset = int64(dataOffset)
	if h.RowLength != int(rowLength) {
		return nil, errors.New(errors.ErrorTypeData, "row length does not match column widths").
			WithDetail("row_length", rowLength).
			WithDetail("widths_sum", h.RowLength)
	}
	if h.DataLength != int64(dataLength) {
		return nil, errors.New(errors.ErrorTypeData, "data length does not match row count").
			WithDetail("data_length", dataLength).
			WithDetail("expected", h.DataLength)
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	// Later versions may pad between header and data; skip to dataOffset.
	if dataOffset < consumed {
		return nil, errors.New(errors.ErrorTypeData, "data offset overlaps container header").
			WithDetail("data_offset", dataOffset)
	}
	if skip := int64(dataOffset - consumed); skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "skipping header padding")
		}
	}

	data := make([]byte, dataLength)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "reading row region")
	}
	return &File{Header: h, Data: data}, nil
}

// Rows returns the number of rows in the file.
func (f *File) Rows() int {
	return int(f.Header.RowCount)
}

func (f *File) cell(col *schema.BinaryColumn, row int) []byte {
	off := row*f.Header.RowLength + col.Offset
	return f.Data[off : off+col.Width]
}

// Int64At reads the integer cell at (col, row).
func (f *File) Int64At(col *schema.BinaryColumn, row int) int64 {
	return int64(binary.LittleEndian.Uint64(f.cell(col, row)))
}

// Float64At reads the float cell at (col, row).
func (f *File) Float64At(col *schema.BinaryColumn, row int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(f.cell(col, row)))
}

// BytesAt returns the string cell at (col, row) with its zero padding
// trimmed. The slice aliases the file's data.
func (f *File) BytesAt(col *schema.BinaryColumn, row int) []byte {
	cell := f.cell(col, row)
	end := len(cell)
	for end > 0 && cell[end-1] == 0 {
		end--
	}
	return cell[:end]
}

// StringAt returns the string cell at (col, row) without copying. The value
// aliases the file's data and must not outlive it.
func (f *File) StringAt(col *schema.BinaryColumn, row int) string {
	return stringpool.BytesToString(f.BytesAt(col, row))
}
