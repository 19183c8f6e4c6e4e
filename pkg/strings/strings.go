// Package strings provides high-performance, zero-copy string utilities with pooling for Comet
package strings

import (
	"fmt"
	"strconv"
	"sync"
	"unsafe"
)

// BytesToString converts byte slice to string without allocation
// WARNING: The returned string shares memory with the byte slice.
// Do not modify the byte slice after calling this function.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// StringToBytes converts string to byte slice without allocation
// WARNING: The returned byte slice shares memory with the string.
// Do not modify the returned slice.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// Clone creates a copy of a string (useful when you need to own the memory,
// e.g. keeping a field value after its chunk is unloaded)
func Clone(s string) string {
	if len(s) == 0 {
		return ""
	}
	b := make([]byte, len(s))
	copy(b, StringToBytes(s))
	return BytesToString(b)
}

// Builder provides efficient string building with zero-copy operations
type Builder struct {
	buf []byte
}

// NewBuilder creates a new string builder
func NewBuilder(capacity int) *Builder {
	return &Builder{
		buf: make([]byte, 0, capacity),
	}
}

// WriteString appends a string to the builder
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, StringToBytes(s)...)
}

// WriteBytes appends bytes to the builder
func (b *Builder) WriteBytes(data []byte) {
	b.buf = append(b.buf, data...)
}

// WriteByte appends a single byte
func (b *Builder) WriteByte(c byte) {
	b.buf = append(b.buf, c)
}

// Write implements io.Writer interface
func (b *Builder) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns the built string using zero-copy conversion
func (b *Builder) String() string {
	return BytesToString(b.buf)
}

// Bytes returns the underlying byte slice
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Len returns the length of the built string
func (b *Builder) Len() int {
	return len(b.buf)
}

// Reset resets the builder for reuse
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// Grow grows the buffer capacity
func (b *Builder) Grow(n int) {
	if cap(b.buf)-len(b.buf) < n {
		newSize := len(b.buf) + 2*cap(b.buf) + n
		newBuf := make([]byte, len(b.buf), newSize)
		copy(newBuf, b.buf)
		b.buf = newBuf
	}
}

// Global pools for different string building scenarios
var (
	// Small strings (< 1KB) - error messages, column names
	smallBuilderPool = &sync.Pool{
		New: func() interface{} {
			return NewBuilder(1024) // 1KB
		},
	}

	// Medium strings (1KB - 16KB) - report output, re-emitted rows
	mediumBuilderPool = &sync.Pool{
		New: func() interface{} {
			return NewBuilder(16 * 1024) // 16KB
		},
	}

	// Large strings (16KB+) - bulk row batches
	largeBuilderPool = &sync.Pool{
		New: func() interface{} {
			return NewBuilder(64 * 1024) // 64KB
		},
	}
)

// BuilderSize represents different builder sizes
type BuilderSize int

const (
	Small  BuilderSize = iota // < 1KB
	Medium                    // 1KB - 16KB
	Large                     // 16KB+
)

func sizeFor(length int) BuilderSize {
	switch {
	case length > 16*1024:
		return Large
	case length > 1024:
		return Medium
	default:
		return Small
	}
}

func poolFor(size BuilderSize) *sync.Pool {
	switch size {
	case Medium:
		return mediumBuilderPool
	case Large:
		return largeBuilderPool
	default:
		return smallBuilderPool
	}
}

// GetBuilder retrieves a pooled builder of the specified size
func GetBuilder(size BuilderSize) *Builder {
	builder := poolFor(size).Get().(*Builder)
	builder.Reset()
	return builder
}

// PutBuilder returns a builder to the appropriate pool
func PutBuilder(builder *Builder, size BuilderSize) {
	if builder == nil {
		return
	}
	builder.Reset()
	poolFor(size).Put(builder)
}

// Concat efficiently concatenates strings using a pooled builder
func Concat(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}

	totalLen := 0
	for _, s := range parts {
		totalLen += len(s)
	}

	size := sizeFor(totalLen)
	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	for _, s := range parts {
		builder.WriteString(s)
	}

	return Clone(builder.String())
}

// Sprintf provides a pooled alternative to fmt.Sprintf
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}

	// Rough estimate; the builder grows if it is wrong
	size := sizeFor(len(format) + len(args)*16)
	builder := GetBuilder(size)
	defer PutBuilder(builder, size)

	fmt.Fprintf(builder, format, args...)

	return Clone(builder.String())
}

// ValueToString efficiently converts interface{} values to strings.
// This replaces fmt.Sprintf("%v", value) in hot paths like row re-emission.
func ValueToString(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return BytesToString(v)
	default:
		return Sprintf("%v", value)
	}
}

// RowBuilder builds delimited text rows with proper quoting, honoring the
// separator, qualifier and line-break bytes of the run configuration. Used to
// re-emit parsed rows in normalized form.
type RowBuilder struct {
	builder   *Builder
	size      BuilderSize
	separator byte
	qualifier byte
	lineBreak byte
	rowCount  int
}

// NewRowBuilder creates a row builder for the given delimiter bytes.
func NewRowBuilder(separator, qualifier, lineBreak byte, estimatedBytes int) *RowBuilder {
	size := sizeFor(estimatedBytes)
	return &RowBuilder{
		builder:   GetBuilder(size),
		size:      size,
		separator: separator,
		qualifier: qualifier,
		lineBreak: lineBreak,
	}
}

// WriteRow writes one row, quoting fields that contain the separator,
// qualifier or line-break byte.
func (rb *RowBuilder) WriteRow(fields []string) {
	for i, field := range fields {
		if i > 0 {
			rb.builder.WriteByte(rb.separator)
		}
		rb.writeField(field)
	}
	rb.builder.WriteByte(rb.lineBreak)
	rb.rowCount++
}

func (rb *RowBuilder) writeField(field string) {
	needsQuoting := false
	for i := 0; i < len(field); i++ {
		c := field[i]
		if c == rb.separator || c == rb.qualifier || c == rb.lineBreak || c == '\r' {
			needsQuoting = true
			break
		}
	}

	if !needsQuoting {
		rb.builder.WriteString(field)
		return
	}

	rb.builder.WriteByte(rb.qualifier)
	for i := 0; i < len(field); i++ {
		if field[i] == rb.qualifier {
			// Escape by doubling
			rb.builder.WriteByte(rb.qualifier)
		}
		rb.builder.WriteByte(field[i])
	}
	rb.builder.WriteByte(rb.qualifier)
}

// RowCount returns the number of rows written so far.
func (rb *RowBuilder) RowCount() int {
	return rb.rowCount
}

// String returns the built text.
func (rb *RowBuilder) String() string {
	return Clone(rb.builder.String())
}

// Bytes returns the built text without copying. The slice is invalidated by
// Close.
func (rb *RowBuilder) Bytes() []byte {
	return rb.builder.Bytes()
}

// Reset clears the builder for reuse without releasing it.
func (rb *RowBuilder) Reset() {
	rb.builder.Reset()
	rb.rowCount = 0
}

// Close releases the builder back to the pool
func (rb *RowBuilder) Close() {
	if rb.builder != nil {
		PutBuilder(rb.builder, rb.size)
		rb.builder = nil
	}
}
