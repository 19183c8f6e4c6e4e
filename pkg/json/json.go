// Package json wraps goccy/go-json with pooled buffers and encoders for the
// report and streaming output paths.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// RawMessage is a preformatted JSON value written verbatim by encoders.
type RawMessage = gojson.RawMessage

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer.
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool. Very large buffers are dropped so
// one oversized report does not pin memory.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 {
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// MarshalToWriter marshals v directly to w without HTML escaping.
func MarshalToWriter(w io.Writer, v interface{}) error {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// StreamingEncoder emits a sequence of values as either one JSON array or
// line-delimited JSON. Not safe for concurrent use.
type StreamingEncoder struct {
	writer      io.Writer
	encoder     *gojson.Encoder
	firstRecord bool
	isArray     bool
	err         error
}

// NewStreamingEncoder creates a streaming encoder. With isArray the output
// is wrapped in brackets and comma-separated; otherwise each value lands on
// its own line.
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)

	se := &StreamingEncoder{
		writer:      w,
		encoder:     enc,
		firstRecord: true,
		isArray:     isArray,
	}
	if isArray {
		_, se.err = w.Write([]byte{'['})
	}
	return se
}

// Encode appends one value. After the first error every call is a no-op
// returning that error.
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.err != nil {
		return se.err
	}
	if se.isArray && !se.firstRecord {
		if _, err := se.writer.Write([]byte{','}); err != nil {
			se.err = err
			return err
		}
	}
	se.firstRecord = false
	if err := se.encoder.Encode(v); err != nil {
		se.err = err
	}
	return se.err
}

// Close finalizes the stream, writing the closing bracket in array mode.
func (se *StreamingEncoder) Close() error {
	if se.err != nil {
		return se.err
	}
	if se.isArray {
		_, se.err = se.writer.Write([]byte{']', '\n'})
	}
	return se.err
}

// ObjectWriter builds one JSON object with fields in insertion order, which
// map marshaling cannot guarantee. The accumulated bytes are valid JSON once
// End has been called.
type ObjectWriter struct {
	buffer []byte
	fields int
}

// NewObjectWriter creates an ObjectWriter with the given initial capacity,
// ready for the first object.
func NewObjectWriter(initialSize int) *ObjectWriter {
	w := &ObjectWriter{buffer: make([]byte, 0, initialSize)}
	w.Reset()
	return w
}

// Reset clears the writer for the next object, keeping the buffer.
func (w *ObjectWriter) Reset() {
	w.buffer = append(w.buffer[:0], '{')
	w.fields = 0
}

// Field appends one key/value pair. Keys and values are escaped through the
// regular marshaler.
func (w *ObjectWriter) Field(key string, value interface{}) error {
	if w.fields > 0 {
		w.buffer = append(w.buffer, ',')
	}
	k, err := gojson.Marshal(key)
	if err != nil {
		return err
	}
	w.buffer = append(w.buffer, k...)
	w.buffer = append(w.buffer, ':')

	v, err := gojson.Marshal(value)
	if err != nil {
		return err
	}
	w.buffer = append(w.buffer, v...)
	w.fields++
	return nil
}

// End closes the object.
func (w *ObjectWriter) End() {
	w.buffer = append(w.buffer, '}')
}

// Bytes returns the accumulated object. The slice is invalidated by Reset.
func (w *ObjectWriter) Bytes() []byte {
	return w.buffer
}
