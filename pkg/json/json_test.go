package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRoundTrip(t *testing.T) {
	type payload struct {
		Name  string  `json:"name"`
		Count int64   `json:"count"`
		Ratio float64 `json:"ratio"`
	}

	in := payload{Name: "rows", Count: 42, Ratio: 0.5}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalToWriterNoHTMLEscape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalToWriter(&buf, map[string]string{"q": "a<b>c"}))
	assert.Equal(t, "{\"q\":\"a<b>c\"}\n", buf.String())
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("hello")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Zero(t, again.Len())
	PutBuffer(again)
}

func TestStreamingEncoderLines(t *testing.T) {
	var buf bytes.Buffer
	se := NewStreamingEncoder(&buf, false)
	require.NoError(t, se.Encode(map[string]int{"a": 1}))
	require.NoError(t, se.Encode(map[string]int{"b": 2}))
	require.NoError(t, se.Close())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, lines)
}

func TestStreamingEncoderArray(t *testing.T) {
	var buf bytes.Buffer
	se := NewStreamingEncoder(&buf, true)
	require.NoError(t, se.Encode(1))
	require.NoError(t, se.Encode(2))
	require.NoError(t, se.Encode(3))
	require.NoError(t, se.Close())

	var out []int
	require.NoError(t, Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, []int{1, 2, 3}, out)
}

func TestStreamingEncoderRaw(t *testing.T) {
	var buf bytes.Buffer
	se := NewStreamingEncoder(&buf, false)
	require.NoError(t, se.Encode(RawMessage(`{"z":1,"a":2}`)))
	require.NoError(t, se.Close())

	// Preformatted objects keep their field order.
	assert.Equal(t, "{\"z\":1,\"a\":2}\n", buf.String())
}

func TestObjectWriterKeepsFieldOrder(t *testing.T) {
	w := NewObjectWriter(64)
	require.NoError(t, w.Field("zeta", "x"))
	require.NoError(t, w.Field("alpha", int64(7)))
	require.NoError(t, w.Field("quote", `say "hi"`))
	w.End()

	assert.Equal(t, `{"zeta":"x","alpha":7,"quote":"say \"hi\""}`, string(w.Bytes()))

	w.Reset()
	require.NoError(t, w.Field("only", 1))
	w.End()
	assert.Equal(t, `{"only":1}`, string(w.Bytes()))
}
