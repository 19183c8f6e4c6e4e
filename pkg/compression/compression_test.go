package compression

import (
	"bytes"
	"testing"
)

var allAlgorithms = []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}

func testPayload() []byte {
	var buf bytes.Buffer
	for i := 0; i < 200; i++ {
		buf.WriteString("id,name,score\n1,alice,3.5\n2,bob,4.0\n")
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	payload := testPayload()

	for _, algo := range allAlgorithms {
		c, err := NewCompressor(&Config{Algorithm: algo, Level: Default, BufferSize: 64 * 1024})
		if err != nil {
			t.Fatalf("NewCompressor(%s): %v", algo, err)
		}

		compressed, err := c.Compress(payload)
		if err != nil {
			t.Fatalf("%s Compress: %v", algo, err)
		}
		if algo != None && len(compressed) >= len(payload) {
			t.Errorf("%s did not shrink repetitive payload: %d >= %d", algo, len(compressed), len(payload))
		}

		restored, err := c.Decompress(compressed)
		if err != nil {
			t.Fatalf("%s Decompress: %v", algo, err)
		}
		if !bytes.Equal(restored, payload) {
			t.Errorf("%s round trip mismatch: got %d bytes, want %d", algo, len(restored), len(payload))
		}
	}
}

func TestRoundTripStream(t *testing.T) {
	payload := testPayload()

	for _, algo := range allAlgorithms {
		c, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
		if err != nil {
			t.Fatalf("NewCompressor(%s): %v", algo, err)
		}

		var compressed bytes.Buffer
		if err := c.CompressStream(&compressed, bytes.NewReader(payload)); err != nil {
			t.Fatalf("%s CompressStream: %v", algo, err)
		}

		var restored bytes.Buffer
		if err := c.DecompressStream(&restored, &compressed); err != nil {
			t.Fatalf("%s DecompressStream: %v", algo, err)
		}
		if !bytes.Equal(restored.Bytes(), payload) {
			t.Errorf("%s stream round trip mismatch", algo)
		}
	}
}

func TestRoundTripEmpty(t *testing.T) {
	for _, algo := range allAlgorithms {
		c, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
		if err != nil {
			t.Fatalf("NewCompressor(%s): %v", algo, err)
		}
		compressed, err := c.Compress(nil)
		if err != nil {
			t.Fatalf("%s Compress(nil): %v", algo, err)
		}
		restored, err := c.Decompress(compressed)
		if err != nil {
			t.Fatalf("%s Decompress: %v", algo, err)
		}
		if len(restored) != 0 {
			t.Errorf("%s: expected empty output, got %d bytes", algo, len(restored))
		}
	}
}

func TestLevels(t *testing.T) {
	payload := testPayload()

	for _, level := range []Level{Fastest, Default, Better, Best} {
		c, err := NewCompressor(&Config{Algorithm: Zstd, Level: level})
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		if c.Level() != level {
			t.Errorf("Level() = %d, want %d", c.Level(), level)
		}
		compressed, err := c.Compress(payload)
		if err != nil {
			t.Fatalf("level %d Compress: %v", level, err)
		}
		restored, err := c.Decompress(compressed)
		if err != nil {
			t.Fatalf("level %d Decompress: %v", level, err)
		}
		if !bytes.Equal(restored, payload) {
			t.Errorf("level %d round trip mismatch", level)
		}
	}
}

func TestNewCompressorUnsupported(t *testing.T) {
	if _, err := NewCompressor(&Config{Algorithm: "brotli"}); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}

func TestNewCompressorNilConfig(t *testing.T) {
	c, err := NewCompressor(nil)
	if err != nil {
		t.Fatalf("NewCompressor(nil): %v", err)
	}
	if c.Algorithm() != Snappy {
		t.Errorf("default algorithm = %s, want snappy", c.Algorithm())
	}
}

func TestPool(t *testing.T) {
	pool := NewPool(&Config{Algorithm: Zstd, Level: Fastest})
	payload := testPayload()

	compressed, err := pool.Compress(payload)
	if err != nil {
		t.Fatalf("pool Compress: %v", err)
	}
	restored, err := pool.Decompress(compressed)
	if err != nil {
		t.Fatalf("pool Decompress: %v", err)
	}
	if !bytes.Equal(restored, payload) {
		t.Error("pool round trip mismatch")
	}

	c := pool.Get()
	if c.Algorithm() != Zstd {
		t.Errorf("pooled algorithm = %s, want zstd", c.Algorithm())
	}
	pool.Put(c)
}

func TestForExtension(t *testing.T) {
	cases := []struct {
		path string
		algo Algorithm
		ok   bool
	}{
		{"events.csv.gz", Gzip, true},
		{"events.csv.GZ", Gzip, true},
		{"events.csv.zst", Zstd, true},
		{"events.csv.zstd", Zstd, true},
		{"events.csv.lz4", LZ4, true},
		{"events.csv.sz", Snappy, true},
		{"events.csv.snappy", Snappy, true},
		{"events.csv.s2", S2, true},
		{"events.csv", None, false},
		{"s3://bucket/data.tsv.gz", Gzip, true},
	}
	for _, tc := range cases {
		algo, ok := ForExtension(tc.path)
		if algo != tc.algo || ok != tc.ok {
			t.Errorf("ForExtension(%q) = (%s, %v), want (%s, %v)", tc.path, algo, ok, tc.algo, tc.ok)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	cases := []struct {
		name string
		want Algorithm
	}{
		{"gzip", Gzip},
		{"GZIP", Gzip},
		{"Snappy", Snappy},
		{"lz4", LZ4},
		{"zstd", Zstd},
		{"s2", S2},
		{"deflate", Deflate},
		{"none", None},
		{"", None},
	}
	for _, tc := range cases {
		algo, err := ParseAlgorithm(tc.name)
		if err != nil {
			t.Errorf("ParseAlgorithm(%q): %v", tc.name, err)
		}
		if algo != tc.want {
			t.Errorf("ParseAlgorithm(%q) = %s, want %s", tc.name, algo, tc.want)
		}
	}

	if _, err := ParseAlgorithm("lzma"); err == nil {
		t.Error("expected error for unknown algorithm name")
	}
}

func BenchmarkCompressSnappy(b *testing.B) {
	payload := testPayload()
	c, _ := NewCompressor(&Config{Algorithm: Snappy, Level: Default})
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Compress(payload); err != nil {
			b.Fatal(err)
		}
	}
}
