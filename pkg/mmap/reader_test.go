package mmap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReader(t *testing.T) {
	content := []byte("a,b\n1,2\n3,4\n")
	r, err := NewReader(writeTemp(t, content))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.Size() != int64(len(content)) {
		t.Errorf("Size() = %d, want %d", r.Size(), len(content))
	}
	if !bytes.Equal(r.ReadAll(), content) {
		t.Error("ReadAll() does not match file content")
	}
}

func TestReadRange(t *testing.T) {
	content := []byte("0123456789")
	r, err := NewReader(writeTemp(t, content))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	got, err := r.ReadRange(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "2345" {
		t.Errorf("ReadRange(2,4) = %q, want %q", got, "2345")
	}

	// Length past the end clamps.
	got, err = r.ReadRange(8, 100)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "89" {
		t.Errorf("ReadRange(8,100) = %q, want %q", got, "89")
	}

	if _, err = r.ReadRange(-1, 1); err == nil {
		t.Error("negative offset should fail")
	}
	if _, err = r.ReadRange(int64(len(content)), 1); err == nil {
		t.Error("offset at EOF should fail")
	}
}

func TestReaderStats(t *testing.T) {
	r, err := NewReader(writeTemp(t, []byte("0123456789")))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.ReadRange(0, 4); err != nil {
		t.Fatal(err)
	}
	bytesRead, pagesRead := r.Stats()
	if bytesRead != 4 {
		t.Errorf("bytesRead = %d, want 4", bytesRead)
	}
	if pagesRead != 1 {
		t.Errorf("pagesRead = %d, want 1", pagesRead)
	}
}

func TestReaderEmptyFile(t *testing.T) {
	if _, err := NewReader(writeTemp(t, nil)); err == nil {
		t.Error("mapping an empty file should fail")
	}
}

func TestReaderClose(t *testing.T) {
	r, err := NewReader(writeTemp(t, []byte("abc")))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadRange(0, 1); err == nil {
		t.Error("ReadRange after Close should fail")
	}
	// Double close is a no-op.
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestPrefetch(t *testing.T) {
	r, err := NewReader(writeTemp(t, bytes.Repeat([]byte("x"), 8192)))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// Best effort; just exercise the alignment paths.
	r.Prefetch(100, 4096)
	r.Prefetch(0, 0)
	r.Prefetch(8000, 10000)
}
