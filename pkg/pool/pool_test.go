package pool

import (
	"sync"
	"testing"
)

func TestPoolGetPut(t *testing.T) {
	type scratch struct {
		data []byte
	}

	resets := 0
	p := New(
		func() *scratch { return &scratch{data: make([]byte, 0, 64)} },
		func(s *scratch) {
			s.data = s.data[:0]
			resets++
		},
	)

	obj := p.Get()
	if obj == nil {
		t.Fatal("expected non-nil object")
	}
	obj.data = append(obj.data, 1, 2, 3)
	p.Put(obj)

	if resets != 1 {
		t.Errorf("expected 1 reset, got %d", resets)
	}

	obj2 := p.Get()
	if len(obj2.data) != 0 {
		t.Errorf("expected reset object, got length %d", len(obj2.data))
	}
	p.Put(obj2)
}

func TestPoolStats(t *testing.T) {
	p := New(
		func() []int { return make([]int, 0, 8) },
		nil,
	)

	s := p.Get()
	allocated, inUse, hits, _ := p.Stats()
	if allocated < 1 {
		t.Errorf("expected at least 1 allocation, got %d", allocated)
	}
	if inUse != 1 {
		t.Errorf("expected 1 in use, got %d", inUse)
	}
	if hits != 1 {
		t.Errorf("expected 1 hit, got %d", hits)
	}

	p.Put(s)
	_, inUse, _, _ = p.Stats()
	if inUse != 0 {
		t.Errorf("expected 0 in use after put, got %d", inUse)
	}
}

func TestPoolConcurrent(t *testing.T) {
	p := New(
		func() []byte { return make([]byte, 0, 256) },
		func(b []byte) {},
	)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := p.Get()
				buf = append(buf, byte(j))
				p.Put(buf[:0])
			}
		}()
	}
	wg.Wait()

	_, inUse, _, _ := p.Stats()
	if inUse != 0 {
		t.Errorf("expected 0 in use after all puts, got %d", inUse)
	}
}

func TestGetOffsets(t *testing.T) {
	offsets := GetOffsets(100)
	if len(offsets) != 0 {
		t.Errorf("expected zero length, got %d", len(offsets))
	}
	if cap(offsets) < 100 {
		t.Errorf("expected capacity >= 100, got %d", cap(offsets))
	}
	PutOffsets(offsets)

	// Larger than the default pooled capacity forces a fresh allocation
	big := GetOffsets(1 << 20)
	if cap(big) < 1<<20 {
		t.Errorf("expected capacity >= %d, got %d", 1<<20, cap(big))
	}
	PutOffsets(big)

	// nil is a no-op
	PutOffsets(nil)
}

func TestGetStringSlice(t *testing.T) {
	s := GetStringSlice()
	if len(s) != 0 {
		t.Errorf("expected zero length, got %d", len(s))
	}

	s = append(s, "a", "b")
	PutStringSlice(s)

	s2 := GetStringSlice()
	if len(s2) != 0 {
		t.Errorf("expected reset slice, got length %d", len(s2))
	}
	PutStringSlice(s2)
}

func TestGenerateID(t *testing.T) {
	id1 := GenerateID("task")
	id2 := GenerateID("task")

	if id1 == id2 {
		t.Errorf("expected unique IDs, got %s twice", id1)
	}
	if len(id1) < len("task-1") {
		t.Errorf("unexpected ID format: %s", id1)
	}
	if id1[:5] != "task-" {
		t.Errorf("expected 'task-' prefix, got %s", id1)
	}
}

func TestBufferPool(t *testing.T) {
	bp := NewBufferPool()

	buf := bp.Get(2048)
	if len(buf) != 2048 {
		t.Errorf("expected length 2048, got %d", len(buf))
	}
	if cap(buf) < 2048 {
		t.Errorf("expected capacity >= 2048, got %d", cap(buf))
	}
	bp.Put(buf)

	// Bucket sizes round up
	buf2 := bp.Get(600)
	if cap(buf2) != 1024 {
		t.Errorf("expected 1KB bucket, got capacity %d", cap(buf2))
	}
	bp.Put(buf2)

	// Oversized requests fall through to direct allocation
	huge := bp.Get(20 * 1024 * 1024)
	if len(huge) != 20*1024*1024 {
		t.Errorf("expected exact length for oversized buffer, got %d", len(huge))
	}
	bp.Put(huge) // no matching bucket, dropped
}

func TestGetGlobalStats(t *testing.T) {
	offsets := GetOffsets(10)
	PutOffsets(offsets)

	stats := GetGlobalStats()
	for _, name := range []string{"offsets", "string_slice", "byte_slice"} {
		if _, ok := stats[name]; !ok {
			t.Errorf("missing stats for pool %q", name)
		}
	}
}

func BenchmarkOffsetsPool(b *testing.B) {
	b.Run("Pooled", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			offsets := GetOffsets(8192)
			offsets = append(offsets, 42)
			PutOffsets(offsets)
		}
	})

	b.Run("Direct", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			offsets := make([]uint32, 0, 8192)
			offsets = append(offsets, 42)
			_ = offsets
		}
	})
}
