package pool_test

import (
	"testing"

	"github.com/momentics/hioload-rtt/pool"
)

func TestSlabPoolReuse(t *testing.T) {
	sp := pool.NewSlabPool(4)
	b1 := sp.Get(128)
	if len(b1) != 128 {
		t.Fatalf("expected len 128, got %d", len(b1))
	}
	sp.Put(b1)
	b2 := sp.Get(64)
	// b2 should reuse underlying storage
	if cap(b2) < 128 {
		t.Error("Buffer capacity too small; reuse failed")
	}
	st := sp.Stats()
	if st.TotalAlloc != 1 || st.TotalReuse != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestSlabPoolTooSmallIsReplaced(t *testing.T) {
	sp := pool.NewSlabPool(4)
	sp.Put(make([]byte, 8))
	b := sp.Get(32)
	if len(b) != 32 {
		t.Fatalf("expected len 32, got %d", len(b))
	}
	if sp.Stats().TotalAlloc != 1 {
		t.Error("undersized buffer must not be reused")
	}
}

func TestSlabPoolBounded(t *testing.T) {
	sp := pool.NewSlabPool(2)
	for i := 0; i < 5; i++ {
		sp.Put(make([]byte, 16))
	}
	if idle := sp.Stats().Idle; idle != 2 {
		t.Fatalf("expected 2 idle buffers, got %d", idle)
	}
	sp.Drain()
	if idle := sp.Stats().Idle; idle != 0 {
		t.Fatalf("expected empty pool after Drain, got %d", idle)
	}
}

func TestSampleBatchPreallocated(t *testing.T) {
	b := pool.NewSampleBatch(100, 16)
	if n := len(b.Samples()); n != 100 {
		t.Fatalf("expected 100 slots, got %d", n)
	}
	for i, s := range b.Samples() {
		if cap(s.Payload) != 16 || len(s.Payload) != 0 {
			t.Fatalf("slot %d: len=%d cap=%d", i, len(s.Payload), cap(s.Payload))
		}
	}
	s, info := b.Get(3)
	s.Payload = append(s.Payload, 'x')
	info.SourceTimestamp = 42
	if b.Samples()[3].Payload[0] != 'x' || b.Infos()[3].SourceTimestamp != 42 {
		t.Fatal("Get must return pointers into the batch")
	}
	b.Release()
	if len(b.Samples()) != 0 {
		t.Fatal("Release must drop the slots")
	}
}

func TestNewFilledSample(t *testing.T) {
	s := pool.NewFilledSample(5, 'a')
	if string(s.Payload) != "aaaaa" {
		t.Fatalf("unexpected payload %q", s.Payload)
	}
	if empty := pool.NewFilledSample(0, 'a'); len(empty.Payload) != 0 {
		t.Fatal("zero size sample must be empty")
	}
}

func TestRecyclerResetsOnPut(t *testing.T) {
	r := pool.NewRecycler(func() *[]byte {
		b := make([]byte, 0, 8)
		return &b
	}, func(b *[]byte) { *b = (*b)[:0] })

	b := r.Get()
	if cap(*b) != 8 {
		t.Fatalf("unexpected capacity %d", cap(*b))
	}
	*b = append(*b, "dirty"...)
	r.Put(b)
	if len(*b) != 0 {
		t.Fatalf("reset not applied, len=%d", len(*b))
	}
	st := r.Stats()
	if st.Created != 1 || st.Recycled != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestRecyclerNilReset(t *testing.T) {
	r := pool.NewRecycler(func() int { return 7 }, nil)
	if v := r.Get(); v != 7 {
		t.Fatalf("got %d", v)
	}
	r.Put(7)
	if r.Stats().Recycled != 1 {
		t.Fatal("Put must be counted")
	}
}
