package heap

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"

	ffiruntime "github.com/wippyai/ffi-runtime"
)

func testMemory(t *testing.T, name string, mem Memory) {
	t.Run(name, func(t *testing.T) {
		if err := mem.WriteU8(1, 0xab); err != nil {
			t.Fatal(err)
		}
		if err := mem.WriteU16(2, 0x1234); err != nil {
			t.Fatal(err)
		}
		if err := mem.WriteU32(4, 0xdeadbeef); err != nil {
			t.Fatal(err)
		}
		if err := mem.WriteU64(8, 0x0102030405060708); err != nil {
			t.Fatal(err)
		}

		if v, _ := mem.ReadU8(1); v != 0xab {
			t.Errorf("u8: got %#x", v)
		}
		if v, _ := mem.ReadU16(2); v != 0x1234 {
			t.Errorf("u16: got %#x", v)
		}
		if v, _ := mem.ReadU32(4); v != 0xdeadbeef {
			t.Errorf("u32: got %#x", v)
		}
		if v, _ := mem.ReadU64(8); v != 0x0102030405060708 {
			t.Errorf("u64: got %#x", v)
		}

		raw, err := mem.Read(8, 2)
		if err != nil {
			t.Fatal(err)
		}
		if raw[0] != 0x08 || raw[1] != 0x07 {
			t.Errorf("little endian layout: got % x", raw)
		}

		if err := mem.Write(16, []byte{1, 2, 3}); err != nil {
			t.Fatal(err)
		}
		if v, _ := mem.ReadU8(18); v != 3 {
			t.Errorf("Write: got %d", v)
		}

		size := mem.Size()
		if _, err := mem.ReadU32(size - 2); err == nil {
			t.Error("read across the end should fail")
		}
		if err := mem.WriteU8(size, 1); err == nil {
			t.Error("write past the end should fail")
		}

		prev, ok := mem.Grow(1)
		if !ok {
			t.Fatal("grow failed")
		}
		if uint64(prev)*ffiruntime.PageSize != uint64(size) {
			t.Errorf("grow returned %d pages for %d bytes", prev, size)
		}
		if err := mem.WriteU8(size, 1); err != nil {
			t.Errorf("write into grown page: %v", err)
		}
	})
}

func TestMemories(t *testing.T) {
	testMemory(t, "arena", NewArena(1, 4))

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	wm, err := NewWazeroMemory(ctx, rt, 1, 4)
	if err != nil {
		t.Fatalf("NewWazeroMemory: %v", err)
	}
	defer wm.Close(ctx)
	testMemory(t, "wazero", wm)

	// A second anonymous memory module must be instantiable in the same runtime.
	wm2, err := NewWazeroMemory(ctx, rt, 1, 1)
	if err != nil {
		t.Fatalf("second NewWazeroMemory: %v", err)
	}
	defer wm2.Close(ctx)
	if _, ok := wm2.Grow(1); ok {
		t.Error("grow beyond max pages should fail")
	}
}

func TestArena_GrowLimit(t *testing.T) {
	a := NewArena(1, 2)
	if _, ok := a.Grow(1); !ok {
		t.Fatal("grow within limit failed")
	}
	if _, ok := a.Grow(1); ok {
		t.Error("grow beyond limit should fail")
	}
	if a.Size() != 2*ffiruntime.PageSize {
		t.Errorf("size: got %d", a.Size())
	}
}

func TestAllocator_Alignment(t *testing.T) {
	a := NewAllocator(NewArena(1, 0))
	for _, align := range []uint32{1, 2, 4, 8, 16, 64, 128} {
		ptr, err := a.Alloc(3, align)
		if err != nil {
			t.Fatal(err)
		}
		if ptr == 0 {
			t.Fatal("allocator returned NULL")
		}
		if ptr%align != 0 {
			t.Errorf("align %d: got %#x", align, ptr)
		}
	}
	if _, err := a.Alloc(8, 3); err == nil {
		t.Error("non power-of-two alignment should fail")
	}
}

func TestAllocator_ReuseAndCoalesce(t *testing.T) {
	a := NewAllocator(NewArena(1, 0))

	p1, _ := a.Alloc(32, 8)
	p2, _ := a.Alloc(32, 8)
	p3, _ := a.Alloc(32, 8)

	a.Free(p1, 32, 8)
	a.Free(p2, 32, 8)
	if s := a.Stats(); s.FreeRuns != 1 {
		t.Errorf("adjacent frees should coalesce, got %d runs", s.FreeRuns)
	}

	p4, _ := a.Alloc(64, 8)
	if p4 != p1 {
		t.Errorf("coalesced block should be reused: got %#x, want %#x", p4, p1)
	}

	top := a.Stats().Top
	a.Free(p3, 32, 8)
	if got := a.Stats().Top; got != p3 {
		t.Errorf("freeing the last block should lower top: got %#x, want %#x (was %#x)", got, p3, top)
	}

	a.Free(p4, 64, 8)
	s := a.Stats()
	if s.InUse != 0 || s.FreeRuns != 0 {
		t.Errorf("after freeing everything: %+v", s)
	}
	if s.Allocs != 4 || s.Frees != 4 {
		t.Errorf("counters: %+v", s)
	}
}

func TestAllocator_Grow(t *testing.T) {
	a := NewAllocator(NewArena(1, 3))
	ptr, err := a.Alloc(2*ffiruntime.PageSize, 8)
	if err != nil {
		t.Fatalf("alloc spanning pages: %v", err)
	}
	if err := a.Memory().WriteU8(ptr+2*ffiruntime.PageSize-1, 1); err != nil {
		t.Errorf("last byte not addressable: %v", err)
	}
	if _, err := a.Alloc(2*ffiruntime.PageSize, 8); err == nil {
		t.Error("allocation beyond memory limit should fail")
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker(NewAllocator(NewArena(1, 0)))

	p, err := tr.Alloc(24, 8)
	if err != nil {
		t.Fatal(err)
	}
	if last, _ := tr.LastAlloc(); last.Size != 24 || last.Ptr != p {
		t.Errorf("LastAlloc: %+v", last)
	}
	if tr.Live() != 1 || tr.LiveBytes() != 24 {
		t.Errorf("live: %d blocks, %d bytes", tr.Live(), tr.LiveBytes())
	}

	tr.Free(p, 24, 8)
	if tr.Live() != 0 || tr.Err() != nil {
		t.Errorf("after free: live=%d err=%v", tr.Live(), tr.Err())
	}

	q, _ := tr.Alloc(16, 8)
	tr.Free(q, 8, 8)
	if tr.Err() == nil {
		t.Error("size mismatch should be reported")
	}
	tr.Reset()
	tr.Free(0x1000, 4, 4)
	if tr.Err() == nil {
		t.Error("unknown block should be reported")
	}
}
