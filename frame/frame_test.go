package frame

import (
	"testing"

	"cache"
	"defs"
	"disk"
)

func newHarness(t *testing.T) (*Table, *cache.Cache) {
	t.Helper()
	d := disk.NewMemory(defs.FrameStoreBlocks)
	c := cache.New(d, defs.CacheSlotsEmulator)
	return New(), c
}

func TestAllocLowestIndexedFree(t *testing.T) {
	tbl, c := newHarness(t)
	id, _ := tbl.Alloc(c)
	if id != 0 {
		t.Fatalf("first alloc = %d, want 0", id)
	}
	id2, _ := tbl.Alloc(c)
	if id2 != 1 {
		t.Fatalf("second alloc = %d, want 1", id2)
	}
}

func TestAllocFreeAllocClearsMapping(t *testing.T) {
	tbl, c := newHarness(t)
	id, _ := tbl.Alloc(c)
	tbl.Stamp(id, Pid(7), 3, 0x5)
	tbl.Free(Pid(7), c)
	if tbl.Lookup(id).InUse {
		t.Fatal("freed frame still marked in use")
	}
	id2, _ := tbl.Alloc(c)
	if id2 != id {
		t.Fatalf("re-alloc got %d, want lowest free %d", id2, id)
	}
	m := tbl.Lookup(id2)
	if m.Owner != 0 || m.PageNo != 0 || m.Flags != 0 {
		t.Fatalf("re-allocated frame's mapping not cleared: %+v", m)
	}
}

func TestFreeInvalidatesCacheSlot(t *testing.T) {
	tbl, c := newHarness(t)
	id, _ := tbl.Alloc(c)
	tbl.Stamp(id, Pid(1), 0, 0)
	stale := make([]byte, defs.PageSize)
	for i := range stale {
		stale[i] = 0x5A
	}
	c.Write(id, stale)
	tbl.Free(Pid(1), c)
	// After free, the cache must not think the frame is resident under
	// its old contents: a re-read with allocOnly=false should come from
	// disk (all zero), not from the stale dirty slot.
	got := c.Read(id, false)
	for _, b := range got {
		if b != 0 {
			t.Fatal("invalidated frame slot not cleared")
		}
	}
}

func TestAllocFatalWhenExhausted(t *testing.T) {
	tbl, c := newHarness(t)
	for i := 0; i < defs.NFrames; i++ {
		tbl.Alloc(c)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when frames exhausted")
		}
	}()
	tbl.Alloc(c)
}

func TestOwnedBy(t *testing.T) {
	tbl, c := newHarness(t)
	a, _ := tbl.Alloc(c)
	b, _ := tbl.Alloc(c)
	tbl.Stamp(a, Pid(2), 0, 0)
	tbl.Stamp(b, Pid(2), 1, 0)
	ids := tbl.OwnedBy(Pid(2))
	if len(ids) != 2 || ids[0] != a || ids[1] != b {
		t.Fatalf("OwnedBy = %v, want [%d %d]", ids, a, b)
	}
}
