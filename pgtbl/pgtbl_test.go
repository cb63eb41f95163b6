package pgtbl

import (
	"bytes"
	"testing"

	"cache"
	"defs"
	"disk"
	"frame"
)

func newHarness(t *testing.T) *Engine {
	t.Helper()
	d := disk.NewMemory(defs.FrameStoreBlocks)
	c := cache.New(d, defs.CacheSlotsEmulator)
	ft := frame.New()
	return New(ft, c, defs.PageTableMaxProcs)
}

func TestIdentityRegionInstalledBeforeUserMapping(t *testing.T) {
	e := newHarness(t)
	e.Alloc(frame.Pid(1), 0, 0) // first mapping for pid 1: lazily builds root
	as := e.spaces[frame.Pid(1)]
	for _, r := range defs.IdentityRegions {
		pageNo := int(r.Base / defs.PageSize)
		vpn1, vpn0 := split(pageNo)
		l := as.root[vpn1]
		if l == nil || !l.entries[vpn0].valid || !l.entries[vpn0].identity {
			t.Fatalf("identity region %s not installed", r.Name)
		}
		if l.entries[vpn0].perm&permU != 0 {
			t.Fatalf("identity region %s has user-accessible permission", r.Name)
		}
	}
}

func TestSwitchDoesNotCopy(t *testing.T) {
	e := newHarness(t)
	e.Alloc(frame.Pid(1), 0, 0)
	e.Switch(frame.Pid(1))
	e.WriteVA(0, []byte{1, 2, 3, 4})

	e.Alloc(frame.Pid(2), 0, 0)
	e.Switch(frame.Pid(2))
	e.Switch(frame.Pid(1)) // switch back: mapping must still be intact
	got := e.ReadVA(0, 4)
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("mapping lost across switch: %v", got)
	}
}

func TestReadWriteAcrossPageBoundary(t *testing.T) {
	e := newHarness(t)
	e.Alloc(frame.Pid(1), 0, 0)
	e.Alloc(frame.Pid(1), 1, 0)
	e.Switch(frame.Pid(1))

	src := bytes.Repeat([]byte{0xCD}, defs.PageSize+8)
	e.WriteVA(defs.PageSize-8, src)
	got := e.ReadVA(defs.PageSize-8, len(src))
	if !bytes.Equal(got, src) {
		t.Fatal("cross-page read/write mismatch")
	}
}

func TestProcessBoundIsFatal(t *testing.T) {
	d := disk.NewMemory(defs.FrameStoreBlocks)
	c := cache.New(d, defs.CacheSlotsEmulator)
	ft := frame.New()
	e := New(ft, c, 1)
	e.Alloc(frame.Pid(1), 0, 0)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic past process bound")
		}
	}()
	e.Alloc(frame.Pid(2), 0, 0)
}
