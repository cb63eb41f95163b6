// Package frame is the physical-frame allocator (§4.2) and the mapping
// table backing it (§3, "Physical frame"). It owns the ground truth of
// which of the system's 256 frames are in use and by whom; the frame cache
// (package cache) stages a bounded subset of their contents in fast memory.
package frame

import (
	"fmt"

	"defs"
)

// Pid identifies a process, privileged server or user application alike
// (§3). Stored by value everywhere rather than by pointer, per the
// teacher's re-architecting note on avoiding PCB/PCB cycles (§9).
type Pid int

// Mapping is the per-frame bookkeeping record (§3, "Physical frame").
type Mapping struct {
	InUse   bool
	Owner   Pid
	PageNo  int
	Flags   uint
}

// Table is the physical-frame allocator: a first-fit scan over NFrames
// mapping records (§4.2, "Ordering: allocations return the lowest-indexed
// free frame").
//
// Table does not itself touch the frame cache; Alloc and Free take the
// slice of the cache they need as an Allocator or Invalidator argument
// so this package stays free of an import cycle with cache.
type Table struct {
	maps [defs.NFrames]Mapping
}

// New returns an empty (all-free) frame table.
func New() *Table {
	return &Table{}
}

// Invalidator is the slice of the frame cache that the allocator needs:
// dropping a frame's cached contents on free (§4.2).
type Invalidator interface {
	Invalidate(frameID int)
}

// Allocator is the slice of the frame cache that Alloc needs: bringing a
// freshly allocated frame into the cache without reading its old disk
// contents (§4.2, "pull the frame into the cache in alloc_only mode").
type Allocator interface {
	ReadAlloc(frameID int) []byte
}

// Alloc finds the lowest-indexed free frame, marks it in-use, pulls it into
// the cache in alloc-only mode via c, and returns its id and cached
// address. It is fatal when no frame is free (§4.2).
func (t *Table) Alloc(c Allocator) (int, []byte) {
	for i := range t.maps {
		if !t.maps[i].InUse {
			t.maps[i] = Mapping{InUse: true}
			addr := c.ReadAlloc(i)
			return i, addr
		}
	}
	panic(fmt.Sprintf("frame: out of frames (all %d in use)", defs.NFrames))
}

// Free releases every frame owned by pid: the frame cache slot is
// invalidated (without write-back — that is the caller's contract, §4.1)
// and the mapping record cleared (§4.2).
func (t *Table) Free(pid Pid, c Invalidator) {
	for i := range t.maps {
		if t.maps[i].InUse && t.maps[i].Owner == pid {
			c.Invalidate(i)
			t.maps[i] = Mapping{}
		}
	}
}

// Stamp installs pid/pageNo/flags on frameID's mapping record (§4.3,
// tlb.Engine.Map and pgtbl.Engine.Map both delegate here). The caller must
// have already allocated frameID.
func (t *Table) Stamp(frameID int, pid Pid, pageNo int, flags uint) {
	if !t.maps[frameID].InUse {
		panic("frame: Stamp on unallocated frame")
	}
	t.maps[frameID].Owner = pid
	t.maps[frameID].PageNo = pageNo
	t.maps[frameID].Flags = flags
}

// Lookup returns frameID's mapping record.
func (t *Table) Lookup(frameID int) Mapping {
	return t.maps[frameID]
}

// OwnedBy returns the frame ids owned by pid, in ascending order.
func (t *Table) OwnedBy(pid Pid) []int {
	var ids []int
	for i := range t.maps {
		if t.maps[i].InUse && t.maps[i].Owner == pid {
			ids = append(ids, i)
		}
	}
	return ids
}

// FreeCount reports the count of unallocated frames.
func (t *Table) FreeCount() int {
	n := 0
	for i := range t.maps {
		if !t.maps[i].InUse {
			n++
		}
	}
	return n
}
