// Package cache implements the frame cache (the paging device, §4.1): the
// illusion of 256 addressable physical frames backed by disk, when only a
// bounded number of them actually reside in fast memory at once.
package cache

import (
	"fmt"
	"math/rand"

	"defs"
	"disk"
)

// slot is one fast-memory staging location (§3, "Frame cache slot").
type slot struct {
	frameID int // -1 when empty
	dirty   bool
	data    [defs.PageSize]byte
}

// Cache is the frame cache. Every operation that touches it in the real
// kernel happens on the kernel stack with interrupts disabled (§5), so
// unlike the teacher's Physmem_t it carries no lock of its own — the
// uniprocessor/interrupts-off property is the lock, made explicit by the
// fact that nothing here is exported as safe for concurrent use.
type Cache struct {
	slots []slot
	byID  map[int]int // frame id -> slot index, for the at-most-one-slot invariant
	d     disk.Device
}

// New builds a Cache with nslots fast-memory slots, backed by d. All slots
// start empty with clear dirty bits (§4.1, init()).
func New(d disk.Device, nslots int) *Cache {
	c := &Cache{
		slots: make([]slot, nslots),
		byID:  make(map[int]int, nslots),
		d:     d,
	}
	c.Init()
	return c
}

// Init marks all slots empty and all dirty bits clear (§4.1).
func (c *Cache) Init() {
	for i := range c.slots {
		c.slots[i] = slot{frameID: -1}
	}
	for k := range c.byID {
		delete(c.byID, k)
	}
}

// Invalidate evicts frameID without write-back, if resident, and marks its
// slot empty. Idempotent (§4.1, §8 round-trip property).
func (c *Cache) Invalidate(frameID int) {
	idx, ok := c.byID[frameID]
	if !ok {
		return
	}
	delete(c.byID, frameID)
	c.slots[idx] = slot{frameID: -1}
}

// install finds a slot for frameID, evicting a random slot (writing it back
// first if dirty) when every slot is occupied. Returns the slot index.
func (c *Cache) install(frameID int) int {
	if idx, ok := c.byID[frameID]; ok {
		return idx
	}
	for i := range c.slots {
		if c.slots[i].frameID == -1 {
			c.slots[i].frameID = frameID
			c.byID[frameID] = i
			return i
		}
	}
	// Writeback-aware random eviction (§4.1). A qualifying implementation
	// may substitute LRU/LFRU provided the same external contract holds.
	victim := rand.Intn(len(c.slots))
	c.evict(victim)
	c.slots[victim].frameID = frameID
	c.byID[frameID] = victim
	return victim
}

func (c *Cache) evict(idx int) {
	s := &c.slots[idx]
	if s.dirty {
		c.writeback(s.frameID, s.data[:])
		s.dirty = false
	}
	delete(c.byID, s.frameID)
	s.frameID = -1
}

func (c *Cache) writeback(frameID int, data []byte) {
	blockNo := frameID * defs.BlocksPerPage
	if err := c.d.WriteBlocks(blockNo, defs.BlocksPerPage, data); err != nil {
		fatal("writeback frame %d: %v", frameID, err)
	}
}

// Write stages src (one page's worth of bytes) into the slot holding
// frameID, installing it with eviction if necessary, and marks the slot
// dirty. When frameID was already resident and its slot already holds
// byte-identical contents the copy is skipped — it is still "written" in
// the sense that a later read returns src, but no disk traffic is incurred
// by a subsequent eviction that wasn't already pending (§4.1). A slot
// installed by this call is always marked dirty, whatever bytes it held.
func (c *Cache) Write(frameID int, src []byte) {
	if len(src) != defs.PageSize {
		panic(fmt.Sprintf("cache: Write expects %d bytes, got %d", defs.PageSize, len(src)))
	}
	_, resident := c.byID[frameID]
	idx := c.install(frameID)
	s := &c.slots[idx]
	if resident && bytesEqual(s.data[:], src) {
		return
	}
	copy(s.data[:], src)
	s.dirty = true
}

// Read returns the fast-memory address (here, a byte slice aliasing the
// slot) holding frameID's contents, installing it via eviction if
// necessary. When allocOnly is true (a fresh allocation) the contents are
// left undefined rather than read from disk; otherwise the frame is filled
// by reading BlocksPerPage disk blocks at frameID*BlocksPerPage (§4.1).
func (c *Cache) Read(frameID int, allocOnly bool) []byte {
	if idx, ok := c.byID[frameID]; ok {
		return c.slots[idx].data[:]
	}
	idx := c.install(frameID)
	s := &c.slots[idx]
	if !allocOnly {
		blockNo := frameID * defs.BlocksPerPage
		if err := c.d.ReadBlocks(blockNo, defs.BlocksPerPage, s.data[:]); err != nil {
			fatal("fill frame %d: %v", frameID, err)
		}
	}
	return s.data[:]
}

// ReadAlloc satisfies frame.Allocator: it is Read with allocOnly=true.
func (c *Cache) ReadAlloc(frameID int) []byte {
	return c.Read(frameID, true)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// fatal reports an unrecoverable kernel invariant violation (§7.1): the
// frame cache cannot make progress without working disk I/O.
func fatal(format string, args ...any) {
	panic("cache: fatal: " + fmt.Sprintf(format, args...))
}
