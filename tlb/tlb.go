// Package tlb implements the software-TLB translation engine (§4.3): it
// does not install hardware page tables at all. Instead it simulates a TLB
// by copying a process's pages into and out of a single shared
// user-virtual window on every context switch, the way the teacher's
// Vm_t.K2user/User2k copy between a kernel buffer and user virtual memory,
// just applied whole-process instead of byte-range-at-a-time.
package tlb

import (
	"fmt"

	"cache"
	"defs"
	"frame"
)

// Engine is the software-TLB MMU backend. It satisfies the {map, switch,
// alloc, free} capability set described in the teacher's re-architecting
// notes (§9) so mmu can select it or pgtbl.Engine interchangeably.
type Engine struct {
	frames *frame.Table
	c      *cache.Cache

	// window is the single shared user-virtual view every process's
	// frames get copied into/out of on Switch (§4.3).
	window  [defs.MaxPagesPerProcess * defs.PageSize]byte
	current frame.Pid
	valid   bool
}

// New builds a software-TLB engine over the given frame table and frame
// cache.
func New(frames *frame.Table, c *cache.Cache) *Engine {
	return &Engine{frames: frames, c: c}
}

// Map stamps frameID's mapping record with pid, pageNo, and flags (§4.3).
// The caller must have already allocated frameID. A mapping installed for a
// pid that is never switched in simply sits latent.
func (e *Engine) Map(pid frame.Pid, pageNo int, frameID int, flags uint) {
	e.frames.Stamp(frameID, pid, pageNo, flags)
}

// Switch brings pid's address space into view. A no-op if pid is already
// current. Otherwise it writes the outgoing VM's frames back into the
// frame cache, then reads the incoming VM's frames into the window, and
// finally records pid as current (§4.3).
func (e *Engine) Switch(pid frame.Pid) {
	if e.valid && e.current == pid {
		return
	}
	if e.valid {
		for _, fid := range e.frames.OwnedBy(e.current) {
			m := e.frames.Lookup(fid)
			e.c.Write(fid, e.pageSlice(m.PageNo))
		}
	}
	for _, fid := range e.frames.OwnedBy(pid) {
		m := e.frames.Lookup(fid)
		data := e.c.Read(fid, false)
		copy(e.pageSlice(m.PageNo), data)
	}
	e.current = pid
	e.valid = true
}

// Alloc allocates a fresh frame, maps it for pid at pageNo with flags, and
// returns the new frame's id.
func (e *Engine) Alloc(pid frame.Pid, pageNo int, flags uint) int {
	id, _ := e.frames.Alloc(e.c)
	e.Map(pid, pageNo, id, flags)
	return id
}

// Free releases every frame owned by pid. If pid was the current VM, the
// window is left stale; the next Switch to any other pid will simply not
// read pid's (now freed) frames back in.
func (e *Engine) Free(pid frame.Pid) {
	e.frames.Free(pid, e.c)
	if e.valid && e.current == pid {
		e.valid = false
	}
}

// ReadVA returns a copy of n bytes at virtual address va in the currently
// switched-in address space.
func (e *Engine) ReadVA(va int, n int) []byte {
	out := make([]byte, n)
	copy(out, e.window[va:va+n])
	return out
}

// WriteVA writes src into the currently switched-in address space starting
// at virtual address va.
func (e *Engine) WriteVA(va int, src []byte) {
	copy(e.window[va:va+len(src)], src)
}

func (e *Engine) pageSlice(pageNo int) []byte {
	if pageNo < 0 || pageNo >= defs.MaxPagesPerProcess {
		panic(fmt.Sprintf("tlb: page number %d out of range", pageNo))
	}
	off := pageNo * defs.PageSize
	return e.window[off : off+defs.PageSize]
}
