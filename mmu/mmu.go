// Package mmu is the engine-selection facade described in the teacher's
// re-architecting notes (§9): "two alternative MMU back-ends selected at
// runtime... Express as a small capability set {map, switch, free, alloc}."
// Everything above this package is written against the Engine interface;
// only New knows whether it is talking to the software TLB or the Sv32
// page table.
package mmu

import (
	"cache"
	"defs"
	"frame"
	"pgtbl"
	"tlb"
)

// Engine is the capability set both translation backends implement.
type Engine interface {
	// Map stamps frameID's mapping record with pid/pageNo/flags.
	Map(pid frame.Pid, pageNo int, frameID int, flags uint)
	// Switch brings pid's address space into view.
	Switch(pid frame.Pid)
	// Alloc allocates a fresh frame and maps it for pid at pageNo.
	Alloc(pid frame.Pid, pageNo int, flags uint) int
	// Free releases every frame owned by pid.
	Free(pid frame.Pid)
	// ReadVA reads n bytes from the currently switched-in address space.
	ReadVA(va int, n int) []byte
	// WriteVA writes src into the currently switched-in address space.
	WriteVA(va int, src []byte)
}

// New selects the translation engine named by cfg (§6, "Environment /
// configuration" — chosen at boot from a TTY prompt on the emulator, fixed
// to the software TLB on the constrained board). The rest of the kernel
// stays parametric over the result.
func New(cfg defs.Config, frames *frame.Table, c *cache.Cache) Engine {
	switch cfg.Engine {
	case defs.EnginePageTable:
		return pgtbl.New(frames, c, defs.PageTableMaxProcs)
	default:
		return tlb.New(frames, c)
	}
}
