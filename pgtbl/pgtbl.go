// Package pgtbl implements the two-level Sv32 page table translation
// engine (§4.4), the emulator-only alternative to the software TLB. Unlike
// tlb.Engine, switching address spaces here never copies a byte: the
// mapping itself stays resident, and only the page-table-base register
// changes.
package pgtbl

import (
	"fmt"

	"cache"
	"defs"
	"frame"
	"util"
)

const (
	vpnBits  = 10
	vpnMask  = 1<<vpnBits - 1
	permR    = 1 << 0
	permW    = 1 << 1
	permX    = 1 << 2
	permU    = 1 << 3
	permRWXU = permR | permW | permX | permU
	permKRWX = permR | permW | permX // kernel-only: no U bit
)

// pte is one leaf page-table entry: either a user mapping into a
// frame-cache-resident frame, or a kernel-only identity mapping straight to
// a physical address outside the frame cache's purview (MMIO, ROM, TIM).
type pte struct {
	valid    bool
	identity bool
	physAddr uint32 // valid when identity
	frameID  int    // valid when !identity
	perm     uint8
}

type leaf struct {
	entries [1 << vpnBits]pte
}

// addrSpace is one process's Sv32 root: 1024 slots indexed by VPN1, each
// either empty or pointing at a populated leaf covering a 4 MiB range.
type addrSpace struct {
	root [1 << vpnBits]*leaf
}

// Engine is the Sv32 page-table MMU backend.
type Engine struct {
	frames *frame.Table
	c      *cache.Cache

	maxProcs int
	spaces   map[frame.Pid]*addrSpace
	current  frame.Pid
	hasCur   bool
}

// New builds a page-table engine over the given frame table and cache.
// maxProcs bounds how many distinct pids this engine will track roots for
// (§4.4, §9 — a configurable constant distinct from defs.MaxNProcess).
func New(frames *frame.Table, c *cache.Cache, maxProcs int) *Engine {
	return &Engine{
		frames:   frames,
		c:        c,
		maxProcs: maxProcs,
		spaces:   make(map[frame.Pid]*addrSpace),
	}
}

func (e *Engine) ensure(pid frame.Pid) *addrSpace {
	if as, ok := e.spaces[pid]; ok {
		return as
	}
	if len(e.spaces) >= e.maxProcs {
		panic(fmt.Sprintf("pgtbl: process bound %d exceeded", e.maxProcs))
	}
	as := &addrSpace{}
	installIdentity(as)
	e.spaces[pid] = as
	return as
}

// installIdentity pre-installs the fixed MMIO/ROM/disk/TIM regions with
// kernel-only permissions, before any user mapping can be added (§3
// invariant, §4.4).
func installIdentity(as *addrSpace) {
	for _, r := range defs.IdentityRegions {
		base := util.Rounddown(r.Base, uint32(defs.PageSize)) / defs.PageSize
		npages := util.Roundup(r.Len, uint32(defs.PageSize)) / defs.PageSize
		for p := uint32(0); p < npages; p++ {
			pageNo := int(base + p)
			vpn1, vpn0 := split(pageNo)
			l := as.root[vpn1]
			if l == nil {
				l = &leaf{}
				as.root[vpn1] = l
			}
			l.entries[vpn0] = pte{
				valid:    true,
				identity: true,
				physAddr: (base + p) * defs.PageSize,
				perm:     permKRWX,
			}
		}
	}
}

func split(pageNo int) (vpn1, vpn0 int) {
	return pageNo >> vpnBits, pageNo & vpnMask
}

// Map lazily builds pid's root (installing the identity region first, if
// this is the first mapping for pid) then installs frameID at the leaf
// indexed by (VPN1, VPN0) with user RWX (§4.4), and stamps frameID's
// mapping record with pid/pageNo/flags so Free can find it.
func (e *Engine) Map(pid frame.Pid, pageNo int, frameID int, flags uint) {
	as := e.ensure(pid)
	vpn1, vpn0 := split(pageNo)
	l := as.root[vpn1]
	if l == nil {
		l = &leaf{}
		as.root[vpn1] = l
	}
	l.entries[vpn0] = pte{valid: true, frameID: frameID, perm: permRWXU}
	e.frames.Stamp(frameID, pid, pageNo, flags)
}

// Switch writes pid's root into the page-table base register with paging
// enabled. The outgoing mapping remains intact — no copying, unlike the
// software TLB (§4.4).
func (e *Engine) Switch(pid frame.Pid) {
	e.ensure(pid)
	e.current = pid
	e.hasCur = true
}

// Alloc allocates a fresh frame and maps it for pid at pageNo.
func (e *Engine) Alloc(pid frame.Pid, pageNo int, flags uint) int {
	id, _ := e.frames.Alloc(e.c)
	e.Map(pid, pageNo, id, flags)
	return id
}

// Free releases every frame owned by pid and drops its root.
func (e *Engine) Free(pid frame.Pid) {
	e.frames.Free(pid, e.c)
	delete(e.spaces, pid)
	if e.hasCur && e.current == pid {
		e.hasCur = false
	}
}

// ReadVA returns a copy of n bytes at virtual address va in the currently
// switched-in address space.
func (e *Engine) ReadVA(va int, n int) []byte {
	out := make([]byte, 0, n)
	for len(out) < n {
		pageNo := (va + len(out)) / defs.PageSize
		off := (va + len(out)) % defs.PageSize
		p := e.lookupPage(pageNo)
		if p.identity {
			panic("pgtbl: ReadVA on identity-mapped region unsupported")
		}
		data := e.c.Read(p.frameID, false)
		take := defs.PageSize - off
		if take > n-len(out) {
			take = n - len(out)
		}
		out = append(out, data[off:off+take]...)
	}
	return out
}

// WriteVA writes src into the currently switched-in address space starting
// at virtual address va.
func (e *Engine) WriteVA(va int, src []byte) {
	written := 0
	for written < len(src) {
		pageNo := (va + written) / defs.PageSize
		off := (va + written) % defs.PageSize
		p := e.lookupPage(pageNo)
		if p.identity {
			panic("pgtbl: WriteVA on identity-mapped region unsupported")
		}
		data := e.c.Read(p.frameID, false)
		buf := make([]byte, defs.PageSize)
		copy(buf, data)
		take := defs.PageSize - off
		if take > len(src)-written {
			take = len(src) - written
		}
		copy(buf[off:off+take], src[written:written+take])
		e.c.Write(p.frameID, buf)
		written += take
	}
}

func (e *Engine) lookupPage(pageNo int) *pte {
	if !e.hasCur {
		panic("pgtbl: access with no address space switched in")
	}
	as := e.spaces[e.current]
	vpn1, vpn0 := split(pageNo)
	l := as.root[vpn1]
	if l == nil || !l.entries[vpn0].valid {
		panic(fmt.Sprintf("pgtbl: unmapped page %d", pageNo))
	}
	return &l.entries[vpn0]
}

// Satp returns the would-be Sv32 page-table-base register value for pid:
// mode bit set plus the root's physical page number shifted per the Sv32
// PPN encoding (§4.4 invariant, "entries reference physical addresses
// shifted right by 2 bits"). This core has no real satp register to write;
// the value is used only for boot/diagnostic display.
func (e *Engine) Satp(pid frame.Pid) uint32 {
	const modeBit = 1 << 31
	// The root page table here is a Go-heap structure, not a
	// frame-cache-resident frame, so there is no real PPN to shift; the
	// pid itself stands in as a stable, printable root identifier.
	return modeBit | (uint32(pid) & 0x3fffff)
}
