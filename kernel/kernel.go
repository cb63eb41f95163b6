// Package kernel wires the MMU, scheduler, messaging, and device layers
// together the way the teacher's own boot path (mem.Phys_init, vm.Vm_t
// construction, the ecall/timer vector installed once at startup) does:
// one place builds every singleton and nothing downstream constructs its
// own dependencies.
package kernel

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/arch/riscv64/riscv64asm"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"arch"
	"cache"
	"defs"
	"disk"
	"frame"
	"ipc"
	"mmu"
	"proc"
	"scall"
	"timer"
	"trap"
	"tty"
)

// System bundles every singleton the core needs after boot (§9,
// "global mutable tables... present as singletons").
type System struct {
	Disk   disk.Device
	Frames *frame.Table
	Cache  *cache.Cache
	MMU    mmu.Engine
	Procs  *proc.Table
	TTY    tty.Device
	Timer  timer.Device
	IPC    *ipc.Service
	Trap   *trap.Dispatcher
	Slots  map[frame.Pid]*scall.Slot

	ProcSrv *ProcSrv
}

// ExitTrampolinePC is the fixed trap program counter installed on a
// terminated user process (§4.5, §7.2). It is a property of the linker
// script on real hardware (§9); the hosted simulator only needs a sentinel
// value distinguishable from any real app entry point.
const ExitTrampolinePC uint32 = 0xffff0000

// Boot constructs a System from its device dependencies and seats the
// process-manager server (pid GPID_PROCESS) as the sole running process,
// exactly as §8 scenario 1 describes: "Boot, no interaction: exactly one
// process (pid 1, the process server) exists in RUNNING, all others
// UNUSED."
func Boot(cfg defs.Config, d disk.Device, ttyDev tty.Device, timerDev timer.Device) *System {
	c := cache.New(d, cfg.CacheSlots)
	ft := frame.New()
	eng := mmu.New(cfg, ft, c)
	tbl := proc.New()
	slots := make(map[frame.Pid]*scall.Slot)

	svc := ipc.New(tbl, eng, slots)

	sys := &System{
		Disk: d, Frames: ft, Cache: c, MMU: eng, Procs: tbl,
		TTY: ttyDev, Timer: timerDev, IPC: svc, Slots: slots,
	}
	sys.Trap = trap.New(tbl, eng, ttyDev, timerDev, slots, ExitTrampolinePC, svc.Send, svc.Recv)

	idx, pid := tbl.Alloc()
	if pid != defs.GPIDProcess {
		Fatal("kernel: first allocated pid was %d, want GPID_PROCESS (%d)", pid, defs.GPIDProcess)
	}
	tbl.Get(idx).Status = proc.Running
	tbl.SetCurrentIdx(idx)
	slots[pid] = &scall.Slot{}
	sys.ProcSrv = NewProcSrv(sys, pid)

	return sys
}

// ChooseEngine polls ttyDev for a single '0' or '1' byte, the boot-time
// engine prompt the emulator shows when both translation engines are
// available (§6, "Environment / configuration"). It blocks the caller by
// spinning on Read; a real boot loop calls this once before any process is
// scheduled.
func ChooseEngine(ttyDev tty.Device) defs.Engine {
	for {
		b, ok := ttyDev.Read()
		if !ok {
			continue
		}
		switch b {
		case '0':
			return defs.EnginePageTable
		case '1':
			return defs.EngineSoftTLB
		}
	}
}

// BootBanner writes a human-facing summary of the chosen configuration,
// using the teacher's own golang.org/x/text dependency for locale-aware
// number formatting instead of bare fmt.Printf.
func BootBanner(w io.Writer, cfg defs.Config) {
	p := message.NewPrinter(language.English)
	engineName := "tlb"
	if cfg.Engine == defs.EnginePageTable {
		engineName = "pgtbl"
	}
	p.Fprintf(w, "rvkernel: %d frames (%d bytes), cache=%d slots, engine=%s\n",
		defs.NFrames, defs.NFrames*defs.PageSize, cfg.CacheSlots, engineName)
}

// Fatal reports an unrecoverable kernel invariant violation and halts
// (§7.1). There is no recovery path: every caller of Fatal has already
// decided nothing further can safely run.
func Fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "rvkernel: fatal: "+format+"\n", args...)
	os.Exit(1)
}

// FatalTrap is Fatal specialized for a faulting instruction: it decodes
// the raw instruction bytes the frame cache held at the faulting address
// with riscv64asm and prints the disassembled line before halting, the
// nearest equivalent of the teacher's caller.Callerdump on a kernel panic.
func FatalTrap(csr *arch.CSR, instrBytes []byte) {
	inst, err := riscv64asm.Decode(instrBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvkernel: fatal trap at mepc=%#x, cause=%#x: <undecodable: %v>\n",
			csr.ReadMepc(), csr.ReadCause(), err)
	} else {
		fmt.Fprintf(os.Stderr, "rvkernel: fatal trap at mepc=%#x, cause=%#x: %s\n",
			csr.ReadMepc(), csr.ReadCause(), inst.String())
	}
	os.Exit(1)
}
