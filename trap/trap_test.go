package trap

import (
	"testing"

	"arch"
	"cache"
	"defs"
	"disk"
	"frame"
	"mmu"
	"proc"
	"scall"
	"timer"
	"tty"
)

const exitTrampoline = 0xdead0000

func newHarness(t *testing.T) (*Dispatcher, *proc.Table, *tty.Sim, *timer.Sim, map[frame.Pid]*scall.Slot) {
	t.Helper()
	d := disk.NewMemory(defs.FrameStoreBlocks)
	c := cache.New(d, defs.CacheSlotsEmulator)
	ft := frame.New()
	eng := mmu.New(defs.DefaultEmulatorConfig(), ft, c)
	tbl := proc.New()
	ttyDev := tty.NewSim()
	timerDev := timer.NewSim()
	slots := make(map[frame.Pid]*scall.Slot)

	send := func(s *scall.Slot) defs.Err_t { return defs.OK }
	recv := func(s *scall.Slot) defs.Err_t { return defs.OK }

	return New(tbl, eng, ttyDev, timerDev, slots, exitTrampoline, send, recv), tbl, ttyDev, timerDev, slots
}

func TestEcallFromUserDispatchesSyscall(t *testing.T) {
	disp, tbl, _, _, slots := newHarness(t)
	idx, pid := tbl.Alloc()
	tbl.Get(idx).Status = proc.Running
	tbl.SetCurrentIdx(idx)
	slots[pid] = &scall.Slot{Tag: defs.Send}

	var csr arch.CSR
	csr.Trap(arch.ExcEcallFromU, 0x1000)
	if out := disp.Dispatch(&csr); out != Resume {
		t.Fatalf("Dispatch = %v, want Resume", out)
	}
	if slots[pid].Tag != defs.Unused {
		t.Fatalf("syscall slot tag after dispatch = %v, want Unused", slots[pid].Tag)
	}
}

func TestLoadAccessFaultTerminatesUserProcess(t *testing.T) {
	disp, tbl, _, _, _ := newHarness(t)
	_, _ = tbl.Alloc() // pid 1, privileged
	_, _ = tbl.Alloc() // pid 2, shell: still privileged
	idx, _ := tbl.Alloc()
	tbl.Get(idx).Status = proc.Running
	tbl.SetCurrentIdx(idx)

	var csr arch.CSR
	const loadAccessFault arch.Cause = 5
	csr.Trap(loadAccessFault, 0x4000)
	if out := disp.Dispatch(&csr); out != Terminated {
		t.Fatalf("Dispatch = %v, want Terminated", out)
	}
	if pc, _ := csr.RetFromTrap(); pc != exitTrampoline {
		t.Fatalf("mepc after termination = %#x, want exit trampoline %#x", pc, uint32(exitTrampoline))
	}
}

func TestUnhandledExceptionInPrivilegedServerIsFatal(t *testing.T) {
	disp, tbl, _, _, _ := newHarness(t)
	idx, _ := tbl.Alloc() // pid 1, privileged
	tbl.Get(idx).Status = proc.Running
	tbl.SetCurrentIdx(idx)

	var csr arch.CSR
	const loadAccessFault arch.Cause = 5
	csr.Trap(loadAccessFault, 0x4000)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unhandled exception in privileged server")
		}
	}()
	disp.Dispatch(&csr)
}

func TestTimerInPrivilegedServerResetsWithoutPreemption(t *testing.T) {
	disp, tbl, _, timerDev, _ := newHarness(t)
	idx, _ := tbl.Alloc() // pid 1, privileged, never preempted
	tbl.Get(idx).Status = proc.Running
	tbl.SetCurrentIdx(idx)

	var csr arch.CSR
	csr.Trap(arch.IntTimer, 0x1000)
	if out := disp.Dispatch(&csr); out != Resume {
		t.Fatalf("Dispatch = %v, want Resume", out)
	}
	if timerDev.Resets != 1 {
		t.Fatalf("timer resets = %d, want 1", timerDev.Resets)
	}
	if tbl.Get(idx).Status != proc.Running {
		t.Fatalf("privileged server status = %v, want still Running", tbl.Get(idx).Status)
	}
}

func TestTimerForPreemptibleProcessReschedules(t *testing.T) {
	disp, tbl, _, _, _ := newHarness(t)
	_, _ = tbl.Alloc() // pid 1
	idxA, _ := tbl.Alloc()
	idxB, _ := tbl.Alloc()
	tbl.Get(idxA).Status = proc.Running
	tbl.Get(idxB).Status = proc.Runnable
	tbl.SetCurrentIdx(idxA)

	var csr arch.CSR
	csr.Trap(arch.IntTimer, 0x2000)
	if out := disp.Dispatch(&csr); out != Rescheduled {
		t.Fatalf("Dispatch = %v, want Rescheduled", out)
	}
	if tbl.Get(idxA).Status != proc.Runnable {
		t.Fatalf("outgoing process status = %v, want Runnable", tbl.Get(idxA).Status)
	}
}

func TestTTYInterruptTerminatesCurrentUser(t *testing.T) {
	disp, tbl, ttyDev, _, _ := newHarness(t)
	_, _ = tbl.Alloc() // pid 1, process server
	_, _ = tbl.Alloc() // pid 2, shell: still privileged
	idx, _ := tbl.Alloc()
	tbl.Get(idx).Status = proc.Running
	tbl.SetCurrentIdx(idx)
	ttyDev.SignalIntr()

	var csr arch.CSR
	csr.Trap(arch.IntExternal, 0x3000)
	if out := disp.Dispatch(&csr); out != Terminated {
		t.Fatalf("Dispatch = %v, want Terminated", out)
	}
}

func TestTTYInterruptInPrivilegedServerIsFatal(t *testing.T) {
	disp, tbl, ttyDev, _, _ := newHarness(t)
	idx, _ := tbl.Alloc() // pid 1, process server
	tbl.Get(idx).Status = proc.Running
	tbl.SetCurrentIdx(idx)
	ttyDev.SignalIntr()

	var csr arch.CSR
	csr.Trap(arch.IntExternal, 0x3000)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for ctrl-C against a privileged server")
		}
	}()
	disp.Dispatch(&csr)
}

func TestSoftwareInterruptDispatchesSyscall(t *testing.T) {
	disp, tbl, _, _, slots := newHarness(t)
	idx, pid := tbl.Alloc()
	tbl.Get(idx).Status = proc.Running
	tbl.SetCurrentIdx(idx)
	slots[pid] = &scall.Slot{Tag: defs.Recv}

	var csr arch.CSR
	csr.Trap(arch.IntSoftware, 0x1000)
	if out := disp.Dispatch(&csr); out != Resume {
		t.Fatalf("Dispatch = %v, want Resume", out)
	}
}
