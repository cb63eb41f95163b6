// Package trap is the single machine-mode trap entry point (§4.5): it
// reads the cause register and multiplexes every exception, syscall, and
// interrupt this core handles. Everything it touches — the CSR file, the
// process table, the syscall dispatcher, the active MMU engine, the TTY and
// timer devices — is injected, so Dispatch itself stays architecture- and
// device-neutral, the same seam the teacher's re-architecting notes ask
// the trap vector to be confined behind (§9).
package trap

import (
	"arch"
	"frame"
	"mmu"
	"proc"
	"scall"
	"timer"
	"tty"
)

// Outcome reports what Dispatch decided to do, for a caller that needs to
// know whether to keep stepping the faulted process, resume a different
// one, or halt. cmd/simkernel's hosted loop does not inspect it.
type Outcome int

const (
	// Resume means the trapped process (or whatever Yield selected) should
	// simply continue.
	Resume Outcome = iota
	// Terminated means the current process was redirected to the exit
	// trampoline; it has not yet actually exited.
	Terminated
	// Rescheduled means the scheduler picked a different process to run.
	Rescheduled
)

// Dispatcher owns everything Dispatch needs across calls: the process
// table, the active translation engine, the devices it polls, and the
// syscall-slot dispatcher plumbing.
type Dispatcher struct {
	tbl   *proc.Table
	eng   mmu.Engine
	tty   tty.Device
	timer timer.Device
	slots map[frame.Pid]*scall.Slot // shared with ipc.Service, keyed by pid

	// ExitTrampoline is the trap PC installed for a process being
	// terminated (§4.5, §7.2).
	ExitTrampoline uint32

	send scall.Handler
	recv scall.Handler
}

// New builds a Dispatcher. send and recv are the ipc package's Send/Recv
// methods, injected rather than imported directly so trap never needs to
// know how rendezvous messaging works internally (§9, "small capability
// set").
func New(tbl *proc.Table, eng mmu.Engine, ttyDev tty.Device, timerDev timer.Device, slots map[frame.Pid]*scall.Slot, exitTrampoline uint32, send, recv scall.Handler) *Dispatcher {
	return &Dispatcher{
		tbl: tbl, eng: eng, tty: ttyDev, timer: timerDev, slots: slots,
		ExitTrampoline: exitTrampoline, send: send, recv: recv,
	}
}

// Dispatch handles one trap for the current process, given the CSR state a
// real trap-vector prologue would have already stashed via csr.Trap (§4.5).
// It returns what happened so a caller driving the fake CPU forward knows
// whether to keep running the same process.
func (d *Dispatcher) Dispatch(csr *arch.CSR) Outcome {
	cause := csr.ReadCause()
	curIdx := d.tbl.CurrentIdx()

	if cause.IsInterrupt() {
		return d.dispatchInterrupt(csr, cause, curIdx)
	}
	return d.dispatchException(csr, cause, curIdx)
}

func (d *Dispatcher) dispatchException(csr *arch.CSR, cause arch.Cause, curIdx int) Outcome {
	switch cause {
	case arch.ExcEcallFromU:
		d.runSyscall(curIdx)
		return Resume
	case arch.ExcEcallFromM:
		if d.tbl.IsUser(curIdx) {
			return d.terminate(csr, curIdx)
		}
		panic("trap: ecall-from-machine by a privileged server")
	default:
		if d.tbl.IsUser(curIdx) {
			return d.terminate(csr, curIdx)
		}
		panic("trap: unhandled exception in a privileged server")
	}
}

func (d *Dispatcher) dispatchInterrupt(csr *arch.CSR, cause arch.Cause, curIdx int) Outcome {
	switch cause {
	case arch.IntTimer:
		if !d.tbl.Preemptible(curIdx) {
			d.timer.Reset()
			return Resume
		}
		return d.runScheduler(csr)
	case arch.IntExternal:
		if d.tty.RecvIntr() {
			if d.tbl.IsUser(curIdx) {
				return d.terminate(csr, curIdx)
			}
			panic("trap: ctrl-C signaled while a privileged server was current")
		}
		return Resume
	case arch.IntSoftware:
		d.runSyscall(curIdx)
		return Resume
	default:
		panic("trap: unknown interrupt cause")
	}
}

// runSyscall is the syscall dispatcher's entry from trap: it looks up the
// current process's own slot and hands it to scall.Dispatch (§4.7).
func (d *Dispatcher) runSyscall(curIdx int) {
	pid := d.tbl.Get(curIdx).Pid
	s, ok := d.slots[pid]
	if !ok {
		panic("trap: current process has no syscall slot registered")
	}
	scall.Dispatch(s, d.send, d.recv)
}

// terminate redirects the current process's trap PC to the exit
// trampoline (§4.5, §7.2). The process itself runs the trampoline and
// issues exit() on its own next dispatch; trap never frees its resources
// directly.
func (d *Dispatcher) terminate(csr *arch.CSR, curIdx int) Outcome {
	csr.WriteMepc(d.ExitTrampoline)
	return Terminated
}

// runScheduler performs the full return-from-trap sequence the scheduler
// section describes (§4.6): yield, switch the MMU to the new process,
// reset the timer, set the previous-privilege bit, and — on first
// dispatch — nothing further is this package's job (argv/argc loading is
// an application-loading concern, not a trap-dispatch one).
func (d *Dispatcher) runScheduler(csr *arch.CSR) Outcome {
	idx, _ := d.tbl.Yield()
	next := d.tbl.Get(idx)
	d.eng.Switch(next.Pid)
	d.timer.Reset()
	if d.tbl.IsUser(idx) {
		csr.SetPrevUser()
	} else {
		csr.SetPrevMachine()
	}
	return Rescheduled
}
