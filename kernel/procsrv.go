package kernel

import (
	"frame"
	"proc"
)

// ProcSrv is the minimal privileged process-manager server living at pid
// GPID_PROCESS (§6: "exit(status) — sends a PROC_EXIT message to the
// process-manager server"). It is the supplemented recipient side of
// exit(): without it, a user process's exit() syscall would rendezvous
// with nobody and its resources would never be reclaimed.
//
// This core models one PROC_EXIT message as "any message ProcSrv ever
// receives" — the sender pid recv already stamps into the message is
// enough identity; no separate exit-status payload is required for what
// this teaching core does with it (free the sender's resources).
type ProcSrv struct {
	sys *System
	pid frame.Pid

	// waiting is true between a recv() call that blocked (WAIT_TO_RECV)
	// and the dispatch that follows its eventual delivery. A real ecall
	// only truly completes on that later re-entry into the syscall
	// dispatcher once the rendezvous partner shows up; this hosted,
	// procedural simulator has no call stack to block on, so ServeOne
	// tracks the same thing explicitly instead.
	waiting bool
}

// NewProcSrv builds the server bound to the already-allocated pid in sys's
// process table.
func NewProcSrv(sys *System, pid frame.Pid) *ProcSrv {
	return &ProcSrv{sys: sys, pid: pid}
}

// ServeOne runs one step of ProcSrv's own recv() syscall (§4.8 receive
// protocol). Call it each time the simulator's scheduling loop dispatches
// ProcSrv. If a prior call left ProcSrv WAIT_TO_RECV, this call assumes
// delivery has since happened (§4.8 send step 3 already wrote the message
// into ProcSrv's slot and marked it runnable) and reaps the sender
// directly, without reissuing recv().
func (p *ProcSrv) ServeOne() {
	slot := p.sys.Slots[p.pid]

	if p.waiting {
		p.waiting = false
		p.reap(slot.Msg.SenderPid)
		return
	}

	idx, ok := p.sys.Procs.FindByPid(p.pid)
	if !ok {
		Fatal("kernel: ProcSrv pid %d missing from process table", p.pid)
	}
	p.sys.IPC.Recv(slot)

	if p.sys.Procs.Get(idx).Status == proc.WaitToRecv {
		p.waiting = true
		return
	}
	p.reap(slot.Msg.SenderPid)
}

// reap releases a terminated process's frames and PCB slot (§7.2: "the
// process then issues exit, resources are released via mmu_free and PCB
// slot transition to UNUSED").
func (p *ProcSrv) reap(pid frame.Pid) {
	p.sys.MMU.Free(pid)
	if idx, ok := p.sys.Procs.FindByPid(pid); ok {
		p.sys.Procs.Free(idx)
	}
	delete(p.sys.Slots, pid)
}
