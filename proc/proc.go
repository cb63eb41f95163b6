// Package proc is the process control block table and the round-robin
// scheduler layered over it (§3 "Process control block", §4.6). Both live
// in one package because the scheduler's only state is "which PCB index is
// current" — there is no separate scheduler object worth its own identity.
package proc

import (
	"fmt"

	"arch"
	"defs"
	"frame"
)

// Status is one of the PCB lifecycle states (§3).
type Status int

const (
	Unused Status = iota
	Loading
	Ready
	Running
	Runnable
	WaitToSend
	WaitToRecv
)

func (s Status) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Loading:
		return "LOADING"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Runnable:
		return "RUNNABLE"
	case WaitToSend:
		return "WAIT_TO_SEND"
	case WaitToRecv:
		return "WAIT_TO_RECV"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// PCB is one process control block entry (§3).
type PCB struct {
	Pid    frame.Pid
	Status Status
	Ctx    arch.Context

	// ReceiverPid is valid only while Status == WaitToSend (§3 invariant).
	ReceiverPid frame.Pid
}

// Table is the fixed-size process table (§3). Entries are never added or
// removed from the backing array; only their Status field moves them
// in and out of UNUSED (§1 Non-goals: "dynamic growth of the process
// table").
type Table struct {
	entries    [defs.MaxNProcess]PCB
	nextPid    frame.Pid
	currentIdx int
}

// New returns an all-UNUSED process table.
func New() *Table {
	return &Table{nextPid: 1}
}

// Alloc finds a free (UNUSED) slot, assigns it the next monotonically
// increasing pid, marks it LOADING, and returns its index and pid. Fatal
// when the table is full (§8 boundary property).
func (t *Table) Alloc() (idx int, pid frame.Pid) {
	for i := range t.entries {
		if t.entries[i].Status == Unused {
			p := t.nextPid
			t.nextPid++
			t.entries[i] = PCB{Pid: p, Status: Loading}
			return i, p
		}
	}
	panic(fmt.Sprintf("proc: process table full (max %d)", defs.MaxNProcess))
}

// Get returns a pointer to the PCB at idx.
func (t *Table) Get(idx int) *PCB { return &t.entries[idx] }

// Current returns a pointer to the currently RUNNING PCB.
func (t *Table) Current() *PCB { return &t.entries[t.currentIdx] }

// CurrentIdx returns the index of the currently RUNNING PCB.
func (t *Table) CurrentIdx() int { return t.currentIdx }

// SetCurrentIdx forces the current index; used only at boot to seat the
// first privileged server without going through Yield (§8, scenario 1).
func (t *Table) SetCurrentIdx(idx int) { t.currentIdx = idx }

// FindByPid returns the index of the PCB with the given pid.
func (t *Table) FindByPid(pid frame.Pid) (int, bool) {
	for i := range t.entries {
		if t.entries[i].Status != Unused && t.entries[i].Pid == pid {
			return i, true
		}
	}
	return 0, false
}

// FindWaitingSenderFor scans the table in ascending index order for a
// WAIT_TO_SEND entry targeting receiverPid; the first match wins (§4.8
// receive protocol, step 1).
func (t *Table) FindWaitingSenderFor(receiverPid frame.Pid) (int, bool) {
	for i := range t.entries {
		if t.entries[i].Status == WaitToSend && t.entries[i].ReceiverPid == receiverPid {
			return i, true
		}
	}
	return 0, false
}

// Free resets the PCB slot at idx to UNUSED (§7.2, after mmu_free runs).
func (t *Table) Free(idx int) {
	t.entries[idx] = PCB{}
}

// Yield rotates from the current index through the table and selects the
// first entry whose status is READY, RUNNING, or RUNNABLE (§4.6). If the
// outgoing process was RUNNING it is demoted to RUNNABLE first. The newly
// selected entry is marked RUNNING; firstDispatch reports whether it was
// READY (i.e. this is its first ever dispatch, §4.6). Fatal if no entry
// qualifies (§8 scenario boundary — "If none qualifies, fatal").
func (t *Table) Yield() (idx int, firstDispatch bool) {
	cur := &t.entries[t.currentIdx]
	if cur.Status == Running {
		cur.Status = Runnable
	}
	n := len(t.entries)
	for step := 1; step <= n; step++ {
		i := (t.currentIdx + step) % n
		st := t.entries[i].Status
		if st == Ready || st == Running || st == Runnable {
			first := st == Ready
			t.entries[i].Status = Running
			t.currentIdx = i
			return i, first
		}
	}
	panic("proc: no runnable process (scheduler starved)")
}

// Preemptible reports whether the process at idx may be preempted by a
// timer interrupt. Only pids below GPIDShell are never preempted (§4.5,
// §5); the shell itself and every user application are fair game.
func (t *Table) Preemptible(idx int) bool {
	return t.entries[idx].Pid >= defs.GPIDShell
}

// IsUser reports whether the process at idx is a user application rather
// than a privileged server (§3: "Process ids below GPID_USER_START
// designate privileged server processes"). The privileged band it excludes
// is wider than the one Preemptible excludes — it also covers the shell
// (pid GPID_SHELL), which is
// preemptible but still privileged for exception-handling purposes
// (§4.5: an unhandled exception terminates a user process but is fatal
// for a privileged one).
func (t *Table) IsUser(idx int) bool {
	return t.entries[idx].Pid >= defs.GPIDUserStart
}
