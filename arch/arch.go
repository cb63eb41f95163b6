// Package arch is the thin, architecture-specific module the rest of the
// kernel is insulated from (§9, "Inline assembly for CSR access, mret,
// context switch... Confined to a thin architecture module exposing typed
// wrappers"). Real hardware backs these with RISC-V CSR reads/writes and a
// handwritten trap/context-switch stub; this core targets 32-bit RISC-V
// under QEMU or an FPGA board, neither of which is a GOARCH the Go
// toolchain understands natively, so the typed wrappers here model the
// machine-mode register file in Go instead of in assembly. Every other
// package imports only this package's types — never a CSR number or mcause
// encoding directly — so the rest of the core stays architecture-neutral
// at the source level, exactly as the design note asks.
package arch

// Cause is the raw value of mcause: the top bit distinguishes interrupt
// from exception, the remaining bits are the cause code (§4.5).
type Cause uint32

const interruptBit Cause = 1 << 31

// IsInterrupt reports whether the cause is an interrupt rather than an
// exception.
func (c Cause) IsInterrupt() bool { return c&interruptBit != 0 }

// Code returns the cause code with the interrupt bit masked off.
func (c Cause) Code() uint32 { return uint32(c &^ interruptBit) }

// MakeCause builds a Cause from a code and whether it is an interrupt.
func MakeCause(code uint32, isInterrupt bool) Cause {
	c := Cause(code)
	if isInterrupt {
		c |= interruptBit
	}
	return c
}

// Exception codes relevant to this core (§4.5). Every other exception code
// is handled uniformly: terminate a user process, or fault a privileged
// one.
const (
	ExcEcallFromU Cause = 8
	ExcEcallFromM Cause = 11
)

// Interrupt causes relevant to this core (§4.5), as full mcause values:
// the interrupt bit is set, so Code() yields the bare interrupt code.
const (
	IntSoftware Cause = interruptBit | 3  // used to re-enter the syscall dispatcher
	IntTimer    Cause = interruptBit | 7  // drives preemption
	IntExternal Cause = interruptBit | 11 // carries the TTY ctrl-C signal
)

// mppUser and mppMachine are the two previous-privilege encodings this core
// ever writes into mstatus.MPP (§4.6): user mode for user processes,
// machine mode for privileged servers, so that mret resumes at the right
// privilege level.
const (
	mppUser    uint32 = 0
	mppMachine uint32 = 3
	mppShift          = 11
	mppMask    uint32 = 0x3 << mppShift
)

// CSR models the machine-mode control and status registers this core
// touches: mcause, mepc, and the MPP field of mstatus. A real target reads
// and writes these with the RISC-V CSRR/CSRW instructions; this type is
// the one place that fact is allowed to matter.
type CSR struct {
	mcause  Cause
	mepc    uint32
	mstatus uint32
}

// ReadCause returns the trap cause last recorded by Trap (§4.5, "Reads the
// cause register").
func (r *CSR) ReadCause() Cause { return r.mcause }

// Trap records an incoming trap's cause and faulting PC — the one place a
// real trap vector's prologue would stash mcause/mepc before dispatch runs.
func (r *CSR) Trap(cause Cause, pc uint32) {
	r.mcause = cause
	r.mepc = pc
}

// ReadMepc returns the trap program counter.
func (r *CSR) ReadMepc() uint32 { return r.mepc }

// WriteMepc overrides the trap program counter. Used to redirect a
// terminated user process's resumption point to the exit trampoline
// (§4.5, §7.2); the scheduler does not call it.
func (r *CSR) WriteMepc(pc uint32) { r.mepc = pc }

// SetPrevUser sets mstatus.MPP so that RetFromTrap resumes in user mode.
func (r *CSR) SetPrevUser() { r.mstatus = r.mstatus&^mppMask | mppUser<<mppShift }

// SetPrevMachine sets mstatus.MPP so that RetFromTrap resumes in machine
// mode — privileged servers run entirely in machine mode (§4.6).
func (r *CSR) SetPrevMachine() { r.mstatus = r.mstatus&^mppMask | mppMachine<<mppShift }

// PrevIsUser reports whether the next RetFromTrap would resume in user
// mode.
func (r *CSR) PrevIsUser() bool { return (r.mstatus&mppMask)>>mppShift == mppUser }

// Context is the kernel-visible half of a process's saved execution state:
// the PCB's "saved kernel stack pointer, saved trap program counter"
// (§3). Integer/user registers live in the process's own stack on real
// hardware (§5); this core's hosted simulator never executes translated
// instructions, so Context only needs to carry what the scheduler itself
// reads and writes.
type Context struct {
	SP   uint32
	Mepc uint32
}

// CtxSwitch swaps the saved contexts held in old and new. On real hardware
// this is a handwritten assembly stub that saves callee-saved registers to
// the outgoing stack and restores them from the incoming one; the hosted
// simulator that exercises this core's logic never runs translated user
// code on a real machine stack, so there are no registers to save and the
// swap is all it does. No package in this core calls it: proc.Table.Yield
// only updates PCB status and the current index.
func CtxSwitch(old, new *Context) {
	*old, *new = *new, *old
}

// RetFromTrap models the mret instruction: resume execution at r's mepc,
// at whatever privilege level mstatus.MPP currently names. It returns the
// resumption PC and privilege so a caller (here, only the hosted
// simulator) can continue driving the fake CPU forward.
func (r *CSR) RetFromTrap() (pc uint32, userMode bool) {
	return r.mepc, r.PrevIsUser()
}
