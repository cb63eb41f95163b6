// Package defs collects the constants and small shared types that every
// other package in the kernel needs: page/frame geometry, process-id bands,
// and the syscall return-code type. Mirrors the teacher's defs/limits
// packages, which exist for exactly this purpose.
package defs

// Err_t is the kernel/user ABI return-code type for syscalls (§7.3). It is
// not Go's error: it crosses into the syscall slot and back to userspace,
// the same convention the teacher's Userdmap8_inner et al. use.
type Err_t int

const (
	// OK is returned by a syscall that completed successfully.
	OK Err_t = 0
	// Fail is returned by a syscall-local failure: oversize message,
	// unknown receiver. Execution resumes; nothing unwinds.
	Fail Err_t = -1
)

const (
	// PGSHIFT is the base-2 exponent of the page size.
	PGSHIFT = 12
	// PageSize is one frame / one page, in bytes (4 KiB).
	PageSize = 1 << PGSHIFT

	// BlockSize is the disk sector size in bytes (§6).
	BlockSize = 512
	// BlocksPerPage is how many disk blocks back one frame.
	BlocksPerPage = PageSize / BlockSize

	// NFrames is the total number of physical frames the system has (§3).
	NFrames = 256

	// FrameStoreBlocks is the span of the backing medium reserved for the
	// frame store: frame i lives at blocks [i*BlocksPerPage, (i+1)*BlocksPerPage).
	FrameStoreBlocks = NFrames * BlocksPerPage

	// SyscallMsgLen is the maximum inline message payload for send/recv.
	SyscallMsgLen = 64

	// MaxNProcess bounds the process table (§3); the table does not grow.
	MaxNProcess = 64

	// PageTableMaxProcs is the Sv32 engine's own process bound (§4.4,
	// §9 "Open questions" — a constant of its own, set equal to
	// MaxNProcess above).
	PageTableMaxProcs = MaxNProcess

	// GPIDProcess is the pid of the privileged process-manager server,
	// the recipient of exit()'s PROC_EXIT message.
	GPIDProcess = 1
	// GPIDShell is the pid of the privileged shell server. Processes with
	// pid below GPIDShell are privileged and never preempted (§5).
	GPIDShell = 2
	// GPIDUserStart is the first pid available to user applications (§3).
	GPIDUserStart = 3

	// CacheSlotsBoard is the frame-cache size on the constrained FPGA
	// board (§3).
	CacheSlotsBoard = 28
	// CacheSlotsEmulator is the frame-cache size on the emulator, where
	// every frame fits (§3).
	CacheSlotsEmulator = NFrames
)

// MsgType enumerates syscall-slot tags (§3, "Syscall slot").
type MsgType int

const (
	// Unused marks a syscall slot with no in-flight request.
	Unused MsgType = iota
	// Send requests the rendezvous send protocol (§4.8).
	Send
	// Recv requests the rendezvous receive protocol (§4.8).
	Recv
)

// Engine selects which translation engine the MMU facade uses (§6,
// "Environment / configuration").
type Engine int

const (
	// EnginePageTable is the Sv32 two-level page table, option "0" at the
	// boot TTY prompt. Only available when the target supports it.
	EnginePageTable Engine = iota
	// EngineSoftTLB is the software-TLB copying engine, option "1", and
	// the only engine available on the constrained board.
	EngineSoftTLB
)

const (
	// MaxPagesPerProcess bounds the size of a single address space this
	// core will translate: 256 pages is 1 MiB, ample for a teaching
	// application (the real limit on growth is the 256-frame physical
	// budget shared by every process).
	MaxPagesPerProcess = 256
)

// IdentityRegion describes one physical range that must be identity-mapped,
// kernel-only, into every process's page table before any user mapping is
// added (§3, "Page table", invariant; §4.4). These addresses are a property
// of the platform's linker script, not of the type system (§9) — they are
// carried here as the one place that script-derived layout is named.
type IdentityRegion struct {
	Name string
	Base uint32
	Len  uint32
}

// IdentityRegions is the fixed set of physical ranges every Sv32 root must
// identity-map: MMIO, boot ROM, the raw disk image window, and the two
// tightly-integrated-memory regions (instruction and data TIM) the board
// exposes directly to the core.
var IdentityRegions = []IdentityRegion{
	{Name: "mmio", Base: 0x10000000, Len: 0x00001000},
	{Name: "bootrom", Base: 0x00001000, Len: 0x0000f000},
	{Name: "disk", Base: 0x20000000, Len: 0x00400000},
	{Name: "dtim", Base: 0x80000000, Len: 0x00020000},
	{Name: "itim", Base: 0x80020000, Len: 0x00020000},
}

// Config carries the handful of tunables that must be chosen at runtime
// rather than hard-coded, mirroring the teacher's limits.Syslimit_t pattern
// of a single struct of knobs built once at boot.
type Config struct {
	// CacheSlots is the number of fast-memory slots the frame cache uses.
	CacheSlots int
	// Engine selects the translation engine (§6).
	Engine Engine
}

// DefaultEmulatorConfig returns the tunables used when booting under an
// emulator that supports both translation engines.
func DefaultEmulatorConfig() Config {
	return Config{CacheSlots: CacheSlotsEmulator, Engine: EngineSoftTLB}
}

// DefaultBoardConfig returns the tunables used on the constrained FPGA
// board, which only implements the software TLB.
func DefaultBoardConfig() Config {
	return Config{CacheSlots: CacheSlotsBoard, Engine: EngineSoftTLB}
}
