// Package scall is the syscall slot and its dispatcher (§3 "Syscall slot",
// §4.7). The slot is the fixed-address per-process mailbox a trap handler
// marshals one in-flight send or recv through; the dispatcher only reads the
// tag, clears it, and routes to whichever protocol the caller wired in —
// the actual rendezvous logic lives in the ipc package, kept separate so
// this package stays a pure protocol multiplexer (§9, "small capability
// set").
package scall

import (
	"defs"
	"frame"
)

// Message is the rendezvous payload (§4.8): sender pid stamped from the
// current process by the ipc send protocol (Dispatch does not touch it),
// receiver pid set by the caller, and up to SyscallMsgLen inline bytes.
type Message struct {
	SenderPid   frame.Pid
	ReceiverPid frame.Pid
	Len         int
	Data        [defs.SyscallMsgLen]byte
}

// Slot is the single process-wide region used to marshal one in-flight
// syscall (§3). Tag is reset to Unused before dispatch runs, so nested
// dispatch is impossible (§4.7).
type Slot struct {
	Tag defs.MsgType
	Msg Message
	Ret defs.Err_t
}

// Handler runs one protocol (send or recv) against the slot's message and
// returns the value to stash in Ret.
type Handler func(*Slot) defs.Err_t

// Dispatch reads the slot's tag, resets it to Unused so a re-entrant trap
// can never see a half-handled request, then routes to send or recv (§4.7).
// Any other tag is a kernel invariant violation: Dispatch is only ever
// reached from an ecall or software interrupt that a live process raised
// through this exact slot.
func Dispatch(s *Slot, send, recv Handler) {
	tag := s.Tag
	s.Tag = defs.Unused
	switch tag {
	case defs.Send:
		s.Ret = send(s)
	case defs.Recv:
		s.Ret = recv(s)
	default:
		panic("scall: unknown syscall tag on dispatch")
	}
}
