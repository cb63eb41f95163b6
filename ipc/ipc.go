// Package ipc implements the two rendezvous protocols, send and recv, that
// scall.Dispatch routes into (§4.8). A Service owns the kernel-local staging
// area the spec calls for ("copy the message bytes out to a kernel-local
// staging area") and the map from pid to that process's own syscall slot,
// so a rendezvous can write a delivered message into a slot it does not
// itself own.
package ipc

import (
	"defs"
	"frame"
	"mmu"
	"proc"
	"scall"
)

// Service binds the process table, the active translation engine, and the
// per-process syscall slots together; its two methods are scall.Handler
// values.
type Service struct {
	tbl   *proc.Table
	eng   mmu.Engine
	slots map[frame.Pid]*scall.Slot

	staging scall.Message
}

// New returns a Service. slots must contain one entry per live process,
// keyed by pid, shared with whatever trap-handling code calls Dispatch for
// that process.
func New(tbl *proc.Table, eng mmu.Engine, slots map[frame.Pid]*scall.Slot) *Service {
	return &Service{tbl: tbl, eng: eng, slots: slots}
}

// deliver stages msg via the two address-space switches the spec mandates
// (§4.8 step 3) and writes it into the receiver's own slot. The switches
// are invoked for their real side effect — bringing each process's address
// space into view, exactly as a genuine message copy through user pages
// would need — even though the slot itself is kernel-resident state in
// this hosted core.
func (svc *Service) deliver(senderPid, receiverPid frame.Pid, msg scall.Message) {
	svc.eng.Switch(senderPid)
	svc.staging = msg
	svc.eng.Switch(receiverPid)
	if dst, ok := svc.slots[receiverPid]; ok {
		dst.Msg = svc.staging
	}
}

// Send implements the send protocol (§4.8). s is the caller's own slot,
// already populated with ReceiverPid, Len, and Data.
func (svc *Service) Send(s *scall.Slot) defs.Err_t {
	if s.Msg.Len > defs.SyscallMsgLen {
		return defs.Fail
	}

	senderIdx := svc.tbl.CurrentIdx()
	sender := svc.tbl.Get(senderIdx)
	s.Msg.SenderPid = sender.Pid

	receiverIdx, ok := svc.tbl.FindByPid(s.Msg.ReceiverPid)
	if !ok {
		return defs.Fail
	}
	receiver := svc.tbl.Get(receiverIdx)

	if receiver.Status != proc.WaitToRecv {
		sender.Status = proc.WaitToSend
		sender.ReceiverPid = s.Msg.ReceiverPid
		svc.tbl.Yield()
		return defs.OK
	}

	svc.deliver(sender.Pid, receiver.Pid, s.Msg)
	receiver.Status = proc.Runnable
	svc.tbl.Yield()
	return defs.OK
}

// Recv implements the receive protocol (§4.8). s is the caller's own slot;
// on delivery its Msg is overwritten with the sender's payload.
func (svc *Service) Recv(s *scall.Slot) defs.Err_t {
	if s.Msg.Len > defs.SyscallMsgLen {
		return defs.Fail
	}

	receiverIdx := svc.tbl.CurrentIdx()
	receiver := svc.tbl.Get(receiverIdx)

	senderIdx, ok := svc.tbl.FindWaitingSenderFor(receiver.Pid)
	if !ok {
		receiver.Status = proc.WaitToRecv
		svc.tbl.Yield()
		return defs.OK
	}

	sender := svc.tbl.Get(senderIdx)
	senderSlot := svc.slots[sender.Pid]
	svc.deliver(sender.Pid, receiver.Pid, senderSlot.Msg)
	sender.Status = proc.Runnable
	svc.tbl.Yield()
	return defs.OK
}
