package ipc

import (
	"bytes"
	"testing"

	"cache"
	"defs"
	"disk"
	"frame"
	"mmu"
	"proc"
	"scall"
)

type harness struct {
	tbl   *proc.Table
	eng   mmu.Engine
	slots map[frame.Pid]*scall.Slot
	svc   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d := disk.NewMemory(defs.FrameStoreBlocks)
	c := cache.New(d, defs.CacheSlotsEmulator)
	ft := frame.New()
	eng := mmu.New(defs.DefaultEmulatorConfig(), ft, c)
	tbl := proc.New()
	slots := make(map[frame.Pid]*scall.Slot)
	return &harness{tbl: tbl, eng: eng, slots: slots, svc: New(tbl, eng, slots)}
}

// seat allocates a PCB, registers its slot, and marks it Running so it can
// act as "current" for the duration of one protocol call.
func (h *harness) seat() (idx int, pid frame.Pid, slot *scall.Slot) {
	idx, pid = h.tbl.Alloc()
	h.tbl.Get(idx).Status = proc.Running
	h.tbl.SetCurrentIdx(idx)
	slot = &scall.Slot{}
	h.slots[pid] = slot
	return
}

func msg(receiver frame.Pid, text string) scall.Message {
	var m scall.Message
	m.ReceiverPid = receiver
	m.Len = len(text)
	copy(m.Data[:], text)
	return m
}

func TestSendBeforeRecvThenRecvDelivers(t *testing.T) {
	h := newHarness(t)
	_, _, _ = h.seat() // pid 1, process server, unused here
	aIdx, aPid, aSlot := h.seat()
	_, bPid, bSlot := h.seat()

	aSlot.Msg = msg(bPid, "ping")
	h.tbl.SetCurrentIdx(aIdx)
	if ret := h.svc.Send(aSlot); ret != defs.OK {
		t.Fatalf("Send = %v, want OK", ret)
	}
	if h.tbl.Get(aIdx).Status != proc.WaitToSend {
		t.Fatalf("A status = %v, want WaitToSend", h.tbl.Get(aIdx).Status)
	}
	if h.tbl.Get(aIdx).ReceiverPid != bPid {
		t.Fatalf("A.ReceiverPid = %v, want %v", h.tbl.Get(aIdx).ReceiverPid, bPid)
	}

	bIdx, _ := h.tbl.FindByPid(bPid)
	h.tbl.Get(bIdx).Status = proc.Running
	h.tbl.SetCurrentIdx(bIdx)
	if ret := h.svc.Recv(bSlot); ret != defs.OK {
		t.Fatalf("Recv = %v, want OK", ret)
	}

	if h.tbl.Get(aIdx).Status != proc.Runnable {
		t.Fatalf("A status after delivery = %v, want Runnable", h.tbl.Get(aIdx).Status)
	}
	if bSlot.Msg.SenderPid != aPid {
		t.Fatalf("B slot sender = %v, want %v", bSlot.Msg.SenderPid, aPid)
	}
	if !bytes.Equal(bSlot.Msg.Data[:bSlot.Msg.Len], []byte("ping")) {
		t.Fatalf("B slot content = %q, want %q", bSlot.Msg.Data[:bSlot.Msg.Len], "ping")
	}
}

func TestRecvBeforeSendThenSendDelivers(t *testing.T) {
	h := newHarness(t)
	aIdx, aPid, aSlot := h.seat()
	bIdx, bPid, bSlot := h.seat()

	h.tbl.SetCurrentIdx(aIdx)
	if ret := h.svc.Recv(aSlot); ret != defs.OK {
		t.Fatalf("Recv = %v, want OK", ret)
	}
	if h.tbl.Get(aIdx).Status != proc.WaitToRecv {
		t.Fatalf("A status = %v, want WaitToRecv", h.tbl.Get(aIdx).Status)
	}

	bSlot.Msg = msg(aPid, "ack")
	h.tbl.Get(bIdx).Status = proc.Running
	h.tbl.SetCurrentIdx(bIdx)
	if ret := h.svc.Send(bSlot); ret != defs.OK {
		t.Fatalf("Send = %v, want OK", ret)
	}

	// Send marks A Runnable and yields; A is the only other live process,
	// so the yield dispatches it.
	if h.tbl.Get(aIdx).Status != proc.Running {
		t.Fatalf("A status after delivery = %v, want Running", h.tbl.Get(aIdx).Status)
	}
	if aSlot.Msg.SenderPid != bPid {
		t.Fatalf("A slot sender = %v, want %v", aSlot.Msg.SenderPid, bPid)
	}
	if !bytes.Equal(aSlot.Msg.Data[:aSlot.Msg.Len], []byte("ack")) {
		t.Fatalf("A slot content = %q, want %q", aSlot.Msg.Data[:aSlot.Msg.Len], "ack")
	}
}

func TestSendToAbsentReceiverFails(t *testing.T) {
	h := newHarness(t)
	aIdx, _, aSlot := h.seat()
	h.tbl.SetCurrentIdx(aIdx)
	aSlot.Msg = msg(frame.Pid(999), "hi")
	if ret := h.svc.Send(aSlot); ret != defs.Fail {
		t.Fatalf("Send to absent receiver = %v, want Fail", ret)
	}
	if h.tbl.Get(aIdx).Status != proc.Running {
		t.Fatalf("sender status mutated on failed send: %v", h.tbl.Get(aIdx).Status)
	}
}

func TestSendOversizeMessageFailsWithoutTouchingSlot(t *testing.T) {
	h := newHarness(t)
	aIdx, _, aSlot := h.seat()
	_, bPid, _ := h.seat()
	h.tbl.SetCurrentIdx(aIdx)

	aSlot.Msg = msg(bPid, "")
	aSlot.Msg.Len = defs.SyscallMsgLen + 1
	before := aSlot.Msg
	if ret := h.svc.Send(aSlot); ret != defs.Fail {
		t.Fatalf("Send with oversize len = %v, want Fail", ret)
	}
	if aSlot.Msg != before {
		t.Fatal("oversize send mutated the slot")
	}
}

func TestSendExactMaxLenSucceeds(t *testing.T) {
	h := newHarness(t)
	aIdx, _, aSlot := h.seat()
	bIdx, bPid, bSlot := h.seat()
	h.tbl.Get(bIdx).Status = proc.WaitToRecv

	aSlot.Msg = msg(bPid, "")
	aSlot.Msg.Len = defs.SyscallMsgLen
	h.tbl.SetCurrentIdx(aIdx)
	if ret := h.svc.Send(aSlot); ret != defs.OK {
		t.Fatalf("Send at exactly SyscallMsgLen = %v, want OK", ret)
	}
	if bSlot.Msg.Len != defs.SyscallMsgLen {
		t.Fatalf("delivered Len = %d, want %d", bSlot.Msg.Len, defs.SyscallMsgLen)
	}
}
