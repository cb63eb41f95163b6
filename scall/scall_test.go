package scall

import (
	"testing"

	"defs"
)

func TestDispatchResetsTagBeforeRunning(t *testing.T) {
	s := &Slot{Tag: defs.Send}
	var sawTag defs.MsgType
	Dispatch(s, func(slot *Slot) defs.Err_t {
		sawTag = slot.Tag
		return defs.OK
	}, func(slot *Slot) defs.Err_t {
		t.Fatal("recv handler invoked for a send tag")
		return defs.Fail
	})
	if sawTag != defs.Unused {
		t.Fatalf("tag visible to handler = %v, want Unused (reset before dispatch)", sawTag)
	}
	if s.Tag != defs.Unused {
		t.Fatalf("slot tag after dispatch = %v, want Unused", s.Tag)
	}
	if s.Ret != defs.OK {
		t.Fatalf("Ret = %v, want OK", s.Ret)
	}
}

func TestDispatchRoutesRecv(t *testing.T) {
	s := &Slot{Tag: defs.Recv}
	called := false
	Dispatch(s, func(slot *Slot) defs.Err_t {
		t.Fatal("send handler invoked for a recv tag")
		return defs.Fail
	}, func(slot *Slot) defs.Err_t {
		called = true
		return defs.OK
	})
	if !called {
		t.Fatal("recv handler never invoked")
	}
}

func TestDispatchUnknownTagFatal(t *testing.T) {
	s := &Slot{Tag: defs.Unused}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown tag")
		}
	}()
	Dispatch(s, func(*Slot) defs.Err_t { return defs.OK }, func(*Slot) defs.Err_t { return defs.OK })
}
