// Package tty is the polling and interrupt-signal surface the trap
// dispatcher consumes from the TTY driver (§6). The core never parses or
// bit-bangs the UART itself (§1 Non-goals); it only ever calls Read and
// RecvIntr through this interface.
package tty

// Device is what the trap dispatcher polls: one buffered input byte and a
// sticky ctrl-C signal.
type Device interface {
	// Read returns the next buffered input byte, if any.
	Read() (b byte, ok bool)
	// RecvIntr reports and clears a pending user-interrupt (ctrl-C) signal.
	RecvIntr() bool
}

// Sim is an in-memory Device for the hosted simulator and for tests: bytes
// and the interrupt signal are injected programmatically rather than read
// from a real serial line.
type Sim struct {
	queue []byte
	intr  bool
}

// NewSim returns an empty Sim with no pending input or interrupt.
func NewSim() *Sim { return &Sim{} }

// Inject appends a byte to the input queue, as if it had arrived over the
// wire.
func (s *Sim) Inject(b byte) { s.queue = append(s.queue, b) }

// Read implements Device.
func (s *Sim) Read() (byte, bool) {
	if len(s.queue) == 0 {
		return 0, false
	}
	b := s.queue[0]
	s.queue = s.queue[1:]
	return b, true
}

// SignalIntr raises the ctrl-C signal; it stays set until RecvIntr
// observes and clears it.
func (s *Sim) SignalIntr() { s.intr = true }

// RecvIntr implements Device.
func (s *Sim) RecvIntr() bool {
	v := s.intr
	s.intr = false
	return v
}
