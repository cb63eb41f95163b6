// Package timer is the timer_reset surface the scheduler consumes to arm
// the next preemption (§6, §4.6).
package timer

// Device is what the trap return path calls to re-arm the next timer
// interrupt before resuming a process.
type Device interface {
	Reset()
}

// Sim is an in-memory Device for the hosted simulator and for tests; it
// only counts resets rather than programming real hardware.
type Sim struct {
	Resets int
}

// NewSim returns a Sim with no resets recorded.
func NewSim() *Sim { return &Sim{} }

// Reset implements Device.
func (s *Sim) Reset() { s.Resets++ }
