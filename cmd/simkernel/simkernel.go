// Command simkernel is the hosted simulator standing in for QEMU/the FPGA
// board (§6, "Environment / configuration"): it drives the trap dispatcher
// from goroutines that synchronously model a timer tick, a TTY poll, and
// an ecall, so the frame cache, MMU, scheduler, and rendezvous messaging
// are all exercisable without real RISC-V hardware. It is the closest
// analogue this core has to the teacher's own kernel/chentry build-time
// tooling: a small, disposable driver around the real packages, not a
// reimplementation of them.
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"sync"
	"syscall"
	"time"

	"github.com/google/pprof/profile"
	"golang.org/x/sync/errgroup"

	"arch"
	"defs"
	"disk"
	"kernel"
	"timer"
	"tty"
)

func main() {
	diskPath := flag.String("disk", "", "path to a frame-store image (mkdisk output); defaults to an in-memory disk")
	tick := flag.Duration("tick", 50*time.Millisecond, "simulated timer interrupt period")
	flag.Parse()

	d, closeDisk, err := openDisk(*diskPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simkernel: %v\n", err)
		os.Exit(1)
	}
	defer closeDisk()

	cfg := defs.DefaultEmulatorConfig()
	ttyDev := tty.NewSim()
	timerDev := timer.NewSim()
	sys := kernel.Boot(cfg, d, ttyDev, timerDev)
	kernel.BootBanner(os.Stdout, cfg)

	sim := &simulator{sys: sys, tty: ttyDev, timer: timerDev}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sim.runScheduler(ctx, *tick) })
	g.Go(func() error { return sim.pollTTY(ctx, os.Stdin) })
	g.Go(func() error { return handleSignals(ctx, cancel) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "simkernel: %v\n", err)
		os.Exit(1)
	}
}

func openDisk(path string) (disk.Device, func(), error) {
	if path == "" {
		return disk.NewMemory(defs.FrameStoreBlocks), func() {}, nil
	}
	f, err := disk.OpenFile(path, defs.FrameStoreBlocks)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	validateHeader(f, path)
	return f, func() { f.Close() }, nil
}

// validateHeader checks an on-disk image against the header mkdisk
// stamps (§6). A brand-new, just-truncated file has no header yet — that
// is not an error, just an image nobody has run mkdisk over; only a
// present-but-wrong header is worth a warning.
func validateHeader(f *disk.FileDevice, path string) {
	nframes, buildID, err := disk.ReadHeader(f)
	if err != nil {
		return
	}
	if nframes != defs.NFrames {
		fmt.Fprintf(os.Stderr, "simkernel: warning: %s header says %d frames, this build has %d (build %s)\n",
			path, nframes, defs.NFrames, buildID)
	}
}

// simulator serializes every access to sys behind mu: on real hardware a
// single hart runs with interrupts off while the kernel is active (§5);
// here, several goroutines stand in for the timer, the TTY line, and
// syscalls, and mu is what keeps them from touching the process table and
// MMU concurrently.
type simulator struct {
	mu    sync.Mutex
	sys   *kernel.System
	tty   *tty.Sim
	timer *timer.Sim
}

// runScheduler fires a simulated timer interrupt every tick and, once the
// process-manager server becomes current, serves its recv() loop — the
// hosted equivalent of the process server being the process every
// Yield would otherwise eventually land on with nothing else runnable.
func (s *simulator) runScheduler(ctx context.Context, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.step(arch.IntTimer)
		}
	}
}

// step dispatches one trap of the given cause against the current
// process, then lets the process-manager server run its recv() loop if
// dispatch left it current.
func (s *simulator) step(cause arch.Cause) {
	s.mu.Lock()
	defer s.mu.Unlock()

	curIdx := s.sys.Procs.CurrentIdx()
	var csr arch.CSR
	csr.Trap(cause, s.sys.Procs.Get(curIdx).Ctx.Mepc)
	s.sys.Trap.Dispatch(&csr)
	s.sys.Procs.Get(s.sys.Procs.CurrentIdx()).Ctx.Mepc, _ = csr.RetFromTrap()

	if s.sys.Procs.Get(s.sys.Procs.CurrentIdx()).Pid == defs.GPIDProcess {
		s.sys.ProcSrv.ServeOne()
	}
}

// pollTTY forwards stdin bytes into the simulated TTY device and raises
// IntExternal on ctrl-C (0x03), exactly the external-interrupt path §4.5
// describes for a user interrupt signal.
func (s *simulator) pollTTY(ctx context.Context, in *os.File) error {
	r := bufio.NewReader(in)
	type readResult struct {
		b   byte
		err error
	}
	results := make(chan readResult)
	go func() {
		for {
			b, err := r.ReadByte()
			results <- readResult{b, err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-results:
			if res.err != nil {
				return nil
			}
			s.mu.Lock()
			s.tty.Inject(res.b)
			if res.b == 0x03 {
				s.tty.SignalIntr()
			}
			s.mu.Unlock()
			if res.b == 0x03 {
				s.step(arch.IntExternal)
			}
		}
	}
}

// handleSignals cancels ctx on SIGINT/SIGTERM and writes a one-shot
// combined heap/goroutine profile to ./simkernel.pprof on SIGUSR1 (§2
// domain-stack wiring: the teacher's pprof dependency, given a caller).
func handleSignals(ctx context.Context, cancel context.CancelFunc) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				if err := dumpProfile("simkernel.pprof"); err != nil {
					fmt.Fprintf(os.Stderr, "simkernel: profile dump failed: %v\n", err)
				}
			default:
				cancel()
				return nil
			}
		}
	}
}

// dumpProfile captures a heap and a goroutine profile with runtime/pprof,
// parses both with google/pprof's profile package, merges them into one,
// and writes the merged profile to path.
func dumpProfile(path string) error {
	var heapBuf, goroutineBuf bytes.Buffer
	if err := pprof.WriteHeapProfile(&heapBuf); err != nil {
		return fmt.Errorf("writing heap profile: %w", err)
	}
	if err := pprof.Lookup("goroutine").WriteTo(&goroutineBuf, 0); err != nil {
		return fmt.Errorf("writing goroutine profile: %w", err)
	}

	heapProf, err := profile.Parse(&heapBuf)
	if err != nil {
		return fmt.Errorf("parsing heap profile: %w", err)
	}
	goroutineProf, err := profile.Parse(&goroutineBuf)
	if err != nil {
		return fmt.Errorf("parsing goroutine profile: %w", err)
	}
	merged, err := profile.Merge([]*profile.Profile{heapProf, goroutineProf})
	if err != nil {
		return fmt.Errorf("merging profiles: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return merged.Write(f)
}
