// Package disk is the block-device interface consumed by the frame cache
// (§6, "To device drivers (consumed)"). The core never bit-bangs SD/UART
// hardware itself — that is an external collaborator's job — so this
// package only defines the contract and two implementations useful for
// testing and for the hosted simulator: an in-memory device and a
// file-backed device good enough to stand in for the microSD image.
package disk

import (
	"fmt"

	"defs"
)

// Device is the synchronous block-I/O contract the frame cache programs
// against. Blocks are BlockSize bytes; nblocks*BlockSize bytes are
// transferred per call. Implementations report I/O failures as plain Go
// errors; callers that cannot recover from them (the frame cache) turn
// that into the kernel's Fatal error kind (§7.1).
type Device interface {
	// ReadBlocks reads nblocks starting at blockNo into dst.
	ReadBlocks(blockNo, nblocks int, dst []byte) error
	// WriteBlocks writes nblocks starting at blockNo from src.
	WriteBlocks(blockNo, nblocks int, src []byte) error
}

// Memory is a Device backed by a plain byte slice, sized for the frame
// store (§6, "Persistent state") plus whatever else a caller wants to
// address. It never fails, which makes it the natural default for unit
// tests exercising cache/frame logic independent of real storage.
type Memory struct {
	blocks [][defs.BlockSize]byte
}

// NewMemory allocates a Memory device with nblocks zeroed blocks.
func NewMemory(nblocks int) *Memory {
	return &Memory{blocks: make([][defs.BlockSize]byte, nblocks)}
}

func (m *Memory) bounds(blockNo, nblocks int) error {
	if blockNo < 0 || nblocks < 0 || blockNo+nblocks > len(m.blocks) {
		return fmt.Errorf("disk: out of range block=%d nblocks=%d size=%d", blockNo, nblocks, len(m.blocks))
	}
	return nil
}

// ReadBlocks implements Device.
func (m *Memory) ReadBlocks(blockNo, nblocks int, dst []byte) error {
	if err := m.bounds(blockNo, nblocks); err != nil {
		return err
	}
	if len(dst) < nblocks*defs.BlockSize {
		return fmt.Errorf("disk: dst too small")
	}
	for i := 0; i < nblocks; i++ {
		copy(dst[i*defs.BlockSize:(i+1)*defs.BlockSize], m.blocks[blockNo+i][:])
	}
	return nil
}

// WriteBlocks implements Device.
func (m *Memory) WriteBlocks(blockNo, nblocks int, src []byte) error {
	if err := m.bounds(blockNo, nblocks); err != nil {
		return err
	}
	if len(src) < nblocks*defs.BlockSize {
		return fmt.Errorf("disk: src too small")
	}
	for i := 0; i < nblocks; i++ {
		copy(m.blocks[blockNo+i][:], src[i*defs.BlockSize:(i+1)*defs.BlockSize])
	}
	return nil
}
