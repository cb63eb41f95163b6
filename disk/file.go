package disk

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"defs"
)

// FileDevice is a Device backed by a regular file standing in for the
// microSD image. Writes are durable: each WriteBlocks ends with an
// Fdatasync, so a simulated power cut never loses a block that the caller
// believes committed — the property the frame cache's writeback-aware
// eviction depends on (§4.1).
type FileDevice struct {
	f *os.File
}

// OpenFile opens (or creates) path as a FileDevice with room for at least
// nblocks blocks.
func OpenFile(path string, nblocks int) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}
	want := int64(nblocks) * defs.BlockSize
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() < want {
		if err := f.Truncate(want); err != nil {
			f.Close()
			return nil, fmt.Errorf("disk: truncate %s: %w", path, err)
		}
	}
	return &FileDevice{f: f}, nil
}

// Close releases the underlying file.
func (d *FileDevice) Close() error {
	return d.f.Close()
}

// ReadBlocks implements Device.
func (d *FileDevice) ReadBlocks(blockNo, nblocks int, dst []byte) error {
	n := nblocks * defs.BlockSize
	if len(dst) < n {
		return fmt.Errorf("disk: dst too small")
	}
	off := int64(blockNo) * defs.BlockSize
	got, err := unix.Pread(int(d.f.Fd()), dst[:n], off)
	if err != nil {
		return fmt.Errorf("disk: pread: %w", err)
	}
	if got != n {
		return fmt.Errorf("disk: short read %d of %d", got, n)
	}
	return nil
}

// WriteBlocks implements Device.
func (d *FileDevice) WriteBlocks(blockNo, nblocks int, src []byte) error {
	n := nblocks * defs.BlockSize
	if len(src) < n {
		return fmt.Errorf("disk: src too small")
	}
	off := int64(blockNo) * defs.BlockSize
	put, err := unix.Pwrite(int(d.f.Fd()), src[:n], off)
	if err != nil {
		return fmt.Errorf("disk: pwrite: %w", err)
	}
	if put != n {
		return fmt.Errorf("disk: short write %d of %d", put, n)
	}
	if err := unix.Fdatasync(int(d.f.Fd())); err != nil {
		return fmt.Errorf("disk: fdatasync: %w", err)
	}
	return nil
}
