// Package loader pulls an executable's pages in block-by-block from a
// caller-provided reader and installs them into a fresh process's address
// space (§6: "Fetches an executable block-by-block via a caller-provided
// reader; the core exposes no parsing."). Whatever recognizes ELF headers,
// segment tables, or a.out magic numbers lives entirely outside this
// package; loader only ever sees raw disk blocks.
package loader

import (
	"fmt"

	"cache"
	"defs"
	"frame"
	"mmu"
)

// BlockReader is the caller-supplied source of an executable's raw bytes,
// one fixed-size block at a time.
type BlockReader interface {
	ReadBlock(blockNo int, dst []byte) error
}

// Load allocates npages fresh frames for pid, starting at virtual page
// number pageNo, and fills each from startBlock forward in r, one page
// (BlocksPerPage blocks) at a time. flags are the permission bits stamped
// onto each mapping.
func Load(r BlockReader, eng mmu.Engine, c *cache.Cache, pid frame.Pid, pageNo, startBlock, npages int, flags uint) error {
	buf := make([]byte, defs.PageSize)
	for p := 0; p < npages; p++ {
		frameID := eng.Alloc(pid, pageNo+p, flags)

		base := startBlock + p*defs.BlocksPerPage
		for b := 0; b < defs.BlocksPerPage; b++ {
			off := b * defs.BlockSize
			if err := r.ReadBlock(base+b, buf[off:off+defs.BlockSize]); err != nil {
				return fmt.Errorf("loader: reading block %d of page %d: %w", base+b, pageNo+p, err)
			}
		}
		c.Write(frameID, buf)
	}
	return nil
}
