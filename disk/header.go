package disk

import (
	"fmt"
	"strings"

	"defs"
	"util"
)

// Frame-store image header layout (§6, "Persistent state"): block 0 of
// the backing medium carries a magic string, the frame count the image
// was built for, and a build identifier, ahead of frame 0's own content.
// mkdisk writes this; a simulator reading the image back validates it
// before trusting the rest of the blocks as a frame store.
const (
	// HeaderMagic tags block 0 so a reader can tell a real frame-store
	// image from an arbitrary file.
	HeaderMagic = "RVKFS001"

	headerMagicOff   = 0
	headerNFramesOff = len(HeaderMagic) + 1
	headerBuildIDOff = headerNFramesOff + 4
	headerBuildIDLen = 32
)

// WriteHeader stamps block 0 of d with the frame-store header. nframes
// and buildID are packed at fixed offsets with util.Writen and a plain
// copy — the "fixed-offset fields in a byte-sized block" shape Writen and
// Readn exist for, here at disk-block granularity.
func WriteHeader(d Device, nframes int, buildID string) error {
	block := make([]byte, defs.BlockSize)
	copy(block[headerMagicOff:], HeaderMagic)
	util.Writen(block, 4, headerNFramesOff, nframes)
	copy(block[headerBuildIDOff:headerBuildIDOff+headerBuildIDLen], buildID)
	return d.WriteBlocks(0, 1, block)
}

// ReadHeader reads and validates block 0's frame-store header, returning
// the frame count and build identifier it was stamped with.
func ReadHeader(d Device) (nframes int, buildID string, err error) {
	block := make([]byte, defs.BlockSize)
	if err := d.ReadBlocks(0, 1, block); err != nil {
		return 0, "", err
	}
	got := string(block[headerMagicOff : headerMagicOff+len(HeaderMagic)])
	if got != HeaderMagic {
		return 0, "", fmt.Errorf("disk: bad frame-store header magic %q", got)
	}
	nframes = util.Readn(block, 4, headerNFramesOff)
	buildID = strings.TrimRight(string(block[headerBuildIDOff:headerBuildIDOff+headerBuildIDLen]), "\x00")
	return nframes, buildID, nil
}
