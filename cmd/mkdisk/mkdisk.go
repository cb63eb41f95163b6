// Command mkdisk builds a zero-initialized frame-store disk image (§6,
// "Persistent state": "frame store... backing medium for cached pages").
// It is this core's equivalent of the teacher's mkfs utility, scaled down
// to the one thing the frame cache actually needs on disk: NFrames
// BlocksPerPage-sized slots, plus a small header block identifying the
// build that produced the image.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"defs"
	"disk"
)

// usage prints a small help message and terminates the program, the same
// shape as the teacher's own command-line tools.
func usage(me string) {
	fmt.Printf("%s <output image>\n\nCreate a zero-initialized frame-store disk image.\n", me)
	os.Exit(1)
}

func main() {
	if len(os.Args) != 2 {
		usage(os.Args[0])
	}
	image := os.Args[1]

	buildID, err := readBuildID()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkdisk: %v\n", err)
		os.Exit(1)
	}

	d, err := disk.OpenFile(image, defs.FrameStoreBlocks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkdisk: opening %s: %v\n", image, err)
		os.Exit(1)
	}
	defer d.Close()

	if err := zeroFrameStore(d); err != nil {
		fmt.Fprintf(os.Stderr, "mkdisk: %v\n", err)
		os.Exit(1)
	}
	if err := disk.WriteHeader(d, defs.NFrames, buildID); err != nil {
		fmt.Fprintf(os.Stderr, "mkdisk: stamping header: %v\n", err)
		os.Exit(1)
	}

	p := message.NewPrinter(language.English)
	p.Printf("mkdisk: wrote %d frame slots (%d blocks, %d bytes), build %s, to %s\n",
		defs.NFrames, defs.FrameStoreBlocks, defs.FrameStoreBlocks*defs.BlockSize, buildID, image)
}

// zeroFrameStore writes NFrames zero-initialized BlocksPerPage-block slots
// in parallel, one errgroup worker per slot, capped at the host's CPU
// count — the image is just zeroed frames (§6), so slots have no
// dependency on one another and can be written out of order.
func zeroFrameStore(d *disk.FileDevice) error {
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	zero := make([]byte, defs.PageSize)
	for frameNo := 0; frameNo < defs.NFrames; frameNo++ {
		frameNo := frameNo
		g.Go(func() error {
			blockNo := frameNo * defs.BlocksPerPage
			if err := d.WriteBlocks(blockNo, defs.BlocksPerPage, zero); err != nil {
				return fmt.Errorf("zeroing frame %d (blocks %d..%d): %w",
					frameNo, blockNo, blockNo+defs.BlocksPerPage, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// readBuildID derives a semver build identifier from the module's go.mod,
// the same spirit as the teacher's chentry build-time image-patching tool
// stamping a binary with a value computed at build time. go.mod has no
// version field of its own, so the Go language version it requires is
// promoted into one: "go 1.21" becomes "v1.21.0".
func readBuildID() (string, error) {
	root, err := moduleRoot()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("reading go.mod: %w", err)
	}
	mf, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return "", fmt.Errorf("parsing go.mod: %w", err)
	}
	if mf.Go == nil {
		return "", fmt.Errorf("go.mod has no go directive")
	}
	buildID := "v" + mf.Go.Version + ".0"
	if !semver.IsValid(buildID) {
		return "", fmt.Errorf("derived build id %q is not valid semver", buildID)
	}
	return buildID, nil
}

// moduleRoot walks up from the working directory looking for go.mod,
// mirroring how `go` itself locates the module root.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above %s", dir)
		}
		dir = parent
	}
}
