package wizard

import (
	"io/ioutil"
	"path/filepath"

	"github.com/vorteil/plotkit/pkg/plotgeom"
)

// Chunk is one planned plot: a directory to create it in and the nonce
// range it should cover.
type Chunk struct {
	Dir        string
	StartNonce uint64
	Nonces     uint32
}

// DiskFreeFunc reports the free bytes available on the filesystem holding
// path, the Go equivalent of the original's util.diskFree.
type DiskFreeFunc func(path string) (int64, error)

// DiskFree implements DiskFreeFunc via syscall.Statfs. No third-party
// library in the dependency pack wraps statfs; stdlib syscall is the only
// way to ask the kernel for this number.
func DiskFree(path string) (int64, error) {
	return diskFree(path)
}

// Plan computes the plot chunks to create across dirs per §4.9: usable
// bytes per directory is freeSpace(dir) - minDiskFree(dir), rounded down
// to a multiple of nonces*threadCount*8 bytes, split into chunks no
// larger than maxPlotSize and no smaller than minPlotSize. StartNonce
// values are assigned in round-robin across directories so a plotting
// run spreads evenly instead of filling one directory before moving to
// the next.
func Plan(dirs []string, startNonce uint64, minPlotSize, maxPlotSize int64, threadCount int, minDiskFree func(dir string) int64, freeSpace DiskFreeFunc) ([]Chunk, error) {

	granularity := plotgeom.NonceSize * int64(threadCount) * 8
	if granularity <= 0 {
		granularity = plotgeom.NonceSize
	}

	perDir := make([][]int64, len(dirs))

	for i, dir := range dirs {

		free, err := freeSpace(dir)
		if err != nil {
			return nil, err
		}

		usable := free - minDiskFree(dir)
		usable -= usable % granularity

		for usable >= minPlotSize {
			size := usable
			if size > maxPlotSize {
				size = maxPlotSize
			}
			size -= size % granularity
			if size <= 0 {
				break
			}
			perDir[i] = append(perDir[i], size)
			usable -= size
		}
	}

	var chunks []Chunk
	maxLen := 0
	for _, sizes := range perDir {
		if len(sizes) > maxLen {
			maxLen = len(sizes)
		}
	}

	next := startNonce
	for round := 0; round < maxLen; round++ {
		for i, sizes := range perDir {
			if round >= len(sizes) {
				continue
			}
			nonces := uint32(sizes[round] / plotgeom.NonceSize)
			if nonces == 0 {
				continue
			}
			chunks = append(chunks, Chunk{Dir: dirs[i], StartNonce: next, Nonces: nonces})
			next += uint64(nonces)
		}
	}

	return chunks, nil
}

// ScanStartNonce resumes a key's startNonce counter from the existing
// plot files already present under dirs, exactly as plotWizard.py does
// before planning new chunks: the resumed value is the highest EndNonce
// (startNonce + nonces, already one past the plot's last nonce) found
// among files whose key matches, or 0 when none match.
func ScanStartNonce(dirs []string, key uint64) (uint64, error) {

	var max uint64

	for _, dir := range dirs {
		entries, err := ioutil.ReadDir(dir)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			info, err := plotgeom.ParseFilename(filepath.Base(e.Name()))
			if err != nil {
				continue
			}
			if info.Key != key {
				continue
			}
			if end := info.EndNonce(); end > max {
				max = end
			}
		}
	}

	return max, nil
}
