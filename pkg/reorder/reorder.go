// Package reorder implements the shared scoop-reordering engine behind the
// optimizer, merger, and splitter: each emits a POC2 byte stream by
// reading scoop 0 of every input nonce in startNonce order, then scoop 1,
// and so on, regardless of whether the inputs are POC1 (grouped/staggered)
// or already POC2.
package reorder

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/vorteil/plotkit/pkg/plotgeom"
)

// MaxReadChunk bounds a single positioned read/write call; a group's scoop
// slice larger than this is read in successive chunks instead of one huge
// allocation, matching §4.7's "buffer size ≤ 4·NONCE_SIZE per read call".
const MaxReadChunk = 4 * plotgeom.NonceSize

// Source is one input to the reorderer: a plot's declared geometry plus a
// positioned reader over its bytes. Trim, when nonzero, drops that many
// nonces off the tail of the effective read (the merger's overlap
// handling); it never changes Info, only how many nonces are actually
// read.
type Source struct {
	Info plotgeom.Info
	R    io.ReaderAt
	Trim uint32
}

func (s Source) effectiveNonces() uint32 {
	if s.Trim >= s.Info.Nonces {
		return 0
	}
	return s.Info.Nonces - s.Trim
}

// Skip describes the relationship between two startNonce-adjacent inputs,
// per §3's merger model: positive means A overlaps B by that many nonces
// (drop A's tail), negative means a gap of that many missing nonces
// between them, zero means contiguous.
type Skip struct {
	A, B int // indices into the input slice, A immediately before B
	N    int64
}

// ComputeSkips sorts infos by StartNonce (the order the merger requires)
// and returns the skip for every consecutive pair. It does not mutate its
// argument's order as seen by the caller — callers should re-sort their
// own parallel source slice the same way, or build Sources already in
// StartNonce order and call this first.
func ComputeSkips(infos []plotgeom.Info) []Skip {

	order := make([]int, len(infos))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return infos[order[i]].StartNonce < infos[order[j]].StartNonce })

	skips := make([]Skip, 0, len(infos)-1)
	for i := 0; i+1 < len(order); i++ {
		a, b := infos[order[i]], infos[order[i+1]]
		n := int64(a.StartNonce+uint64(a.Nonces)) - int64(b.StartNonce)
		skips = append(skips, Skip{A: order[i], B: order[i+1], N: n})
	}

	return skips
}

// readScoopSlice reads the contiguous, nonce-ordered byte slice for scoop
// index `scoop` across the first limitNonces nonces of a plot with the
// given geometry. Concatenating a POC1 file's groups in ascending order
// already yields nonces in ascending order for any one scoop index, so
// trimming the tail (the merger's positive-skip case) is just stopping
// early once limitNonces worth of bytes have been gathered.
func readScoopSlice(info plotgeom.Info, r io.ReaderAt, scoop int, limitNonces uint32) ([]byte, error) {

	if limitNonces == 0 {
		return nil, nil
	}

	stagger := info.EffectiveStagger()
	groupCount := plotgeom.GroupCount(info.Nonces, stagger)
	groupScoopSize := plotgeom.GroupScoopSize(stagger)

	out := make([]byte, 0, int64(limitNonces)*plotgeom.ScoopSize)
	remaining := int64(limitNonces) * plotgeom.ScoopSize

	for g := 0; g < int(groupCount) && remaining > 0; g++ {

		n := groupScoopSize
		if n > remaining {
			n = remaining
		}

		off := plotgeom.ScoopOffset(stagger, g, scoop)

		for read := int64(0); read < n; {
			chunk := n - read
			if chunk > MaxReadChunk {
				chunk = MaxReadChunk
			}
			buf := make([]byte, chunk)
			if _, err := r.ReadAt(buf, off+read); err != nil && err != io.EOF {
				return nil, fmt.Errorf("reading scoop %d: %w", scoop, err)
			}
			out = append(out, buf...)
			read += chunk
		}

		remaining -= n
	}

	return out, nil
}

// ProgressFunc is called after each scoop index finishes writing, with the
// cumulative bytes emitted so far.
type ProgressFunc func(scoop int, bytesTotal int64)

// Merge emits the POC2 byte stream for a set of sources already carrying
// their correct Trim (from ComputeSkips), writing scoop 0 across every
// source in StartNonce order, then scoop 1, and so on. Sources must
// already be sorted by StartNonce; Merge does not re-sort them since
// callers typically need that order to compute Trim first anyway.
//
// It returns the total nonce count written, i.e. the sum of each source's
// effective (post-trim) nonce count.
func Merge(w io.Writer, sources []Source, progress ProgressFunc) (uint32, error) {

	if len(sources) == 0 {
		return 0, errors.New("no inputs to merge")
	}

	var totalNonces uint32
	for _, s := range sources {
		totalNonces += s.effectiveNonces()
	}

	var written int64
	for scoop := 0; scoop < plotgeom.ScoopsPerNonce; scoop++ {
		for _, s := range sources {
			slice, err := readScoopSlice(s.Info, s.R, scoop, s.effectiveNonces())
			if err != nil {
				return 0, err
			}
			if len(slice) == 0 {
				continue
			}
			n, err := w.Write(slice)
			if err != nil {
				return 0, fmt.Errorf("writing scoop %d: %w", scoop, err)
			}
			written += int64(n)
		}
		if progress != nil {
			progress(scoop, written)
		}
	}

	return totalNonces, nil
}

// Optimize runs Merge over a single input with no trimming: the resulting
// stream is a POC2 rendering of one file, with nonces == stagger ==
// original nonces. Optimizing an already-POC2 file is therefore an
// identity operation (§8).
func Optimize(w io.Writer, info plotgeom.Info, r io.ReaderAt, progress ProgressFunc) error {
	_, err := Merge(w, []Source{{Info: info, R: r}}, progress)
	return err
}

// Chunk describes one output file a Split call produces: its nonce count
// and destination writer.
type Chunk struct {
	Nonces uint32
	W      io.Writer
}

// Plan splits nonces into chunks of at most splitNonces each, the last
// chunk taking the remainder — matching §8 scenario 6 (1000 nonces split
// at 256 yields 256,256,256,232).
func Plan(nonces, splitNonces uint32) []uint32 {
	if splitNonces == 0 || splitNonces >= nonces {
		return []uint32{nonces}
	}
	var chunks []uint32
	remaining := nonces
	for remaining > 0 {
		n := splitNonces
		if n > remaining {
			n = remaining
		}
		chunks = append(chunks, n)
		remaining -= n
	}
	return chunks
}

// Split reads one input via the same scoop traversal as Merge and writes
// `len(chunks)` output files in sequence. A single scoop's bytes for one
// input may span more than one output file — the writer below advances to
// the next chunk mid-scoop exactly when the current chunk's nonce quota is
// exhausted, matching §4.7's "an output may span across buffer
// boundaries" requirement.
func Split(info plotgeom.Info, r io.ReaderAt, chunks []Chunk, progress ProgressFunc) error {

	var written int64
	for scoop := 0; scoop < plotgeom.ScoopsPerNonce; scoop++ {

		slice, err := readScoopSlice(info, r, scoop, info.Nonces)
		if err != nil {
			return err
		}

		pos := 0
		for _, c := range chunks {
			n := int(c.Nonces) * plotgeom.ScoopSize
			if pos+n > len(slice) {
				return fmt.Errorf("split plan exceeds available scoop data at scoop %d", scoop)
			}
			if _, err := c.W.Write(slice[pos : pos+n]); err != nil {
				return fmt.Errorf("writing split chunk at scoop %d: %w", scoop, err)
			}
			pos += n
		}

		written += int64(pos)
		if progress != nil {
			progress(scoop, written)
		}
	}

	return nil
}
