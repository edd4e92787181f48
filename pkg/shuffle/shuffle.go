// Package shuffle implements the POC1->POC2 in-place mirror-and-swap
// conversion: exchanging the upper 32 bytes of scoop s with the upper 32
// bytes of scoop 4095-s, for every nonce, leaving the lower 32 bytes of
// both untouched.
package shuffle

import (
	"errors"
	"fmt"
	"io"

	"github.com/vorteil/plotkit/pkg/plotgeom"
	"github.com/vorteil/plotkit/pkg/toc"
)

// ErrIncomplete is returned when asked to convert a plot whose TOC slot is
// still INCOMPLETE — its bulk copy never finished, so its bytes cannot be
// trusted to be a valid POC1 plot.
var ErrIncomplete = errors.New("refusing to convert an incomplete plot")

// ReadWriterAt is the positioned I/O a Device (or any io.ReaderAt+io.WriterAt)
// provides; shuffle only ever reads and writes at explicit offsets.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// ProgressFunc is invoked once per completed scoop pair, after both
// halves have been flushed back to storage, with the scoop index just
// finished. Returning an error aborts the conversion.
type ProgressFunc func(scoopDone int) error

// Run performs the mirror-and-swap over [startPos, startPos+nonces*NonceSize)
// on rw, starting at scoop index resumeFrom (0 for a clean run). Buffer
// allocation is exactly two blockSize buffers, reused across all
// iterations, per §4.8.
func Run(rw ReadWriterAt, startPos int64, nonces uint32, resumeFrom int, progress ProgressFunc) error {

	if resumeFrom < 0 || resumeFrom > plotgeom.ScoopsPerNonce/2 {
		return fmt.Errorf("invalid resume scoop %d", resumeFrom)
	}

	blockSize := int64(nonces) * plotgeom.ScoopSize
	fileSize := plotgeom.NonceBytes(nonces)

	bufA := make([]byte, blockSize)
	bufB := make([]byte, blockSize)

	for s := resumeFrom; s < plotgeom.ScoopsPerNonce/2; s++ {

		mirror := plotgeom.MirrorScoop(s)
		offA := startPos + int64(s)*blockSize
		offB := startPos + fileSize - int64(s+1)*blockSize

		if _, err := rw.ReadAt(bufA, offA); err != nil && err != io.EOF {
			return fmt.Errorf("reading scoop %d: %w", s, err)
		}
		if _, err := rw.ReadAt(bufB, offB); err != nil && err != io.EOF {
			return fmt.Errorf("reading mirror scoop %d: %w", mirror, err)
		}

		plotgeom.SwapScoopHalves(bufA, bufB)

		if _, err := rw.WriteAt(bufA, offA); err != nil {
			return fmt.Errorf("writing scoop %d: %w", s, err)
		}
		if _, err := rw.WriteAt(bufB, offB); err != nil {
			return fmt.Errorf("writing mirror scoop %d: %w", mirror, err)
		}

		if progress != nil {
			if err := progress(s); err != nil {
				return err
			}
		}
	}

	return nil
}

// noScoopCompleted marks a CONVERTING slot that has not yet flushed any
// scoop pair in the current attempt — distinct from a real scoop index (the
// valid range is 0..ScoopsPerNonce/2-1) so a crash before the first pair
// finishes resumes at scoop 0 instead of skipping it.
const noScoopCompleted = 0x1fff

// ConvertPlot drives Run for a BFS-backed plot, keeping t's CONVERTING
// status current after every scoop pair and persisting the TOC so a crash
// can resume. It refuses an INCOMPLETE slot and relabels the slot OK with
// stagger 0 once the conversion finishes, per §4.8.
//
// A slot already CONVERTING resumes at lastCompletedScoop+1: the stored
// index names the last scoop pair whose writes were flushed and recorded,
// or noScoopCompleted if none has been yet, so resuming never re-swaps an
// already-converted pair and never skips one still in flight.
func ConvertPlot(rw ReadWriterAt, t *toc.TOC, persist func() error, startPos int64) error {

	rec, ok := t.Lookup(startPos)
	if !ok {
		return fmt.Errorf("no plot at startPos %d", startPos)
	}

	if rec.Status == plotgeom.StatusIncomplete {
		return ErrIncomplete
	}

	resumeFrom := 0
	if rec.Status == plotgeom.StatusConverting && rec.LastScoop != noScoopCompleted {
		resumeFrom = int(rec.LastScoop) + 1
	}

	marker := noScoopCompleted
	if resumeFrom > 0 {
		marker = resumeFrom - 1
	}
	if err := t.UpdateStatus(startPos, plotgeom.StatusConverting, uint16(marker)); err != nil {
		return err
	}
	if err := persist(); err != nil {
		return fmt.Errorf("persisting TOC before conversion: %w", err)
	}

	err := Run(rw, startPos, rec.Nonces, resumeFrom, func(scoopDone int) error {
		if err := t.UpdateStatus(startPos, plotgeom.StatusConverting, uint16(scoopDone)); err != nil {
			return err
		}
		return persist()
	})
	if err != nil {
		return err
	}

	if err := t.UpdateStatus(startPos, plotgeom.StatusOK, 0); err != nil {
		return err
	}
	if err := t.Relabel(startPos, 0); err != nil {
		return err
	}
	return persist()
}
