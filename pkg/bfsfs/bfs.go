// Package bfsfs implements the BFS operations: init, list, write, read,
// and delete over a raw block device whose only structure is the 1024-byte
// table of contents defined by pkg/toc.
package bfsfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vorteil/plotkit/pkg/alloc"
	"github.com/vorteil/plotkit/pkg/pipeline"
	"github.com/vorteil/plotkit/pkg/plotgeom"
	"github.com/vorteil/plotkit/pkg/rawio"
	"github.com/vorteil/plotkit/pkg/reorder"
	"github.com/vorteil/plotkit/pkg/shuffle"
	"github.com/vorteil/plotkit/pkg/toc"
)

// Error kinds per §7. Callers inspect these with errors.Is/errors.As to
// decide whether a multi-file sweep should keep going (Format, Capacity,
// Conflict) or abort the current operation (everything else).
var (
	// ErrConflict covers a duplicate (key, startNonce, nonces) slot or a
	// destination file that already exists.
	ErrConflict = errors.New("conflicting plot")
	// ErrSizeMismatch is a Format error: a source file's size doesn't match
	// what its filename declares.
	ErrSizeMismatch = errors.New("file size does not match declared nonce count")
)

// CopyBufSize is the chunk size used for the BFS bulk-copy pipeline, and
// CopyBufCount the number of chunks kept in flight; their product is the
// pipeline's byte capacity.
const (
	CopyBufSize  = 4 * plotgeom.NonceSize
	CopyBufCount = 8
)

// BFS is an open handle on a BFS device: its positioned I/O plus its
// decoded table of contents.
type BFS struct {
	dev        *rawio.Device
	toc        *toc.TOC
	deviceSize int64
	usableEnd  int64
}

// usableEnd returns deviceSize - 2*SectorSize, the payload boundary.
func usableEnd(deviceSize int64) int64 {
	return deviceSize - 2*plotgeom.SectorSize
}

// Init writes a fresh TOC (the BFS0 magic followed by 1020 zero bytes) to
// path, destroying any plots it may have held. The caller (the CLI layer)
// is responsible for interactive confirmation before calling this.
func Init(path string) error {

	dev, err := rawio.Open(path)
	if err != nil {
		return err
	}
	defer dev.Close()

	return toc.Fresh().Persist(dev)
}

// Open decodes an existing BFS device's TOC.
func Open(path string) (*BFS, error) {

	dev, err := rawio.Open(path)
	if err != nil {
		return nil, err
	}

	size, err := dev.Size()
	if err != nil {
		dev.Close()
		return nil, err
	}

	t, err := toc.Read(dev)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &BFS{dev: dev, toc: t, deviceSize: size, usableEnd: usableEnd(size)}, nil
}

// Close closes the underlying device.
func (b *BFS) Close() error {
	return b.dev.Close()
}

// Entry is one listed plot, annotated with its live status for display.
type Entry struct {
	Filename string
	StartPos int64
	Size     int64
	Status   uint8
	Stagger  uint32
}

// StatusLabel renders a status annotation the way the BFS CLI's list
// command overlays onto a filename: ".plotting" for an INCOMPLETE slot and
// ".converting" for a CONVERTING one. The converting label does not show
// how many scoops have been converted.
func (e Entry) StatusLabel() string {
	switch e.Status {
	case plotgeom.StatusIncomplete:
		return ".plotting"
	case plotgeom.StatusConverting:
		return ".converting"
	default:
		return ""
	}
}

// List returns every live plot sorted by on-device position, plus the
// free bytes and free nonces remaining.
func (b *BFS) List() (entries []Entry, freeBytes int64, freeNonces int64) {

	for _, r := range b.toc.Records() {
		info := plotgeom.Info{Key: r.Key, StartNonce: r.StartNonce, Nonces: r.Nonces, Stagger: r.Stagger}
		entries = append(entries, Entry{
			Filename: info.Filename(),
			StartPos: r.StartPos,
			Size:     r.Size(),
			Status:   r.Status,
			Stagger:  r.Stagger,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].StartPos < entries[j].StartPos })

	for _, e := range alloc.FreeExtents(b.toc.Records(), b.usableEnd) {
		freeBytes += e.Size
	}
	freeNonces = freeBytes / plotgeom.NonceSize

	return
}

func (b *BFS) findByKey(key, startNonce uint64, nonces uint32) (*toc.Record, bool) {
	for _, r := range b.toc.Records() {
		if r.Key == key && r.StartNonce == startNonce && r.Nonces == nonces {
			return r, true
		}
	}
	return nil, false
}

func (b *BFS) findByFilename(name string) (*toc.Record, error) {

	info, err := plotgeom.ParseFilename(name)
	if err != nil {
		return nil, err
	}

	for _, r := range b.toc.Records() {
		if r.Key == info.Key && r.StartNonce == info.StartNonce && r.Nonces == info.Nonces {
			return r, nil
		}
	}

	return nil, fmt.Errorf("no plot named %s on device", name)
}

// Write copies srcPath onto the device under its own declared filename. If
// convertToPoc2 is set and the source is POC1, the plot is converted to
// POC2 as part of the same operation instead of requiring a separate
// Convert call afterward.
func (b *BFS) Write(srcPath string, convertToPoc2 bool, progress func(written int64)) error {

	base := filepath.Base(srcPath)
	info, err := plotgeom.ParseFilename(base)
	if err != nil {
		return fmt.Errorf("%s: %w", base, err)
	}

	if _, exists := b.findByKey(info.Key, info.StartNonce, info.Nonces); exists {
		return fmt.Errorf("%w: %s already present", ErrConflict, info.Filename())
	}

	fi, err := os.Stat(srcPath)
	if err != nil {
		return err
	}
	if fi.Size() != info.Size() {
		return fmt.Errorf("%w: %s is %d bytes, expected %d", ErrSizeMismatch, base, fi.Size(), info.Size())
	}

	extents := alloc.FreeExtents(b.toc.Records(), b.usableEnd)
	placedAt, _, err := alloc.Place(extents, info.Size())
	if err != nil {
		return err
	}

	rec := &toc.Record{
		Key: info.Key, StartNonce: info.StartNonce, Nonces: info.Nonces, Stagger: info.Stagger,
		StartPos: placedAt, Status: plotgeom.StatusIncomplete,
	}
	if err := b.toc.Put(rec); err != nil {
		return err
	}
	if err := b.toc.Persist(b.dev); err != nil {
		return err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	if convertToPoc2 && info.Stagger != 0 && info.Stagger != info.Nonces {
		if err := b.writeConverted(src, info, placedAt, progress); err != nil {
			return err
		}
		rec.Stagger = 0
	} else {
		if err := pipeline.Copy(src, b.dev, placedAt, info.Size(), CopyBufSize, CopyBufCount, progress); err != nil {
			return err
		}
		if convertToPoc2 && info.Stagger == info.Nonces {
			// Already a single group: no regrouping, only the mirror-swap.
			if err := shuffle.Run(b.dev, placedAt, info.Nonces, 0, nil); err != nil {
				return err
			}
			rec.Stagger = 0
		}
	}

	rec.Status = plotgeom.StatusOK
	if err := b.toc.UpdateStatus(placedAt, plotgeom.StatusOK, 0); err != nil {
		return err
	}
	if rec.Stagger == 0 {
		if err := b.toc.Relabel(placedAt, 0); err != nil {
			return err
		}
	}

	return b.toc.Persist(b.dev)
}

// writeConverted reorders src's POC1 layout into POC2 directly at the
// destination, then applies the mirror-swap in place. This keeps the
// intermediate, unswapped POC2 rendering confined to the destination
// extent — the plot never exists as a separate on-device POC1 copy that
// a later, independent shuffle pass would have to find and convert.
func (b *BFS) writeConverted(src io.ReaderAt, info plotgeom.Info, startPos int64, progress func(int64)) error {

	pr, pw := io.Pipe()
	errCh := make(chan error, 1)

	go func() {
		err := reorder.Optimize(pw, info, src, nil)
		if err != nil {
			pw.CloseWithError(err)
		} else {
			pw.Close()
		}
		errCh <- err
	}()

	if err := pipeline.Copy(pr, b.dev, startPos, info.Size(), CopyBufSize, CopyBufCount, progress); err != nil {
		return err
	}
	if err := <-errCh; err != nil {
		return err
	}

	return shuffle.Run(b.dev, startPos, info.Nonces, 0, nil)
}

// Read copies the plot named name off the device into dstPath.
func (b *BFS) Read(name, dstPath string, progress func(written int64)) error {

	rec, err := b.findByFilename(name)
	if err != nil {
		return err
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	return pipeline.Copy(io.NewSectionReader(b.dev, rec.StartPos, rec.Size()), fileWriterAt{dst}, 0, rec.Size(), CopyBufSize, CopyBufCount, progress)
}

type fileWriterAt struct {
	f *os.File
}

func (w fileWriterAt) WriteAt(p []byte, off int64) (int, error) {
	return w.f.WriteAt(p, off)
}

// Delete removes name's slot from the TOC and rewrites the compacted TOC.
// No on-disk plot data is touched.
func (b *BFS) Delete(name string) error {

	rec, err := b.findByFilename(name)
	if err != nil {
		return err
	}

	if err := b.toc.Remove(rec.StartPos); err != nil {
		return err
	}

	return b.toc.Persist(b.dev)
}

// Convert runs the POC1->POC2 shuffle on an already-written plot,
// resuming a previously interrupted conversion if the slot is already
// CONVERTING.
func (b *BFS) Convert(name string) error {

	rec, err := b.findByFilename(name)
	if err != nil {
		return err
	}

	return shuffle.ConvertPlot(b.dev, b.toc, func() error { return b.toc.Persist(b.dev) }, rec.StartPos)
}
