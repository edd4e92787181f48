// Package toc implements the BFS table of contents: a fixed 1024-byte
// header at device offset 0 listing up to 31 live plot files.
package toc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/vorteil/plotkit/pkg/plotgeom"
	"github.com/vorteil/plotkit/pkg/rawio"
)

// Magic is the 4-byte signature occupying the first four bytes of a BFS
// device.
var Magic = [4]byte{'B', 'F', 'S', '0'}

var (
	// ErrBadMagic is returned when a device's first four bytes aren't BFS0.
	ErrBadMagic = errors.New("not a BFS device: bad magic")
	// ErrTOCFull is returned when all 31 slots already hold a live plot.
	ErrTOCFull = errors.New("TOC full")
	// ErrDuplicateSlot is returned when decode finds two slots sharing a
	// startPos, or Put is asked to place a plot over an occupied startPos.
	ErrDuplicateSlot = errors.New("duplicate TOC slot")
	// ErrSlotNotFound is returned when an operation names a startPos with
	// no matching slot.
	ErrSlotNotFound = errors.New("no such slot")
)

// slotRecord is the on-disk layout of one 32-byte TOC slot, little-endian.
type slotRecord struct {
	Key        uint64
	StartNonce uint64
	Nonces     uint32
	Stagger    uint32
	Info       uint64
}

// Record is the decoded, in-memory form of a live TOC slot.
type Record struct {
	Index      int
	Key        uint64
	StartNonce uint64
	Nonces     uint32
	Stagger    uint32
	StartPos   int64
	Status     uint8
	LastScoop  uint16
}

// EndNonce returns the first nonce past this record's range.
func (r *Record) EndNonce() uint64 {
	return r.StartNonce + uint64(r.Nonces)
}

// Size returns the byte length on device occupied by this plot.
func (r *Record) Size() int64 {
	return plotgeom.NonceBytes(r.Nonces)
}

// TOC is the decoded table of contents together with the raw 1024-byte
// buffer it was parsed from, so a mutation can be written back with a
// single positioned write.
type TOC struct {
	raw   [plotgeom.TOCSize]byte
	slots map[int64]*Record // keyed by StartPos
}

// Fresh builds an empty TOC: the BFS0 magic followed by 1020 zero bytes,
// matching the exact bytes §4.6's init operation writes.
func Fresh() *TOC {
	t := &TOC{slots: make(map[int64]*Record)}
	copy(t.raw[0:4], Magic[:])
	return t
}

// ErrOverlappingSlots is returned when decode finds two live slots whose
// [startPos, startPos+size) ranges overlap, violating §3's "no two OK/
// INCOMPLETE slots may overlap" invariant.
var ErrOverlappingSlots = errors.New("overlapping TOC slots")

// Decode parses a 1024-byte TOC buffer. It fails if the magic doesn't
// match, and refuses (per §9's "TOC slot uniqueness" design note) a TOC
// where two slots claim the same startPos rather than silently letting one
// shadow the other, or where two slots' byte ranges overlap.
func Decode(buf []byte) (*TOC, error) {

	if len(buf) < plotgeom.TOCSize {
		return nil, fmt.Errorf("TOC buffer too short: %d bytes", len(buf))
	}

	if !bytes.Equal(buf[0:4], Magic[:]) {
		return nil, ErrBadMagic
	}

	t := &TOC{slots: make(map[int64]*Record)}
	copy(t.raw[:], buf[:plotgeom.TOCSize])

	for i := 0; i < plotgeom.TOCSlots; i++ {
		off := 4 + i*plotgeom.SlotSize
		var sr slotRecord
		if err := binary.Read(bytes.NewReader(t.raw[off:off+plotgeom.SlotSize]), binary.LittleEndian, &sr); err != nil {
			return nil, fmt.Errorf("decoding TOC slot %d: %w", i, err)
		}

		if sr.Key == 0 {
			continue
		}

		startPos, status, lastScoop := plotgeom.UnpackInfo(sr.Info)

		if _, exists := t.slots[startPos]; exists {
			return nil, fmt.Errorf("%w: startPos %d", ErrDuplicateSlot, startPos)
		}

		t.slots[startPos] = &Record{
			Index:      i,
			Key:        sr.Key,
			StartNonce: sr.StartNonce,
			Nonces:     sr.Nonces,
			Stagger:    sr.Stagger,
			StartPos:   startPos,
			Status:     status,
			LastScoop:  lastScoop,
		}
	}

	records := t.Records()
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if prev.StartPos+prev.Size() > cur.StartPos {
			return nil, fmt.Errorf("%w: startPos %d overlaps startPos %d", ErrOverlappingSlots, prev.StartPos, cur.StartPos)
		}
	}

	return t, nil
}

// Read decodes the TOC from the first 1024 bytes of dev.
func Read(dev *rawio.Device) (*TOC, error) {
	buf := make([]byte, plotgeom.TOCSize)
	if _, err := dev.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("reading TOC: %w", err)
	}
	return Decode(buf)
}

// Raw returns a copy of the current 1024-byte encoded buffer.
func (t *TOC) Raw() []byte {
	out := make([]byte, plotgeom.TOCSize)
	copy(out, t.raw[:])
	return out
}

// Persist writes the current 1024-byte buffer to dev in a single
// positioned write at offset 0, the only write that may ever touch the
// TOC region — partial writes here are the sole failure mode that can
// corrupt a device (§4.4).
func (t *TOC) Persist(dev *rawio.Device) error {
	n, err := dev.WriteAt(t.raw[:], 0)
	if err != nil {
		return fmt.Errorf("persisting TOC: %w", err)
	}
	if n != plotgeom.TOCSize {
		return fmt.Errorf("short TOC write: wrote %d of %d bytes", n, plotgeom.TOCSize)
	}
	return nil
}

// Records returns all live slots, sorted by StartPos.
func (t *TOC) Records() []*Record {
	out := make([]*Record, 0, len(t.slots))
	for _, r := range t.slots {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartPos < out[j].StartPos })
	return out
}

// Lookup finds the live slot starting at startPos.
func (t *TOC) Lookup(startPos int64) (*Record, bool) {
	r, ok := t.slots[startPos]
	return r, ok
}

// Put reserves the first empty slot for rec, writing it into the raw
// buffer in place. It fails with ErrTOCFull if all 31 slots are occupied,
// and with ErrDuplicateSlot if startPos is already live.
func (t *TOC) Put(rec *Record) error {

	if _, exists := t.slots[rec.StartPos]; exists {
		return fmt.Errorf("%w: startPos %d", ErrDuplicateSlot, rec.StartPos)
	}

	occupied := make([]bool, plotgeom.TOCSlots)
	for _, r := range t.slots {
		occupied[r.Index] = true
	}

	idx := -1
	for i, used := range occupied {
		if !used {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrTOCFull
	}

	rec.Index = idx
	t.writeSlot(rec)
	t.slots[rec.StartPos] = rec

	return nil
}

// UpdateStatus mutates a live slot's info word in place — used both for
// the INCOMPLETE→OK transition after a bulk copy and for the
// OK→CONVERTING→OK shuffle lifecycle. It never moves the slot's index.
func (t *TOC) UpdateStatus(startPos int64, status uint8, lastScoop uint16) error {

	rec, ok := t.slots[startPos]
	if !ok {
		return fmt.Errorf("%w: startPos %d", ErrSlotNotFound, startPos)
	}

	rec.Status = status
	rec.LastScoop = lastScoop
	t.writeSlot(rec)

	return nil
}

// Relabel rewrites a slot's stagger, used by the shuffle to flip a
// completed plot from POC1 to POC2 (stagger 0) once the conversion
// finishes.
func (t *TOC) Relabel(startPos int64, stagger uint32) error {

	rec, ok := t.slots[startPos]
	if !ok {
		return fmt.Errorf("%w: startPos %d", ErrSlotNotFound, startPos)
	}

	rec.Stagger = stagger
	t.writeSlot(rec)

	return nil
}

// Remove deletes the slot at startPos and compacts the TOC by rewriting
// the whole 1024-byte buffer from a fresh template plus the remaining
// live slots, per §4.6's delete operation. Slot indices for the remaining
// records are reassigned densely starting at 0; no on-disk plot data is
// touched.
func (t *TOC) Remove(startPos int64) error {

	if _, ok := t.slots[startPos]; !ok {
		return fmt.Errorf("%w: startPos %d", ErrSlotNotFound, startPos)
	}

	delete(t.slots, startPos)

	remaining := t.Records()

	fresh := Fresh()
	for i, rec := range remaining {
		rec.Index = i
		fresh.writeSlot(rec)
		fresh.slots[rec.StartPos] = rec
	}

	*t = *fresh

	return nil
}

func (t *TOC) writeSlot(rec *Record) {

	sr := slotRecord{
		Key:        rec.Key,
		StartNonce: rec.StartNonce,
		Nonces:     rec.Nonces,
		Stagger:    rec.Stagger,
		Info:       plotgeom.PackInfo(rec.StartPos, rec.Status, rec.LastScoop),
	}

	buf := new(bytes.Buffer)
	buf.Grow(plotgeom.SlotSize)
	_ = binary.Write(buf, binary.LittleEndian, &sr)

	off := 4 + rec.Index*plotgeom.SlotSize
	copy(t.raw[off:off+plotgeom.SlotSize], buf.Bytes())
}
