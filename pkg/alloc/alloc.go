// Package alloc computes free space on a BFS device and places new plots
// into it using a first-fit policy.
package alloc

import (
	"errors"
	"sort"

	"github.com/vorteil/plotkit/pkg/toc"
)

// ErrNoSpace is returned when no free extent is large enough for a
// requested placement. State is left unchanged.
var ErrNoSpace = errors.New("no free extent large enough")

// Extent is a free byte range [Start, Start+Size) available for a new
// plot.
type Extent struct {
	Start int64
	Size  int64
}

// End returns the first byte past this extent.
func (e Extent) End() int64 {
	return e.Start + e.Size
}

// FreeExtents computes the gap list between a device's occupied ranges.
// usableEnd is the device's usable payload boundary (deviceSize −
// 2·SECTOR_SIZE); payload space starts at byte 1024, immediately after the
// TOC.
func FreeExtents(records []*toc.Record, usableEnd int64) []Extent {

	type occupied struct{ start, end int64 }

	occ := make([]occupied, 0, len(records))
	for _, r := range records {
		occ = append(occ, occupied{start: r.StartPos, end: r.StartPos + r.Size()})
	}

	sort.Slice(occ, func(i, j int) bool { return occ[i].start < occ[j].start })

	var extents []Extent
	cursor := int64(1024)

	for _, o := range occ {
		if o.start > cursor {
			extents = append(extents, Extent{Start: cursor, Size: o.start - cursor})
		}
		if o.end > cursor {
			cursor = o.end
		}
	}

	if cursor < usableEnd {
		extents = append(extents, Extent{Start: cursor, Size: usableEnd - cursor})
	}

	return extents
}

// Place picks a free extent for a plot of the given size using first-fit
// by ascending Start, and returns the placement offset plus the extent
// list with that extent consumed or shrunk. extents must already be
// sorted ascending by Start (as FreeExtents returns them); it is not
// re-sorted here so repeated placements stay cheap.
func Place(extents []Extent, size int64) (int64, []Extent, error) {

	for i, e := range extents {
		if e.Size < size {
			continue
		}

		placedAt := e.Start

		if e.Size == size {
			out := make([]Extent, 0, len(extents)-1)
			out = append(out, extents[:i]...)
			out = append(out, extents[i+1:]...)
			return placedAt, out, nil
		}

		out := make([]Extent, len(extents))
		copy(out, extents)
		out[i] = Extent{Start: e.Start + size, Size: e.Size - size}
		return placedAt, out, nil
	}

	return 0, extents, ErrNoSpace
}
