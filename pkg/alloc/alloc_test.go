package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vorteil/plotkit/pkg/plotgeom"
	"github.com/vorteil/plotkit/pkg/toc"
)

const usableEnd = 100 * (1 << 30)

func TestFreeExtentsEmptyDevice(t *testing.T) {

	extents := FreeExtents(nil, usableEnd)

	require.Len(t, extents, 1)
	assert.EqualValues(t, 1024, extents[0].Start)
	assert.EqualValues(t, usableEnd-1024, extents[0].Size)
}

func TestPlaceFirstFitAscending(t *testing.T) {

	extents := []Extent{
		{Start: 1024, Size: plotgeom.NonceSize},
		{Start: 10_000_000, Size: plotgeom.NonceSize * 10},
	}

	placedAt, remaining, err := Place(extents, plotgeom.NonceSize)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, placedAt)
	require.Len(t, remaining, 1)
	assert.EqualValues(t, 10_000_000, remaining[0].Start)
}

func TestPlaceShrinksExtent(t *testing.T) {

	extents := []Extent{{Start: 1024, Size: 10 * plotgeom.NonceSize}}

	placedAt, remaining, err := Place(extents, 4*plotgeom.NonceSize)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, placedAt)
	require.Len(t, remaining, 1)
	assert.EqualValues(t, 1024+4*plotgeom.NonceSize, remaining[0].Start)
	assert.EqualValues(t, 6*plotgeom.NonceSize, remaining[0].Size)
}

func TestPlaceNoSpaceLeavesStateUnchanged(t *testing.T) {

	extents := []Extent{{Start: 1024, Size: plotgeom.NonceSize}}

	_, remaining, err := Place(extents, 2*plotgeom.NonceSize)
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, extents, remaining)
}

func TestAllocatorGapFitScenario(t *testing.T) {

	// §8 scenario 3: write A (1 GiB @ 1024), B (1 GiB next), delete A,
	// write C (0.5 GiB) — C must land at 1024, leaving a 0.5 GiB free
	// extent before B.
	gib := int64(1) << 30

	tc := toc.Fresh()
	require.NoError(t, tc.Put(&toc.Record{Key: 1, Nonces: uint32(gib / plotgeom.NonceSize), StartPos: 1024, Status: plotgeom.StatusOK}))
	require.NoError(t, tc.Put(&toc.Record{Key: 2, Nonces: uint32(gib / plotgeom.NonceSize), StartPos: 1024 + gib, Status: plotgeom.StatusOK}))
	require.NoError(t, tc.Remove(1024))

	extents := FreeExtents(tc.Records(), usableEnd)
	placedAt, remaining, err := Place(extents, gib/2)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, placedAt)

	require.Len(t, remaining, 2)
	assert.EqualValues(t, 1024+gib/2, remaining[0].Start)
	assert.EqualValues(t, gib-gib/2, remaining[0].Size)
}
