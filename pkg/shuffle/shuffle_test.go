package shuffle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vorteil/plotkit/pkg/plotgeom"
	"github.com/vorteil/plotkit/pkg/toc"
)

// memDevice is a trivial in-memory ReadWriterAt standing in for a BFS
// device during shuffle tests.
type memDevice struct {
	buf []byte
}

func newMemDevice(size int64) *memDevice {
	return &memDevice{buf: make([]byte, size)}
}

func (m *memDevice) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.buf[off:])
	return n, nil
}

func (m *memDevice) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.buf[off:], p)
	return n, nil
}

func fillPOC1(buf []byte, startPos int64, nonces uint32, marker byte) {
	// A POC1 file with stagger == nonces is a single group, i.e. already
	// scoop-major: nonce n's scoop s lives at s*nonces*ScoopSize +
	// n*ScoopSize. Fill every byte with marker+n so post-swap content is
	// easy to reason about.
	for n := 0; n < int(nonces); n++ {
		for s := 0; s < plotgeom.ScoopsPerNonce; s++ {
			off := startPos + int64(s)*int64(nonces)*plotgeom.ScoopSize + int64(n)*plotgeom.ScoopSize
			v := marker + byte(n)
			for b := 0; b < plotgeom.ScoopSize; b++ {
				buf[off+int64(b)] = v
			}
		}
	}
}

func TestRunSwapsMirroredHalvesOnly(t *testing.T) {

	const nonces = 2
	dev := newMemDevice(plotgeom.NonceBytes(nonces))
	fillPOC1(dev.buf, 0, nonces, 10)

	blockSize := int64(nonces) * plotgeom.ScoopSize

	original := make([]byte, len(dev.buf))
	copy(original, dev.buf)

	require.NoError(t, Run(dev, 0, nonces, 0, nil))

	// scoop 0 paired with scoop 4095: lower halves unchanged, upper
	// halves swapped.
	scoop0 := dev.buf[0:blockSize]
	scoop4095 := dev.buf[int64(4095)*blockSize : int64(4095)*blockSize+blockSize]

	origScoop0 := original[0:blockSize]
	origScoop4095 := original[int64(4095)*blockSize : int64(4095)*blockSize+blockSize]

	for n := 0; n < nonces; n++ {
		lo := n * plotgeom.ScoopSize
		assert.Equal(t, origScoop0[lo:lo+32], scoop0[lo:lo+32])
		assert.Equal(t, origScoop4095[lo:lo+32], scoop4095[lo:lo+32])
		assert.Equal(t, origScoop4095[lo+32:lo+64], scoop0[lo+32:lo+64])
		assert.Equal(t, origScoop0[lo+32:lo+64], scoop4095[lo+32:lo+64])
	}
}

func TestRunIsResumable(t *testing.T) {

	const nonces = 4
	devClean := newMemDevice(plotgeom.NonceBytes(nonces))
	fillPOC1(devClean.buf, 0, nonces, 5)
	require.NoError(t, Run(devClean, 0, nonces, 0, nil))

	devResumed := newMemDevice(plotgeom.NonceBytes(nonces))
	fillPOC1(devResumed.buf, 0, nonces, 5)

	killAt := 100
	err := Run(devResumed, 0, nonces, 0, func(scoopDone int) error {
		if scoopDone == killAt {
			return errStop
		}
		return nil
	})
	require.ErrorIs(t, err, errStop)

	require.NoError(t, Run(devResumed, 0, nonces, killAt+1, nil))

	assert.Equal(t, devClean.buf, devResumed.buf)
}

var errStop = assert.AnError

func TestConvertPlotRefusesIncomplete(t *testing.T) {

	const nonces = 2
	dev := newMemDevice(plotgeom.NonceBytes(nonces))

	tc := toc.Fresh()
	require.NoError(t, tc.Put(&toc.Record{Key: 1, Nonces: nonces, Stagger: nonces, StartPos: 1024, Status: plotgeom.StatusIncomplete}))

	err := ConvertPlot(dev, tc, func() error { return nil }, 1024)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestConvertPlotResumeAfterCrashBeforeFirstScoopMatchesCleanRun(t *testing.T) {

	const nonces = 2
	size := plotgeom.NonceBytes(nonces)

	clean := make([]byte, 1024+size)
	fillPOC1(clean, 1024, nonces, 7)

	cleanDev := &memDevice{buf: append([]byte(nil), clean...)}
	cleanTOC := toc.Fresh()
	require.NoError(t, cleanTOC.Put(&toc.Record{Key: 1, Nonces: nonces, Stagger: nonces, StartPos: 1024, Status: plotgeom.StatusOK}))
	require.NoError(t, ConvertPlot(cleanDev, cleanTOC, func() error { return nil }, 1024))

	// Simulate the crash window: the TOC was persisted as CONVERTING with
	// no scoop pair completed yet, but the plot bytes are still untouched
	// (the crash happened between that persist and the first scoop pair's
	// writes). Resuming from here must still convert scoop 0, not skip it.
	crashedDev := &memDevice{buf: append([]byte(nil), clean...)}
	crashedTOC := toc.Fresh()
	require.NoError(t, crashedTOC.Put(&toc.Record{
		Key: 1, Nonces: nonces, Stagger: nonces, StartPos: 1024,
		Status: plotgeom.StatusConverting, LastScoop: noScoopCompleted,
	}))

	require.NoError(t, ConvertPlot(crashedDev, crashedTOC, func() error { return nil }, 1024))

	assert.Equal(t, cleanDev.buf, crashedDev.buf)

	rec, ok := crashedTOC.Lookup(1024)
	require.True(t, ok)
	assert.EqualValues(t, plotgeom.StatusOK, rec.Status)
}

func TestConvertPlotRelabelsOnCompletion(t *testing.T) {

	const nonces = 2
	size := plotgeom.NonceBytes(nonces)
	buf := make([]byte, 1024+size)
	fillPOC1(buf, 1024, nonces, 7)

	dev := &memDevice{buf: buf}

	tc := toc.Fresh()
	require.NoError(t, tc.Put(&toc.Record{Key: 1, Nonces: nonces, Stagger: nonces, StartPos: 1024, Status: plotgeom.StatusOK}))

	require.NoError(t, ConvertPlot(dev, tc, func() error { return nil }, 1024))

	rec, ok := tc.Lookup(1024)
	require.True(t, ok)
	assert.EqualValues(t, plotgeom.StatusOK, rec.Status)
	assert.EqualValues(t, 0, rec.Stagger)
}
