package reorder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vorteil/plotkit/pkg/plotgeom"
)

// makePOC2 builds a synthetic POC2-layout plot of `nonces` nonces where
// every byte of nonce n's scoop data equals marker+byte(n), regardless of
// scoop index. This makes it easy to assert which source nonce ended up
// where in a merged/split stream without needing real plot data.
func makePOC2(nonces uint32, marker byte) []byte {
	buf := make([]byte, int64(nonces)*plotgeom.NonceSize)
	for n := 0; n < int(nonces); n++ {
		for s := 0; s < plotgeom.ScoopsPerNonce; s++ {
			off := int64(s)*int64(nonces)*plotgeom.ScoopSize + int64(n)*plotgeom.ScoopSize
			v := marker + byte(n)
			for b := 0; b < plotgeom.ScoopSize; b++ {
				buf[off+int64(b)] = v
			}
		}
	}
	return buf
}

func scoopZeroOf(data []byte, nonces uint32) []byte {
	return data[:int64(nonces)*plotgeom.ScoopSize]
}

func TestOptimizeIsIdentityOnPOC2(t *testing.T) {

	data := makePOC2(3, 10)
	info := plotgeom.Info{Key: 1, StartNonce: 0, Nonces: 3, Stagger: 0}

	var out bytes.Buffer
	require.NoError(t, Optimize(&out, info, bytes.NewReader(data), nil))

	assert.Equal(t, data, out.Bytes())
}

func TestMergeWithOverlapDropsTrailingNonces(t *testing.T) {

	// A: startNonce 0, nonces 3, markers 10,11,12.
	// B: startNonce 2, nonces 3, markers 20,21,22.
	// skip = 0+3-2 = 1 (positive: drop A's last nonce).
	a := plotgeom.Info{Key: 1, StartNonce: 0, Nonces: 3, Stagger: 0}
	b := plotgeom.Info{Key: 1, StartNonce: 2, Nonces: 3, Stagger: 0}

	skips := ComputeSkips([]plotgeom.Info{a, b})
	require.Len(t, skips, 1)
	assert.EqualValues(t, 1, skips[0].N)

	aData := makePOC2(a.Nonces, 10)
	bData := makePOC2(b.Nonces, 20)

	sources := []Source{
		{Info: a, R: bytes.NewReader(aData), Trim: 1},
		{Info: b, R: bytes.NewReader(bData)},
	}

	var out bytes.Buffer
	total, err := Merge(&out, sources, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)

	scoop0 := scoopZeroOf(out.Bytes(), 5)
	expected := []byte{10, 11, 20, 21, 22}
	for i, v := range expected {
		got := scoop0[i*plotgeom.ScoopSize]
		assert.Equalf(t, v, got, "nonce %d", i)
	}
}

func TestComputeSkipsDetectsGap(t *testing.T) {

	a := plotgeom.Info{Key: 1, StartNonce: 0, Nonces: 3, Stagger: 0}
	b := plotgeom.Info{Key: 1, StartNonce: 5, Nonces: 3, Stagger: 0}

	skips := ComputeSkips([]plotgeom.Info{a, b})
	require.Len(t, skips, 1)
	assert.EqualValues(t, -2, skips[0].N)
}

func TestPlanSplitsWithRemainder(t *testing.T) {
	chunks := Plan(10, 4)
	assert.Equal(t, []uint32{4, 4, 2}, chunks)
}

func TestPlanSingleChunkWhenSplitSizeCoversAll(t *testing.T) {
	chunks := Plan(10, 10)
	assert.Equal(t, []uint32{10}, chunks)
}

func TestSplitDistributesScoopsAcrossOutputs(t *testing.T) {

	data := makePOC2(10, 1)
	info := plotgeom.Info{Key: 1, StartNonce: 0, Nonces: 10, Stagger: 10}

	plan := Plan(10, 4)
	var outs []*bytes.Buffer
	var chunks []Chunk
	for _, n := range plan {
		buf := new(bytes.Buffer)
		outs = append(outs, buf)
		chunks = append(chunks, Chunk{Nonces: n, W: buf})
	}

	require.NoError(t, Split(info, bytes.NewReader(data), chunks, nil))

	require.Len(t, outs, 3)
	assert.EqualValues(t, 4*plotgeom.NonceSize, outs[0].Len())
	assert.EqualValues(t, 4*plotgeom.NonceSize, outs[1].Len())
	assert.EqualValues(t, 2*plotgeom.NonceSize, outs[2].Len())

	// first byte of each chunk's scoop 0 is the marker for its first nonce
	assert.Equal(t, byte(1), outs[0].Bytes()[0])
	assert.Equal(t, byte(1+4), outs[1].Bytes()[0])
	assert.Equal(t, byte(1+8), outs[2].Bytes()[0])
}
