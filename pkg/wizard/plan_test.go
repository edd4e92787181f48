package wizard

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vorteil/plotkit/pkg/plotgeom"
)

func TestPlanRoundRobinsAcrossDirectories(t *testing.T) {

	free := map[string]int64{
		"/a": 2 * int64(plotgeom.NonceSize) * 4096,
		"/b": 1 * int64(plotgeom.NonceSize) * 4096,
	}

	chunks, err := Plan(
		[]string{"/a", "/b"},
		0,
		int64(plotgeom.NonceSize),
		2*int64(plotgeom.NonceSize)*4096,
		1,
		func(string) int64 { return 0 },
		func(dir string) (int64, error) { return free[dir], nil },
	)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "/a", chunks[0].Dir)
	assert.Equal(t, "/b", chunks[1].Dir)
	assert.EqualValues(t, 0, chunks[0].StartNonce)
	assert.EqualValues(t, chunks[0].Nonces, chunks[1].StartNonce)
}

func TestPlanRespectsMinDiskFree(t *testing.T) {

	chunks, err := Plan(
		[]string{"/a"},
		0,
		int64(plotgeom.NonceSize),
		int64(plotgeom.NonceSize)*4096,
		1,
		func(string) int64 { return 100 * int64(plotgeom.NonceSize) },
		func(string) (int64, error) { return 100 * int64(plotgeom.NonceSize), nil },
	)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestScanStartNonceFindsHighestEndNonce(t *testing.T) {

	dir := t.TempDir()
	for _, name := range []string{"1_0_10", "1_10_5", "2_0_1000"} {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	next, err := ScanStartNonce([]string{dir}, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 15, next)
}
