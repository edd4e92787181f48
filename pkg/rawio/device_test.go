package rawio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReadWriteAt(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "plot.dat")

	d, err := Create(path)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Truncate(4096))

	payload := []byte("scoopdata")
	_, err = d.WriteAt(payload, 128)
	require.NoError(t, err)

	buf := make([]byte, len(payload))
	_, err = d.ReadAt(buf, 128)
	require.NoError(t, err)
	assert.Equal(t, payload, buf)
}

func TestSizeOfRegularFile(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "plot.dat")

	d, err := Create(path)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Truncate(1 << 20))

	size, err := d.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 1<<20, size)
}

func TestExpandDevicePatternPassesThroughNonGlob(t *testing.T) {

	got, err := ExpandDevicePattern("/dev/sdb")
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/sdb"}, got)
}
