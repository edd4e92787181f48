package wizard

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveRelocatesFile(t *testing.T) {

	srcDir := t.TempDir()
	dstDir := t.TempDir()

	srcPath := filepath.Join(srcDir, "1_0_10_10")
	require.NoError(t, ioutil.WriteFile(srcPath, []byte("plot-bytes"), 0644))

	dstPath, err := Move(srcPath, dstDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dstDir, "1_0_10_10"), dstPath)

	_, err = ioutil.ReadFile(srcPath)
	assert.Error(t, err)

	got, err := ioutil.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, "plot-bytes", string(got))
}
