package wizard

import (
	"io/ioutil"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFilename(t *testing.T) {
	got := OutputFilename(1, Chunk{StartNonce: 0, Nonces: 4096})
	assert.Equal(t, "1_0_4096_4096", got)
}

func TestCreatePlotInvokesExternalPlotterAndCapturesOutput(t *testing.T) {

	if runtime.GOOS != "linux" {
		t.Skip("subprocess fixture assumes a POSIX shell")
	}

	outDir := t.TempDir()
	scriptPath := filepath.Join(t.TempDir(), "fake-plotter.sh")
	script := "#!/bin/sh\necho plotting \"$@\"\ntouch \"" + outDir + "/1_0_4_4\"\n"
	require.NoError(t, ioutil.WriteFile(scriptPath, []byte(script), 0755))

	log := NewProcLog(4096)
	cfg := PlotterConfig{Key: 1, PlotterPathName: scriptPath, PlotCore: 1, ThreadCount: 2}
	chunk := Chunk{StartNonce: 0, Nonces: 4}

	outPath, err := CreatePlot(cfg, chunk, outDir, log)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "1_0_4_4"), outPath)
}
