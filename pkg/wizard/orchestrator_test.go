package wizard

import (
	"io/ioutil"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestratorRunMovesEachCreatedChunk(t *testing.T) {

	if runtime.GOOS != "linux" {
		t.Skip("subprocess fixture assumes a POSIX shell")
	}

	tmpDir := t.TempDir()
	finalDir := t.TempDir()
	scriptDir := t.TempDir()

	scriptPath := filepath.Join(scriptDir, "fake-plotter.sh")
	script := "#!/bin/sh\ntouch \"$4/1_${10}_${12}_${12}\"\n"
	require.NoError(t, ioutil.WriteFile(scriptPath, []byte(script), 0755))

	o := &Orchestrator{
		Plotter: PlotterConfig{Key: 1, PlotterPathName: scriptPath, PlotCore: 0, ThreadCount: 1},
		TmpDir:  tmpDir,
		ProcLog: NewProcLog(4096),
	}

	chunks := []Chunk{
		{Dir: finalDir, StartNonce: 0, Nonces: 2},
		{Dir: finalDir, StartNonce: 2, Nonces: 3},
	}

	err := o.Run(chunks)
	require.NoError(t, err)

	entries, err := ioutil.ReadDir(finalDir)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["1_0_2_2"])
	assert.True(t, names["1_2_3_3"])
}
