package plotcfg

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, ioutil.WriteFile(path, data, 0644))
}

func TestSaveLoadRoundTripSortsPlotDirNames(t *testing.T) {

	path := filepath.Join(t.TempDir(), "wizard.conf")

	cfg := WizardConfig{
		Key:             1,
		PlotterPathName: "/usr/bin/plotter",
		PlotCore:        1,
		PlotMemUsage:    16,
		RestartMiner:    true,
		MinPlotSize:     1 << 30,
		MaxPlotSize:     100 << 30,
		MinDiskFree:     map[string]int64{"*": 10 << 30},
		PlotDirNames:    []string{"/z", "/a", "/m"},
	}

	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/a", "/m", "/z"}, got.PlotDirNames)
	assert.Equal(t, cfg.Key, got.Key)
	assert.Equal(t, cfg.MinDiskFree, got.MinDiskFree)
}

func TestMinDiskFreeForFallsBackToWildcard(t *testing.T) {

	cfg := WizardConfig{MinDiskFree: map[string]int64{"*": 5, "/data": 50}}

	assert.EqualValues(t, 50, cfg.MinDiskFreeFor("/data"))
	assert.EqualValues(t, 5, cfg.MinDiskFreeFor("/other"))
}

func TestResolvePlotDirsUnionsMiningConfAndDropsMissing(t *testing.T) {

	dir := t.TempDir()
	kept := filepath.Join(dir, "plots-a")
	fromMining := filepath.Join(dir, "plots-b")
	missing := filepath.Join(dir, "does-not-exist")

	require.NoError(t, os.MkdirAll(kept, 0777))
	require.NoError(t, os.MkdirAll(fromMining, 0777))

	miningPath := filepath.Join(dir, "mining.conf")
	writeJSON(t, miningPath, map[string]interface{}{
		"mining": map[string]interface{}{"plots": []string{fromMining}},
	})

	cfg := WizardConfig{
		PlotDirNames:       []string{kept, missing},
		MiningConfPathName: miningPath,
	}

	dirs, err := ResolvePlotDirs(cfg)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{kept, fromMining}, dirs)
}

func TestLoadOverridesLayersOnTopOfBase(t *testing.T) {

	base := WizardConfig{PlotterPathName: "/bin/old", PlotCore: 0}

	overridePath := filepath.Join(t.TempDir(), "override.json")
	writeJSON(t, overridePath, map[string]interface{}{"plotCore": 2})

	merged, err := LoadOverrides(base, overridePath)
	require.NoError(t, err)

	assert.Equal(t, "/bin/old", merged.PlotterPathName)
	assert.Equal(t, 2, merged.PlotCore)
}
