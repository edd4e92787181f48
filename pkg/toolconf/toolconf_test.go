package toolconf

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withHome(t *testing.T, home string) {
	t.Helper()
	old, had := os.LookupEnv("HOME")
	require.NoError(t, os.Setenv("HOME", home))
	t.Cleanup(func() {
		if had {
			os.Setenv("HOME", old)
		} else {
			os.Unsetenv("HOME")
		}
	})
}

func TestLoadMissingFileYieldsZeroValue(t *testing.T) {

	home := t.TempDir()
	withHome(t, home)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoadParsesTOML(t *testing.T) {

	home := t.TempDir()
	withHome(t, home)

	dir := filepath.Join(home, ".plotkit")
	require.NoError(t, os.MkdirAll(dir, 0777))

	contents := `
[defaults]
plotter-path = "/usr/local/bin/plotter"
miner-path = "/usr/local/bin/miner"
plot-core = 2
log-directory = "/var/log/plotkit"
`
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "conf.toml"), []byte(contents), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/plotter", cfg.PlotterPathName)
	assert.Equal(t, "/usr/local/bin/miner", cfg.MinerPathName)
	assert.Equal(t, 2, cfg.PlotCore)
	assert.Equal(t, "/var/log/plotkit", cfg.LogDirectory)
}
