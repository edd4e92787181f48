// Package toolconf loads plotkit's tool-wide defaults from
// ~/.plotkit/conf.toml, mirroring the way cmd/vorteil/conf.go's
// loadVorteilConfig resolves ~/.vorteil/conf.toml: a best-effort read that
// falls back to zero-value defaults when the file doesn't exist.
package toolconf

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/sisatech/toml"
)

// fileConf mirrors the on-disk TOML schema.
type fileConf struct {
	Defaults struct {
		PlotterPathName string `toml:"plotter-path"`
		MinerPathName   string `toml:"miner-path"`
		PlotCore        int    `toml:"plot-core"`
		LogDirectory    string `toml:"log-directory"`
	} `toml:"defaults"`
}

// Config is the resolved set of tool-wide defaults a wizard invocation can
// fall back to when wizard.conf doesn't specify a value.
type Config struct {
	PlotterPathName string
	MinerPathName   string
	PlotCore        int
	LogDirectory    string
}

// Dir returns ~/.plotkit, creating it if necessary.
func Dir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".plotkit")
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", err
	}
	return dir, nil
}

// Load reads ~/.plotkit/conf.toml. A missing file is not an error: it
// yields a zero-value Config, exactly as loadVorteilConfig treats a
// missing ~/.vorteil/conf.toml as "use defaults" rather than a failure.
func Load() (Config, error) {

	var cfg Config

	dir, err := Dir()
	if err != nil {
		return cfg, err
	}

	data, err := ioutil.ReadFile(filepath.Join(dir, "conf.toml"))
	if err != nil {
		return cfg, nil
	}

	var fc fileConf
	if err := toml.Unmarshal(data, &fc); err != nil {
		return cfg, err
	}

	cfg.PlotterPathName = fc.Defaults.PlotterPathName
	cfg.MinerPathName = fc.Defaults.MinerPathName
	cfg.PlotCore = fc.Defaults.PlotCore
	cfg.LogDirectory = fc.Defaults.LogDirectory

	return cfg, nil
}
