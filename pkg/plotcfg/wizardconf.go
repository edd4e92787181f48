// Package plotcfg loads and saves the wizard's configuration: the
// per-project wizard.conf JSON file (spec §6), the external miner's
// mining.conf, and an optional viper override layer on top of both.
package plotcfg

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"sort"
)

// WizardConfig is the exact schema spec §6 names for wizard.conf. A fixed,
// fully-specified shape like this is what encoding/json plus tagged
// structs is for; see DESIGN.md for why this file doesn't reach for viper
// the way the optional --config override layer does.
type WizardConfig struct {
	Key                uint64           `json:"key"`
	PlotterPathName    string           `json:"plotterPathName"`
	PlotCore           int              `json:"plotCore"`
	PlotMemUsage       int64            `json:"plotMemUsage"`
	MinerPathName      string           `json:"minerPathName,omitempty"`
	MiningConfPathName string           `json:"miningConfPathName,omitempty"`
	RestartMiner       bool             `json:"bRestartMiner"`
	MinPlotSize        int64            `json:"minPlotSize"`
	MaxPlotSize        int64            `json:"maxPlotSize"`
	MinDiskFree        map[string]int64 `json:"minDiskFree"`
	TmpDirName         string           `json:"tmpDirName,omitempty"`
	PlotDirNames       []string         `json:"plotDirNames"`
}

// MinDiskFreeFor resolves the minimum-free-space threshold for a plot
// directory, falling back to the wildcard "*" entry when path has no
// entry of its own.
func (c WizardConfig) MinDiskFreeFor(path string) int64 {
	if v, ok := c.MinDiskFree[path]; ok {
		return v
	}
	return c.MinDiskFree["*"]
}

// Load reads and validates a wizard.conf file.
func Load(path string) (WizardConfig, error) {

	var cfg WizardConfig

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	sort.Strings(cfg.PlotDirNames)

	return cfg, nil
}

// Save writes cfg to path as indented JSON, with plotDirNames sorted per
// spec §6.
func Save(path string, cfg WizardConfig) error {

	sorted := append([]string(nil), cfg.PlotDirNames...)
	sort.Strings(sorted)
	cfg.PlotDirNames = sorted

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return ioutil.WriteFile(path, data, 0644)
}
