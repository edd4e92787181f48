package plotcfg

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"syscall"
)

// miningConf mirrors the subset of the external miner's mining.conf this
// package cares about: its configured plot directories.
type miningConf struct {
	Mining struct {
		Plots []string `json:"plots"`
	} `json:"mining"`
}

// LoadMiningPlots reads mining.conf's mining.plots[] entries.
func LoadMiningPlots(path string) ([]string, error) {

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var mc miningConf
	if err := json.Unmarshal(data, &mc); err != nil {
		return nil, err
	}

	return mc.Mining.Plots, nil
}

// ResolvePlotDirs unions cfg.PlotDirNames with mining.conf's plot
// directories (when cfg.MiningConfPathName is set), drops any directory
// that doesn't exist, and deduplicates by mount point: of a set of
// directories that resolve to the same filesystem, only the first
// (lexicographically, since the set is sorted first) is kept. This
// mirrors plotWizard.py's findMountPoint-based filtering.
func ResolvePlotDirs(cfg WizardConfig) ([]string, error) {

	all := map[string]bool{}
	for _, d := range cfg.PlotDirNames {
		all[d] = true
	}

	if cfg.MiningConfPathName != "" {
		plots, err := LoadMiningPlots(cfg.MiningConfPathName)
		if err != nil {
			return nil, err
		}
		for _, d := range plots {
			all[d] = true
		}
	}

	var dirs []string
	for d := range all {
		if fi, err := os.Stat(d); err == nil && fi.IsDir() {
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)

	seen := map[string]string{}
	var kept []string
	for _, d := range dirs {
		mp, err := findMountPoint(d)
		if err != nil {
			return nil, err
		}
		if _, exists := seen[mp]; exists {
			continue
		}
		seen[mp] = d
		kept = append(kept, d)
	}

	return kept, nil
}

// findMountPoint walks up from path until it crosses a device boundary,
// the Go equivalent of plotWizard.py's `while not os.path.ismount(p)`
// loop: a directory's st_dev differs from its parent's exactly at a mount
// point.
func findMountPoint(path string) (string, error) {

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	var st syscall.Stat_t
	if err := syscall.Stat(abs, &st); err != nil {
		return "", err
	}
	dev := st.Dev

	cur := abs
	for {
		parent := filepath.Dir(cur)
		if parent == cur {
			return cur, nil
		}
		var pst syscall.Stat_t
		if err := syscall.Stat(parent, &pst); err != nil {
			return "", err
		}
		if pst.Dev != dev {
			return cur, nil
		}
		cur = parent
	}
}
