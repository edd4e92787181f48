package wizard

import (
	"fmt"
	"path/filepath"
)

// PlotterConfig is the subset of WizardConfig the create activity needs
// to invoke the external plotter.
type PlotterConfig struct {
	Key             uint64
	PlotterPathName string
	PlotCore        int
	PlotMemUsage    int64 // nonces, per the external plotter's -m flag
	ThreadCount     int
}

// OutputFilename renders the plotter's declared output name for a chunk:
// {key}_{startNonce}_{nonces}_{nonces}, a single-group POC1 file (spec §6).
func OutputFilename(key uint64, chunk Chunk) string {
	return fmt.Sprintf("%d_%d_%d_%d", key, chunk.StartNonce, chunk.Nonces, chunk.Nonces)
}

// CreatePlot spawns the external plotter for one chunk into outDir,
// capturing its output into log. outDir is typically a scratch/tmp
// directory; Move relocates the result to the chunk's final directory
// afterward.
func CreatePlot(cfg PlotterConfig, chunk Chunk, outDir string, log *ProcLog) (string, error) {

	args := []string{
		"-k", fmt.Sprint(cfg.Key),
		"-d", outDir,
		"-t", fmt.Sprint(cfg.ThreadCount),
		"-x", fmt.Sprint(cfg.PlotCore),
		"-s", fmt.Sprint(chunk.StartNonce),
		"-n", fmt.Sprint(chunk.Nonces),
	}
	if cfg.PlotMemUsage > 0 {
		args = append(args, "-m", fmt.Sprint(cfg.PlotMemUsage))
	}

	if err := runSubprocess(cfg.PlotterPathName, args, outDir, log); err != nil {
		return "", err
	}

	return filepath.Join(outDir, OutputFilename(cfg.Key, chunk)), nil
}
