// plotreorder is the optimizer/merger/splitter/checker CLI: the shared
// scoop-reordering engine in pkg/reorder exposed as four subcommands, per
// spec §4.7 and §6.
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vorteil/plotkit/pkg/elog"
	"github.com/vorteil/plotkit/pkg/plotgeom"
	"github.com/vorteil/plotkit/pkg/reorder"
)

var log elog.View

var (
	flagOutDir    string
	flagTmpDir    string
	flagPlotter   string
	flagPlotCore  int
	flagRemove    bool
	flagDryRun    bool
	flagSplitSize string
	flagVerbose   bool
	flagDebug     bool
)

var rootCmd = &cobra.Command{
	Use:   "plotreorder",
	Short: "Optimize, merge, split, and check plot files sharing one scoop-reordering engine",
}

func commandInit() {

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")
	rootCmd.PersistentFlags().StringVarP(&flagOutDir, "outdir", "o", "", "output directory (default: beside the first input)")
	rootCmd.PersistentFlags().StringVarP(&flagTmpDir, "tmpdir", "t", "", "scratch directory for gap-fill plotting (not used: merge does not fill gaps)")
	rootCmd.PersistentFlags().StringVarP(&flagPlotter, "plotter", "p", "", "external plotter path (merge does not run it; a gap between inputs is an error)")
	rootCmd.PersistentFlags().IntVarP(&flagPlotCore, "plotcore", "x", 0, "plot core for the external plotter, 0,1,2 (not used: merge does not fill gaps)")
	rootCmd.PersistentFlags().BoolVarP(&flagRemove, "remove", "r", false, "remove source files on success")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "print planned actions without writing")

	splitCmd.Flags().StringVarP(&flagSplitSize, "split", "s", "", "split size (suffixed k|m|g|t, or a bare nonce count)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger := &elog.CLI{}
		logrus.SetFormatter(logger)
		logrus.SetLevel(logrus.TraceLevel)
		if flagDebug {
			logger.IsDebug = true
			logger.IsVerbose = true
		} else if flagVerbose {
			logger.IsVerbose = true
		}
		log = logger
		return nil
	}

	rootCmd.AddCommand(optimizeCmd, mergeCmd, splitCmd, checkCmd)
}

// resolveInputs expands directory arguments to the plot files they
// contain (filtered by the plot-filename grammar) and leaves file
// arguments as-is, per §6's "directory inputs enumerate only filenames
// matching the plot-filename regex".
func resolveInputs(args []string) ([]string, error) {

	var out []string
	for _, a := range args {
		fi, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			out = append(out, a)
			continue
		}
		entries, err := ioutil.ReadDir(a)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if _, err := plotgeom.ParseFilename(e.Name()); err == nil {
				out = append(out, filepath.Join(a, e.Name()))
			}
		}
	}
	return out, nil
}

func outDirFor(first string) string {
	if flagOutDir != "" {
		return flagOutDir
	}
	return filepath.Dir(first)
}

// writeAtomically writes via a .merging-suffixed temp name in dir and
// renames to finalName on success, per §6's "intermediate output uses
// suffix .merging during writes".
func writeAtomically(dir, finalName string, write func(f *os.File) error) error {

	tmpPath := filepath.Join(dir, finalName+".merging")
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, filepath.Join(dir, finalName))
}

func removeIfRequested(paths ...string) {
	if !flagRemove {
		return
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			log.Warnf("removing %s: %v", p, err)
		}
	}
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize <file...>",
	Short: "Convert POC1 plot files to POC2",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		inputs, err := resolveInputs(args)
		if err != nil {
			return err
		}

		var fatal error
		for _, path := range inputs {
			if err := optimizeOne(path); err != nil {
				log.Errorf("%s: %v", path, err)
				fatal = err
			}
		}
		return fatal
	},
}

func optimizeOne(path string) error {

	info, err := plotgeom.ParseFilename(filepath.Base(path))
	if err != nil {
		return err
	}

	out := plotgeom.Info{Key: info.Key, StartNonce: info.StartNonce, Nonces: info.Nonces, Stagger: info.Nonces}
	dir := outDirFor(path)

	if flagDryRun {
		log.Infof("would optimize %s -> %s", path, filepath.Join(dir, out.Filename()))
		return nil
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := writeAtomically(dir, out.Filename(), func(f *os.File) error {
		return reorder.Optimize(f, info, src, nil)
	}); err != nil {
		return err
	}

	removeIfRequested(path)
	return nil
}

var mergeCmd = &cobra.Command{
	Use:   "merge <file...>",
	Short: "Merge overlapping or adjacent plot files into one POC2 file",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {

		inputs, err := resolveInputs(args)
		if err != nil {
			return err
		}
		return mergeAll(inputs)
	},
}

func mergeAll(inputs []string) error {

	infos := make([]plotgeom.Info, len(inputs))
	files := make([]*os.File, len(inputs))
	for i, path := range inputs {
		info, err := plotgeom.ParseFilename(filepath.Base(path))
		if err != nil {
			return err
		}
		infos[i] = info
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		files[i] = f
	}

	order := make([]int, len(infos))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return infos[order[i]].StartNonce < infos[order[j]].StartNonce })

	sources := make([]reorder.Source, len(order))
	for i, idx := range order {
		sources[i] = reorder.Source{Info: infos[idx], R: files[idx]}
	}

	skips := reorder.ComputeSkips(infos)
	for _, s := range skips {
		if s.N > 0 {
			trimIdx := -1
			for i, idx := range order {
				if idx == s.A {
					trimIdx = i
				}
			}
			if trimIdx >= 0 {
				sources[trimIdx].Trim = uint32(s.N)
			}
		} else if s.N < 0 {
			if flagPlotter == "" {
				return fmt.Errorf("gap of %d nonces between inputs; merge does not fill gaps", -s.N)
			}
			log.Warnf("gap of %d nonces detected; external gap-fill plotting is not wired into this build (pass contiguous inputs, or pre-fill the gap with plotreorder's sibling wizard)", -s.N)
			return fmt.Errorf("unresolved gap of %d nonces", -s.N)
		}
	}

	first := infos[order[0]]
	totalNonces := uint32(0)
	for _, s := range sources {
		n := s.Info.Nonces
		if s.Trim < n {
			n -= s.Trim
		} else {
			n = 0
		}
		totalNonces += n
	}

	out := plotgeom.Info{Key: first.Key, StartNonce: first.StartNonce, Nonces: totalNonces, Stagger: totalNonces}
	dir := outDirFor(inputs[0])

	if flagDryRun {
		log.Infof("would merge %d inputs -> %s", len(inputs), filepath.Join(dir, out.Filename()))
		return nil
	}

	if err := writeAtomically(dir, out.Filename(), func(f *os.File) error {
		_, err := reorder.Merge(f, sources, nil)
		return err
	}); err != nil {
		return err
	}

	removeIfRequested(inputs...)
	return nil
}

var splitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Split one plot file into consecutive plot files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		path := args[0]
		info, err := plotgeom.ParseFilename(filepath.Base(path))
		if err != nil {
			return err
		}

		splitNonces, err := plotgeom.ParseSplitSize(flagSplitSize)
		if err != nil {
			return err
		}

		plan := reorder.Plan(info.Nonces, splitNonces)
		dir := outDirFor(path)

		names := make([]string, len(plan))
		startNonce := info.StartNonce
		for i, n := range plan {
			names[i] = plotgeom.Info{Key: info.Key, StartNonce: startNonce, Nonces: n, Stagger: n}.Filename()
			startNonce += uint64(n)
		}

		if flagDryRun {
			for _, name := range names {
				log.Infof("would write %s", filepath.Join(dir, name))
			}
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		tmpPaths := make([]string, len(plan))
		files := make([]*os.File, len(plan))
		for i, name := range names {
			tmpPaths[i] = filepath.Join(dir, name+".merging")
			f, err := os.Create(tmpPaths[i])
			if err != nil {
				return err
			}
			files[i] = f
		}

		chunks := make([]reorder.Chunk, len(plan))
		for i, n := range plan {
			chunks[i] = reorder.Chunk{Nonces: n, W: files[i]}
		}

		splitErr := reorder.Split(info, src, chunks, nil)
		for _, f := range files {
			f.Close()
		}
		if splitErr != nil {
			for _, p := range tmpPaths {
				os.Remove(p)
			}
			return splitErr
		}

		for i, name := range names {
			if err := os.Rename(tmpPaths[i], filepath.Join(dir, name)); err != nil {
				return err
			}
		}

		removeIfRequested(path)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <file...>",
	Short: "Correct plot files whose actual size disagrees with their declared filename",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {

		inputs, err := resolveInputs(args)
		if err != nil {
			return err
		}

		var fatal error
		for _, path := range inputs {
			if err := checkOne(path); err != nil {
				log.Errorf("%s: %v", path, err)
				fatal = err
			}
		}
		return fatal
	},
}

func checkOne(path string) error {

	info, err := plotgeom.ParseFilename(filepath.Base(path))
	if err != nil {
		return err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return err
	}

	if fi.Size() == info.Size() {
		return nil
	}

	stagger := info.EffectiveStagger()
	correctedNonces := uint32(fi.Size() / plotgeom.NonceSize)
	correctedNonces -= correctedNonces % stagger

	corrected := plotgeom.Info{Key: info.Key, StartNonce: info.StartNonce, Nonces: correctedNonces, Stagger: info.Stagger}
	newPath := filepath.Join(filepath.Dir(path), corrected.Filename())

	log.Warnf("%s: declared %d bytes, actual %d bytes; correcting to %s", path, info.Size(), fi.Size(), corrected.Filename())

	if flagDryRun {
		return nil
	}

	if path != newPath {
		if err := os.Rename(path, newPath); err != nil {
			return err
		}
	}

	return os.Truncate(newPath, corrected.Size())
}

func main() {
	commandInit()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
