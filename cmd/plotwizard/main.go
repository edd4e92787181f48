// plotwizard is the unattended plotting daemon: load a project's
// wizard.conf, plan chunks across its configured directories, and run the
// create/move/miner-restart pipeline until interrupted, per spec §4.9/§6.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vorteil/plotkit/pkg/elog"
	"github.com/vorteil/plotkit/pkg/plotcfg"
	"github.com/vorteil/plotkit/pkg/toolconf"
	"github.com/vorteil/plotkit/pkg/wizard"
)

var log elog.View

var (
	flagConf       string
	flagConfigFile string
	flagVerbose    bool
	flagDebug      bool
	flagThreads    int
)

var rootCmd = &cobra.Command{
	Use:   "plotwizard",
	Short: "Plan and run an unattended plotting pipeline from a wizard.conf",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func commandInit() {

	rootCmd.Flags().StringVarP(&flagConf, "conf", "c", "wizard.conf", "path to the project's wizard.conf")
	rootCmd.Flags().StringVar(&flagConfigFile, "config", "", "optional override file layered on top of wizard.conf")
	rootCmd.Flags().IntVarP(&flagThreads, "threads", "j", 1, "plotter thread count, used to size chunk granularity")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")

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
}

// resolveConfig loads wizard.conf, layers any --config override, and falls
// back to ~/.plotkit/conf.toml's defaults for whichever fields the project
// file left unset — mirroring the original tooling's precedence of
// project config over tool-wide default.
func resolveConfig() (plotcfg.WizardConfig, error) {

	cfg, err := plotcfg.Load(flagConf)
	if err != nil {
		return plotcfg.WizardConfig{}, fmt.Errorf("loading %s: %w", flagConf, err)
	}

	cfg, err = plotcfg.LoadOverrides(cfg, flagConfigFile)
	if err != nil {
		return plotcfg.WizardConfig{}, fmt.Errorf("loading %s: %w", flagConfigFile, err)
	}

	defaults, err := toolconf.Load()
	if err != nil {
		return plotcfg.WizardConfig{}, fmt.Errorf("loading tool defaults: %w", err)
	}

	if cfg.PlotterPathName == "" {
		cfg.PlotterPathName = defaults.PlotterPathName
	}
	if cfg.MinerPathName == "" {
		cfg.MinerPathName = defaults.MinerPathName
	}
	if cfg.PlotCore == 0 {
		cfg.PlotCore = defaults.PlotCore
	}

	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	if cfg.PlotterPathName == "" {
		return fmt.Errorf("no plotter-path configured (wizard.conf plotterPathName, --config, or ~/.plotkit/conf.toml)")
	}

	dirs, err := plotcfg.ResolvePlotDirs(cfg)
	if err != nil {
		return fmt.Errorf("resolving plot directories: %w", err)
	}
	if len(dirs) == 0 {
		return fmt.Errorf("no usable plot directories configured")
	}

	startNonce, err := wizard.ScanStartNonce(dirs, cfg.Key)
	if err != nil {
		return fmt.Errorf("scanning existing plots: %w", err)
	}
	log.Infof("starting at nonce %d across %d directories", startNonce, len(dirs))

	chunks, err := wizard.Plan(dirs, startNonce, cfg.MinPlotSize, cfg.MaxPlotSize, flagThreads, cfg.MinDiskFreeFor, wizard.DiskFree)
	if err != nil {
		return fmt.Errorf("planning chunks: %w", err)
	}
	if len(chunks) == 0 {
		log.Infof("no directory has enough free space for another plot")
		return nil
	}
	log.Infof("planned %d chunks", len(chunks))

	tmpDir := cfg.TmpDirName
	if tmpDir == "" {
		tmpDir = dirs[0]
	}

	procLog := wizard.NewProcLog(1 << 20)
	sub := procLog.Subscribe()
	go func() {
		for line := range sub.Inbox() {
			fmt.Fprint(os.Stderr, string(line))
		}
	}()

	orchestrator := &wizard.Orchestrator{
		Plotter: wizard.PlotterConfig{
			Key:             cfg.Key,
			PlotterPathName: cfg.PlotterPathName,
			PlotCore:        cfg.PlotCore,
			PlotMemUsage:    cfg.PlotMemUsage,
			ThreadCount:     flagThreads,
		},
		TmpDir:  tmpDir,
		ProcLog: procLog,
		Log:     log,
		Miner: wizard.MinerConfig{
			Enabled:       cfg.RestartMiner && cfg.MinerPathName != "",
			MinerPathName: cfg.MinerPathName,
			ProcessName:   filepath.Base(cfg.MinerPathName),
		},
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("signal received, finishing in-flight chunks and stopping")
		orchestrator.Cancel()
	}()

	err = orchestrator.Run(chunks)
	procLog.Close()
	if err != nil {
		return fmt.Errorf("plotting run failed: %w", err)
	}

	log.Infof("plotting run complete")
	return nil
}

func main() {
	commandInit()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
