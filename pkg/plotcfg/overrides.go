package plotcfg

import (
	"github.com/spf13/viper"
)

// LoadOverrides layers an optional --config file (YAML or JSON) on top of
// base, the same layering pkg/vconvert/config.go's initConfig performs for
// vconvert.yaml: any key set in the override file replaces base's value,
// anything absent falls through to base unchanged. Only the scalar fields
// a deployment is likely to override per-invocation are exposed this way;
// plotDirNames and minDiskFree stay wizard.conf's responsibility.
func LoadOverrides(base WizardConfig, configFile string) (WizardConfig, error) {

	if configFile == "" {
		return base, nil
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return base, err
	}

	out := base

	if v.IsSet("plotterPathName") {
		out.PlotterPathName = v.GetString("plotterPathName")
	}
	if v.IsSet("plotCore") {
		out.PlotCore = v.GetInt("plotCore")
	}
	if v.IsSet("plotMemUsage") {
		out.PlotMemUsage = v.GetInt64("plotMemUsage")
	}
	if v.IsSet("minerPathName") {
		out.MinerPathName = v.GetString("minerPathName")
	}
	if v.IsSet("miningConfPathName") {
		out.MiningConfPathName = v.GetString("miningConfPathName")
	}
	if v.IsSet("bRestartMiner") {
		out.RestartMiner = v.GetBool("bRestartMiner")
	}
	if v.IsSet("minPlotSize") {
		out.MinPlotSize = v.GetInt64("minPlotSize")
	}
	if v.IsSet("maxPlotSize") {
		out.MaxPlotSize = v.GetInt64("maxPlotSize")
	}
	if v.IsSet("tmpDirName") {
		out.TmpDirName = v.GetString("tmpDirName")
	}

	return out, nil
}
