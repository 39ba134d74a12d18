package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pkgarch/archscan/pkg/config"
	"github.com/pkgarch/archscan/pkg/scanner"
)

var conf = &config.Config{}

func initRoot(rootCmd *cobra.Command) {
	initConfig := func() {
		if conf.Config == "" {
			cfg, err := config.GetConfigFile()
			if err != nil {
				logger.Debug("could not locate config file", "error", err)
				return
			}
			conf.Config = cfg
		}
		viper.SetConfigFile(conf.Config)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			logger.Debug("can't read config", "error", err)
			return
		}
		if err := viper.Unmarshal(conf); err != nil {
			logger.Error("can't unmarshal config", "error", err)
		}
	}
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&conf.Config, "config", conf.Config, "config file (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&conf.Recursive, "recursive", "r", conf.Recursive, "descend into subdirectories")
	rootCmd.PersistentFlags().BoolVarP(&conf.Quiet, "quiet", "q", conf.Quiet, "suppress informational notices")
	rootCmd.PersistentFlags().BoolVar(&conf.NoColor, "no-color", conf.NoColor, "disable color output")
	rootCmd.PersistentFlags().IntVar(&conf.Workers, "workers", config.DefaultWorkers, "number of files detected at the same time")
	rootCmd.PersistentFlags().BoolVar(&conf.FollowSymlinks, "follow-symlinks", conf.FollowSymlinks, "follow symbolic links")
	rootCmd.PersistentFlags().StringVar(&conf.MaxReadSize, "max-read-size", config.DefaultMaxReadSize, "largest file the detectors will read")
	rootCmd.PersistentFlags().StringVar(&conf.Report, "report", conf.Report, "append results to this JSON report file")
	rootCmd.PersistentFlags().BoolVar(&conf.Cache.Disabled, "no-cache", conf.Cache.Disabled, "do not reuse previous detections")
	rootCmd.PersistentFlags().StringVar(&conf.Cache.Location, "cache", config.DefaultCacheLocation, "location of the cache DB")
	rootCmd.PersistentFlags().DurationVar(&conf.Cache.ScanValidity, "scan-validity", config.DefaultScanValidity, "validity duration of each cached detection")
	rootCmd.PersistentFlags().BoolVar(&conf.Debug, "debug", conf.Debug, "print debug strings")
}

var rootCmd = &cobra.Command{
	Use:   "archscan",
	Short: "archscan identifies the target CPU architecture of Windows application packages",
	Run: func(cmd *cobra.Command, args []string) {
		yaml.NewEncoder(os.Stdout).Encode(conf)
		cmd.Usage()
	},
}

func globalInit(cmd *cobra.Command, args []string) error {
	if conf.Debug {
		LogLevel.Set(slog.LevelDebug)
		scanner.LogLevel.Set(slog.LevelDebug)
	}
	if conf.Workers == 0 {
		conf.Workers = 1
	}
	logger.Debug("debug activated")
	return nil
}
