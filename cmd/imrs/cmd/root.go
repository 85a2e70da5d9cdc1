package cmd

import (
	"fmt"
	"io"

	"imrs-backend/internal/components/serviceutil"
	"imrs-backend/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	config     Config
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "imrs",
	Short:         "imrs charts IMDb episode ratings of TV shows.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		flags := cmd.Flags()
		if flags.Changed("log") {
			cfg.LogLevel, _ = flags.GetString("log")
		}
		if flags.Changed("log-file") {
			cfg.LogFile, _ = flags.GetString("log-file")
		}
		verbose, _ := flags.GetBool("verbose")

		config = cfg
		logCloser = telemetry.InitSlog(telemetry.LogOptions{
			Level:   cfg.LogLevel,
			Verbose: verbose,
			File:    cfg.LogFile,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "config.json5", "path to the config file")
	flags.StringP("log", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write logs to this file, rotated by size")
	flags.BoolP("verbose", "v", false, "log at debug level with source locations")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		serviceutil.Fatal("imrs failed", err)
	}
}
