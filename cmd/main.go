package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/okian/goalpulse/internal/config"
	"github.com/okian/goalpulse/pkg/logger"
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	envFile    string
	configFile string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:           "goalpulse",
		Short:         "Live football pressure monitor",
		Long:          "GoalPulse polls live match sources, scores each fixture's attacking pressure and alerts when a fixture escalates.",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before configuration (missing file is ignored)")
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "YAML config file (overrides "+config.EnvPrefix+"CONFIG)")

	root.AddCommand(newServeCmd(&flags))
	root.AddCommand(newScanCmd(&flags))
	return root
}

// setup loads env files and configuration, then initializes logging on logOut.
func setup(cmd *cobra.Command, flags *rootFlags, logOut io.Writer) (*config.Config, error) {
	if flags.envFile != "" {
		_ = godotenv.Load(flags.envFile)
	}
	if flags.configFile != "" {
		if err := os.Setenv(config.EnvPrefix+"CONFIG", flags.configFile); err != nil {
			return nil, fmt.Errorf("set config path: %w", err)
		}
	}

	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(logOut)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}
