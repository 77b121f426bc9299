// valops is the operations CLI for the weekly valuation agent: it runs the
// pipeline bracketed by the append-only run log, deploys the Telegram webhook
// cloud function, and manages the recurring run schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"valops/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "valops",
	Short: "Operations CLI for the weekly valuation agent",
	Long: `valops sequences the weekly valuation pipeline and its surroundings.

  run       execute the pipeline, bracketed by the append-only run log
  deploy    publish the Telegram webhook as a cloud function (gcloud)
  schedule  manage the recurring run slots (Task Scheduler / crontab)

Configuration comes from valops.yaml next to the binary; every setting has a
production default, so the file is optional.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(config.Locate(configPath))
		if err != nil {
			return err
		}

		zapCfg := zap.NewProductionConfig()
		if level, perr := zapcore.ParseLevel(cfg.Logging.Level); perr == nil {
			zapCfg.Level = zap.NewAtomicLevelAt(level)
		}
		if verbose || cfg.Logging.DebugMode {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to valops.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug-level diagnostics")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the valops version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("valops 1.0.0")
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
