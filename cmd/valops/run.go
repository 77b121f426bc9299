package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"valops/internal/execx"
	"valops/internal/runlog"
	"valops/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the pipeline, bracketed by the run log",
	Long: `Appends a start timestamp to the run log, invokes the pipeline program in
the base directory, then appends an end timestamp and a separator.

The pipeline's exit status is recorded in diagnostics but never acted upon:
run exits 0 whether the pipeline succeeded, failed or never started. Only a
run log that cannot be written fails the command.`,
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	baseDir, err := runner.BaseDir(cfg)
	if err != nil {
		return err
	}

	log, err := runlog.Open(cfg.LogPath(baseDir))
	if err != nil {
		return err
	}
	defer log.Close()

	r := runner.New(cfg, baseDir, log, execx.NewHost(logger), logger)
	report, err := r.Run(cmd.Context())
	if err != nil {
		return err
	}

	logger.Info("run complete",
		zap.String("run_id", report.RunID),
		zap.Int("exit_code", report.ExitCode),
		zap.Duration("duration", report.Duration),
		zap.String("log", log.Path()))

	if report.StartError != "" {
		fmt.Printf("Pipeline did not start: %s (logged to %s)\n", report.StartError, log.Path())
		return nil
	}
	fmt.Printf("Pipeline finished in %s (exit code %d, logged to %s)\n",
		report.Duration.Round(time.Millisecond), report.ExitCode, log.Path())
	return nil
}
