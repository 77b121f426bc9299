// Package runner executes one pipeline run bracketed by run-log entries.
// The contract is the one the production run script had: per invocation the
// run log gains exactly two timestamped lines (start, end) and one separator,
// no matter how the pipeline itself fares, and the pipeline's exit status is
// recorded but never acted upon.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"valops/internal/config"
	"valops/internal/execx"
	"valops/internal/runlog"
)

const (
	startMessage = "INICIO ejecucion pipeline"
	endMessage   = "FIN ejecucion pipeline"
)

// Report describes a completed run for diagnostics. Nothing in it influences
// the run command's exit status.
type Report struct {
	RunID      string
	Command    string
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	ExitCode   int
	Output     string
	StartError string // non-empty when the pipeline never started
}

// Runner brackets pipeline executions with run-log entries.
type Runner struct {
	cfg     *config.Config
	baseDir string
	log     *runlog.Log
	exec    execx.Runner
	logger  *zap.Logger
}

// New builds a Runner. A nil logger disables diagnostics.
func New(cfg *config.Config, baseDir string, log *runlog.Log, exec execx.Runner, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, baseDir: baseDir, log: log, exec: exec, logger: logger}
}

// BaseDir resolves the directory the pipeline runs in: the configured
// working_dir when set, otherwise the directory of the valops executable
// (the script's "cd to its own location").
func BaseDir(cfg *config.Config) (string, error) {
	if cfg.Pipeline.WorkingDir != "" {
		return cfg.Pipeline.WorkingDir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	return filepath.Dir(exe), nil
}

// Run performs one bracketed pipeline run. The returned error covers only
// the run log itself: a pipeline that fails to start, exits non-zero or gets
// killed still produces a complete log block and a nil error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Command: r.cfg.Pipeline.Command,
	}

	if err := r.log.Append(startMessage); err != nil {
		return nil, err
	}
	report.StartedAt = time.Now()

	r.logger.Info("pipeline run starting",
		zap.String("run_id", report.RunID),
		zap.String("command", r.cfg.Pipeline.Command),
		zap.Strings("args", r.cfg.Pipeline.Args),
		zap.String("dir", r.baseDir))

	result, execErr := r.exec.Run(ctx, execx.Command{
		Binary:  r.cfg.Pipeline.Command,
		Args:    r.cfg.Pipeline.Args,
		Dir:     r.baseDir,
		Timeout: r.cfg.GetPipelineTimeout(),
	})

	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)

	if execErr != nil {
		report.ExitCode = -1
		report.StartError = execErr.Error()
		r.logger.Error("pipeline failed to start",
			zap.String("run_id", report.RunID),
			zap.Error(execErr))
	} else {
		report.ExitCode = result.ExitCode
		report.Output = result.Output
		if result.Killed {
			r.logger.Warn("pipeline killed",
				zap.String("run_id", report.RunID),
				zap.String("reason", result.KillReason))
		}
		r.logger.Info("pipeline run finished",
			zap.String("run_id", report.RunID),
			zap.Int("exit_code", result.ExitCode),
			zap.Duration("duration", report.Duration))
	}

	// The closing entries are written unconditionally: the log block is the
	// observable of a run, not the pipeline's exit status.
	if err := r.log.Append(endMessage); err != nil {
		return report, err
	}
	if err := r.log.Separator(); err != nil {
		return report, err
	}

	return report, nil
}
