// Package execx executes host commands for the run, deploy and schedule
// layers. It is a thin wrapper over os/exec with timeout handling, bounded
// output capture and exit-code extraction, so callers can tell "failed to
// start" apart from "ran and exited non-zero" apart from "killed".
package execx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxOutputBytes bounds captured stdout+stderr per command.
const DefaultMaxOutputBytes int64 = 10 * 1024 * 1024

// Command describes one host command invocation.
type Command struct {
	// Binary is the executable to run (e.g. "python", "gcloud", "crontab").
	Binary string

	// Args are the command-line arguments.
	Args []string

	// Dir is the working directory. Empty means inherit the caller's.
	Dir string

	// Env is the child environment in KEY=VALUE form. Nil inherits the
	// parent environment verbatim.
	Env []string

	// Stdin is fed to the child's standard input when non-empty.
	Stdin string

	// Timeout bounds wall time. Zero means no timeout beyond ctx.
	Timeout time.Duration
}

// String renders the command for display and diagnostics.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Result reports the outcome of a command that started.
type Result struct {
	ExitCode   int
	Output     string // combined stdout+stderr, in arrival order
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Killed     bool
	KillReason string
	Truncated  bool
}

// Runner runs commands. The interface exists so the runner, deploy and
// schedule packages can be tested with a recording fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Host runs commands directly on the host.
type Host struct {
	logger    *zap.Logger
	maxOutput int64
}

// NewHost returns a host runner. A nil logger disables diagnostics.
func NewHost(logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{logger: logger, maxOutput: DefaultMaxOutputBytes}
}

// Run executes cmd. It returns an error only when the process could not be
// started (binary missing, bad working directory, ...). A process that runs
// and exits non-zero, or is killed by timeout/cancellation, yields a Result
// with no error.
func (h *Host) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("execx: binary is required")
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	child := exec.CommandContext(runCtx, cmd.Binary, cmd.Args...)
	child.Dir = cmd.Dir
	child.Env = cmd.Env
	if cmd.Stdin != "" {
		child.Stdin = strings.NewReader(cmd.Stdin)
	}

	var buf bytes.Buffer
	capture := &cappedWriter{w: &buf, max: h.maxOutput}
	child.Stdout = capture
	child.Stderr = capture

	h.logger.Debug("running command",
		zap.String("command", cmd.String()),
		zap.String("dir", cmd.Dir),
		zap.Duration("timeout", cmd.Timeout))

	result := &Result{StartedAt: time.Now()}

	err := child.Run()

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.Output = buf.String()
	result.Truncated = capture.truncated

	switch {
	case err == nil:
		result.ExitCode = 0
	case runCtx.Err() == context.DeadlineExceeded:
		result.ExitCode = -1
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", cmd.Timeout)
		h.logger.Warn("command killed",
			zap.String("command", cmd.Binary),
			zap.String("reason", result.KillReason))
	case runCtx.Err() == context.Canceled:
		result.ExitCode = -1
		result.Killed = true
		result.KillReason = "canceled"
	default:
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			// Never started.
			return nil, fmt.Errorf("execx: start %s: %w", cmd.Binary, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	h.logger.Debug("command finished",
		zap.String("command", cmd.Binary),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.Int("output_bytes", len(result.Output)))

	return result, nil
}

// cappedWriter drops bytes past max while reporting full writes upstream, so
// a chatty child never blocks on a short write.
type cappedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (cw *cappedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if cw.written >= cw.max {
		cw.truncated = true
		return n, nil
	}

	remaining := cw.max - cw.written
	if int64(n) > remaining {
		cw.truncated = true
		p = p[:remaining]
	}

	written, err := cw.w.Write(p)
	cw.written += int64(written)
	if err != nil {
		return written, err
	}
	return n, nil
}
