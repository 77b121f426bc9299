// Package deploy issues the fixed gcloud invocation that publishes the
// Telegram webhook cloud function. The flag set is hard-coded apart from the
// forwarded environment variables, which are read verbatim from the caller's
// environment at invocation time - unset variables forward as empty values,
// exactly like the shell script this replaces. Also like the script, the
// command is issued first and the pause for acknowledgment comes after.
package deploy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"valops/internal/config"
	"valops/internal/execx"
)

// Binary is the deployment tool invoked.
const Binary = "gcloud"

// Deployer builds and runs the deployment command.
type Deployer struct {
	cfg    config.DeployConfig
	exec   execx.Runner
	logger *zap.Logger
	stdout io.Writer
}

// New builds a Deployer writing tool output to stdout. Nil logger disables
// diagnostics; nil stdout discards output.
func New(cfg config.DeployConfig, exec execx.Runner, logger *zap.Logger, stdout io.Writer) *Deployer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stdout == nil {
		stdout = io.Discard
	}
	return &Deployer{cfg: cfg, exec: exec, logger: logger, stdout: stdout}
}

// Args returns the gcloud argument list. Environment values are captured at
// call time, so the command always reflects the caller's current environment.
func (d *Deployer) Args() []string {
	return []string{
		"functions", "deploy", d.cfg.Function,
		"--runtime", d.cfg.Runtime,
		"--trigger-http",
		"--allow-unauthenticated",
		"--entry-point", d.cfg.EntryPoint,
		"--source", d.cfg.Source,
		"--set-env-vars", d.envVarsFlag(),
		"--region", d.cfg.Region,
		"--memory", d.cfg.Memory,
		"--timeout", d.cfg.Timeout,
	}
}

// CommandString renders the full command for display and dry runs.
func (d *Deployer) CommandString() string {
	return Binary + " " + strings.Join(d.Args(), " ")
}

// envVarsFlag builds the KEY=value,KEY=value payload for --set-env-vars.
// No validation: unset variables yield empty values.
func (d *Deployer) envVarsFlag() string {
	pairs := make([]string, 0, len(d.cfg.EnvVars))
	for _, key := range d.cfg.EnvVars {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, os.Getenv(key)))
	}
	return strings.Join(pairs, ",")
}

// Run mirrors the deploy script: print the command, issue it, then pause for
// user acknowledgment. The command is always issued; the pause is purely
// informational and never blocks the deployment itself.
func (d *Deployer) Run(ctx context.Context, in io.Reader, out io.Writer, pause bool) error {
	fmt.Fprintf(out, "Running:\n\n  %s\n\n", d.CommandString())

	err := d.Deploy(ctx)

	if pause {
		d.Pause(in, out)
	}
	return err
}

// Pause is the script's trailing pause: wait for Enter. EOF counts as
// acknowledgment so non-interactive invocations proceed.
func (d *Deployer) Pause(in io.Reader, out io.Writer) {
	fmt.Fprint(out, "Press Enter to continue... ")
	_, _ = bufio.NewReader(in).ReadString('\n')
}

// Deploy runs the gcloud command. Unlike the pipeline run, a failed
// deployment is an error: gcloud's non-zero exit fails the command.
func (d *Deployer) Deploy(ctx context.Context) error {
	args := d.Args()

	d.logger.Info("deploying cloud function",
		zap.String("function", d.cfg.Function),
		zap.String("region", d.cfg.Region),
		zap.String("runtime", d.cfg.Runtime))

	result, err := d.exec.Run(ctx, execx.Command{Binary: Binary, Args: args})
	if err != nil {
		return fmt.Errorf("run %s: %w", Binary, err)
	}

	fmt.Fprint(d.stdout, result.Output)

	if result.Killed {
		return fmt.Errorf("deployment interrupted: %s", result.KillReason)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%s exited with code %d", Binary, result.ExitCode)
	}

	d.logger.Info("cloud function deployed", zap.String("function", d.cfg.Function))
	return nil
}
