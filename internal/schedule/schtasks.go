package schedule

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"valops/internal/execx"
)

// SchtasksBackend drives the Windows Task Scheduler. Each slot is one weekly
// task created with /f, preceded by a best-effort delete so repeated creates
// stay idempotent.
type SchtasksBackend struct {
	exec   execx.Runner
	logger *zap.Logger
}

func (b *SchtasksBackend) Create(ctx context.Context, plan Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	days := strings.ToUpper(strings.Join(plan.Days, ","))

	var failed []string
	for _, task := range plan.Tasks() {
		// Drop a stale task first; a missing task is fine.
		_, _ = b.exec.Run(ctx, execx.Command{
			Binary: "schtasks",
			Args:   []string{"/delete", "/tn", task.Name, "/f"},
		})

		result, err := b.exec.Run(ctx, execx.Command{
			Binary: "schtasks",
			Args: []string{
				"/create",
				"/tn", task.Name,
				"/tr", plan.Command,
				"/sc", "WEEKLY",
				"/d", days,
				"/st", task.Hour,
				"/f",
			},
		})
		if err != nil {
			return fmt.Errorf("schedule: run schtasks: %w", err)
		}
		if result.ExitCode != 0 {
			b.logger.Warn("schtasks create failed",
				zap.String("task", task.Name),
				zap.String("output", strings.TrimSpace(result.Output)))
			failed = append(failed, task.Name)
			continue
		}
		b.logger.Info("scheduled task created",
			zap.String("task", task.Name),
			zap.String("start", task.Hour),
			zap.String("days", days))
	}

	if len(failed) > 0 {
		return fmt.Errorf("schedule: %d of %d tasks failed to create: %s",
			len(failed), len(plan.Tasks()), strings.Join(failed, ", "))
	}
	return nil
}

func (b *SchtasksBackend) Status(ctx context.Context, plan Plan) ([]TaskStatus, error) {
	statuses := make([]TaskStatus, 0, len(plan.Hours))
	for _, task := range plan.Tasks() {
		result, err := b.exec.Run(ctx, execx.Command{
			Binary: "schtasks",
			Args:   []string{"/query", "/tn", task.Name, "/fo", "LIST"},
		})
		if err != nil {
			return nil, fmt.Errorf("schedule: run schtasks: %w", err)
		}
		status := TaskStatus{Name: task.Name, Installed: result.ExitCode == 0}
		if status.Installed {
			status.Detail = strings.TrimSpace(result.Output)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (b *SchtasksBackend) Delete(ctx context.Context, plan Plan) error {
	for _, task := range plan.Tasks() {
		result, err := b.exec.Run(ctx, execx.Command{
			Binary: "schtasks",
			Args:   []string{"/delete", "/tn", task.Name, "/f"},
		})
		if err != nil {
			return fmt.Errorf("schedule: run schtasks: %w", err)
		}
		// Exit != 0 means the task did not exist; deleting an absent
		// schedule is not an error.
		if result.ExitCode == 0 {
			b.logger.Info("scheduled task deleted", zap.String("task", task.Name))
		}
	}
	return nil
}
