// Package schedule manages the recurring pipeline runs: one scheduled task
// per configured hour slot, limited to the configured weekdays. On Windows
// the tasks live in the Task Scheduler via schtasks; on Unix they live in a
// marker-delimited block of the user crontab.
package schedule

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"valops/internal/config"
	"valops/internal/execx"
)

// taskPrefix names the scheduled tasks, matching the production setup.
const taskPrefix = "ValSemanal"

// Task is one recurring run slot.
type Task struct {
	Name string // e.g. ValSemanal_0900
	Hour string // HH:MM
}

// TaskStatus reports whether a slot is installed.
type TaskStatus struct {
	Name      string
	Installed bool
	Detail    string
}

// Plan is the full set of slots plus the command each one runs.
type Plan struct {
	Hours   []string
	Days    []string
	Command string
}

// NewPlan builds a Plan from configuration. command is the command line the
// scheduler runs, typically "<valops binary> run".
func NewPlan(cfg config.ScheduleConfig, command string) Plan {
	if cfg.Command != "" {
		command = cfg.Command
	}
	return Plan{Hours: cfg.Hours, Days: cfg.Days, Command: command}
}

// Tasks expands the plan into named slots.
func (p Plan) Tasks() []Task {
	tasks := make([]Task, 0, len(p.Hours))
	for _, hour := range p.Hours {
		label := strings.ReplaceAll(hour, ":", "")
		tasks = append(tasks, Task{
			Name: fmt.Sprintf("%s_%s", taskPrefix, label),
			Hour: hour,
		})
	}
	return tasks
}

// DaysLabel renders the weekday list for display.
func (p Plan) DaysLabel() string {
	if len(p.Days) == 0 {
		return "every day"
	}
	return strings.Join(p.Days, ",")
}

// Validate rejects malformed hour slots, weekday names and commands before
// any task is touched.
func (p Plan) Validate() error {
	if len(p.Hours) == 0 {
		return fmt.Errorf("schedule: no hour slots configured")
	}
	if p.Command == "" {
		return fmt.Errorf("schedule: no command configured")
	}
	// The command is embedded in single-line task definitions (crontab
	// entries, schtasks /tr); an embedded newline would corrupt them.
	if strings.ContainsAny(p.Command, "\n\r") {
		return fmt.Errorf("schedule: command must be a single line")
	}
	for _, hour := range p.Hours {
		if _, err := time.Parse("15:04", hour); err != nil {
			return fmt.Errorf("schedule: bad hour slot %q: %w", hour, err)
		}
	}
	for _, day := range p.Days {
		if _, ok := cronDays[strings.ToUpper(day)]; !ok {
			return fmt.Errorf("schedule: unknown weekday %q", day)
		}
	}
	return nil
}

// Backend installs, inspects and removes the plan's tasks.
type Backend interface {
	Create(ctx context.Context, plan Plan) error
	Status(ctx context.Context, plan Plan) ([]TaskStatus, error)
	Delete(ctx context.Context, plan Plan) error
}

// NewBackend picks the scheduler for the current platform.
func NewBackend(exec execx.Runner, logger *zap.Logger) Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runtime.GOOS == "windows" {
		return &SchtasksBackend{exec: exec, logger: logger}
	}
	return &CronBackend{exec: exec, logger: logger}
}
