package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"valops/internal/execx"
)

// Crontab block markers. Everything between them belongs to valops; the rest
// of the user's crontab is preserved byte for byte.
const (
	blockBegin = "# valops:begin"
	blockEnd   = "# valops:end"
)

// cronDays maps weekday names to crontab day-of-week numbers.
var cronDays = map[string]int{
	"SUN": 0, "MON": 1, "TUE": 2, "WED": 3, "THU": 4, "FRI": 5, "SAT": 6,
}

// CronBackend manages a marker-delimited block in the user crontab through
// the crontab binary: read with `crontab -l`, write the whole table back
// through `crontab -`.
type CronBackend struct {
	exec   execx.Runner
	logger *zap.Logger
}

func (b *CronBackend) Create(ctx context.Context, plan Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	current, err := b.readCrontab(ctx)
	if err != nil {
		return err
	}

	block, err := renderBlock(plan)
	if err != nil {
		return err
	}

	next := stripBlock(current)
	if next != "" && !strings.HasSuffix(next, "\n") {
		next += "\n"
	}
	next += block

	if err := b.writeCrontab(ctx, next); err != nil {
		return err
	}

	b.logger.Info("crontab schedule installed",
		zap.Int("slots", len(plan.Hours)),
		zap.Strings("days", plan.Days))
	return nil
}

func (b *CronBackend) Status(ctx context.Context, plan Plan) ([]TaskStatus, error) {
	current, err := b.readCrontab(ctx)
	if err != nil {
		return nil, err
	}

	installed := make(map[string]string)
	for _, line := range strings.Split(extractBlock(current), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.LastIndex(line, "# "); idx >= 0 {
			installed[strings.TrimSpace(line[idx+2:])] = line
		}
	}

	statuses := make([]TaskStatus, 0, len(plan.Hours))
	for _, task := range plan.Tasks() {
		entry, ok := installed[task.Name]
		statuses = append(statuses, TaskStatus{
			Name:      task.Name,
			Installed: ok,
			Detail:    entry,
		})
	}
	return statuses, nil
}

func (b *CronBackend) Delete(ctx context.Context, plan Plan) error {
	current, err := b.readCrontab(ctx)
	if err != nil {
		return err
	}

	next := stripBlock(current)
	if next == current {
		// No block installed; nothing to do.
		return nil
	}

	if err := b.writeCrontab(ctx, next); err != nil {
		return err
	}
	b.logger.Info("crontab schedule removed")
	return nil
}

// readCrontab returns the current user crontab. A non-zero exit ("no crontab
// for user") reads as empty.
func (b *CronBackend) readCrontab(ctx context.Context) (string, error) {
	result, err := b.exec.Run(ctx, execx.Command{Binary: "crontab", Args: []string{"-l"}})
	if err != nil {
		return "", fmt.Errorf("schedule: run crontab: %w", err)
	}
	if result.ExitCode != 0 {
		return "", nil
	}
	return result.Output, nil
}

func (b *CronBackend) writeCrontab(ctx context.Context, content string) error {
	result, err := b.exec.Run(ctx, execx.Command{
		Binary: "crontab",
		Args:   []string{"-"},
		Stdin:  content,
	})
	if err != nil {
		return fmt.Errorf("schedule: run crontab: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("schedule: crontab rejected the table: %s", strings.TrimSpace(result.Output))
	}
	return nil
}

// renderBlock produces the valops crontab block, one entry per slot, each
// tagged with its task name so Status can match them back.
func renderBlock(plan Plan) (string, error) {
	days := make([]string, 0, len(plan.Days))
	for _, day := range plan.Days {
		days = append(days, fmt.Sprintf("%d", cronDays[strings.ToUpper(day)]))
	}
	dayField := strings.Join(days, ",")
	if dayField == "" {
		dayField = "*"
	}

	var sb strings.Builder
	sb.WriteString(blockBegin + "\n")
	for _, task := range plan.Tasks() {
		t, err := time.Parse("15:04", task.Hour)
		if err != nil {
			return "", fmt.Errorf("schedule: bad hour slot %q: %w", task.Hour, err)
		}
		sb.WriteString(fmt.Sprintf("%d %d * * %s %s # %s\n",
			t.Minute(), t.Hour(), dayField, plan.Command, task.Name))
	}
	sb.WriteString(blockEnd + "\n")
	return sb.String(), nil
}

// stripBlock removes the valops block (markers included) from a crontab.
func stripBlock(content string) string {
	if content == "" {
		return ""
	}

	var kept []string
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == blockBegin:
			inBlock = true
		case trimmed == blockEnd:
			inBlock = false
		case !inBlock:
			kept = append(kept, line)
		}
	}

	out := strings.Join(kept, "\n")
	out = strings.Trim(out, "\n")
	if out != "" {
		out += "\n"
	}
	return out
}

// extractBlock returns the lines between the markers, or "" when absent.
func extractBlock(content string) string {
	var block []string
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == blockBegin:
			inBlock = true
		case trimmed == blockEnd:
			inBlock = false
		case inBlock:
			block = append(block, line)
		}
	}
	return strings.Join(block, "\n")
}
