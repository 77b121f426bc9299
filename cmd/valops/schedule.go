package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"valops/internal/execx"
	"valops/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the recurring run slots",
	Long: `Manages the scheduled pipeline runs: one task per configured hour slot on
the configured weekdays. Windows uses the Task Scheduler (schtasks); other
platforms use a marker-delimited block in the user crontab.`,
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Install all run slots (replacing any existing ones)",
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, backend, err := schedulePlan()
		if err != nil {
			return err
		}
		if err := backend.Create(cmd.Context(), plan); err != nil {
			return err
		}
		fmt.Printf("Installed %d run slots (%s)\n", len(plan.Hours), plan.DaysLabel())
		return nil
	},
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which run slots are installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, backend, err := schedulePlan()
		if err != nil {
			return err
		}
		statuses, err := backend.Status(cmd.Context(), plan)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			state := "missing"
			if s.Installed {
				state = "installed"
			}
			fmt.Printf("  %-20s %s\n", s.Name, state)
		}
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove all run slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, backend, err := schedulePlan()
		if err != nil {
			return err
		}
		if err := backend.Delete(cmd.Context(), plan); err != nil {
			return err
		}
		fmt.Println("Run slots removed")
		return nil
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
}

// schedulePlan builds the plan plus the platform backend. The scheduled
// command defaults to this binary's own run subcommand.
func schedulePlan() (schedule.Plan, schedule.Backend, error) {
	exe, err := os.Executable()
	if err != nil {
		return schedule.Plan{}, nil, fmt.Errorf("resolve executable path: %w", err)
	}
	plan := schedule.NewPlan(cfg.Schedule, exe+" run")
	backend := schedule.NewBackend(execx.NewHost(logger), logger)
	return plan, backend, nil
}
