package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/db"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// nextRun parses expr and returns its next activation after from.
func nextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched.Next(from), nil
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring analyses",
}

var (
	schedAddComponent string
	schedAddCron      string
	schedAddBranch    string
)

var scheduleAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		next, err := nextRun(schedAddCron, time.Now())
		if err != nil {
			return err
		}
		if err := connectDB(); err != nil {
			return err
		}

		if err := db.CreateSchedule(pool, args[0], schedAddComponent, schedAddCron, optional(schedAddBranch), next); err != nil {
			return err
		}

		fmt.Printf("Created schedule %q (next run: %s)\n", args[0], next.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var schedListComponent string

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}

		schedules, err := db.ListSchedules(pool, optional(schedListComponent))
		if err != nil {
			return err
		}

		if len(schedules) == 0 {
			fmt.Println("No schedules.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "NAME\tCOMPONENT\tCRON\tBRANCH\tNEXT RUN\tLAST RUN\tENABLED\n")
		for _, s := range schedules {
			enabled := "yes"
			if !s.Enabled {
				enabled = "no"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.Name, s.ComponentKey, s.Cron, orDash(s.Branch), formatTime(s.NextRun), formatTime(s.LastRun), enabled)
		}
		w.Flush()
		return nil
	},
}

var scheduleRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}
		if err := db.DeleteSchedule(pool, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted schedule %q\n", args[0])
		return nil
	},
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}
		return db.SetScheduleEnabled(pool, args[0], false)
	},
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}
		return db.SetScheduleEnabled(pool, args[0], true)
	},
}

func init() {
	scheduleAddCmd.Flags().StringVar(&schedAddComponent, "component", "", "component key (required)")
	scheduleAddCmd.Flags().StringVar(&schedAddCron, "cron", "", "cron expression (required)")
	scheduleAddCmd.Flags().StringVar(&schedAddBranch, "branch", "", "branch to analyze")
	scheduleAddCmd.MarkFlagRequired("component")
	scheduleAddCmd.MarkFlagRequired("cron")

	scheduleListCmd.Flags().StringVar(&schedListComponent, "component", "", "filter by component")

	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, scheduleRmCmd, scheduleDisableCmd, scheduleEnableCmd)
	rootCmd.AddCommand(scheduleCmd)
}
