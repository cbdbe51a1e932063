package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/db"
)

var reclaimMinutes int

var reclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Put analyses stuck in progress back in the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reclaimMinutes <= 0 {
			return fmt.Errorf("--minutes must be positive")
		}
		if err := connectDB(); err != nil {
			return err
		}

		count, err := db.ReclaimStale(pool, reclaimMinutes)
		if err != nil {
			return err
		}

		if count == 0 {
			fmt.Println("No stale tasks to reclaim.")
		} else {
			fmt.Printf("Reclaimed %d stale task(s).\n", count)
		}
		return nil
	},
}

func init() {
	reclaimCmd.Flags().IntVar(&reclaimMinutes, "minutes", 30, "stale threshold in minutes")
	rootCmd.AddCommand(reclaimCmd)
}
