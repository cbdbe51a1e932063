package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/db"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a pending analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}

		if err := db.CancelTask(context.Background(), pool, args[0]); err != nil {
			return err
		}

		fmt.Printf("✓ Canceled %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
