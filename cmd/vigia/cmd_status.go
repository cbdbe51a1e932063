package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/db"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <component>",
	Short: "Show the analysis queue of a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}

		q, err := db.NewTaskStore(pool).TasksForComponent(context.Background(), args[0])
		if err != nil {
			return err
		}

		if statusJSON {
			return printJSON(q)
		}

		if q.Current != nil {
			fmt.Printf("Last analysis: %s %s  %s\n", statusSymbol(q.Current.Status), q.Current.Status, formatTime(q.Current.ExecutedAt))
			if q.Current.ErrorMessage != nil {
				fmt.Printf("  %s\n", *q.Current.ErrorMessage)
			}
		}

		if len(q.Queue) == 0 {
			fmt.Println("No queued analyses.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  \tID\tSTATUS\tBRANCH\tWORKER\tSUBMITTED\n")
		for _, t := range q.Queue {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				statusSymbol(t.Status), truncateID(t.ID), t.Status, orDash(t.Branch), orDash(t.WorkerID), relativeTime(t.SubmittedAt))
		}
		w.Flush()
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

func statusSymbol(status ce.Status) string {
	switch status {
	case ce.StatusPending:
		return "○"
	case ce.StatusInProgress:
		return "●"
	case ce.StatusSuccess:
		return "✓"
	case ce.StatusFailed:
		return "✗"
	case ce.StatusCanceled:
		return "⊘"
	default:
		return "?"
	}
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
