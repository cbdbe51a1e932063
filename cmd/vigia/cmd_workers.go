package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/db"
)

var workersJSON bool

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Show registered workers and what they run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}

		workers, err := db.ListWorkers(pool)
		if err != nil {
			return err
		}

		if workersJSON {
			if workers == nil {
				workers = []*db.Worker{}
			}
			return printJSON(workers)
		}

		if len(workers) == 0 {
			fmt.Println("No workers.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  \tWORKER\tSTATUS\tTASK\tWINDOW\tLAST SEEN\n")
		for _, wk := range workers {
			sym := "○"
			if wk.Status == "working" {
				sym = "●"
			}
			window := "—"
			if wk.TmuxWindow != "" {
				window = wk.TmuxSession + ":" + wk.TmuxWindow
			}
			lastSeen := "—"
			if wk.LastSeen != nil {
				lastSeen = relativeTime(*wk.LastSeen)
			}
			task := "—"
			if wk.TaskID != nil {
				task = truncateID(*wk.TaskID)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", sym, wk.ID, wk.Status, task, window, lastSeen)
		}
		w.Flush()
		return nil
	},
}

func init() {
	workersCmd.Flags().BoolVar(&workersJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(workersCmd)
}
