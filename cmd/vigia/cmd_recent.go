package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/component"
	"github.com/otavio/vigia/internal/history"
)

var (
	recentClear  bool
	recentRemove string
	recentJSON   bool
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently visited components",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, closeLog, err := setupLogging(cfg, io.Discard)
		if err != nil {
			return err
		}
		defer closeLog()

		store, err := history.Open(cfg.HistoryPath, cfg.HistorySize, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		switch {
		case recentClear:
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Println("✓ Recent history cleared.")
			return nil
		case recentRemove != "":
			if err := store.Remove(recentRemove); err != nil {
				return err
			}
			fmt.Printf("✓ Removed %s\n", recentRemove)
			return nil
		}

		entries, err := store.List()
		if err != nil {
			return err
		}

		if recentJSON {
			if entries == nil {
				entries = []history.Entry{}
			}
			return printJSON(entries)
		}

		if len(entries) == 0 {
			fmt.Println("No recent components.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "KEY\tNAME\tQUALIFIER\tORGANIZATION\tVISITED\n")
		for _, e := range entries {
			org := e.Organization
			if org == "" {
				org = "—"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Key, e.Name, component.QualifierLabel(e.Qualifier), org, relativeTime(e.VisitedAt))
		}
		w.Flush()
		return nil
	},
}

func init() {
	recentCmd.Flags().BoolVar(&recentClear, "clear", false, "forget all recent components")
	recentCmd.Flags().StringVar(&recentRemove, "rm", "", "forget one component")
	recentCmd.Flags().BoolVar(&recentJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(recentCmd)
}
