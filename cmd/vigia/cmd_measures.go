package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/db"
	"github.com/otavio/vigia/internal/measure"
)

var measuresJSON bool

var measuresCmd = &cobra.Command{
	Use:   "measures <component>",
	Short: "Show the live measures of a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}
		ctx := context.Background()

		if _, err := db.GetComponent(ctx, pool, args[0]); err != nil {
			return err
		}
		ms, err := db.ListLiveMeasures(ctx, pool, args[0])
		if err != nil {
			return err
		}

		if measuresJSON {
			if ms == nil {
				ms = []measure.Measure{}
			}
			return printJSON(ms)
		}

		if len(ms) == 0 {
			fmt.Println("No measures yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "METRIC\tVALUE\n")
		for _, m := range ms {
			fmt.Fprintf(w, "%s\t%s\n", m.Metric, measureValue(m))
		}
		w.Flush()
		return nil
	},
}

func init() {
	measuresCmd.Flags().BoolVar(&measuresJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(measuresCmd)
}

func measureValue(m measure.Measure) string {
	if m.Text != "" {
		return m.Text
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}
