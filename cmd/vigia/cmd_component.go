package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/component"
	"github.com/otavio/vigia/internal/db"
)

var componentCmd = &cobra.Command{
	Use:   "component",
	Short: "Manage projects and their sub-components",
}

var (
	compAddName      string
	compAddQualifier string
	compAddOrg       string
	compAddParent    string
)

var componentAddCmd = &cobra.Command{
	Use:   "add <key>",
	Short: "Register a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		qualifier := strings.ToUpper(compAddQualifier)
		if !component.ValidQualifier(qualifier) {
			return fmt.Errorf("invalid qualifier %q (want one of TRK, BRC, DIR, FIL, VW, SVW, APP)", compAddQualifier)
		}

		if err := connectDB(); err != nil {
			return err
		}

		name := compAddName
		if name == "" {
			name = key
		}

		if err := db.CreateComponent(pool, key, name, qualifier, optional(compAddOrg), optional(compAddParent)); err != nil {
			return err
		}

		fmt.Printf("Created: %s  %q (%s)\n", key, name, component.QualifierLabel(qualifier))
		return nil
	},
}

var (
	compListQualifier string
	compListJSON      bool
)

var componentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List components",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}

		var qualifier *string
		if compListQualifier != "" {
			q := strings.ToUpper(compListQualifier)
			qualifier = &q
		}

		comps, err := db.ListComponents(pool, qualifier)
		if err != nil {
			return err
		}

		if compListJSON {
			if comps == nil {
				comps = []*db.ComponentRow{}
			}
			return printJSON(comps)
		}

		if len(comps) == 0 {
			fmt.Println("No components.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "KEY\tNAME\tQUALIFIER\tPARENT\tORGANIZATION\n")
		for _, c := range comps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Key, c.Name, c.Qualifier, orDash(c.ParentKey), orDash(c.Organization))
		}
		w.Flush()
		return nil
	},
}

var compShowJSON bool

var componentShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show a component with its breadcrumbs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}

		c, err := db.GetComponent(context.Background(), pool, args[0])
		if err != nil {
			return err
		}

		if compShowJSON {
			return printJSON(c)
		}

		fmt.Printf("Component: %s\n", c.Key)
		fmt.Printf("Name:      %s\n", c.Name)
		fmt.Printf("Qualifier: %s (%s)\n", c.Qualifier, component.QualifierLabel(c.Qualifier))
		if c.Organization != "" {
			fmt.Printf("Org:       %s\n", c.Organization)
		}
		fmt.Printf("Path:      %s\n", c.Path(" › "))
		return nil
	},
}

var componentRmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Delete a component with its descendants and tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}
		if err := db.DeleteComponent(pool, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted: %s\n", args[0])
		return nil
	},
}

func init() {
	componentAddCmd.Flags().StringVar(&compAddName, "name", "", "display name (defaults to the key)")
	componentAddCmd.Flags().StringVar(&compAddQualifier, "qualifier", component.QualifierProject, "component qualifier")
	componentAddCmd.Flags().StringVar(&compAddOrg, "org", "", "organization")
	componentAddCmd.Flags().StringVar(&compAddParent, "parent", "", "parent component key")

	componentListCmd.Flags().StringVar(&compListQualifier, "qualifier", "", "filter by qualifier")
	componentListCmd.Flags().BoolVar(&compListJSON, "json", false, "output as JSON")

	componentShowCmd.Flags().BoolVar(&compShowJSON, "json", false, "output as JSON")

	componentCmd.AddCommand(componentAddCmd, componentListCmd, componentShowCmd, componentRmCmd)
	rootCmd.AddCommand(componentCmd)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "—"
	}
	return *s
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
