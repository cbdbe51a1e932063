package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/db"
	"github.com/otavio/vigia/internal/git"
)

var (
	submitBranch string
	submitNoGit  bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <component>",
	Short: "Queue an analysis for a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connectDB(); err != nil {
			return err
		}

		branch := resolveBranch(submitBranch, submitNoGit)
		task, err := db.SubmitTask(context.Background(), pool, args[0], ce.TaskTypeReport, optional(branch), optional(os.Getenv("USER")))
		if err != nil {
			return err
		}

		if branch != "" {
			fmt.Printf("Submitted: %s  %s @ %s\n", task.ID, task.ComponentKey, branch)
		} else {
			fmt.Printf("Submitted: %s  %s\n", task.ID, task.ComponentKey)
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitBranch, "branch", "", "branch to analyze (defaults to the current git branch)")
	submitCmd.Flags().BoolVar(&submitNoGit, "no-git", false, "do not detect the branch from git")
	rootCmd.AddCommand(submitCmd)
}

// resolveBranch prefers an explicit branch, then the checked-out git branch.
func resolveBranch(explicit string, noGit bool) string {
	if explicit != "" || noGit {
		return explicit
	}
	branch, err := git.CurrentBranch("")
	if err != nil {
		return ""
	}
	if dirty, err := git.HasUncommittedChanges(""); err == nil && dirty {
		fmt.Fprintln(os.Stderr, "warning: working tree has uncommitted changes")
	}
	return branch
}
