package git

import (
	"fmt"
	"os/exec"
	"strings"
)

func command(dir string, args ...string) *exec.Cmd {
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}
	return exec.Command("git", args...)
}

// RepoRoot returns the root directory of the git repository containing dir.
// An empty dir means the working directory.
func RepoRoot(dir string) (string, error) {
	out, err := command(dir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CurrentBranch returns the checked-out branch name. It fails on a detached HEAD.
func CurrentBranch(dir string) (string, error) {
	out, err := command(dir, "symbolic-ref", "--short", "-q", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("getting current branch: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// HasUncommittedChanges returns true if the working tree has staged, unstaged or
// untracked changes.
func HasUncommittedChanges(dir string) (bool, error) {
	out, err := command(dir, "status", "--porcelain").Output()
	if err != nil {
		return false, fmt.Errorf("checking uncommitted changes: %w", err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}
