package tmux

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
)

// SessionExists checks if a tmux session exists.
func SessionExists(name string) bool {
	return exec.Command("tmux", "has-session", "-t", name).Run() == nil
}

// EnsureSession creates a detached tmux session if it doesn't exist.
func EnsureSession(name string) error {
	if SessionExists(name) {
		return nil
	}
	cmd := exec.Command("tmux", "new-session", "-d", "-s", name)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("creating session %s: %s: %w", name, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// NewWindow creates a detached window in session running command, with env set in the
// window's environment. An empty dir keeps tmux's default start directory.
func NewWindow(session, window, dir string, env map[string]string, command []string) error {
	cmd := exec.Command("tmux", newWindowArgs(session, window, dir, env, command)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("creating window %s:%s: %s: %w", session, window, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func newWindowArgs(session, window, dir string, env map[string]string, command []string) []string {
	args := []string{"new-window", "-d", "-t", session + ":", "-n", window}
	if dir != "" {
		args = append(args, "-c", dir)
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+env[k])
	}

	if len(command) > 0 {
		args = append(args, shellJoin(command))
	}
	return args
}

// shellJoin quotes each argument for sh.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		if a != "" && strings.IndexFunc(a, needsQuote) < 0 {
			quoted[i] = a
			continue
		}
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_./:=@%+,", r):
		return false
	}
	return true
}

// CapturePane captures the last N lines from a tmux pane.
func CapturePane(session, window string, lines int) (string, error) {
	target := session + ":" + window
	start := fmt.Sprintf("-%d", lines)
	cmd := exec.Command("tmux", "capture-pane", "-t", target, "-p", "-S", start)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("capturing pane %s: %w", target, err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// KillWindow kills a tmux window.
func KillWindow(session, window string) error {
	target := session + ":" + window
	cmd := exec.Command("tmux", "kill-window", "-t", target)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("killing window %s: %s: %w", target, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// InsideTmux returns true if the current process is running inside tmux.
func InsideTmux() bool {
	return os.Getenv("TMUX") != ""
}

// AttachOrSwitch shows a window: it switches to it when already inside tmux,
// otherwise it replaces the current process with tmux attach.
func AttachOrSwitch(session, window string) error {
	target := session + ":" + window
	if InsideTmux() {
		if out, err := exec.Command("tmux", "switch-client", "-t", target).CombinedOutput(); err != nil {
			return fmt.Errorf("switching to window %s: %s: %w", target, strings.TrimSpace(string(out)), err)
		}
		return nil
	}

	tmuxBin, err := exec.LookPath("tmux")
	if err != nil {
		return fmt.Errorf("tmux not found: %w", err)
	}
	return syscall.Exec(tmuxBin, []string{"tmux", "attach-session", "-t", target}, os.Environ())
}
