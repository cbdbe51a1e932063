package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otavio/vigia/internal/db"
	"github.com/otavio/vigia/internal/tmux"
)

// Worker is a runner process living in a tmux window.
type Worker struct {
	ID          string
	TmuxSession string
	TmuxWindow  string
	StartedAt   time.Time
}

// Command returns the argv that starts a runner with the given id.
func Command(executable, id string) []string {
	return []string{executable, "worker", "run", "--id", id}
}

// Spawn registers a worker in the DB and starts its runner in a new tmux window.
// It returns without waiting for the runner to claim anything.
func Spawn(pool *pgxpool.Pool, tmuxSession, id, executable string, env map[string]string) (*Worker, error) {
	if err := db.RegisterWorker(pool, id, tmuxSession, id); err != nil {
		return nil, err
	}

	if err := tmux.NewWindow(tmuxSession, id, "", env, Command(executable, id)); err != nil {
		if delErr := db.DeleteWorker(pool, id); delErr != nil {
			slog.Warn("worker: cleaning up registration", "worker", id, "error", delErr)
		}
		return nil, fmt.Errorf("creating tmux window: %w", err)
	}

	return &Worker{
		ID:          id,
		TmuxSession: tmuxSession,
		TmuxWindow:  id,
		StartedAt:   time.Now(),
	}, nil
}

// Kill stops a worker: its tmux window is killed, its in-progress task goes back to
// the queue and its registration is removed.
func Kill(pool *pgxpool.Pool, id string) error {
	w, err := db.GetWorker(pool, id)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("worker %q not found", id)
	}

	// The window may already be gone.
	if err := tmux.KillWindow(w.TmuxSession, w.TmuxWindow); err != nil {
		slog.Debug("worker: killing window", "worker", id, "error", err)
	}

	if err := db.DeleteWorker(pool, id); err != nil {
		return fmt.Errorf("deleting worker: %w", err)
	}
	return nil
}

// KillAll stops every registered worker, continuing past individual failures.
func KillAll(pool *pgxpool.Pool) (int, error) {
	workers, err := db.ListWorkers(pool)
	if err != nil {
		return 0, err
	}

	killed := 0
	for _, w := range workers {
		if err := Kill(pool, w.ID); err != nil {
			slog.Warn("worker: kill failed", "worker", w.ID, "error", err)
			continue
		}
		killed++
	}
	return killed, nil
}

// NextID returns the first "worker-N" id not present in existing.
func NextID(existing []*db.Worker) string {
	taken := make(map[string]bool, len(existing))
	for _, w := range existing {
		taken[w.ID] = true
	}
	for n := 1; ; n++ {
		id := fmt.Sprintf("worker-%d", n)
		if !taken[id] {
			return id
		}
	}
}
