package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker is a registered analysis runner living in a tmux window.
type Worker struct {
	ID          string     `json:"id"`
	TmuxSession string     `json:"tmux_session"`
	TmuxWindow  string     `json:"tmux_window"`
	TaskID      *string    `json:"task_id,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
}

const workerColumns = `id, tmux_session, tmux_window, task_id, status, started_at, last_seen`

// RegisterWorker inserts a new worker record.
func RegisterWorker(pool *pgxpool.Pool, id, tmuxSession, tmuxWindow string) error {
	_, err := pool.Exec(context.Background(), `
		INSERT INTO workers (id, tmux_session, tmux_window, last_seen)
		VALUES ($1, $2, $3, NOW())
	`, id, tmuxSession, tmuxWindow)
	if err != nil {
		return fmt.Errorf("registering worker: %w", err)
	}
	return nil
}

// ListWorkers returns all registered workers.
func ListWorkers(pool *pgxpool.Pool) ([]*Worker, error) {
	rows, err := pool.Query(context.Background(), `
		SELECT `+workerColumns+` FROM workers ORDER BY started_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing workers: %w", err)
	}
	defer rows.Close()

	var workers []*Worker
	for rows.Next() {
		var w Worker
		if err := rows.Scan(&w.ID, &w.TmuxSession, &w.TmuxWindow, &w.TaskID, &w.Status, &w.StartedAt, &w.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning worker: %w", err)
		}
		workers = append(workers, &w)
	}
	return workers, rows.Err()
}

// GetWorker retrieves a worker by id, or nil if it is not registered.
func GetWorker(pool *pgxpool.Pool, id string) (*Worker, error) {
	var w Worker
	err := pool.QueryRow(context.Background(), `
		SELECT `+workerColumns+` FROM workers WHERE id = $1
	`, id).Scan(&w.ID, &w.TmuxSession, &w.TmuxWindow, &w.TaskID, &w.Status, &w.StartedAt, &w.LastSeen)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting worker: %w", err)
	}
	return &w, nil
}

// TouchWorker updates a worker's status and last_seen.
func TouchWorker(ctx context.Context, pool *pgxpool.Pool, id, status string) error {
	_, err := pool.Exec(ctx, `
		UPDATE workers SET status = $2, last_seen = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("updating worker status: %w", err)
	}
	return nil
}

// DeleteWorker removes a worker and puts its in-progress task back in the queue.
func DeleteWorker(pool *pgxpool.Pool, id string) error {
	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning delete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE ce_tasks
		SET    status     = 'PENDING',
		       worker_id  = NULL,
		       started_at = NULL
		WHERE  worker_id = $1
		  AND  status    = 'IN_PROGRESS'
	`, id)
	if err != nil {
		return fmt.Errorf("releasing worker tasks: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM workers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting worker: %w", err)
	}

	return tx.Commit(ctx)
}
