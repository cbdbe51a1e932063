package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/otavio/vigia/internal/ce"
)

var (
	// ErrTaskNotFound is returned when a task id is unknown.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskNotCancelable is returned when canceling a task that is no longer pending.
	ErrTaskNotCancelable = errors.New("only pending tasks can be canceled")
)

// claimLockID serializes claims so that two workers never start the same component.
const claimLockID = 7_130_001

const taskColumns = `id, component_key, type, status, branch, submitter_login, worker_id,
	submitted_at, started_at, executed_at, execution_time_ms, error_message`

// SubmitTask enqueues a PENDING task for a component.
func SubmitTask(ctx context.Context, pool *pgxpool.Pool, componentKey, taskType string, branch, submitter *string) (*ce.Task, error) {
	row := pool.QueryRow(ctx, `
		INSERT INTO ce_tasks (id, component_key, type, status, branch, submitter_login)
		SELECT $1, key, $3, 'PENDING', $4, $5
		FROM   components
		WHERE  key = $2
		RETURNING `+taskColumns,
		uuid.NewString(), componentKey, taskType, branch, submitter)

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, componentKey)
	}
	if err != nil {
		return nil, fmt.Errorf("submitting task: %w", err)
	}
	return t, nil
}

// TaskStore serves status queries from PostgreSQL. It implements ce.TaskService.
type TaskStore struct {
	pool *pgxpool.Pool
}

// NewTaskStore wraps a pool.
func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

// TasksForComponent returns the pending and in-progress tasks of a component in
// submission order, plus its most recently finished task.
func (s *TaskStore) TasksForComponent(ctx context.Context, componentKey string) (*ce.Queue, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM components WHERE key = $1)`, componentKey).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking component: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, componentKey)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM   ce_tasks
		WHERE  component_key = $1
		  AND  status IN ('PENDING', 'IN_PROGRESS')
		ORDER  BY submitted_at ASC, id ASC
	`, componentKey)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	queue, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}

	q := &ce.Queue{Queue: make([]ce.Task, 0, len(queue))}
	for _, t := range queue {
		q.Queue = append(q.Queue, *t)
	}

	current, err := scanTask(s.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM   ce_tasks
		WHERE  component_key = $1
		  AND  status IN ('SUCCESS', 'FAILED', 'CANCELED')
		ORDER  BY executed_at DESC NULLS LAST, submitted_at DESC
		LIMIT  1
	`, componentKey))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting current task: %w", err)
	}
	q.Current = current

	if q.QualityGate, err = qualityGate(ctx, s.pool, componentKey); err != nil {
		return nil, err
	}
	return q, nil
}

// GetTask retrieves a task by id.
func GetTask(ctx context.Context, pool *pgxpool.Pool, id string) (*ce.Task, error) {
	t, err := scanTask(pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM ce_tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return t, nil
}

// ClaimTask atomically moves the oldest pending task to IN_PROGRESS for workerID. A task is
// only eligible when its component has nothing else in progress. Returns nil if no task is
// available.
func ClaimTask(ctx context.Context, pool *pgxpool.Pool, workerID string) (*ce.Task, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(claimLockID)); err != nil {
		return nil, fmt.Errorf("acquiring claim lock: %w", err)
	}

	t, err := scanTask(tx.QueryRow(ctx, `
		UPDATE ce_tasks
		SET    status     = 'IN_PROGRESS',
		       worker_id  = $1,
		       started_at = NOW()
		WHERE  id = (
			SELECT t.id FROM ce_tasks t
			WHERE  t.status = 'PENDING'
			  AND  NOT EXISTS (
				SELECT 1 FROM ce_tasks r
				WHERE  r.component_key = t.component_key
				  AND  r.status = 'IN_PROGRESS'
			  )
			ORDER  BY t.submitted_at ASC, t.id ASC
			LIMIT  1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns, workerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming task: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE workers
		SET    task_id   = $2,
		       status    = 'working',
		       last_seen = NOW()
		WHERE  id = $1
	`, workerID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("updating worker: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return t, nil
}

// FinishTask records the outcome of an in-progress task and releases the worker.
func FinishTask(ctx context.Context, pool *pgxpool.Pool, taskID, workerID string, status ce.Status, errorMessage *string) error {
	if !status.Finished() {
		return fmt.Errorf("finishing task %s: %s is not a final status", taskID, status)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning finish tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE ce_tasks
		SET    status            = $3,
		       executed_at       = NOW(),
		       execution_time_ms = (EXTRACT(EPOCH FROM (NOW() - started_at)) * 1000)::BIGINT,
		       error_message     = $4
		WHERE  id        = $1
		  AND  worker_id = $2
		  AND  status    = 'IN_PROGRESS'
	`, taskID, workerID, string(status), errorMessage)
	if err != nil {
		return fmt.Errorf("finishing task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finishing task %s: not in progress for worker %s", taskID, workerID)
	}

	_, err = tx.Exec(ctx, `
		UPDATE workers SET task_id = NULL, status = 'idle', last_seen = NOW()
		WHERE id = $1
	`, workerID)
	if err != nil {
		return fmt.Errorf("releasing worker: %w", err)
	}

	return tx.Commit(ctx)
}

// CancelTask cancels a pending task.
func CancelTask(ctx context.Context, pool *pgxpool.Pool, id string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE ce_tasks
		SET    status      = 'CANCELED',
		       executed_at = NOW()
		WHERE  id = $1 AND status = 'PENDING'
	`, id)
	if err != nil {
		return fmt.Errorf("canceling task: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := GetTask(ctx, pool, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrTaskNotCancelable, id)
}

// ReclaimStale puts tasks that have been in progress for longer than the given minutes
// back into the queue. Returns the number of reclaimed tasks.
func ReclaimStale(pool *pgxpool.Pool, minutes int) (int, error) {
	tag, err := pool.Exec(context.Background(), `
		UPDATE ce_tasks
		SET    status     = 'PENDING',
		       worker_id  = NULL,
		       started_at = NULL
		WHERE  status     = 'IN_PROGRESS'
		  AND  started_at < NOW() - make_interval(mins => $1)
	`, minutes)
	if err != nil {
		return 0, fmt.Errorf("reclaiming stale tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanTask(row pgx.Row) (*ce.Task, error) {
	var t ce.Task
	var status string
	if err := row.Scan(
		&t.ID, &t.ComponentKey, &t.Type, &status, &t.Branch, &t.SubmitterLogin, &t.WorkerID,
		&t.SubmittedAt, &t.StartedAt, &t.ExecutedAt, &t.ExecutionTimeMs, &t.ErrorMessage,
	); err != nil {
		return nil, err
	}
	t.Status = ce.Status(status)
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]*ce.Task, error) {
	defer rows.Close()
	var tasks []*ce.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
