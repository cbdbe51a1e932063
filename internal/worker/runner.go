package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/db"
	"github.com/otavio/vigia/internal/measure"
	"github.com/otavio/vigia/internal/metrics"
)

// maxErrorMessage bounds the analysis output stored on a failed task, in bytes.
const maxErrorMessage = 4000

const ellipsis = "…"

// Store is the slice of the task store a runner needs.
type Store interface {
	Claim(ctx context.Context, workerID string) (*ce.Task, error)
	Finish(ctx context.Context, taskID, workerID string, status ce.Status, errorMessage *string) error
	Touch(ctx context.Context, workerID, status string) error
	RefreshMeasures(ctx context.Context, gate measure.Gate, reported []measure.Measure) (*measure.Result, error)
}

// PostgresStore is the database-backed Store.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func (s PostgresStore) Claim(ctx context.Context, workerID string) (*ce.Task, error) {
	return db.ClaimTask(ctx, s.Pool, workerID)
}

func (s PostgresStore) Finish(ctx context.Context, taskID, workerID string, status ce.Status, errorMessage *string) error {
	return db.FinishTask(ctx, s.Pool, taskID, workerID, status, errorMessage)
}

func (s PostgresStore) Touch(ctx context.Context, workerID, status string) error {
	return db.TouchWorker(ctx, s.Pool, workerID, status)
}

func (s PostgresStore) RefreshMeasures(ctx context.Context, gate measure.Gate, reported []measure.Measure) (*measure.Result, error) {
	return db.RefreshLiveMeasures(ctx, s.Pool, gate, reported)
}

// Runner claims pending tasks one at a time and runs the analysis command for each.
// The command's stdout is its measure report (see measure.ParseReport); logs belong on
// stderr.
type Runner struct {
	ID         string
	Store      Store
	AnalyzeCmd string
	Gate       measure.Gate
	Interval   time.Duration
	Logger     *slog.Logger
}

// Run polls for work until ctx is canceled. A task interrupted by cancellation is left
// in progress so that killing the worker or reclaim puts it back in the queue.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.logger()
	logger.Info("worker: started", "interval", r.Interval)

	for {
		if err := r.Store.Touch(ctx, r.ID, "idle"); err != nil && ctx.Err() == nil {
			logger.Warn("worker: heartbeat failed", "error", err)
		}

		ran, err := r.RunOnce(ctx)
		if ctx.Err() != nil {
			logger.Info("worker: stopped")
			return nil
		}
		if err != nil {
			logger.Error("worker: run failed", "error", err)
		}
		if ran {
			continue
		}

		select {
		case <-ctx.Done():
			logger.Info("worker: stopped")
			return nil
		case <-time.After(r.Interval):
		}
	}
}

// RunOnce claims and runs at most one task. It reports whether a task was claimed.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	task, err := r.Store.Claim(ctx, r.ID)
	if err != nil {
		return false, fmt.Errorf("claiming task: %w", err)
	}
	if task == nil {
		return false, nil
	}

	logger := r.logger().With("task_id", task.ID, "component", task.ComponentKey)
	logger.Info("worker: analysis started")

	start := time.Now()
	out, runErr := Analyze(ctx, r.AnalyzeCmd, task)
	if ctx.Err() != nil {
		logger.Warn("worker: analysis interrupted")
		return true, ctx.Err()
	}
	elapsed := time.Since(start)

	status := ce.StatusSuccess
	var msg *string
	if runErr != nil {
		status = ce.StatusFailed
		m := failureMessage(out, runErr)
		msg = &m
	} else if err := r.applyMeasures(ctx, task, out.Stdout, logger); err != nil {
		if ctx.Err() != nil {
			logger.Warn("worker: analysis interrupted")
			return true, ctx.Err()
		}
		runErr = err
		status = ce.StatusFailed
		m := truncate(err.Error())
		msg = &m
	}

	if err := r.Store.Finish(ctx, task.ID, r.ID, status, msg); err != nil {
		return true, fmt.Errorf("recording result of %s: %w", task.ID, err)
	}
	metrics.TasksFinished.WithLabelValues(string(status)).Inc()
	metrics.TaskDuration.Observe(elapsed.Seconds())

	if runErr != nil {
		logger.Warn("worker: analysis failed", "error", runErr, "duration", elapsed)
	} else {
		logger.Info("worker: analysis finished", "duration", elapsed)
	}
	return true, nil
}

// applyMeasures parses the measure report and refreshes the live measures it touches.
func (r *Runner) applyMeasures(ctx context.Context, task *ce.Task, stdout string, logger *slog.Logger) error {
	reported, err := measure.ParseReport(task.ComponentKey, []byte(stdout))
	if err != nil {
		return err
	}
	if len(reported) == 0 {
		return nil
	}

	gate := r.Gate
	if len(gate.Conditions) == 0 {
		gate = measure.DefaultGate
	}
	res, err := r.Store.RefreshMeasures(ctx, gate, reported)
	if err != nil {
		return err
	}
	metrics.MeasuresWritten.Add(float64(res.Changed))
	if res.Ignored > 0 {
		logger.Warn("worker: measures for unknown components ignored", "count", res.Ignored)
	}
	logger.Info("worker: measures refreshed", "changed", res.Changed, "gate", res.Gates[task.ComponentKey])
	return nil
}

func (r *Runner) logger() *slog.Logger {
	l := r.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("worker", r.ID)
}

// Output is what an analysis command wrote.
type Output struct {
	Stdout string
	Stderr string
}

// Analyze runs command through sh with the task described in the environment. An empty
// command is a successful no-op.
func Analyze(ctx context.Context, command string, task *ce.Task) (Output, error) {
	if strings.TrimSpace(command) == "" {
		return Output{}, nil
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = append(os.Environ(), TaskEnv(task)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return Output{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

// TaskEnv returns the environment describing task to the analysis command.
func TaskEnv(task *ce.Task) []string {
	env := []string{
		"VIGIA_TASK_ID=" + task.ID,
		"VIGIA_COMPONENT_KEY=" + task.ComponentKey,
		"VIGIA_TASK_TYPE=" + task.Type,
	}
	if task.Branch != nil {
		env = append(env, "VIGIA_BRANCH="+*task.Branch)
	}
	return env
}

// failureMessage prefers stderr, then stdout, then the exit error.
func failureMessage(out Output, err error) string {
	msg := strings.TrimSpace(out.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(out.Stdout)
	}
	if msg == "" {
		msg = err.Error()
	}
	return truncate(msg)
}

// truncate keeps the tail of msg so that the result fits in maxErrorMessage bytes.
func truncate(msg string) string {
	if len(msg) <= maxErrorMessage {
		return msg
	}
	keep := maxErrorMessage - len(ellipsis)
	return ellipsis + strings.ToValidUTF8(msg[len(msg)-keep:], "")
}
