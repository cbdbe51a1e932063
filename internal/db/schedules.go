package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schedule submits an analysis for a component on a cron expression.
type Schedule struct {
	Name         string     `json:"name"`
	ComponentKey string     `json:"component_key"`
	Cron         string     `json:"cron"`
	Branch       *string    `json:"branch,omitempty"`
	Enabled      bool       `json:"enabled"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

const scheduleColumns = `name, component_key, cron, branch, enabled, next_run, last_run, created_at`

// CreateSchedule inserts a schedule.
func CreateSchedule(pool *pgxpool.Pool, name, componentKey, cron string, branch *string, nextRun time.Time) error {
	_, err := pool.Exec(context.Background(), `
		INSERT INTO schedules (name, component_key, cron, branch, next_run)
		VALUES ($1, $2, $3, $4, $5)
	`, name, componentKey, cron, branch, nextRun)
	if err != nil {
		return fmt.Errorf("creating schedule: %w", err)
	}
	return nil
}

// ListSchedules returns schedules, optionally filtered by component.
func ListSchedules(pool *pgxpool.Pool, componentKey *string) ([]*Schedule, error) {
	return querySchedules(pool, `
		SELECT `+scheduleColumns+`
		FROM   schedules
		WHERE  $1::text IS NULL OR component_key = $1
		ORDER  BY name ASC
	`, componentKey)
}

// GetDueSchedules returns enabled schedules whose next run is in the past.
func GetDueSchedules(pool *pgxpool.Pool) ([]*Schedule, error) {
	return querySchedules(pool, `
		SELECT `+scheduleColumns+`
		FROM   schedules
		WHERE  enabled AND next_run <= NOW()
		ORDER  BY next_run ASC
	`)
}

// UpdateScheduleAfterRun records a run and the next due time.
func UpdateScheduleAfterRun(pool *pgxpool.Pool, name string, lastRun, nextRun time.Time) error {
	_, err := pool.Exec(context.Background(), `
		UPDATE schedules SET last_run = $2, next_run = $3 WHERE name = $1
	`, name, lastRun, nextRun)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	return nil
}

// SetScheduleEnabled toggles a schedule.
func SetScheduleEnabled(pool *pgxpool.Pool, name string, enabled bool) error {
	tag, err := pool.Exec(context.Background(), `
		UPDATE schedules SET enabled = $2 WHERE name = $1
	`, name, enabled)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %q not found", name)
	}
	return nil
}

// DeleteSchedule removes a schedule.
func DeleteSchedule(pool *pgxpool.Pool, name string) error {
	tag, err := pool.Exec(context.Background(), `DELETE FROM schedules WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %q not found", name)
	}
	return nil
}

func querySchedules(pool *pgxpool.Pool, sql string, args ...any) ([]*Schedule, error) {
	rows, err := pool.Query(context.Background(), sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	var out []*Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.Name, &s.ComponentKey, &s.Cron, &s.Branch, &s.Enabled, &s.NextRun, &s.LastRun, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
