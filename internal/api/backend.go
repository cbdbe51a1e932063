package api

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otavio/vigia/internal/ce"
	"github.com/otavio/vigia/internal/component"
	"github.com/otavio/vigia/internal/db"
)

// PostgresBackend serves the API straight from the database.
type PostgresBackend struct {
	*db.TaskStore
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{TaskStore: db.NewTaskStore(pool), pool: pool}
}

func (b *PostgresBackend) ShowComponent(ctx context.Context, key string) (*component.Component, error) {
	return db.GetComponent(ctx, b.pool, key)
}

func (b *PostgresBackend) Submit(ctx context.Context, componentKey, branch string) (*ce.Task, error) {
	var br *string
	if branch != "" {
		br = &branch
	}
	return db.SubmitTask(ctx, b.pool, componentKey, ce.TaskTypeReport, br, nil)
}

func (b *PostgresBackend) Cancel(ctx context.Context, taskID string) error {
	return db.CancelTask(ctx, b.pool, taskID)
}
