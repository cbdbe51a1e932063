package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/otavio/vigia/internal/measure"
)

// measureLockID serializes live measure refreshes so that concurrent analyses of
// sibling components never lose an ancestor update.
const measureLockID = 7_130_002

// RefreshLiveMeasures applies reported measures and recomputes the affected ancestors in
// a single transaction.
func RefreshLiveMeasures(ctx context.Context, pool *pgxpool.Pool, gate measure.Gate, reported []measure.Measure) (*measure.Result, error) {
	var res *measure.Result
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(measureLockID)); err != nil {
			return fmt.Errorf("acquiring measure lock: %w", err)
		}
		var err error
		res, err = measure.Refresh(ctx, measureRepo{tx: tx}, gate, reported)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("refreshing live measures: %w", err)
	}
	return res, nil
}

// measureRepo is a measure.Repository bound to one transaction.
type measureRepo struct {
	tx pgx.Tx
}

func (r measureRepo) LoadTree(ctx context.Context, keys []string) ([]measure.Component, []measure.Measure, error) {
	rows, err := r.tx.Query(ctx, `
		WITH RECURSIVE chain AS (
			SELECT key, parent_key, 0 AS depth
			FROM   components
			WHERE  key = ANY($1)
			UNION
			SELECT c.key, c.parent_key, chain.depth + 1
			FROM   components c
			JOIN   chain ON c.key = chain.parent_key
			WHERE  chain.depth < 64
		)
		SELECT DISTINCT c.key, c.qualifier, COALESCE(c.parent_key, '')
		FROM   components c
		WHERE  c.key IN (SELECT key FROM chain)
		   OR  c.parent_key IN (SELECT key FROM chain)
	`, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("loading component tree: %w", err)
	}
	tree, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (measure.Component, error) {
		var c measure.Component
		err := row.Scan(&c.Key, &c.Qualifier, &c.ParentKey)
		return c, err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scanning component tree: %w", err)
	}

	treeKeys := make([]string, len(tree))
	for i, c := range tree {
		treeKeys[i] = c.Key
	}
	stored, err := listMeasures(ctx, r.tx, treeKeys)
	if err != nil {
		return nil, nil, err
	}
	return tree, stored, nil
}

func (r measureRepo) SaveMeasures(ctx context.Context, measures []measure.Measure) error {
	batch := &pgx.Batch{}
	for _, m := range measures {
		var text *string
		if m.Text != "" {
			text = &m.Text
		}
		batch.Queue(`
			INSERT INTO live_measures (component_key, metric, value, text_value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (component_key, metric)
			DO UPDATE SET value = EXCLUDED.value, text_value = EXCLUDED.text_value, updated_at = NOW()
		`, m.ComponentKey, m.Metric, m.Value, text)
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting live measures: %w", err)
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listMeasures(ctx context.Context, q queryer, keys []string) ([]measure.Measure, error) {
	rows, err := q.Query(ctx, `
		SELECT component_key, metric, value, COALESCE(text_value, '')
		FROM   live_measures
		WHERE  component_key = ANY($1)
		ORDER  BY component_key ASC, metric ASC
	`, keys)
	if err != nil {
		return nil, fmt.Errorf("listing live measures: %w", err)
	}
	measures, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (measure.Measure, error) {
		var m measure.Measure
		err := row.Scan(&m.ComponentKey, &m.Metric, &m.Value, &m.Text)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning live measures: %w", err)
	}
	return measures, nil
}

// ListLiveMeasures returns the live measures of one component.
func ListLiveMeasures(ctx context.Context, pool *pgxpool.Pool, componentKey string) ([]measure.Measure, error) {
	return listMeasures(ctx, pool, []string{componentKey})
}

// qualityGate returns the stored gate status of a component, or "" when it was never
// evaluated.
func qualityGate(ctx context.Context, pool *pgxpool.Pool, componentKey string) (string, error) {
	var status *string
	err := pool.QueryRow(ctx, `
		SELECT text_value
		FROM   live_measures
		WHERE  component_key = $1 AND metric = $2
	`, componentKey, measure.MetricAlertStatus).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting quality gate: %w", err)
	}
	if status == nil {
		return "", nil
	}
	return *status, nil
}
