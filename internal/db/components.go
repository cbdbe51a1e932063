package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/otavio/vigia/internal/component"
)

// ErrComponentNotFound is returned when a component key is unknown.
var ErrComponentNotFound = errors.New("component not found")

// ComponentRow is a stored component without its breadcrumb path.
type ComponentRow struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Qualifier    string    `json:"qualifier"`
	Organization *string   `json:"organization,omitempty"`
	ParentKey    *string   `json:"parent_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// chainRow is one ancestor (or the component itself) in root-first order.
type chainRow struct {
	Key          string
	Name         string
	Qualifier    string
	Organization *string
}

// CreateComponent inserts a new component.
func CreateComponent(pool *pgxpool.Pool, key, name, qualifier string, organization, parentKey *string) error {
	_, err := pool.Exec(context.Background(), `
		INSERT INTO components (key, name, qualifier, organization, parent_key)
		VALUES ($1, $2, $3, $4, $5)
	`, key, name, qualifier, organization, parentKey)
	if err != nil {
		return fmt.Errorf("creating component: %w", err)
	}
	return nil
}

// GetComponent loads a component and its breadcrumbs from the root project down.
func GetComponent(ctx context.Context, pool *pgxpool.Pool, key string) (*component.Component, error) {
	rows, err := pool.Query(ctx, `
		WITH RECURSIVE chain AS (
			SELECT key, name, qualifier, organization, parent_key, 0 AS depth
			FROM   components
			WHERE  key = $1
			UNION ALL
			SELECT c.key, c.name, c.qualifier, c.organization, c.parent_key, chain.depth + 1
			FROM   components c
			JOIN   chain ON c.key = chain.parent_key
			WHERE  chain.depth < 64
		)
		SELECT key, name, qualifier, organization
		FROM   chain
		ORDER  BY depth DESC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("getting component %s: %w", key, err)
	}
	defer rows.Close()

	var chain []chainRow
	for rows.Next() {
		var r chainRow
		if err := rows.Scan(&r.Key, &r.Name, &r.Qualifier, &r.Organization); err != nil {
			return nil, fmt.Errorf("scanning component: %w", err)
		}
		chain = append(chain, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating components: %w", err)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, key)
	}

	c := buildComponent(chain)
	return &c, nil
}

// buildComponent turns a root-first ancestor chain into a component. The last row is the
// component itself; the organization is inherited from the closest ancestor that has one.
func buildComponent(chain []chainRow) component.Component {
	self := chain[len(chain)-1]
	c := component.Component{
		Key:         self.Key,
		Name:        self.Name,
		Qualifier:   self.Qualifier,
		Breadcrumbs: make([]component.Breadcrumb, 0, len(chain)),
	}
	for _, r := range chain {
		c.Breadcrumbs = append(c.Breadcrumbs, component.Breadcrumb{Key: r.Key, Name: r.Name, Qualifier: r.Qualifier})
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Organization != nil {
			c.Organization = *chain[i].Organization
			break
		}
	}
	return c
}

// ListComponents returns components, optionally filtered by qualifier.
func ListComponents(pool *pgxpool.Pool, qualifier *string) ([]*ComponentRow, error) {
	rows, err := pool.Query(context.Background(), `
		SELECT key, name, qualifier, organization, parent_key, created_at
		FROM   components
		WHERE  $1::text IS NULL OR qualifier = $1
		ORDER  BY key ASC
	`, qualifier)
	if err != nil {
		return nil, fmt.Errorf("listing components: %w", err)
	}
	defer rows.Close()

	var out []*ComponentRow
	for rows.Next() {
		var c ComponentRow
		if err := rows.Scan(&c.Key, &c.Name, &c.Qualifier, &c.Organization, &c.ParentKey, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning component: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeleteComponent removes a component with its descendants, tasks and schedules.
func DeleteComponent(pool *pgxpool.Pool, key string) error {
	tag, err := pool.Exec(context.Background(), `DELETE FROM components WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("deleting component: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrComponentNotFound, key)
	}
	return nil
}

// ListBranches returns the distinct branch names analyses were submitted for.
func ListBranches(ctx context.Context, pool *pgxpool.Pool, componentKey string) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT DISTINCT branch
		FROM   ce_tasks
		WHERE  component_key = $1 AND branch IS NOT NULL
		ORDER  BY branch ASC
	`, componentKey)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	defer rows.Close()

	var branches []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scanning branch: %w", err)
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}
